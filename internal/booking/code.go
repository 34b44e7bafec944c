package booking

import (
	"context"
	"crypto/rand"
	"fmt"
	"time"

	"github.com/homestay-reservations/backend/internal/storage"
)

const (
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeLength   = 5
	codeAttempts = 10
)

// randomCode returns BK-YYYYMMDD-XXXXX for the given day.
func randomCode(day time.Time) (string, error) {
	buf := make([]byte, codeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("reading random bytes: %w", err)
	}
	for i, b := range buf {
		buf[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return fmt.Sprintf("BK-%s-%s", day.Format("20060102"), buf), nil
}

// generateCode returns a booking code not yet used by any booking.
func (s *Service) generateCode(ctx context.Context, q storage.Queryable) (string, error) {
	for i := 0; i < codeAttempts; i++ {
		code, err := randomCode(s.now())
		if err != nil {
			return "", err
		}

		taken, err := s.bookings.CodeExists(ctx, q, code)
		if err != nil {
			return "", err
		}
		if !taken {
			return code, nil
		}
	}
	return "", fmt.Errorf("generating booking code: no free code after %d attempts", codeAttempts)
}
