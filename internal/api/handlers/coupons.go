package handlers

import (
	"net/http"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/homestay-reservations/backend/internal/api/middleware"
	"github.com/homestay-reservations/backend/internal/booking"
	"github.com/homestay-reservations/backend/internal/coupon"
)

// ValidateCouponRequest is the body of POST /api/coupons/validate.
type ValidateCouponRequest struct {
	Code          string `json:"code" validate:"required,max=50"`
	HomestayID    string `json:"homestay_id" validate:"required"`
	BookingAmount string `json:"booking_amount" validate:"required,numeric"`
	Nights        int    `json:"nights" validate:"min=1"`
	BookingID     string `json:"booking_id"`
}

// ValidateCoupon returns a handler that checks a coupon for the caller.
// An unusable coupon is a 200 response with valid=false and a reason.
func ValidateCoupon(svc *booking.Service, logger logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ValidateCouponRequest
		if !decode(w, r, &req) {
			return
		}
		amount, err := decimal.NewFromString(req.BookingAmount)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "booking_amount must be a decimal number")
			return
		}

		result, err := svc.ValidateCoupon(r.Context(), coupon.Request{
			Code:          req.Code,
			UserID:        middleware.ActorID(r.Context()),
			HomestayID:    req.HomestayID,
			BookingAmount: amount,
			Nights:        req.Nights,
			BookingID:     req.BookingID,
		})
		if err != nil {
			middleware.WriteAppError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}
