package calendar

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/homestay-reservations/backend/internal/storage"
)

// FeedEvent is one contiguous run of blocked nights in an exported feed.
type FeedEvent struct {
	UID     string
	Summary string
	Start   time.Time // first blocked night
	End     time.Time // day after the last blocked night
}

// FeedEvents collapses the blocked nights of [from, to) into events. Adjacent
// nights with the same block reason form a single event.
func (s *Service) FeedEvents(ctx context.Context, q storage.Queryable, homestayID string, from, to time.Time) ([]FeedEvent, error) {
	blocked, err := s.entries.ListBlocked(ctx, q, homestayID, Date(from), Date(to))
	if err != nil {
		return nil, fmt.Errorf("loading blocked dates: %w", err)
	}

	var events []FeedEvent
	for _, e := range blocked {
		summary := "Unavailable"
		if e.BlockReason != nil && *e.BlockReason != "" {
			summary = *e.BlockReason
		}
		night := Date(e.Date)

		if n := len(events); n > 0 && events[n-1].Summary == summary && events[n-1].End.Equal(night) {
			events[n-1].End = night.AddDate(0, 0, 1)
			continue
		}

		events = append(events, FeedEvent{
			UID:     fmt.Sprintf("%s-%s@homestay", homestayID, night.Format("20060102")),
			Summary: summary,
			Start:   night,
			End:     night.AddDate(0, 0, 1),
		})
	}

	return events, nil
}

// WriteFeed renders events as an RFC 5545 VCALENDAR with all-day VEVENTs.
func WriteFeed(w io.Writer, name string, events []FeedEvent, stamp time.Time) error {
	bw := bufio.NewWriter(w)

	writeLine(bw, "BEGIN:VCALENDAR")
	writeLine(bw, "VERSION:2.0")
	writeLine(bw, "PRODID:-//homestay-reservations//availability//EN")
	writeLine(bw, "CALSCALE:GREGORIAN")
	writeLine(bw, "X-WR-CALNAME:"+escapeText(name))

	for _, e := range events {
		writeLine(bw, "BEGIN:VEVENT")
		writeLine(bw, "UID:"+e.UID)
		writeLine(bw, "DTSTAMP:"+stamp.UTC().Format("20060102T150405Z"))
		writeLine(bw, "DTSTART;VALUE=DATE:"+e.Start.Format("20060102"))
		writeLine(bw, "DTEND;VALUE=DATE:"+e.End.Format("20060102"))
		writeLine(bw, "SUMMARY:"+escapeText(e.Summary))
		writeLine(bw, "TRANSP:OPAQUE")
		writeLine(bw, "END:VEVENT")
	}

	writeLine(bw, "END:VCALENDAR")

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("writing calendar feed: %w", err)
	}
	return nil
}

// writeLine writes a content line, folding it at 75 octets with CRLF + space.
func writeLine(w *bufio.Writer, line string) {
	for len(line) > 75 {
		cut := 75
		// Never split a UTF-8 sequence
		for cut > 0 && line[cut]&0xC0 == 0x80 {
			cut--
		}
		w.WriteString(line[:cut])
		w.WriteString("\r\n ")
		line = line[cut:]
	}
	w.WriteString(line)
	w.WriteString("\r\n")
}

// escapeText applies iCal TEXT escaping.
func escapeText(value string) string {
	value = strings.ReplaceAll(value, "\\", "\\\\")
	value = strings.ReplaceAll(value, ";", "\\;")
	value = strings.ReplaceAll(value, ",", "\\,")
	value = strings.ReplaceAll(value, "\n", "\\n")
	return value
}
