package handlers

import (
	"bytes"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/homestay-reservations/backend/internal/api/middleware"
	"github.com/homestay-reservations/backend/internal/booking"
	"github.com/homestay-reservations/backend/internal/calendar"
	"github.com/homestay-reservations/backend/internal/coupon"
)

// feedHorizonDays is how far ahead a calendar feed reaches by default.
const feedHorizonDays = 365

// StayQuery holds the stay parameters of availability and price queries.
type StayQuery struct {
	CheckIn  string `json:"check_in" validate:"required,datetime=2006-01-02"`
	CheckOut string `json:"check_out" validate:"required,datetime=2006-01-02"`
	Guests   string `json:"guests" validate:"omitempty,number"`
}

// AvailabilityResponse answers an availability query.
type AvailabilityResponse struct {
	HomestayID string `json:"homestay_id"`
	CheckIn    string `json:"check_in"`
	CheckOut   string `json:"check_out"`
	Available  bool   `json:"available"`
}

func stayQuery(w http.ResponseWriter, r *http.Request) (StayQuery, bool) {
	q := r.URL.Query()
	sq := StayQuery{CheckIn: q.Get("check_in"), CheckOut: q.Get("check_out"), Guests: q.Get("guests")}
	return sq, check(w, &sq)
}

// Availability returns a handler that checks a date range.
func Availability(svc *booking.Service, logger logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sq, ok := stayQuery(w, r)
		if !ok {
			return
		}
		checkIn, _ := calendar.ParseDate(sq.CheckIn)
		checkOut, _ := calendar.ParseDate(sq.CheckOut)
		homestayID := mux.Vars(r)["id"]

		available, err := svc.IsAvailable(r.Context(), homestayID, checkIn, checkOut)
		if err != nil {
			middleware.WriteAppError(w, logger, err)
			return
		}

		writeJSON(w, http.StatusOK, AvailabilityResponse{
			HomestayID: homestayID,
			CheckIn:    sq.CheckIn,
			CheckOut:   sq.CheckOut,
			Available:  available,
		})
	}
}

// Price returns a handler that quotes a stay.
func Price(svc *booking.Service, logger logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sq, ok := stayQuery(w, r)
		if !ok {
			return
		}
		checkIn, _ := calendar.ParseDate(sq.CheckIn)
		checkOut, _ := calendar.ParseDate(sq.CheckOut)
		guests := 1
		if sq.Guests != "" {
			guests, _ = strconv.Atoi(sq.Guests)
		}

		quote, err := svc.CalculatePrice(r.Context(), mux.Vars(r)["id"], checkIn, checkOut, guests)
		if err != nil {
			middleware.WriteAppError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, quote)
	}
}

// CouponQuery narrows the applicable coupon listing.
type CouponQuery struct {
	Amount string `json:"amount" validate:"omitempty,numeric"`
	Nights string `json:"nights" validate:"omitempty,number"`
}

// ApplicableCoupons returns a handler that lists coupons usable for a homestay.
func ApplicableCoupons(svc *booking.Service, logger logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		cq := CouponQuery{Amount: q.Get("amount"), Nights: q.Get("nights")}
		if !check(w, &cq) {
			return
		}

		filter := coupon.Filter{
			HomestayID: mux.Vars(r)["id"],
			UserID:     middleware.ActorID(r.Context()),
		}
		if cq.Amount != "" {
			amount, err := decimal.NewFromString(cq.Amount)
			if err != nil {
				middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "amount must be a decimal number")
				return
			}
			filter.BookingAmount = &amount
		}
		if cq.Nights != "" {
			nights, _ := strconv.Atoi(cq.Nights)
			filter.Nights = &nights
		}

		coupons, err := svc.ListApplicableCoupons(r.Context(), filter)
		if err != nil {
			middleware.WriteAppError(w, logger, err)
			return
		}
		if coupons == nil {
			coupons = []coupon.Applicable{}
		}
		writeJSON(w, http.StatusOK, coupons)
	}
}

// FeedQuery is the optional range of a calendar feed.
type FeedQuery struct {
	From string `json:"from" validate:"omitempty,datetime=2006-01-02"`
	To   string `json:"to" validate:"omitempty,datetime=2006-01-02"`
}

// CalendarFeed returns a handler that exports blocked nights as iCalendar.
func CalendarFeed(svc *booking.Service, logger logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		fq := FeedQuery{From: q.Get("from"), To: q.Get("to")}
		if !check(w, &fq) {
			return
		}

		from := today()
		if fq.From != "" {
			from, _ = calendar.ParseDate(fq.From)
		}
		to := from.AddDate(0, 0, feedHorizonDays)
		if fq.To != "" {
			to, _ = calendar.ParseDate(fq.To)
		}

		var buf bytes.Buffer
		if err := svc.CalendarFeed(r.Context(), &buf, mux.Vars(r)["id"], from, to); err != nil {
			middleware.WriteAppError(w, logger, err)
			return
		}

		w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		buf.WriteTo(w)
	}
}
