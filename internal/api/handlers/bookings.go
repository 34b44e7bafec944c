package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/homestay-reservations/backend/internal/api/middleware"
	"github.com/homestay-reservations/backend/internal/booking"
	"github.com/homestay-reservations/backend/internal/calendar"
	"github.com/homestay-reservations/backend/internal/storage/models"
)

// CreateBookingRequest is the body of POST /api/bookings.
type CreateBookingRequest struct {
	HomestayID  string `json:"homestay_id" validate:"required"`
	CheckIn     string `json:"check_in" validate:"required,datetime=2006-01-02"`
	CheckOut    string `json:"check_out" validate:"required,datetime=2006-01-02"`
	NumAdults   int    `json:"num_adults" validate:"min=1"`
	NumChildren int    `json:"num_children" validate:"min=0"`
	Notes       string `json:"notes" validate:"max=2000"`
	CouponCode  string `json:"coupon_code" validate:"omitempty,max=50"`
}

// UpdateBookingRequest is the body of PATCH /api/bookings/{id}.
type UpdateBookingRequest struct {
	CheckIn     *string `json:"check_in" validate:"omitempty,datetime=2006-01-02"`
	CheckOut    *string `json:"check_out" validate:"omitempty,datetime=2006-01-02"`
	NumAdults   *int    `json:"num_adults" validate:"omitempty,min=1"`
	NumChildren *int    `json:"num_children" validate:"omitempty,min=0"`
	Notes       *string `json:"notes" validate:"omitempty,max=2000"`
}

// ReasonRequest carries an optional reason for reject and cancel.
type ReasonRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

// CouponCodeRequest names a coupon to apply.
type CouponCodeRequest struct {
	Code string `json:"code" validate:"required,max=50"`
}

// ReconcileResponse reports the outcome of a payment reconciliation.
type ReconcileResponse struct {
	Confirmed bool `json:"confirmed"`
}

// CreateBooking returns a handler that reserves a stay for the caller.
func CreateBooking(svc *booking.Service, logger logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateBookingRequest
		if !decode(w, r, &req) {
			return
		}

		checkIn, _ := calendar.ParseDate(req.CheckIn)
		checkOut, _ := calendar.ParseDate(req.CheckOut)

		b, err := svc.CreateBooking(r.Context(), middleware.ActorID(r.Context()), booking.CreateRequest{
			HomestayID:  req.HomestayID,
			CheckIn:     checkIn,
			CheckOut:    checkOut,
			NumAdults:   req.NumAdults,
			NumChildren: req.NumChildren,
			Notes:       req.Notes,
			CouponCode:  req.CouponCode,
		})
		if err != nil {
			middleware.WriteAppError(w, logger, err)
			return
		}

		writeJSON(w, http.StatusCreated, b)
	}
}

// GetBooking returns a handler that reads one booking.
func GetBooking(svc *booking.Service, logger logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b, err := svc.GetBooking(r.Context(), middleware.ActorID(r.Context()), mux.Vars(r)["id"])
		if err != nil {
			middleware.WriteAppError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, b)
	}
}

// UpdateBooking returns a handler that changes a booking's stay.
func UpdateBooking(svc *booking.Service, logger logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req UpdateBookingRequest
		if !decode(w, r, &req) {
			return
		}

		update := booking.UpdateRequest{
			NumAdults:   req.NumAdults,
			NumChildren: req.NumChildren,
			Notes:       req.Notes,
		}
		if req.CheckIn != nil {
			d, _ := calendar.ParseDate(*req.CheckIn)
			update.CheckIn = &d
		}
		if req.CheckOut != nil {
			d, _ := calendar.ParseDate(*req.CheckOut)
			update.CheckOut = &d
		}

		b, err := svc.UpdateBooking(r.Context(), middleware.ActorID(r.Context()), mux.Vars(r)["id"], update)
		if err != nil {
			middleware.WriteAppError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, b)
	}
}

type transitionFunc func(ctx context.Context, actorID, bookingID, reason string) (*models.Booking, error)

func withoutReason(fn func(ctx context.Context, actorID, bookingID string) (*models.Booking, error)) transitionFunc {
	return func(ctx context.Context, actorID, bookingID, _ string) (*models.Booking, error) {
		return fn(ctx, actorID, bookingID)
	}
}

// BookingActions lists the status-changing actions exposed under
// POST /api/bookings/{id}/{action}.
var BookingActions = []string{"confirm", "reject", "cancel", "check-in", "check-out", "complete", "no-show"}

// BookingAction returns a handler that applies the {action} transition.
func BookingAction(svc *booking.Service, logger logrus.FieldLogger) http.HandlerFunc {
	actions := map[string]transitionFunc{
		"confirm":   withoutReason(svc.ConfirmBooking),
		"reject":    svc.RejectBooking,
		"cancel":    svc.CancelBooking,
		"check-in":  withoutReason(svc.CheckIn),
		"check-out": withoutReason(svc.CheckOut),
		"complete":  withoutReason(svc.Complete),
		"no-show":   withoutReason(svc.MarkNoShow),
	}

	return func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)
		apply, ok := actions[vars["action"]]
		if !ok {
			middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "Unknown booking action")
			return
		}

		var req ReasonRequest
		if r.ContentLength > 0 && !decode(w, r, &req) {
			return
		}

		b, err := apply(r.Context(), middleware.ActorID(r.Context()), vars["id"], req.Reason)
		if err != nil {
			middleware.WriteAppError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, b)
	}
}

// ReconcilePayment returns a handler that confirms a fully paid booking.
func ReconcilePayment(svc *booking.Service, logger logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		confirmed, err := svc.ReconcilePayment(r.Context(), mux.Vars(r)["id"])
		if err != nil {
			middleware.WriteAppError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, ReconcileResponse{Confirmed: confirmed})
	}
}

// ApplyCoupon returns a handler that attaches a coupon to a booking.
func ApplyCoupon(svc *booking.Service, logger logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CouponCodeRequest
		if !decode(w, r, &req) {
			return
		}

		b, err := svc.ApplyCoupon(r.Context(), middleware.ActorID(r.Context()), mux.Vars(r)["id"], req.Code)
		if err != nil {
			middleware.WriteAppError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, b)
	}
}

// RemoveCoupon returns a handler that detaches the ?code= coupon from a booking.
func RemoveCoupon(svc *booking.Service, logger logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := CouponCodeRequest{Code: r.URL.Query().Get("code")}
		if !check(w, &req) {
			return
		}

		b, err := svc.RemoveCoupon(r.Context(), middleware.ActorID(r.Context()), mux.Vars(r)["id"], req.Code)
		if err != nil {
			middleware.WriteAppError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, b)
	}
}

// today is the default start of date-range queries.
func today() time.Time {
	return calendar.Date(time.Now().UTC())
}
