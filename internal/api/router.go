// Package api provides HTTP routing and handlers for the REST API.
package api

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/homestay-reservations/backend/internal/api/handlers"
	"github.com/homestay-reservations/backend/internal/api/middleware"
	"github.com/homestay-reservations/backend/internal/booking"
	"github.com/homestay-reservations/backend/internal/storage"
	"github.com/homestay-reservations/backend/internal/websocket"
)

// Deps are the services the router exposes.
type Deps struct {
	DB       *storage.DB
	Bookings *booking.Service
	Hub      *websocket.Hub
	Logger   logrus.FieldLogger

	// CreateLimiter throttles POST /api/bookings; nil disables throttling
	CreateLimiter *rate.Limiter
}

// NewRouter creates and configures the HTTP router with all API routes.
func NewRouter(d Deps) *mux.Router {
	r := mux.NewRouter()

	// Apply global middleware
	r.Use(middleware.Logging(d.Logger))
	r.Use(middleware.ErrorRecovery(d.Logger))
	r.Use(middleware.Actor)

	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// API subrouter
	api := r.PathPrefix("/api").Subrouter()

	// Health and live events
	api.HandleFunc("/health", handlers.HealthCheck(d.DB, d.Hub)).Methods("GET")
	api.HandleFunc("/ws", handlers.WebSocketUpgrade(d.Hub, d.Logger)).Methods("GET")

	// Public homestay queries
	api.HandleFunc("/homestays/{id}/availability", handlers.Availability(d.Bookings, d.Logger)).Methods("GET")
	api.HandleFunc("/homestays/{id}/price", handlers.Price(d.Bookings, d.Logger)).Methods("GET")
	api.HandleFunc("/homestays/{id}/coupons", handlers.ApplicableCoupons(d.Bookings, d.Logger)).Methods("GET")
	api.HandleFunc("/homestays/{id}/calendar.ics", handlers.CalendarFeed(d.Bookings, d.Logger)).Methods("GET")
	api.HandleFunc("/coupons/validate", handlers.ValidateCoupon(d.Bookings, d.Logger)).Methods("POST")

	// Booking endpoints require an actor
	bookings := api.PathPrefix("/bookings").Subrouter()
	bookings.Use(middleware.RequireActor)

	var create http.Handler = handlers.CreateBooking(d.Bookings, d.Logger)
	if d.CreateLimiter != nil {
		create = middleware.RateLimit(d.CreateLimiter)(create)
	}
	bookings.Handle("", create).Methods("POST")
	bookings.HandleFunc("/{id}", handlers.GetBooking(d.Bookings, d.Logger)).Methods("GET")
	bookings.HandleFunc("/{id}", handlers.UpdateBooking(d.Bookings, d.Logger)).Methods("PATCH")
	bookings.HandleFunc("/{id}/reconcile-payment", handlers.ReconcilePayment(d.Bookings, d.Logger)).Methods("POST")
	bookings.HandleFunc("/{id}/coupon", handlers.ApplyCoupon(d.Bookings, d.Logger)).Methods("POST")
	bookings.HandleFunc("/{id}/coupon", handlers.RemoveCoupon(d.Bookings, d.Logger)).Methods("DELETE")
	bookings.HandleFunc("/{id}/{action:"+strings.Join(handlers.BookingActions, "|")+"}",
		handlers.BookingAction(d.Bookings, d.Logger)).Methods("POST")

	return r
}
