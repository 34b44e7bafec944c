// Package pricing computes nightly price breakdowns and booking totals.
package pricing

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/homestay-reservations/backend/internal/apperr"
	"github.com/homestay-reservations/backend/internal/calendar"
	"github.com/homestay-reservations/backend/internal/storage/models"
)

// Fee and tax rates applied to every quote.
var (
	CleaningFeeRate = decimal.RequireFromString("0.05")
	ServiceFeeRate  = decimal.RequireFromString("0.10")
	TaxRate         = decimal.RequireFromString("0.08")
)

// Stay-length thresholds for the weekly and monthly discount tiers.
const (
	WeeklyThresholdNights  = 7
	MonthlyThresholdNights = 30
)

var hundred = decimal.NewFromInt(100)

// NightlyPrice is the price charged for one night of a stay.
type NightlyPrice struct {
	Date          time.Time       `json:"date"`
	Price         decimal.Decimal `json:"price"`
	IsCustomPrice bool            `json:"is_custom_price"`
	IsWeekend     bool            `json:"is_weekend"`
}

// Quote is the full price breakdown for a stay.
type Quote struct {
	Nights              int             `json:"nights"`
	NightlyPrices       []NightlyPrice  `json:"nightly_prices"`
	BaseAmount          decimal.Decimal `json:"base_amount"`
	StayDiscountPercent decimal.Decimal `json:"stay_discount_percent"`
	DiscountAmount      decimal.Decimal `json:"discount_amount"`
	DiscountedBase      decimal.Decimal `json:"discounted_base"`
	CleaningFee         decimal.Decimal `json:"cleaning_fee"`
	ServiceFee          decimal.Decimal `json:"service_fee"`
	Subtotal            decimal.Decimal `json:"subtotal"`
	TaxAmount           decimal.Decimal `json:"tax_amount"`
	TotalAmount         decimal.Decimal `json:"total_amount"`
}

// Request describes the stay to price.
type Request struct {
	CheckIn  time.Time
	CheckOut time.Time
	Guests   int
}

// Engine prices stays. It holds no state; overrides are supplied per call.
type Engine struct{}

// NewEngine creates a new pricing engine.
func NewEngine() *Engine {
	return &Engine{}
}

// Validate checks the stay against the homestay's booking rules. The
// minimum-stay override on the check-in night's calendar entry, when present,
// replaces the homestay minimum.
func (e *Engine) Validate(h *models.Homestay, req Request, overrides map[string]models.CalendarEntry) error {
	checkIn, checkOut := calendar.Date(req.CheckIn), calendar.Date(req.CheckOut)

	if !checkOut.After(checkIn) {
		return apperr.Invalid("check-out date must be after check-in date")
	}
	if !h.IsBookable() {
		return apperr.Invalid("homestay is not available for booking")
	}

	nights := calendar.Nights(checkIn, checkOut)
	minNights := h.MinimumNights
	if entry, ok := overrides[calendar.Key(checkIn)]; ok && entry.MinimumNights != nil {
		minNights = *entry.MinimumNights
	}
	if nights < minNights {
		return apperr.Invalid("minimum stay is %d nights", minNights)
	}
	if h.MaximumNights > 0 && nights > h.MaximumNights {
		return apperr.Invalid("maximum stay is %d nights", h.MaximumNights)
	}

	if req.Guests < 1 {
		return apperr.Invalid("at least one guest is required")
	}
	if req.Guests > h.MaximumGuests {
		return apperr.Invalid("homestay accommodates at most %d guests", h.MaximumGuests)
	}

	return nil
}

// Calculate validates the stay and returns its price breakdown.
func (e *Engine) Calculate(h *models.Homestay, req Request, overrides map[string]models.CalendarEntry) (*Quote, error) {
	if err := e.Validate(h, req, overrides); err != nil {
		return nil, err
	}

	nights := calendar.EachNight(req.CheckIn, req.CheckOut)
	q := &Quote{
		Nights:        len(nights),
		NightlyPrices: make([]NightlyPrice, 0, len(nights)),
		BaseAmount:    decimal.Zero,
	}

	for _, night := range nights {
		np := e.nightlyPrice(h, night, overrides)
		q.NightlyPrices = append(q.NightlyPrices, np)
		q.BaseAmount = q.BaseAmount.Add(np.Price)
	}
	q.BaseAmount = q.BaseAmount.Round(2)

	q.StayDiscountPercent = stayDiscountPercent(h, q.Nights)
	q.DiscountAmount = q.BaseAmount.Mul(q.StayDiscountPercent).Div(hundred).Round(2)
	q.DiscountedBase = q.BaseAmount.Sub(q.DiscountAmount)

	q.CleaningFee = q.DiscountedBase.Mul(CleaningFeeRate).Round(2)
	q.ServiceFee = q.DiscountedBase.Mul(ServiceFeeRate).Round(2)
	q.Subtotal = q.DiscountedBase.Add(q.CleaningFee).Add(q.ServiceFee)
	q.TaxAmount = q.Subtotal.Mul(TaxRate).Round(2)
	q.TotalAmount = q.Subtotal.Add(q.TaxAmount)

	return q, nil
}

func (e *Engine) nightlyPrice(h *models.Homestay, night time.Time, overrides map[string]models.CalendarEntry) NightlyPrice {
	np := NightlyPrice{
		Date:      night,
		Price:     h.BasePrice,
		IsWeekend: calendar.IsWeekend(night),
	}

	if entry, ok := overrides[calendar.Key(night)]; ok && entry.CustomPrice.Valid {
		np.Price = entry.CustomPrice.Decimal
		np.IsCustomPrice = true
		return np
	}
	if np.IsWeekend && h.WeekendPrice.Valid {
		np.Price = h.WeekendPrice.Decimal
	}

	return np
}

// stayDiscountPercent picks the monthly tier over the weekly one.
func stayDiscountPercent(h *models.Homestay, nights int) decimal.Decimal {
	switch {
	case nights >= MonthlyThresholdNights && h.MonthlyDiscount.Valid && h.MonthlyDiscount.Decimal.IsPositive():
		return h.MonthlyDiscount.Decimal
	case nights >= WeeklyThresholdNights && h.WeeklyDiscount.Valid && h.WeeklyDiscount.Decimal.IsPositive():
		return h.WeeklyDiscount.Decimal
	}
	return decimal.Zero
}
