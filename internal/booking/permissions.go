package booking

import (
	"slices"

	"github.com/homestay-reservations/backend/internal/apperr"
	"github.com/homestay-reservations/backend/internal/identity"
	"github.com/homestay-reservations/backend/internal/storage/models"
)

// actor is the caller of an operation with the roles resolved for this call.
type actor struct {
	id    string
	roles identity.Roles
}

func (a actor) isAdmin() bool {
	return identity.IsAdmin(a.roles)
}

func (a actor) ownsBooking(b *models.Booking) bool {
	return b.GuestID == a.id
}

func (a actor) hosts(h *models.Homestay) bool {
	return h.HostID == a.id
}

// transition describes who may move a booking to a status and from which
// statuses. Admins skip the ownership and status rules.
type transition struct {
	verb    string
	to      models.BookingStatus
	from    []models.BookingStatus
	byHost  bool
	byGuest bool
}

var (
	confirmTransition = transition{
		verb:   "confirm",
		to:     models.BookingStatusConfirmed,
		from:   []models.BookingStatus{models.BookingStatusPending},
		byHost: true,
	}
	rejectTransition = transition{
		verb:   "reject",
		to:     models.BookingStatusRejected,
		from:   []models.BookingStatus{models.BookingStatusPending},
		byHost: true,
	}
	cancelTransition = transition{
		verb:    "cancel",
		to:      models.BookingStatusCancelled,
		from:    []models.BookingStatus{models.BookingStatusPending, models.BookingStatusConfirmed},
		byGuest: true,
	}
	checkInTransition = transition{
		verb:   "check in",
		to:     models.BookingStatusCheckedIn,
		from:   []models.BookingStatus{models.BookingStatusConfirmed},
		byHost: true,
	}
	checkOutTransition = transition{
		verb:   "check out",
		to:     models.BookingStatusCheckedOut,
		from:   []models.BookingStatus{models.BookingStatusCheckedIn},
		byHost: true,
	}
	completeTransition = transition{
		verb:   "complete",
		to:     models.BookingStatusCompleted,
		from:   []models.BookingStatus{models.BookingStatusCheckedOut},
		byHost: true,
	}
	noShowTransition = transition{
		verb:   "mark as no-show",
		to:     models.BookingStatusNoShow,
		from:   []models.BookingStatus{models.BookingStatusConfirmed},
		byHost: true,
	}
	updateTransition = transition{
		verb:    "update",
		from:    []models.BookingStatus{models.BookingStatusPending, models.BookingStatusConfirmed},
		byHost:  true,
		byGuest: true,
	}
	couponTransition = transition{
		verb:    "change the coupon of",
		from:    []models.BookingStatus{models.BookingStatusPending},
		byGuest: true,
	}
)

// authorize checks the actor may perform t on b. Terminal bookings refuse
// every transition, admins included.
func (t transition) authorize(a actor, b *models.Booking, h *models.Homestay) error {
	if b.Status.IsTerminal() {
		return apperr.Invalid("booking %s is %s and can no longer change", b.Code, b.Status)
	}
	if t.to != "" && b.Status == t.to {
		return apperr.Invalid("booking %s is already %s", b.Code, b.Status)
	}
	if a.isAdmin() {
		return nil
	}

	allowed := (t.byHost && a.hosts(h)) || (t.byGuest && a.ownsBooking(b))
	if !allowed {
		return apperr.Invalid("not allowed to %s this booking", t.verb)
	}
	if !slices.Contains(t.from, b.Status) {
		return apperr.Invalid("cannot %s a booking that is %s", t.verb, b.Status)
	}
	return nil
}

// canView allows the guest, the host and admins to read a booking.
func canView(a actor, b *models.Booking, h *models.Homestay) bool {
	return a.isAdmin() || a.ownsBooking(b) || a.hosts(h)
}

// canCreate allows guests to book homestays they do not own.
func canCreate(a actor, h *models.Homestay) error {
	switch {
	case a.isAdmin():
		return apperr.Invalid("admins cannot create bookings")
	case !identity.IsGuest(a.roles):
		return apperr.Invalid("only guests can create bookings")
	case a.hosts(h):
		return apperr.Invalid("hosts cannot book their own homestay")
	}
	return nil
}
