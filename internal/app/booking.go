package app

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const slotLength = time.Hour

// BookingRequest carries the visitor's raw input.
type BookingRequest struct {
	Name         string
	Email        string
	Observations string
	// Date is an RFC 3339 date-time; it is normalized to the start of its UTC hour.
	Date string
}

// BookingCoordinator validates and commits bookings, then syncs them to the
// owner's calendar.
type BookingCoordinator struct {
	store       Store
	locker      SlotLocker
	calendar    CalendarSync
	clock       Clock
	logger      *zap.Logger
	validate    *validator.Validate
	syncTimeout time.Duration
}

type CoordinatorOption func(*BookingCoordinator)

func WithSlotLocker(l SlotLocker) CoordinatorOption {
	return func(c *BookingCoordinator) { c.locker = l }
}

func WithCalendarSync(cs CalendarSync) CoordinatorOption {
	return func(c *BookingCoordinator) { c.calendar = cs }
}

func WithSyncTimeout(d time.Duration) CoordinatorOption {
	return func(c *BookingCoordinator) { c.syncTimeout = d }
}

func NewBookingCoordinator(store Store, clock Clock, logger *zap.Logger, opts ...CoordinatorOption) *BookingCoordinator {
	c := &BookingCoordinator{
		store:       store,
		locker:      NoopLocker,
		calendar:    NewNoopCalendar(logger),
		clock:       clock,
		logger:      logger,
		validate:    validator.New(),
		syncTimeout: 15 * time.Second,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// CreateBooking books the hour containing req.Date for username. It returns
// exactly one of: the booking, a *ValidationError, ErrUserNotFound,
// ErrPastDate, ErrConflict or an infrastructure error. Calendar sync runs
// after the commit and never fails the call.
func (c *BookingCoordinator) CreateBooking(ctx context.Context, username string, req BookingRequest) (Booking, error) {
	at, err := c.parse(req)
	if err != nil {
		return Booking{}, err
	}

	user, err := c.store.FindUserByHandle(ctx, username)
	if errors.Is(err, ErrNotFound) {
		return Booking{}, ErrUserNotFound
	}
	if err != nil {
		return Booking{}, err
	}

	if !at.After(c.clock.Now()) {
		return Booking{}, ErrPastDate
	}

	b, err := c.commit(ctx, user, req, at)
	if err != nil {
		return Booking{}, err
	}

	c.logger.Info("booking created",
		zap.String("booking_id", b.ID),
		zap.String("user_id", user.ID),
		zap.Time("date", b.Date))

	c.sync(ctx, b)
	return b, nil
}

func (c *BookingCoordinator) parse(req BookingRequest) (time.Time, error) {
	if strings.TrimSpace(req.Name) == "" {
		return time.Time{}, invalid("name", "is required")
	}
	if err := c.validate.Var(strings.TrimSpace(req.Email), "required,email"); err != nil {
		return time.Time{}, invalid("email", "must be a valid email address")
	}
	t, err := ParseInstant(req.Date)
	if err != nil {
		return time.Time{}, err
	}
	return NormalizeInstant(t), nil
}

// commit runs the conflict check and the insert under the slot lock. The
// store's unique constraint still decides if the lock is unavailable or expired.
// Losing the lock race is reported as ErrConflict even if the holder later fails.
func (c *BookingCoordinator) commit(ctx context.Context, user User, req BookingRequest, at time.Time) (Booking, error) {
	unlock, err := c.locker.Lock(ctx, user.ID, at)
	switch {
	case errors.Is(err, ErrSlotLocked):
		return Booking{}, ErrConflict
	case err != nil:
		c.logger.Warn("slot lock unavailable, relying on store constraint",
			zap.String("user_id", user.ID),
			zap.Time("date", at),
			zap.Error(err))
		unlock = func() {}
	}
	defer unlock()

	_, err = c.store.FindBookingAt(ctx, user.ID, at)
	if err == nil {
		return Booking{}, ErrConflict
	}
	if !errors.Is(err, ErrNotFound) {
		return Booking{}, err
	}

	b := Booking{
		ID:           uuid.NewString(),
		UserID:       user.ID,
		Name:         strings.TrimSpace(req.Name),
		Email:        strings.TrimSpace(req.Email),
		Observations: req.Observations,
		Date:         at,
	}
	if err := c.store.CreateBooking(ctx, &b); err != nil {
		return Booking{}, err
	}
	return b, nil
}

func (c *BookingCoordinator) sync(ctx context.Context, b Booking) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.syncTimeout)
	defer cancel()

	ev := CalendarEvent{
		Title:         "Agendamento: " + b.Name,
		Description:   b.Observations,
		Start:         b.Date,
		End:           b.Date.Add(slotLength),
		AttendeeEmail: b.Email,
	}
	if err := c.calendar.InsertEvent(ctx, b.UserID, ev); err != nil {
		c.logger.Warn("calendar sync failed, booking kept",
			zap.String("booking_id", b.ID),
			zap.String("user_id", b.UserID),
			zap.Error(err))
	}
}
