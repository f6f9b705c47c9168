package app

import (
	"context"
	"errors"
	"slices"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// resolveTimeout bounds a coalesced lookup once it is detached from its callers.
const resolveTimeout = 10 * time.Second

// AvailabilityQuery is the input of AvailabilityResolver.Resolve.
type AvailabilityQuery struct {
	// Date is a calendar day, YYYY-MM-DD or RFC 3339.
	Date string
	// TimezoneOffset is the visitor's offset from UTC in minutes. It is
	// accepted and validated but does not shift the computed hours: every
	// hour returned is a UTC hour.
	TimezoneOffset *int
}

// AvailabilityResolver computes the bookable one-hour slots of a day.
type AvailabilityResolver struct {
	store  Store
	clock  Clock
	logger *zap.Logger
	sf     singleflight.Group
}

func NewAvailabilityResolver(store Store, clock Clock, logger *zap.Logger) *AvailabilityResolver {
	return &AvailabilityResolver{store: store, clock: clock, logger: logger}
}

// Resolve returns the possible and available UTC hours for username on q.Date.
// Concurrent identical queries share one store round trip.
func (r *AvailabilityResolver) Resolve(ctx context.Context, username string, q AvailabilityQuery) (Availability, error) {
	day, err := ParseCalendarDate(q.Date)
	if err != nil {
		return Availability{}, err
	}
	if q.TimezoneOffset != nil {
		r.logger.Debug("timezone offset ignored",
			zap.String("username", username),
			zap.Int("timezone_offset", *q.TimezoneOffset))
	}

	// The shared lookup must not die with whichever caller started it; each
	// caller gives up on its own context instead.
	key := username + "|" + day.Format(dateLayout)
	ch := r.sf.DoChan(key, func() (interface{}, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), resolveTimeout)
		defer cancel()
		return r.resolve(fctx, username, day)
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return Availability{}, ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		return Availability{}, res.Err
	}
	a := res.Val.(Availability)
	return Availability{
		PossibleTimes:  slices.Clone(a.PossibleTimes),
		AvailableTimes: slices.Clone(a.AvailableTimes),
	}, nil
}

func (r *AvailabilityResolver) resolve(ctx context.Context, username string, day time.Time) (Availability, error) {
	user, err := r.store.FindUserByHandle(ctx, username)
	if errors.Is(err, ErrNotFound) {
		return Availability{}, ErrUserNotFound
	}
	if err != nil {
		return Availability{}, err
	}

	now := r.clock.Now()
	if EndOfDay(day).Before(now) {
		return emptyAvailability(), nil
	}

	rule, err := r.store.FindWeeklyRule(ctx, user.ID, int(day.Weekday()))
	if errors.Is(err, ErrNotFound) {
		return emptyAvailability(), nil
	}
	if err != nil {
		return Availability{}, err
	}
	if !rule.HourAligned() {
		r.logger.Warn("availability rule not aligned to the hour, truncating",
			zap.Int("rule_id", rule.ID),
			zap.Int("start_minutes", rule.StartMinutes),
			zap.Int("end_minutes", rule.EndMinutes))
	}

	startHour, endHour := rule.Hours()
	if endHour <= startHour {
		return emptyAvailability(), nil
	}

	possible := make([]int, 0, endHour-startHour)
	for h := startHour; h < endHour; h++ {
		possible = append(possible, h)
	}

	bookings, err := r.store.FindBookingsInRange(ctx, user.ID, HourOf(day, startHour), HourOf(day, endHour))
	if err != nil {
		return Availability{}, err
	}
	blocked := make(map[int]struct{}, len(bookings))
	for _, b := range bookings {
		// the range end is inclusive and may be next-day midnight
		if !StartOfDay(b.Date).Equal(day) {
			continue
		}
		blocked[b.Date.UTC().Hour()] = struct{}{}
	}

	available := make([]int, 0, len(possible))
	for _, h := range possible {
		if _, ok := blocked[h]; ok {
			continue
		}
		if HourOf(day, h).Before(now) {
			continue
		}
		available = append(available, h)
	}

	return Availability{PossibleTimes: possible, AvailableTimes: available}, nil
}
