package app

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// memStore is an in-memory Store that enforces the (user, date) uniqueness
// the Postgres schema does.
type memStore struct {
	mu       sync.Mutex
	users    map[string]User
	rules    []AvailabilityRule
	bookings []Booking
	tokens   map[string]*oauth2.Token

	failWith    error
	createCalls int
	rangeCalls  int
}

func newMemStore() *memStore {
	return &memStore{
		users:  map[string]User{},
		tokens: map[string]*oauth2.Token{},
	}
}

func (m *memStore) addUser(id, username string) User {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := User{ID: id, Username: username, Name: username}
	m.users[username] = u
	return u
}

func (m *memStore) addRule(userID string, day time.Weekday, start, end int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = append(m.rules, AvailabilityRule{
		ID: len(m.rules) + 1, UserID: userID, DayOfWeek: int(day), StartMinutes: start, EndMinutes: end,
	})
}

func (m *memStore) addBooking(userID string, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bookings = append(m.bookings, Booking{ID: "seed", UserID: userID, Name: "seed", Email: "seed@example.com", Date: at.UTC()})
}

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.bookings)
}

func (m *memStore) FindUserByHandle(_ context.Context, username string) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return User{}, m.failWith
	}
	u, ok := m.users[username]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (m *memStore) FindWeeklyRule(_ context.Context, userID string, dayOfWeek int) (AvailabilityRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rules {
		if r.UserID == userID && r.DayOfWeek == dayOfWeek {
			return r, nil
		}
	}
	return AvailabilityRule{}, ErrNotFound
}

func (m *memStore) FindBookingAt(_ context.Context, userID string, at time.Time) (Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.bookings {
		if b.UserID == userID && b.Date.Equal(at) {
			return b, nil
		}
	}
	return Booking{}, ErrNotFound
}

func (m *memStore) FindBookingsInRange(_ context.Context, userID string, from, to time.Time) ([]Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rangeCalls++
	var out []Booking
	for _, b := range m.bookings {
		if b.UserID == userID && !b.Date.Before(from) && !b.Date.After(to) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (m *memStore) CreateBooking(_ context.Context, b *Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createCalls++
	for _, existing := range m.bookings {
		if existing.UserID == b.UserID && existing.Date.Equal(b.Date) {
			return ErrConflict
		}
	}
	b.CreatedAt = time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	m.bookings = append(m.bookings, *b)
	return nil
}

func (m *memStore) FindCalendarToken(_ context.Context, userID string) (*oauth2.Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tok, ok := m.tokens[userID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *tok
	return &cp, nil
}

func (m *memStore) UpdateCalendarToken(_ context.Context, userID string, tok *oauth2.Token) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tokens[userID]; !ok {
		return ErrNotFound
	}
	cp := *tok
	m.tokens[userID] = &cp
	return nil
}

func (m *memStore) Ping(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.failWith
}

type recordingCalendar struct {
	mu     sync.Mutex
	events []CalendarEvent
	users  []string
	err    error
}

func (r *recordingCalendar) InsertEvent(_ context.Context, userID string, ev CalendarEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users = append(r.users, userID)
	r.events = append(r.events, ev)
	return r.err
}

type lockedLocker struct{}

func (lockedLocker) Lock(context.Context, string, time.Time) (func(), error) {
	return nil, ErrSlotLocked
}

type brokenLocker struct{}

func (brokenLocker) Lock(context.Context, string, time.Time) (func(), error) {
	return nil, errors.New("redis: connection refused")
}

var errStoreDown = errors.New("connection refused")

func fixedClock(t time.Time) Clock {
	return ClockFunc(func() time.Time { return t })
}

func testLogger() *zap.Logger { return zap.NewNop() }
