package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/oauth2"
)

// Store is the persistence boundary shared by the resolver and the coordinator.
type Store interface {
	FindUserByHandle(ctx context.Context, username string) (User, error)
	FindWeeklyRule(ctx context.Context, userID string, dayOfWeek int) (AvailabilityRule, error)
	FindBookingAt(ctx context.Context, userID string, at time.Time) (Booking, error)
	FindBookingsInRange(ctx context.Context, userID string, from, to time.Time) ([]Booking, error)
	// CreateBooking returns ErrConflict if the (user, date) slot is already taken.
	CreateBooking(ctx context.Context, b *Booking) error
}

// TokenStore holds the calendar credentials written by the connect-calendar flow.
type TokenStore interface {
	FindCalendarToken(ctx context.Context, userID string) (*oauth2.Token, error)
	UpdateCalendarToken(ctx context.Context, userID string, tok *oauth2.Token) error
}

type PGStore struct {
	DB *pgxpool.Pool
}

func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{DB: pool}
}

// OpenPool connects and pings Postgres.
func OpenPool(ctx context.Context, dsn string, maxConns int32) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("pg parse config: %w", err)
	}
	cfg.MaxConns = maxConns
	cfg.MaxConnIdleTime = 5 * time.Minute
	cfg.MaxConnLifetime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("pg connect: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pg ping: %w", err)
	}
	return pool, nil
}

func (s *PGStore) Ping(ctx context.Context) error {
	return s.DB.Ping(ctx)
}

func (s *PGStore) FindUserByHandle(ctx context.Context, username string) (User, error) {
	q := `SELECT id, username, name FROM users WHERE username=$1`
	var u User
	err := s.DB.QueryRow(ctx, q, username).Scan(&u.ID, &u.Username, &u.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("find user: %w", err)
	}
	return u, nil
}

func (s *PGStore) FindWeeklyRule(ctx context.Context, userID string, dayOfWeek int) (AvailabilityRule, error) {
	q := `SELECT id, user_id, day_of_week, start_minutes, end_minutes
	      FROM availability_rules WHERE user_id=$1 AND day_of_week=$2 ORDER BY id LIMIT 1`
	var r AvailabilityRule
	err := s.DB.QueryRow(ctx, q, userID, dayOfWeek).
		Scan(&r.ID, &r.UserID, &r.DayOfWeek, &r.StartMinutes, &r.EndMinutes)
	if errors.Is(err, pgx.ErrNoRows) {
		return AvailabilityRule{}, ErrNotFound
	}
	if err != nil {
		return AvailabilityRule{}, fmt.Errorf("find weekly rule: %w", err)
	}
	return r, nil
}

const bookingColumns = `id, user_id, name, email, observations, date, created_at`

func (s *PGStore) FindBookingAt(ctx context.Context, userID string, at time.Time) (Booking, error) {
	q := `SELECT ` + bookingColumns + ` FROM bookings WHERE user_id=$1 AND date=$2 LIMIT 1`
	b, err := scanBooking(s.DB.QueryRow(ctx, q, userID, at.UTC()))
	if errors.Is(err, pgx.ErrNoRows) {
		return Booking{}, ErrNotFound
	}
	if err != nil {
		return Booking{}, fmt.Errorf("find booking: %w", err)
	}
	return b, nil
}

// FindBookingsInRange returns bookings with from <= date <= to, ordered by date.
func (s *PGStore) FindBookingsInRange(ctx context.Context, userID string, from, to time.Time) ([]Booking, error) {
	q := `SELECT ` + bookingColumns + ` FROM bookings
	      WHERE user_id=$1 AND date >= $2 AND date <= $3
	      ORDER BY date`
	rows, err := s.DB.Query(ctx, q, userID, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	defer rows.Close()

	var out []Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *PGStore) CreateBooking(ctx context.Context, b *Booking) error {
	q := `INSERT INTO bookings (id, user_id, name, email, observations, date)
	      VALUES ($1, $2, $3, $4, $5, $6)
	      RETURNING created_at`
	err := s.DB.QueryRow(ctx, q, b.ID, b.UserID, b.Name, b.Email, b.Observations, b.Date.UTC()).
		Scan(&b.CreatedAt)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	if err != nil {
		return fmt.Errorf("insert booking: %w", err)
	}
	return nil
}

func (s *PGStore) FindCalendarToken(ctx context.Context, userID string) (*oauth2.Token, error) {
	q := `SELECT access_token, refresh_token, token_type, expires_at
	      FROM calendar_accounts WHERE user_id=$1`
	var (
		tok     oauth2.Token
		expires *time.Time
	)
	err := s.DB.QueryRow(ctx, q, userID).Scan(&tok.AccessToken, &tok.RefreshToken, &tok.TokenType, &expires)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find calendar token: %w", err)
	}
	if expires != nil {
		tok.Expiry = *expires
	}
	return &tok, nil
}

func (s *PGStore) UpdateCalendarToken(ctx context.Context, userID string, tok *oauth2.Token) error {
	var expires *time.Time
	if !tok.Expiry.IsZero() {
		e := tok.Expiry.UTC()
		expires = &e
	}
	q := `UPDATE calendar_accounts
	      SET access_token=$2, refresh_token=COALESCE(NULLIF($3, ''), refresh_token),
	          token_type=$4, expires_at=$5, updated_at=now()
	      WHERE user_id=$1`
	tag, err := s.DB.Exec(ctx, q, userID, tok.AccessToken, tok.RefreshToken, tok.TokenType, expires)
	if err != nil {
		return fmt.Errorf("update calendar token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanBooking(row pgx.Row) (Booking, error) {
	var b Booking
	err := row.Scan(&b.ID, &b.UserID, &b.Name, &b.Email, &b.Observations, &b.Date, &b.CreatedAt)
	b.Date = b.Date.UTC()
	b.CreatedAt = b.CreatedAt.UTC()
	return b, err
}

// isUniqueViolation reports whether err is a PostgreSQL unique constraint violation (23505).
func isUniqueViolation(err error) bool {
	var pge *pgconn.PgError
	if errors.As(err, &pge) {
		return pge.Code == "23505"
	}
	return false
}
