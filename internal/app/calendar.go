package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// ErrCalendarNotConnected means the user has no stored calendar credentials.
var ErrCalendarNotConnected = errors.New("calendar not connected")

// CalendarSync pushes committed bookings to the owner's external calendar.
type CalendarSync interface {
	InsertEvent(ctx context.Context, userID string, ev CalendarEvent) error
}

type noopCalendar struct {
	logger *zap.Logger
}

func (n noopCalendar) InsertEvent(_ context.Context, userID string, ev CalendarEvent) error {
	n.logger.Debug("calendar sync disabled, event not sent",
		zap.String("user_id", userID),
		zap.Time("start", ev.Start))
	return nil
}

// NewNoopCalendar returns a CalendarSync that only logs.
func NewNoopCalendar(logger *zap.Logger) CalendarSync {
	return noopCalendar{logger: logger}
}

// GoogleCalendarConfig holds OAuth2 configuration
type GoogleCalendarConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	CalendarID   string
}

func (c GoogleCalendarConfig) oauth() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		RedirectURL:  c.RedirectURL,
		Scopes:       []string{calendar.CalendarEventsScope},
		Endpoint:     google.Endpoint,
	}
}

// GoogleCalendarSync inserts events with the user's stored OAuth token,
// refreshing and persisting it when it has expired.
type GoogleCalendarSync struct {
	oauth      *oauth2.Config
	calendarID string
	tokens     TokenStore
	logger     *zap.Logger
	// endpoint overrides the Calendar API base URL in tests.
	endpoint string
}

func NewGoogleCalendarSync(cfg GoogleCalendarConfig, tokens TokenStore, logger *zap.Logger) *GoogleCalendarSync {
	id := cfg.CalendarID
	if id == "" {
		id = "primary"
	}
	return &GoogleCalendarSync{
		oauth:      cfg.oauth(),
		calendarID: id,
		tokens:     tokens,
		logger:     logger,
	}
}

func (g *GoogleCalendarSync) InsertEvent(ctx context.Context, userID string, ev CalendarEvent) error {
	stored, err := g.tokens.FindCalendarToken(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return ErrCalendarNotConnected
	}
	if err != nil {
		return err
	}

	tok, err := g.oauth.TokenSource(ctx, stored).Token()
	if err != nil {
		return fmt.Errorf("refresh calendar token: %w", err)
	}
	if tok.AccessToken != stored.AccessToken {
		if err := g.tokens.UpdateCalendarToken(ctx, userID, tok); err != nil {
			g.logger.Warn("failed to persist refreshed calendar token",
				zap.String("user_id", userID), zap.Error(err))
		}
	}

	opts := []option.ClientOption{option.WithHTTPClient(g.oauth.Client(ctx, tok))}
	if g.endpoint != "" {
		opts = append(opts, option.WithEndpoint(g.endpoint))
	}
	srv, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return fmt.Errorf("create calendar service: %w", err)
	}

	created, err := srv.Events.Insert(g.calendarID, toGoogleEvent(ev)).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("insert calendar event: %w", err)
	}

	g.logger.Info("calendar event created",
		zap.String("user_id", userID),
		zap.String("event_id", created.Id),
		zap.Time("start", ev.Start))
	return nil
}

func toGoogleEvent(ev CalendarEvent) *calendar.Event {
	return &calendar.Event{
		Summary:     ev.Title,
		Description: ev.Description,
		Start:       &calendar.EventDateTime{DateTime: ev.Start.UTC().Format(time.RFC3339)},
		End:         &calendar.EventDateTime{DateTime: ev.End.UTC().Format(time.RFC3339)},
		Attendees:   []*calendar.EventAttendee{{Email: ev.AttendeeEmail}},
	}
}
