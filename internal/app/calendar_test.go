package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"golang.org/x/oauth2"
)

type fakeGoogle struct {
	mu         sync.Mutex
	auth       []string
	events     []map[string]any
	tokenCalls int
	failInsert bool
}

func (f *fakeGoogle) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")

	switch r.URL.Path {
	case "/token":
		f.tokenCalls++
		_, _ = w.Write([]byte(`{"access_token":"fresh-token","token_type":"Bearer","expires_in":3600}`))
	case "/calendars/primary/events":
		if f.failInsert {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":{"code":500,"message":"backend error"}}`))
			return
		}
		f.auth = append(f.auth, r.Header.Get("Authorization"))
		var ev map[string]any
		_ = json.NewDecoder(r.Body).Decode(&ev)
		f.events = append(f.events, ev)
		_, _ = w.Write([]byte(`{"id":"evt-1"}`))
	default:
		http.NotFound(w, r)
	}
}

func newGoogleFixture(t *testing.T) (*GoogleCalendarSync, *memStore, *fakeGoogle) {
	t.Helper()
	fake := &fakeGoogle{}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	store := newMemStore()
	store.addUser("u-alice", "alice")

	g := NewGoogleCalendarSync(GoogleCalendarConfig{ClientID: "id", ClientSecret: "secret"}, store, testLogger())
	g.oauth.Endpoint = oauth2.Endpoint{TokenURL: srv.URL + "/token", AuthStyle: oauth2.AuthStyleInParams}
	g.endpoint = srv.URL + "/"
	return g, store, fake
}

func testEvent() CalendarEvent {
	start := monday.Add(14 * time.Hour)
	return CalendarEvent{
		Title:         "Agendamento: Visitor",
		Description:   "notes",
		Start:         start,
		End:           start.Add(time.Hour),
		AttendeeEmail: "visitor@example.com",
	}
}

func TestGoogleCalendarSync_InsertsEvent(t *testing.T) {
	g, store, fake := newGoogleFixture(t)
	store.tokens["u-alice"] = &oauth2.Token{AccessToken: "live-token", TokenType: "Bearer", Expiry: time.Now().Add(time.Hour)}

	if err := g.InsertEvent(context.Background(), "u-alice", testEvent()); err != nil {
		t.Fatalf("InsertEvent: %v", err)
	}

	if len(fake.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(fake.events))
	}
	if fake.auth[0] != "Bearer live-token" {
		t.Fatalf("authorization = %q", fake.auth[0])
	}
	if fake.tokenCalls != 0 {
		t.Fatal("live token should not be refreshed")
	}

	ev := fake.events[0]
	if ev["summary"] != "Agendamento: Visitor" || ev["description"] != "notes" {
		t.Fatalf("unexpected event body %v", ev)
	}
	start := ev["start"].(map[string]any)["dateTime"]
	end := ev["end"].(map[string]any)["dateTime"]
	if start != "2030-06-03T14:00:00Z" || end != "2030-06-03T15:00:00Z" {
		t.Fatalf("window = %v - %v", start, end)
	}
	attendees := ev["attendees"].([]any)
	if len(attendees) != 1 || attendees[0].(map[string]any)["email"] != "visitor@example.com" {
		t.Fatalf("attendees = %v", attendees)
	}
}

func TestGoogleCalendarSync_RefreshesExpiredToken(t *testing.T) {
	g, store, fake := newGoogleFixture(t)
	store.tokens["u-alice"] = &oauth2.Token{
		AccessToken:  "stale-token",
		RefreshToken: "refresh-me",
		TokenType:    "Bearer",
		Expiry:       time.Now().Add(-time.Hour),
	}

	if err := g.InsertEvent(context.Background(), "u-alice", testEvent()); err != nil {
		t.Fatalf("InsertEvent: %v", err)
	}

	if fake.tokenCalls != 1 {
		t.Fatalf("expected one refresh, got %d", fake.tokenCalls)
	}
	if fake.auth[0] != "Bearer fresh-token" {
		t.Fatalf("authorization = %q", fake.auth[0])
	}
	saved := store.tokens["u-alice"]
	if saved.AccessToken != "fresh-token" || saved.RefreshToken != "refresh-me" {
		t.Fatalf("refreshed token not persisted: %+v", saved)
	}
}

func TestGoogleCalendarSync_Errors(t *testing.T) {
	g, store, fake := newGoogleFixture(t)

	if err := g.InsertEvent(context.Background(), "u-alice", testEvent()); !errors.Is(err, ErrCalendarNotConnected) {
		t.Fatalf("expected ErrCalendarNotConnected, got %v", err)
	}

	store.tokens["u-alice"] = &oauth2.Token{AccessToken: "live-token", Expiry: time.Now().Add(time.Hour)}
	fake.failInsert = true
	if err := g.InsertEvent(context.Background(), "u-alice", testEvent()); err == nil {
		t.Fatal("expected insert error")
	}
}
