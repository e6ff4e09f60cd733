package identity

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"

	clientapi "costtracker/internal/client/api"
	"costtracker/internal/errs"
)

func newTestServer(t *testing.T, userID uuid.UUID, wantPassword string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/login", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Password != wantPassword {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"bad credentials"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "tok-1",
			"expires_at":   time.Now().Add(time.Minute),
			"user_id":      userID.String(),
			"email":        req.Email,
			"display_name": "Alice",
		})
	})
	mux.HandleFunc("/api/v1/register", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"user_id":"` + userID.String() + `"}`))
	})
	return httptest.NewServer(mux)
}

func TestLogin_EmitsSignedIn_And_SetsToken(t *testing.T) {
	t.Parallel()
	userID := uuid.Must(uuid.NewV4())
	srv := newTestServer(t, userID, "secret")
	defer srv.Close()

	api := clientapi.New(srv.URL, time.Second)
	c := NewClient(api)

	var events []Event
	cancel := c.Subscribe(func(ev Event) { events = append(events, ev) })
	defer cancel()

	id, err := c.Login(context.Background(), "alice@example.com", "secret")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if id.UserID != userID || id.DisplayName != "Alice" {
		t.Fatalf("identity: %+v", id)
	}
	if api.Token() != "tok-1" {
		t.Fatalf("token not installed: %q", api.Token())
	}
	if len(events) != 1 || events[0].Identity == nil || events[0].Identity.UserID != userID {
		t.Fatalf("events: %+v", events)
	}
	if cur, ok := c.Current(); !ok || cur.UserID != userID {
		t.Fatalf("Current: %+v ok=%v", cur, ok)
	}
}

func TestLogin_BadCredentials(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, uuid.Must(uuid.NewV4()), "secret")
	defer srv.Close()

	c := NewClient(clientapi.New(srv.URL, time.Second))
	var events int
	cancel := c.Subscribe(func(Event) { events++ })
	defer cancel()

	_, err := c.Login(context.Background(), "alice@example.com", "wrong")
	if !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("want ErrUnauthorized, got %v", err)
	}
	if events != 0 {
		t.Fatalf("no event expected on failed login, got %d", events)
	}
}

func TestLogout_EmitsSignedOut(t *testing.T) {
	t.Parallel()
	userID := uuid.Must(uuid.NewV4())
	srv := newTestServer(t, userID, "secret")
	defer srv.Close()

	api := clientapi.New(srv.URL, time.Second)
	c := NewClient(api)
	if _, err := c.Login(context.Background(), "alice@example.com", "secret"); err != nil {
		t.Fatal(err)
	}

	var last *Event
	cancel := c.Subscribe(func(ev Event) { last = &ev })
	defer cancel()

	c.Logout()
	if last == nil || last.Identity != nil {
		t.Fatalf("want signed-out event, got %+v", last)
	}
	if api.Token() != "" {
		t.Fatalf("token not cleared")
	}
	if _, ok := c.Current(); ok {
		t.Fatalf("Current should report signed out")
	}
}

func TestSubscribe_CancelStopsDelivery(t *testing.T) {
	t.Parallel()
	c := NewClient(clientapi.New("http://127.0.0.1:0", time.Second))

	var n int
	cancel := c.Subscribe(func(Event) { n++ })

	c.Resume(Identity{UserID: uuid.Must(uuid.NewV4())}, "tok")
	if n != 1 {
		t.Fatalf("want 1 delivery, got %d", n)
	}

	cancel()
	c.Logout()
	if n != 1 {
		t.Fatalf("delivery after cancel: %d", n)
	}
}

func TestRegister_ReturnsID(t *testing.T) {
	t.Parallel()
	userID := uuid.Must(uuid.NewV4())
	srv := newTestServer(t, userID, "secret")
	defer srv.Close()

	c := NewClient(clientapi.New(srv.URL, time.Second))
	got, err := c.Register(context.Background(), "alice@example.com", "password1", "Alice")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if got != userID {
		t.Fatalf("id %s != %s", got, userID)
	}
}
