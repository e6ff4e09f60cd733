// Package identity models the credential provider consumed by the sync core:
// a stream of signed-in/signed-out events plus the HTTP calls that produce them.
package identity

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"

	clientapi "costtracker/internal/client/api"
	"costtracker/internal/model"
)

// Identity is the session identity issued by the provider.
type Identity struct {
	UserID      uuid.UUID
	Email       string
	DisplayName string
}

// Session converts the identity into the core's session value.
func (id Identity) Session() model.Session {
	return model.Session{UserID: id.UserID, Email: id.Email, DisplayName: id.DisplayName}
}

// Event is one identity transition. A nil Identity means signed out.
type Event struct {
	Identity *Identity
}

// Provider yields identity transitions to a subscriber. Events are delivered
// one at a time; cancel guarantees no further delivery once it returns.
type Provider interface {
	Subscribe(fn func(Event)) (cancel func())
}

// Client is the HTTP-backed identity provider. Login/Logout both drive the
// remote endpoints and notify subscribers of the resulting transition.
type Client struct {
	api *clientapi.Client

	mu      sync.Mutex
	subs    map[int]func(Event)
	nextSub int
	current *Identity
	expires time.Time
}

// NewClient constructs an identity client over the shared API client.
func NewClient(api *clientapi.Client) *Client {
	return &Client{api: api, subs: map[int]func(Event){}}
}

// Subscribe registers fn for future transitions. Delivery is serialized with
// cancellation: after cancel returns, fn is never invoked again.
func (c *Client) Subscribe(fn func(Event)) (cancel func()) {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

// emit delivers an event to all subscribers while holding the subscription
// lock; this is what makes cancellation a hard barrier.
func (c *Client) emit(ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, fn := range c.subs {
		fn(ev)
	}
}

type registerRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

type registerResponse struct {
	UserID string `json:"user_id"`
}

// Register creates an account. It does not sign the user in.
func (c *Client) Register(ctx context.Context, email, password, displayName string) (uuid.UUID, error) {
	var resp registerResponse
	err := c.api.Do(ctx, http.MethodPost, "/api/v1/register",
		registerRequest{Email: email, Password: password, DisplayName: displayName}, &resp)
	if err != nil {
		return uuid.Nil, err
	}
	return uuid.FromString(resp.UserID)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
	UserID      string    `json:"user_id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
}

// Login authenticates, installs the bearer token on the API client and emits
// a signed-in event.
func (c *Client) Login(ctx context.Context, email, password string) (Identity, error) {
	var resp loginResponse
	if err := c.api.Do(ctx, http.MethodPost, "/api/v1/login", loginRequest{Email: email, Password: password}, &resp); err != nil {
		return Identity{}, err
	}
	userID, err := uuid.FromString(resp.UserID)
	if err != nil {
		return Identity{}, err
	}
	id := Identity{UserID: userID, Email: resp.Email, DisplayName: resp.DisplayName}

	c.api.SetToken(resp.AccessToken)
	c.mu.Lock()
	c.current = &id
	c.expires = resp.ExpiresAt
	c.mu.Unlock()

	c.emit(Event{Identity: &id})
	return id, nil
}

// Resume installs a previously issued token and identity (e.g. loaded from
// the CLI session file) and emits a signed-in event without a network call.
func (c *Client) Resume(id Identity, token string) {
	c.api.SetToken(token)
	c.mu.Lock()
	c.current = &id
	c.mu.Unlock()
	c.emit(Event{Identity: &id})
}

// Logout clears the token and emits a signed-out event. Local only: access
// tokens are short-lived, there is nothing to revoke server-side.
func (c *Client) Logout() {
	c.api.SetToken("")
	c.mu.Lock()
	c.current = nil
	c.expires = time.Time{}
	c.mu.Unlock()
	c.emit(Event{Identity: nil})
}

// Expiry returns the access token expiry, zero when signed out or resumed
// without one.
func (c *Client) Expiry() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.expires
}

// Current returns the signed-in identity, if any.
func (c *Client) Current() (Identity, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return Identity{}, false
	}
	return *c.current, true
}
