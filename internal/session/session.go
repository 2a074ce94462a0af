// Package session owns the authenticated identity and its lifecycle. State
// transitions are atomic from the consumer's point of view: a token without
// a confirmed identity is never observable outside the store.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/ecofinds/ecofinds-client/internal/apierr"
	"github.com/ecofinds/ecofinds-client/internal/credstore"
	"github.com/ecofinds/ecofinds-client/internal/events"
	"github.com/ecofinds/ecofinds-client/internal/gateway"
	"github.com/ecofinds/ecofinds-client/internal/models"
)

type Store struct {
	gw    *gateway.Client
	creds *credstore.Store
	bus   *events.Bus
	log   *slog.Logger

	// mu guards the identity fields only and is never held across a network
	// call: the authentication-lost broadcast re-enters the store
	// synchronously from inside the gateway.
	mu            sync.Mutex
	user          *models.User
	authenticated bool

	// bootMu makes FetchCurrentUser re-entrant-safe so two concurrent
	// bootstraps cannot interleave with divergent outcomes.
	bootMu sync.Mutex

	cancelAuthLost func()
}

// authPayload is the login/register success envelope.
type authPayload struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	User         *models.User `json:"user"`
}

// ProfileUpdate carries partial profile fields; nil pointers are omitted
// from the request body.
type ProfileUpdate struct {
	Username     *string `json:"username,omitempty"`
	ProfileImage *string `json:"profileImage,omitempty"`
}

func New(gw *gateway.Client, creds *credstore.Store, bus *events.Bus, log *slog.Logger) *Store {
	s := &Store{gw: gw, creds: creds, bus: bus, log: log}
	// The gateway cannot safely mutate identity state itself; it broadcasts
	// and the store reacts here.
	s.cancelAuthLost = bus.SubscribeAuthLost(s.handleAuthLost)
	return s
}

// Close drops the store's bus subscription.
func (s *Store) Close() {
	if s.cancelAuthLost != nil {
		s.cancelAuthLost()
	}
}

func (s *Store) CurrentUser() (*models.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.authenticated || s.user == nil {
		return nil, false
	}
	u := *s.user
	return &u, true
}

func (s *Store) IsAuthenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authenticated
}

func (s *Store) Login(ctx context.Context, email, password string) error {
	body := map[string]string{"email": email, "password": password}
	var payload authPayload
	err := s.gw.Do(ctx, gateway.Request{
		Method: http.MethodPost,
		Path:   "/login",
		Body:   body,
		Public: true,
	}, &payload)
	if err != nil {
		s.notifyError("Login failed", apierr.Format(err, "Invalid email or password."))
		return err
	}
	if payload.AccessToken == "" || payload.User == nil {
		s.notifyError("Login failed", "Invalid email or password.")
		return apierr.Decode()
	}
	s.establish(&payload)
	s.bus.Notify(events.Notice{
		Title:       "Login successful",
		Description: fmt.Sprintf("Welcome back, %s!", payload.User.Username),
	})
	return nil
}

func (s *Store) Register(ctx context.Context, email, username, password, profileImage string) error {
	body := map[string]any{"email": email, "username": username, "password": password}
	if profileImage != "" {
		body["profileImage"] = profileImage
	}
	var payload authPayload
	err := s.gw.Do(ctx, gateway.Request{
		Method: http.MethodPost,
		Path:   "/register",
		Body:   body,
		Public: true,
	}, &payload)
	if err != nil {
		s.notifyError("Registration failed", apierr.Format(err, "Could not create account."))
		return err
	}
	if payload.AccessToken == "" || payload.User == nil {
		s.notifyError("Registration failed", "Could not create account.")
		return apierr.Decode()
	}
	s.establish(&payload)
	s.bus.Notify(events.Notice{
		Title:       "Registration successful",
		Description: fmt.Sprintf("Welcome to EcoFinds, %s!", payload.User.Username),
	})
	return nil
}

// Logout clears credentials and identity unconditionally. It never contacts
// the backend: the server holds no session beyond token validity.
func (s *Store) Logout() {
	s.clear()
	s.bus.Notify(events.Notice{
		Title:       "Logged out",
		Description: "You have been logged out successfully.",
	})
}

// FetchCurrentUser reconciles stored tokens with a server-confirmed
// identity. Run once per process start; safe to invoke concurrently.
func (s *Store) FetchCurrentUser(ctx context.Context) error {
	s.bootMu.Lock()
	defer s.bootMu.Unlock()

	token, err := s.creds.AccessToken()
	if err != nil {
		return err
	}
	if token == "" {
		// No token means no session; drop any stale cached identity.
		s.setIdentity(nil)
		if err := s.creds.ClearCachedUser(); err != nil {
			s.log.Error("clearing cached user failed", "error", err)
		}
		return nil
	}

	// The gateway performs the single refresh-and-retry cycle on 401, so
	// one call covers "who am I, refreshed if needed".
	var user models.User
	err = s.gw.Do(ctx, gateway.Request{Method: http.MethodGet, Path: "/me"}, &user)
	if err != nil || user.ID == 0 {
		s.setIdentity(nil)
		if cerr := s.creds.Clear(); cerr != nil {
			s.log.Error("clearing credentials failed", "error", cerr)
		}
		if err == nil {
			err = apierr.Decode()
		}
		return err
	}

	s.setIdentity(&user)
	if err := s.creds.SetCachedUser(&user); err != nil {
		s.log.Error("caching user failed", "error", err)
	}
	return nil
}

func (s *Store) UpdateProfile(ctx context.Context, update ProfileUpdate) error {
	if !s.IsAuthenticated() {
		return apierr.Precondition("Not logged in.")
	}
	var user models.User
	err := s.gw.Do(ctx, gateway.Request{
		Method: http.MethodPut,
		Path:   "/profile",
		Body:   update,
	}, &user)
	if err != nil || user.ID == 0 {
		s.notifyError("Update failed", apierr.Format(err, "Failed to update profile."))
		if err == nil {
			err = apierr.Decode()
		}
		return err
	}

	s.setIdentity(&user)
	if err := s.creds.SetCachedUser(&user); err != nil {
		s.log.Error("caching user failed", "error", err)
	}
	s.bus.Notify(events.Notice{
		Title:       "Profile updated",
		Description: "Your profile has been updated successfully.",
	})
	return nil
}

func (s *Store) setIdentity(u *models.User) {
	s.mu.Lock()
	s.user = u
	s.authenticated = u != nil
	s.mu.Unlock()
}

func (s *Store) establish(payload *authPayload) {
	if err := s.creds.SetTokens(payload.AccessToken, payload.RefreshToken); err != nil {
		s.log.Error("persisting tokens failed", "error", err)
	}
	if err := s.creds.SetCachedUser(payload.User); err != nil {
		s.log.Error("caching user failed", "error", err)
	}
	s.setIdentity(payload.User)
}

func (s *Store) clear() {
	if err := s.creds.Clear(); err != nil {
		s.log.Error("clearing credentials failed", "error", err)
	}
	s.setIdentity(nil)
}

func (s *Store) handleAuthLost() {
	s.clear()
	s.notifyError("Session Expired", "Please log in again.")
}

func (s *Store) notifyError(title, description string) {
	s.bus.Notify(events.Notice{Title: title, Description: description, Severity: events.SeverityError})
}
