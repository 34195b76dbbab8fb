// Package session holds per-user workspaces: identity, fetched collections and the
// lesson progress mirror, plus the gin middleware that binds requests to them.
package session

import (
	"sync/atomic"

	"github.com/mo-amir99/lms-learner-go/pkg/observable"
)

// Auth is the signed-in identity of a session. The zero value means signed out.
type Auth struct {
	UserID string `json:"id"`
	Email  string `json:"email,omitempty"`
	Token  string `json:"-"`
}

// Valid reports whether someone is signed in.
func (a Auth) Valid() bool { return a.UserID != "" }

// AuthStore holds the current identity and tells listeners when it changes.
type AuthStore struct {
	state *observable.Store[Auth]
}

// NewAuthStore returns a signed-out store.
func NewAuthStore() *AuthStore {
	return &AuthStore{state: observable.New(Auth{})}
}

// Save replaces the identity. Saving the identical value does not notify.
func (a *AuthStore) Save(auth Auth) {
	if a.state.Get() == auth {
		return
	}
	a.state.Set(auth)
}

// Clear signs the session out.
func (a *AuthStore) Clear() { a.Save(Auth{}) }

// Current returns the identity.
func (a *AuthStore) Current() Auth { return a.state.Get() }

// UserID returns the signed-in user id, or "".
func (a *AuthStore) UserID() string { return a.state.Get().UserID }

// Token returns the auth token forwarded to the record store.
func (a *AuthStore) Token() string { return a.state.Get().Token }

// OnChange calls fn after every identity change, not for the current value.
func (a *AuthStore) OnChange(fn func(Auth)) func() {
	var seeded atomic.Bool
	return a.state.Subscribe(func(auth Auth) {
		if seeded.CompareAndSwap(false, true) {
			return
		}
		fn(auth)
	})
}
