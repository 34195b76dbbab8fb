package session

import (
	"log/slog"
	"sync"
	"time"

	"github.com/mo-amir99/lms-learner-go/internal/features/lessonprogress"
	"github.com/mo-amir99/lms-learner-go/pkg/metrics"
	"github.com/mo-amir99/lms-learner-go/pkg/recordstore"
)

// Registry maps user ids to their workspace. Workspaces are created on first use.
type Registry struct {
	store  recordstore.Store
	locker *lessonprogress.KeyLocker
	logger *slog.Logger
	now    func() time.Time

	mu         sync.Mutex
	workspaces map[string]*Workspace
	onCreate   []func(userID string, ws *Workspace)
}

// NewRegistry creates an empty registry. locker may be nil to disable per-key serialization.
func NewRegistry(store recordstore.Store, locker *lessonprogress.KeyLocker, logger *slog.Logger) *Registry {
	return &Registry{
		store:      store,
		locker:     locker,
		logger:     logger,
		now:        time.Now,
		workspaces: make(map[string]*Workspace),
	}
}

// OnCreate registers fn to run for every new workspace, before it is handed out.
func (r *Registry) OnCreate(fn func(userID string, ws *Workspace)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onCreate = append(r.onCreate, fn)
}

// Acquire returns the workspace for auth.UserID, creating it if needed, and saves
// auth into it.
func (r *Registry) Acquire(auth Auth) *Workspace {
	r.mu.Lock()
	ws, ok := r.workspaces[auth.UserID]
	if !ok {
		ws = NewWorkspace(r.store, r.locker, r.logger)
		r.workspaces[auth.UserID] = ws
		// Identity must be present before hooks subscribe to it.
		ws.Auth.Save(auth)
		for _, fn := range r.onCreate {
			fn(auth.UserID, ws)
		}
		metrics.SetActiveSessions(len(r.workspaces))
		r.logger.Debug("workspace created", slog.String("user", auth.UserID))
	}
	r.mu.Unlock()

	if auth.Email == "" {
		auth.Email = ws.Auth.Current().Email
	}
	ws.Auth.Save(auth)
	ws.Touch(r.now())
	return ws
}

// Get returns an existing workspace.
func (r *Registry) Get(userID string) (*Workspace, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ws, ok := r.workspaces[userID]
	return ws, ok
}

// Drop signs out and forgets the user's workspace.
func (r *Registry) Drop(userID string) bool {
	r.mu.Lock()
	ws, ok := r.workspaces[userID]
	if ok {
		delete(r.workspaces, userID)
		metrics.SetActiveSessions(len(r.workspaces))
	}
	r.mu.Unlock()

	if ok {
		ws.Close()
	}
	return ok
}

// SweepIdle drops workspaces not touched within ttl and returns how many were dropped.
func (r *Registry) SweepIdle(ttl time.Duration) int {
	cutoff := r.now().Add(-ttl)

	r.mu.Lock()
	var idle []*Workspace
	for userID, ws := range r.workspaces {
		if ws.LastSeen().Before(cutoff) {
			idle = append(idle, ws)
			delete(r.workspaces, userID)
		}
	}
	metrics.SetActiveSessions(len(r.workspaces))
	r.mu.Unlock()

	for _, ws := range idle {
		ws.Close()
	}
	return len(idle)
}

// Len reports how many workspaces are held.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.workspaces)
}
