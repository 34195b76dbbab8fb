// Package notify delivers short user-facing alerts, the server side of the toast
// messages the learner UI shows.
package notify

import (
	"context"
	"log/slog"
	"sync"
)

// Kind is the alert style.
type Kind string

const (
	KindSuccess Kind = "success"
	KindFail    Kind = "fail"
	KindInfo    Kind = "info"
)

// Alert is a single message for one user.
type Alert struct {
	UserID  string `json:"-"`
	Message string `json:"message"`
	Kind    Kind   `json:"type"`
}

// Alerter sends alerts to a user.
type Alerter interface {
	Alert(ctx context.Context, userID, message string, kind Kind)
}

// LogAlerter writes alerts to the log. Used when the realtime channel is off.
type LogAlerter struct {
	logger *slog.Logger
}

// NewLogAlerter returns an alerter backed by logger.
func NewLogAlerter(logger *slog.Logger) *LogAlerter {
	return &LogAlerter{logger: logger}
}

// Alert logs the message at a level matching kind.
func (a *LogAlerter) Alert(ctx context.Context, userID, message string, kind Kind) {
	level := slog.LevelInfo
	if kind == KindFail {
		level = slog.LevelWarn
	}
	a.logger.Log(ctx, level, "user alert",
		slog.String("user", userID),
		slog.String("kind", string(kind)),
		slog.String("message", message),
	)
}

// Fanout sends every alert to each of its alerters in order.
type Fanout []Alerter

// Alert implements Alerter.
func (f Fanout) Alert(ctx context.Context, userID, message string, kind Kind) {
	for _, a := range f {
		a.Alert(ctx, userID, message, kind)
	}
}

// Recorder keeps alerts in memory.
type Recorder struct {
	mu     sync.Mutex
	alerts []Alert
}

// Alert implements Alerter.
func (r *Recorder) Alert(_ context.Context, userID, message string, kind Kind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, Alert{UserID: userID, Message: message, Kind: kind})
}

// Alerts returns a copy of everything recorded.
func (r *Recorder) Alerts() []Alert {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Alert(nil), r.alerts...)
}
