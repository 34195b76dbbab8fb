package database

import (
	"database/sql"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"gorm.io/gorm"
)

// ReconnectPlugin is a gorm plugin that checks the pool before statements and waits
// for the server to come back when the connection was lost. Pings are throttled so
// a busy pool does not pay one round trip per statement.
type ReconnectPlugin struct {
	logger       *slog.Logger
	maxRetries   int
	retryDelay   time.Duration
	pingInterval time.Duration
	now          func() time.Time

	mu       sync.Mutex
	lastPing time.Time

	reconnectCount atomic.Int64
}

// NewReconnectPlugin creates a new reconnect plugin.
func NewReconnectPlugin(logger *slog.Logger) *ReconnectPlugin {
	return &ReconnectPlugin{
		logger:       logger,
		maxRetries:   3,
		retryDelay:   500 * time.Millisecond,
		pingInterval: 5 * time.Second,
		now:          time.Now,
	}
}

// Name returns the plugin name.
func (p *ReconnectPlugin) Name() string {
	return "reconnect_plugin"
}

// Initialize registers the health check ahead of every statement kind.
func (p *ReconnectPlugin) Initialize(db *gorm.DB) error {
	callbacks := db.Callback()
	if err := callbacks.Query().Before("gorm:query").Register("reconnect:before_query", p.beforeStatement); err != nil {
		return err
	}
	if err := callbacks.Create().Before("gorm:create").Register("reconnect:before_create", p.beforeStatement); err != nil {
		return err
	}
	if err := callbacks.Update().Before("gorm:update").Register("reconnect:before_update", p.beforeStatement); err != nil {
		return err
	}
	if err := callbacks.Row().Before("gorm:row").Register("reconnect:before_row", p.beforeStatement); err != nil {
		return err
	}
	return callbacks.Raw().Before("gorm:raw").Register("reconnect:before_raw", p.beforeStatement)
}

func (p *ReconnectPlugin) beforeStatement(db *gorm.DB) {
	if !p.duePing() {
		return
	}

	sqlDB, err := db.DB()
	if err != nil {
		return
	}

	ctx := db.Statement.Context
	if err := sqlDB.PingContext(ctx); err != nil && p.shouldReconnect(err) {
		p.logger.WarnContext(ctx, "database connection lost, attempting to reconnect", slog.String("error", err.Error()))
		if !p.attemptReconnect(sqlDB) {
			p.logger.ErrorContext(ctx, "database reconnection failed after retries")
		}
	}
}

// duePing reports whether enough time passed since the last check, and if so claims it.
func (p *ReconnectPlugin) duePing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	if !p.lastPing.IsZero() && now.Sub(p.lastPing) < p.pingInterval {
		return false
	}
	p.lastPing = now
	return true
}

// shouldReconnect determines if an error indicates a lost connection.
func (p *ReconnectPlugin) shouldReconnect(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, sql.ErrConnDone) || errors.Is(err, sql.ErrTxDone) {
		return true
	}

	errStr := strings.ToLower(err.Error())
	connectionErrors := []string{
		"connection refused",
		"connection reset",
		"broken pipe",
		"no such host",
		"network is unreachable",
		"connection timed out",
		"eof",
		"bad connection",
		"invalid connection",
		"closed network connection",
		"connection lost",
		"server closed",
	}
	for _, pattern := range connectionErrors {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}
	return false
}

func (p *ReconnectPlugin) attemptReconnect(sqlDB *sql.DB) bool {
	for attempt := 1; attempt <= p.maxRetries; attempt++ {
		time.Sleep(p.retryDelay * time.Duration(attempt))

		if err := sqlDB.Ping(); err == nil {
			total := p.reconnectCount.Add(1)
			p.logger.Info("database reconnection successful", slog.Int64("total_reconnects", total))
			return true
		}

		p.logger.Warn("reconnection attempt failed",
			slog.Int("attempt", attempt),
			slog.Int("max_retries", p.maxRetries),
		)
	}
	return false
}

// ReconnectCount returns the total number of successful reconnections.
func (p *ReconnectPlugin) ReconnectCount() int64 {
	return p.reconnectCount.Load()
}
