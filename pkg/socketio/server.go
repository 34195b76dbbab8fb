// Package socketio pushes alerts and lesson progress to learners over Socket.IO and
// accepts progress saves from the player.
package socketio

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	socket "github.com/zishang520/socket.io/socket"

	"github.com/mo-amir99/lms-learner-go/internal/features/lessonprogress"
	"github.com/mo-amir99/lms-learner-go/internal/features/notify"
	"github.com/mo-amir99/lms-learner-go/internal/features/session"
)

const (
	eventAlert          = "alert"
	eventLessonProgress = "lessonProgress"
	eventProgressSaved  = "lessonProgressSaved"
	eventConfirmed      = "connectionConfirmed"
	eventPing           = "ping"

	operationTimeout  = 15 * time.Second
	heartbeatInterval = 30 * time.Second
)

// emitFunc sends event to everyone in room.
type emitFunc func(room socket.Room, event string, payload any) error

type connection struct {
	userID string
	token  string
}

// Server wraps the Socket.IO server bound to the session registry.
type Server struct {
	io       *socket.Server
	registry *session.Registry
	parse    session.TokenParser
	logger   *slog.Logger
	emit     emitFunc

	connected atomic.Int64
	stop      chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
}

// NewServer creates a Socket.IO server that authenticates sockets with parse and
// binds them to the registry's workspaces.
func NewServer(registry *session.Registry, parse session.TokenParser, logger *slog.Logger) (*Server, error) {
	opts := socket.DefaultServerOptions()
	opts.SetPingTimeout(60 * time.Second)
	opts.SetPingInterval(25 * time.Second)
	opts.SetServeClient(false)
	opts.SetPath("/socket.io")

	io := socket.NewServer(nil, opts)

	s := &Server{
		io:       io,
		registry: registry,
		parse:    parse,
		logger:   logger,
		stop:     make(chan struct{}),
	}
	s.emit = func(room socket.Room, event string, payload any) error {
		return io.Local().To(room).Emit(event, payload)
	}

	io.Use(s.authenticate)
	io.On("connection", func(args ...any) {
		sock, ok := args[0].(*socket.Socket)
		if !ok {
			s.logger.Error("unexpected connection payload", slog.Any("payload", args))
			return
		}
		s.onConnect(sock)
	})

	s.wg.Add(1)
	go s.heartbeat()

	return s, nil
}

// GetHandler returns the HTTP handler for Socket.IO.
func (s *Server) GetHandler() http.Handler {
	return s.io.ServeHandler(nil)
}

// Close stops the heartbeat and shuts the server down.
func (s *Server) Close() error {
	s.stopOnce.Do(func() { close(s.stop) })
	s.wg.Wait()

	done := make(chan struct{})
	s.io.Close(func() { close(done) })
	<-done
	return nil
}

// Alert pushes a toast message to every socket of the user.
func (s *Server) Alert(ctx context.Context, userID, message string, kind notify.Kind) {
	payload := notify.Alert{Message: message, Kind: kind}
	if err := s.emit(userRoom(userID), eventAlert, payload); err != nil {
		s.logger.WarnContext(ctx, "failed to emit alert", slog.String("userId", userID), slog.String("error", err.Error()))
	}
}

// WatchWorkspace streams every change of the workspace's lesson progress mirror to
// the user's room until the workspace closes. Meant for Registry.OnCreate.
func (s *Server) WatchWorkspace(userID string, ws *session.Workspace) {
	unsubscribe := ws.Mirror().Subscribe(func(records []lessonprogress.Record) {
		if err := s.emit(userRoom(userID), eventLessonProgress, records); err != nil {
			s.logger.Debug("failed to emit lesson progress", slog.String("userId", userID), slog.String("error", err.Error()))
		}
	})
	ws.OnClose(unsubscribe)
}

// authenticate resolves the handshake token to a user and makes sure a workspace
// exists before the connection event fires.
func (s *Server) authenticate(sock *socket.Socket, next func(*socket.ExtendedError)) {
	token := session.BearerToken(handshakeToken(sock))
	if token == "" {
		s.logger.Warn("socket connection rejected: missing token")
		next(socket.NewExtendedError("missing authentication token", map[string]any{"code": "MISSING_TOKEN"}))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), operationTimeout)
	defer cancel()

	claims, err := s.parse(ctx, token)
	if err != nil {
		s.logger.Warn("socket connection rejected: invalid token", slog.String("error", err.Error()))
		next(socket.NewExtendedError("invalid token", map[string]any{"code": "INVALID_TOKEN"}))
		return
	}

	s.registry.Acquire(session.Auth{UserID: claims.UserID, Token: token})
	sock.SetData(&connection{userID: claims.UserID, token: token})
	next(nil)
}

func (s *Server) onConnect(sock *socket.Socket) {
	conn := connectionOf(sock)
	if conn == nil {
		s.logger.Error("connection established without user context")
		sock.Disconnect(true)
		return
	}

	s.logger.Info("socket connected",
		slog.String("userId", conn.userID),
		slog.String("connId", string(sock.Id())),
		slog.Int64("open", s.connected.Add(1)),
	)

	sock.Join(userRoom(conn.userID))
	s.send(sock, eventConfirmed, map[string]any{
		"userId":    conn.userID,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
	if ws, ok := s.registry.Get(conn.userID); ok {
		s.send(sock, eventLessonProgress, ws.Mirror().Snapshot())
	}

	s.bindEvents(sock, conn)
}

func (s *Server) heartbeat() {
	defer s.wg.Done()
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.io.Local().Emit(eventPing, time.Now().Unix()); err != nil {
				s.logger.Debug("heartbeat emit failed", slog.String("error", err.Error()))
			}
		case <-s.stop:
			return
		}
	}
}

func (s *Server) send(sock *socket.Socket, event string, payload any) {
	if err := sock.Emit(event, payload); err != nil {
		s.logger.Debug("socket emit failed", slog.String("event", event), slog.String("error", err.Error()))
	}
}

func connectionOf(sock *socket.Socket) *connection {
	if sock == nil {
		return nil
	}
	conn, _ := sock.Data().(*connection)
	return conn
}

// handshakeToken looks for the token in the query string, the Authorization header
// and the handshake auth map, in that order.
func handshakeToken(sock *socket.Socket) string {
	if sock == nil {
		return ""
	}

	if conn := sock.Conn(); conn != nil {
		if ctx := conn.Request(); ctx != nil {
			if req := ctx.Request(); req != nil {
				if token := req.URL.Query().Get("token"); token != "" {
					return token
				}
				if header := req.Header.Get("Authorization"); header != "" {
					return header
				}
			}
		}
	}

	if hs := sock.Handshake(); hs != nil {
		if authMap, ok := hs.Auth.(map[string]any); ok {
			if token, ok := authMap["token"].(string); ok {
				return token
			}
		}
	}
	return ""
}

func userRoom(userID string) socket.Room {
	return socket.Room("user_" + userID)
}
