package socketio

import (
	"context"
	"log/slog"

	socket "github.com/zishang520/socket.io/socket"

	"github.com/mo-amir99/lms-learner-go/internal/features/lessonprogress"
	"github.com/mo-amir99/lms-learner-go/internal/features/session"
	"github.com/mo-amir99/lms-learner-go/pkg/recordstore"
)

// Error codes sent with the "error" event.
const (
	codeInvalidInput   = "INVALID_INPUT"
	codeSaveFailed     = "SAVE_FAILED"
	codeCompleteFailed = "COMPLETE_FAILED"
)

func (s *Server) bindEvents(sock *socket.Socket, conn *connection) {
	sock.On("saveLessonProgress", func(args ...any) {
		var p progressPayload
		if err := decodeArgs(args, &p); err != nil {
			s.sendError(sock, codeInvalidInput, err.Error())
			return
		}
		lessonID, obs := p.observation()

		s.withWorkspace(conn, func(ctx context.Context, ws *session.Workspace) {
			saved := ws.Reconciler.UpsertProgress(ctx, lessonID, conn.userID, obs)
			s.reply(sock, saved, codeSaveFailed, "progress was not saved")
		})
	})

	sock.On("markLessonCompleted", func(args ...any) {
		var p completionPayload
		if err := decodeArgs(args, &p); err != nil {
			s.sendError(sock, codeInvalidInput, err.Error())
			return
		}

		s.withWorkspace(conn, func(ctx context.Context, ws *session.Workspace) {
			saved := ws.Reconciler.MarkCompleted(ctx, p.LessonID, lessonprogress.VideoType(p.VideoType))
			s.reply(sock, saved, codeCompleteFailed, "completion was not saved")
		})
	})

	sock.On("pong", func(args ...any) {
		s.logger.Debug("pong received", slog.String("userId", conn.userID))
	})

	sock.On("disconnect", func(args ...any) {
		reason := "client"
		if len(args) > 0 {
			if r, ok := args[0].(string); ok {
				reason = r
			}
		}
		s.logger.Info("socket disconnected",
			slog.String("userId", conn.userID),
			slog.String("reason", reason),
			slog.Int64("open", s.connected.Add(-1)),
		)
	})
}

// withWorkspace runs fn against the user's workspace with the socket's token on the
// context. The workspace is re-acquired because it may have been swept while the
// socket stayed open.
func (s *Server) withWorkspace(conn *connection, fn func(context.Context, *session.Workspace)) {
	ws := s.registry.Acquire(session.Auth{UserID: conn.userID, Token: conn.token})

	ctx, cancel := context.WithTimeout(recordstore.WithToken(context.Background(), conn.token), operationTimeout)
	defer cancel()
	fn(ctx, ws)
}

func (s *Server) reply(sock *socket.Socket, saved *lessonprogress.Record, code, message string) {
	if saved == nil {
		s.sendError(sock, code, message)
		return
	}
	s.send(sock, eventProgressSaved, saved)
}

func (s *Server) sendError(sock *socket.Socket, code, message string) {
	s.send(sock, "error", map[string]any{
		"code":    code,
		"message": message,
	})
}
