package handlers

import (
	"context"
	"net/http"

	"github.com/SaiNageswarS/chat-boot/services"
	"github.com/SaiNageswarS/chat-boot/session"
	"github.com/SaiNageswarS/go-api-boot/logger"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	frameSubmit = "submit"
	frameReset  = "reset"
	frameUser   = "user"
	frameDelta  = "delta"
	frameDone   = "done"
	frameError  = "error"
)

// clientFrame is what the page sends over the socket.
type clientFrame struct {
	Type     string            `json:"type"`
	Text     string            `json:"text,omitempty"`
	Settings *session.Settings `json:"settings,omitempty"`
}

// serverFrame is what the page receives: the echoed user turn, reply deltas,
// then done (with rendered HTML) or error.
type serverFrame struct {
	Type   string `json:"type"`
	Text   string `json:"text,omitempty"`
	HTML   string `json:"html,omitempty"`
	Error  string `json:"error,omitempty"`
	Tokens int    `json:"tokens,omitempty"`
}

func (h *ChatHandler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	var id string
	if c, err := r.Cookie(sessionCookie); err == nil {
		id = c.Value
	}
	sess, created := h.registry.GetOrCreate(id)

	header := http.Header{}
	if created {
		header.Add("Set-Cookie", newSessionCookie(sess.ID).String())
	}

	conn, err := h.upgrader.Upgrade(w, r, header)
	if err != nil {
		logger.Error("WebSocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	logger.Info("WebSocket connected", zap.String("session", sess.ID))

	// ctx ends when the page goes away, which also stops an in-flight reply.
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	frames := make(chan clientFrame)
	go func() {
		defer cancel()
		for {
			var frame clientFrame
			if err := conn.ReadJSON(&frame); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					logger.Error("WebSocket read failed", zap.String("session", sess.ID), zap.Error(err))
				}
				return
			}

			select {
			case frames <- frame:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case frame := <-frames:
			if err := h.handleFrame(ctx, conn, sess, frame); err != nil {
				logger.Info("WebSocket stream stopped", zap.String("session", sess.ID), zap.Error(err))
				return
			}
		}
	}
}

// handleFrame serves one client frame. The returned error ends the connection
// (a failed write or a closed page); chat errors are reported as error frames.
func (h *ChatHandler) handleFrame(ctx context.Context, conn *websocket.Conn, sess *session.Session, frame clientFrame) error {
	switch frame.Type {
	case frameSubmit:
		settings := sess.Settings()
		if frame.Settings != nil {
			settings = *frame.Settings
		}
		return h.streamReply(ctx, conn, sess, settings, frame.Text)

	case frameReset:
		if err := h.svc.Reset(sess); err != nil {
			return conn.WriteJSON(serverFrame{Type: frameError, Error: services.UserFacingError(err)})
		}
		return conn.WriteJSON(serverFrame{Type: frameReset, Tokens: h.svc.ContextTokens(sess)})

	default:
		return conn.WriteJSON(serverFrame{Type: frameError, Error: "unknown frame type: " + frame.Type})
	}
}

func (h *ChatHandler) streamReply(ctx context.Context, conn *websocket.Conn, sess *session.Session, settings session.Settings, text string) error {
	reply, err := h.svc.Submit(ctx, sess, settings, text)
	if err != nil {
		if isClientError(err) {
			logger.Info("Submission rejected", zap.String("session", sess.ID), zap.Error(err))
		}
		// the inline error is delivered here, not on the next page load
		sess.TakeError()
		return conn.WriteJSON(serverFrame{Type: frameError, Error: services.UserFacingError(err)})
	}

	if err := conn.WriteJSON(serverFrame{Type: frameUser, Text: text}); err != nil {
		return err
	}

	for _, chunk := range splitForDisplay(reply.Content, h.opts.TypewriterChunk) {
		if err := conn.WriteJSON(serverFrame{Type: frameDelta, Text: chunk}); err != nil {
			return err
		}
		if err := pause(ctx, h.opts.TypewriterDelay); err != nil {
			return err
		}
	}

	return conn.WriteJSON(serverFrame{
		Type:   frameDone,
		HTML:   string(h.markdown.Render(reply.Content)),
		Tokens: h.svc.ContextTokens(sess),
	})
}
