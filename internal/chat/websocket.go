// ABOUTME: WebSocket channel for the chat widget
// ABOUTME: Frames: connected, typing, message, reset and error

package chat

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Frame types
const (
	FrameConnected = "connected"
	FrameTyping    = "typing"
	FrameMessage   = "message"
	FrameReset     = "reset"
	FrameError     = "error"
)

// wsIncoming is a frame sent by the widget.
type wsIncoming struct {
	Type     string `json:"type"`
	Text     string `json:"text"`
	ClientID string `json:"client_id,omitempty"`
}

// wsFrame is a frame sent to the widget.
type wsFrame struct {
	Type      string          `json:"type"`
	Visitor   string          `json:"visitor,omitempty"`
	SessionID string          `json:"session_id,omitempty"`
	ClientID  string          `json:"client_id,omitempty"`
	Text      string          `json:"text,omitempty"`
	HTML      string          `json:"html,omitempty"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	Error     string          `json:"error,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	visitor := r.URL.Query().Get("visitor")
	if visitor == "" {
		if c, err := r.Cookie(VisitorCookieName); err == nil && c.Value != "" {
			visitor = c.Value
		} else {
			visitor = uuid.NewString()
		}
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	sessionID, _ := h.svc.SessionID(visitor)
	if err := h.writeFrame(conn, wsFrame{Type: FrameConnected, Visitor: visitor, SessionID: sessionID}); err != nil {
		return
	}
	h.logger.Debug("chat websocket connected", "visitor", visitor)

	ctx := r.Context()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("chat websocket closed unexpectedly", "error", err)
			}
			return
		}

		var in wsIncoming
		if err := json.Unmarshal(data, &in); err != nil {
			if h.writeFrame(conn, wsFrame{Type: FrameError, Error: "invalid frame"}) != nil {
				return
			}
			continue
		}

		var out wsFrame
		switch in.Type {
		case FrameMessage:
			if err := h.writeFrame(conn, wsFrame{Type: FrameTyping, ClientID: in.ClientID}); err != nil {
				return
			}
			reply, err := h.svc.Send(ctx, SendRequest{Visitor: visitor, Text: in.Text, ClientID: in.ClientID})
			if err != nil {
				_, msg := h.sendErrorStatus(err)
				out = wsFrame{Type: FrameError, ClientID: in.ClientID, Error: msg}
				break
			}
			out = wsFrame{
				Type:      FrameMessage,
				SessionID: reply.SessionID,
				ClientID:  in.ClientID,
				Text:      reply.Message,
				HTML:      reply.HTML,
				Metadata:  reply.Metadata,
			}

		case FrameReset:
			out = wsFrame{Type: FrameReset, SessionID: h.svc.Reset(ctx, visitor)}

		default:
			out = wsFrame{Type: FrameError, Error: "unknown frame type"}
		}

		if err := h.writeFrame(conn, out); err != nil {
			return
		}
	}
}

func (h *Handler) writeFrame(conn *websocket.Conn, f wsFrame) error {
	if f.Timestamp.IsZero() {
		f.Timestamp = time.Now().UTC()
	}
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	if err := conn.WriteJSON(f); err != nil {
		h.logger.Warn("writing websocket frame failed", "type", f.Type, "error", err)
		return err
	}
	return nil
}
