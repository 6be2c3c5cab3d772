package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

type chatFrame struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id,omitempty"`
	Content   string `json:"content,omitempty"`
	Message   string `json:"message,omitempty"`
}

// chat upgrades the connection and serves the question/answer loop. Protocol
// errors are reported as error frames; the socket stays open until the client
// disconnects.
func (s *Server) chat(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer func() {
		if err := conn.Close(); err != nil {
			s.logger.Debug("websocket close failed", zap.Error(err))
		}
	}()

	var sessionID string
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var frame chatFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			s.writeChatError(conn, "invalid message format")
			continue
		}

		switch frame.Type {
		case "init":
			if frame.SessionID == "" {
				s.writeChatError(conn, "session_id is required")
				continue
			}
			sessionID = frame.SessionID
		case "message":
			sid := frame.SessionID
			if sid == "" {
				sid = sessionID
			}
			if sid == "" {
				s.writeChatError(conn, "session not initialized")
				continue
			}
			if frame.Content == "" {
				s.writeChatError(conn, "message content is empty")
				continue
			}
			answer, err := s.agent.Answer(r.Context(), frame.Content, sid)
			if err != nil {
				s.logger.Error("chat answer failed",
					zap.String("session_id", sid),
					zap.Error(err),
				)
				s.writeChatError(conn, "failed to answer question")
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, []byte(answer)); err != nil {
				return
			}
		default:
			s.writeChatError(conn, "unknown message type")
		}
	}
}

func (s *Server) writeChatError(conn *websocket.Conn, msg string) {
	frame := chatFrame{Type: "error", Message: msg}
	if err := conn.WriteJSON(frame); err != nil {
		s.logger.Debug("websocket error frame write failed", zap.Error(err))
	}
}
