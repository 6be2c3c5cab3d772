package api

import (
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func dialChat(t *testing.T, s *Server) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/chat"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) (int, []byte) {
	t.Helper()
	msgType, data, err := conn.ReadMessage()
	require.NoError(t, err)
	return msgType, data
}

func TestChat_AnswersAfterInit(t *testing.T) {
	t.Parallel()

	s, _, _ := newTestServer(t, &fakeRunner{}, nil, &fakeAnswerer{answer: "widgets are small parts"})
	conn := dialChat(t, s)

	require.NoError(t, conn.WriteJSON(chatFrame{Type: "init", SessionID: "s1"}))
	require.NoError(t, conn.WriteJSON(chatFrame{Type: "message", Content: "what are widgets?"}))

	_, data := readFrame(t, conn)
	require.Equal(t, "widgets are small parts", string(data))
}

func TestChat_MessageCarriesOwnSession(t *testing.T) {
	t.Parallel()

	s, _, _ := newTestServer(t, &fakeRunner{}, nil, &fakeAnswerer{answer: "an answer"})
	conn := dialChat(t, s)

	require.NoError(t, conn.WriteJSON(chatFrame{Type: "message", Content: "hello?", SessionID: "s2"}))

	_, data := readFrame(t, conn)
	require.Equal(t, "an answer", string(data))
}

func TestChat_ErrorFramesKeepSocketOpen(t *testing.T) {
	t.Parallel()

	s, _, _ := newTestServer(t, &fakeRunner{}, nil, &fakeAnswerer{answer: "still here"})
	conn := dialChat(t, s)

	// Message before init has no session to answer against.
	require.NoError(t, conn.WriteJSON(chatFrame{Type: "message", Content: "hello?"}))
	_, data := readFrame(t, conn)
	var frame chatFrame
	require.NoError(t, json.Unmarshal(data, &frame))
	require.Equal(t, "error", frame.Type)
	require.Equal(t, "session not initialized", frame.Message)

	// Unknown frame type.
	require.NoError(t, conn.WriteJSON(chatFrame{Type: "bogus"}))
	_, data = readFrame(t, conn)
	require.NoError(t, json.Unmarshal(data, &frame))
	require.Equal(t, "error", frame.Type)

	// The socket still works afterwards.
	require.NoError(t, conn.WriteJSON(chatFrame{Type: "init", SessionID: "s1"}))
	require.NoError(t, conn.WriteJSON(chatFrame{Type: "message", Content: "ok now?"}))
	_, data = readFrame(t, conn)
	require.Equal(t, "still here", string(data))
}

func TestChat_AgentFailureReportsError(t *testing.T) {
	t.Parallel()

	s, _, _ := newTestServer(t, &fakeRunner{}, nil, &fakeAnswerer{err: errors.New("index down")})
	conn := dialChat(t, s)

	require.NoError(t, conn.WriteJSON(chatFrame{Type: "init", SessionID: "s1"}))
	require.NoError(t, conn.WriteJSON(chatFrame{Type: "message", Content: "question"}))

	_, data := readFrame(t, conn)
	var frame chatFrame
	require.NoError(t, json.Unmarshal(data, &frame))
	require.Equal(t, "error", frame.Type)
	require.Equal(t, "failed to answer question", frame.Message)
}

func TestChat_MalformedJSONReportsError(t *testing.T) {
	t.Parallel()

	s, _, _ := newTestServer(t, &fakeRunner{}, nil, &fakeAnswerer{})
	conn := dialChat(t, s)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	_, data := readFrame(t, conn)
	var frame chatFrame
	require.NoError(t, json.Unmarshal(data, &frame))
	require.Equal(t, "error", frame.Type)
	require.Equal(t, "invalid message format", frame.Message)
}
