package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/shapectx/internal/testutil"
)

// mockWebSocketConn records written messages.
type mockWebSocketConn struct {
	sent []WebSocketResponse
}

func (m *mockWebSocketConn) WriteMessage(_ int, data []byte) error {
	var resp WebSocketResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return err
	}
	m.sent = append(m.sent, resp)
	return nil
}

func TestServer_ProcessWebSocketImage(t *testing.T) {
	s := newTestServer(t, nil)

	t.Run("streams every contour", func(t *testing.T) {
		conn := &mockWebSocketConn{}
		s.processWebSocketImage(context.Background(), conn, WebSocketAnalyzeRequest{
			Image:    silhouettePNG(t, testutil.ShapeRing),
			Filename: "ring.png",
		})

		require.Len(t, conn.sent, 4)
		assert.Equal(t, wsTypeProcessing, conn.sent[0].Type)

		seen := map[int]bool{}
		for _, msg := range conn.sent[1:3] {
			assert.Equal(t, wsTypeContour, msg.Type)
			require.NotNil(t, msg.Index)
			assert.NotNil(t, msg.Descriptor)
			seen[*msg.Index] = true
		}
		assert.Equal(t, map[int]bool{0: true, 1: true}, seen)

		done := conn.sent[3]
		assert.Equal(t, wsTypeCompleted, done.Type)
		assert.Equal(t, 2, done.Total)
		require.NotNil(t, done.Document)
		assert.Equal(t, "ring.png", done.Document.Source)
		assert.Len(t, done.Document.Contours, 2)
		for _, msg := range conn.sent {
			assert.Equal(t, conn.sent[0].RequestID, msg.RequestID)
		}
	})

	t.Run("no image", func(t *testing.T) {
		conn := &mockWebSocketConn{}
		s.processWebSocketImage(context.Background(), conn, WebSocketAnalyzeRequest{})
		require.Len(t, conn.sent, 1)
		assert.Equal(t, wsTypeError, conn.sent[0].Type)
		assert.Equal(t, "invalid_request", conn.sent[0].ErrorType)
	})

	t.Run("undecodable image", func(t *testing.T) {
		conn := &mockWebSocketConn{}
		s.processWebSocketImage(context.Background(), conn, WebSocketAnalyzeRequest{Image: []byte("nope")})
		require.Len(t, conn.sent, 1)
		assert.Contains(t, conn.sent[0].Error, "Failed to decode image")
	})

	t.Run("bad options", func(t *testing.T) {
		threshold := 999
		conn := &mockWebSocketConn{}
		s.processWebSocketImage(context.Background(), conn, WebSocketAnalyzeRequest{
			Image:   silhouettePNG(t, testutil.ShapeRect),
			Options: analyzeOptions{Threshold: &threshold},
		})
		require.Len(t, conn.sent, 1)
		assert.Equal(t, wsTypeError, conn.sent[0].Type)
	})
}

func TestServer_WebSocketEndToEnd(t *testing.T) {
	s := newTestServer(t, nil)
	mux := http.NewServeMux()
	s.SetupRoutes(mux)
	ts := httptest.NewServer(mux)
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	defer func() { _ = conn.Close() }()

	read := func() WebSocketResponse {
		t.Helper()
		var msg WebSocketResponse
		require.NoError(t, conn.ReadJSON(&msg))
		return msg
	}

	// Binary frames carry a bare image.
	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, silhouettePNG(t, testutil.ShapeRect)))
	assert.Equal(t, wsTypeProcessing, read().Type)
	assert.Equal(t, wsTypeContour, read().Type)
	done := read()
	assert.Equal(t, wsTypeCompleted, done.Type)
	assert.Equal(t, 1, done.Total)

	// Text frames carry a JSON request.
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	msg := read()
	assert.Equal(t, wsTypeError, msg.Type)
	assert.Equal(t, "invalid_request", msg.ErrorType)

	inverted := true
	require.NoError(t, conn.WriteJSON(WebSocketAnalyzeRequest{
		Image:   silhouettePNG(t, testutil.ShapeRect),
		Options: analyzeOptions{Invert: &inverted},
	}))
	assert.Equal(t, wsTypeProcessing, read().Type)
	for {
		msg = read()
		if msg.Type != wsTypeContour {
			break
		}
	}
	assert.Equal(t, wsTypeCompleted, msg.Type)
	assert.Positive(t, msg.Total)
}
