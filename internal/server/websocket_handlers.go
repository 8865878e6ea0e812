package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/MeKo-Tech/shapectx/internal/descriptor"
	"github.com/MeKo-Tech/shapectx/internal/report"
	"github.com/MeKo-Tech/shapectx/internal/utils"
)

// WebSocket upgrader with reasonable defaults.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Message types sent to websocket clients.
const (
	wsTypeProcessing = "processing"
	wsTypeContour    = "contour"
	wsTypeCompleted  = "completed"
	wsTypeError      = "error"
)

// WebSocketAnalyzeRequest is a text message asking for an analysis. A binary
// message is treated as an image with default options.
type WebSocketAnalyzeRequest struct {
	Image    []byte         `json:"image"` // base64 in JSON
	Filename string         `json:"filename,omitempty"`
	Options  analyzeOptions `json:"options,omitempty"`
}

// WebSocketConnWriter is an interface for writing WebSocket messages.
type WebSocketConnWriter interface {
	WriteMessage(messageType int, data []byte) error
}

// WebSocketResponse is sent for every step of a streamed analysis: one
// processing message, one contour message per contour in completion order,
// then completed with the full document, or error.
type WebSocketResponse struct {
	Type       string                 `json:"type"`
	RequestID  string                 `json:"request_id,omitempty"`
	Index      *int                   `json:"index,omitempty"`
	Total      int                    `json:"total,omitempty"`
	Progress   float64                `json:"progress,omitempty"`
	Descriptor *descriptor.Descriptor `json:"descriptor,omitempty"`
	Document   *report.Document       `json:"document,omitempty"`
	Error      string                 `json:"error,omitempty"`
	ErrorType  string                 `json:"error_type,omitempty"`
}

// analyzeWebSocketHandler handles WebSocket connections for streamed analysis.
func (s *Server) analyzeWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade connection to WebSocket", "error", err)
		return
	}
	defer func() {
		_ = conn.Close()
	}()

	websocketConnections.Inc()
	defer websocketConnections.Dec()

	slog.Info("WebSocket connection established", "remote_addr", r.RemoteAddr)

	s.handleWebSocketConnection(r.Context(), conn)
}

// handleWebSocketConnection processes messages from a WebSocket connection.
func (s *Server) handleWebSocketConnection(ctx context.Context, conn *websocket.Conn) {
	// Set read deadline to prevent hanging connections
	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(10*time.Second)); err != nil {
					return
				}
			}
		}
	}()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Error("WebSocket error", "error", err)
			}
			return
		}
		websocketMessagesTotal.WithLabelValues("received").Inc()
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))

		switch messageType {
		case websocket.BinaryMessage:
			s.processWebSocketImage(ctx, conn, WebSocketAnalyzeRequest{Image: data})
		case websocket.TextMessage:
			var req WebSocketAnalyzeRequest
			if err := json.Unmarshal(data, &req); err != nil {
				s.sendWebSocketError(conn, "", "invalid_request", fmt.Sprintf("Failed to parse request: %v", err))
				continue
			}
			s.processWebSocketImage(ctx, conn, req)
		}
	}
}

// processWebSocketImage analyzes one image and streams the contour results.
func (s *Server) processWebSocketImage(ctx context.Context, conn WebSocketConnWriter, req WebSocketAnalyzeRequest) {
	requestID := strconv.FormatInt(time.Now().UnixNano(), 10)

	if len(req.Image) == 0 {
		s.sendWebSocketError(conn, requestID, "invalid_request", "No image data provided")
		return
	}
	img, _, err := utils.DecodeImage(bytes.NewReader(req.Image))
	if err != nil {
		analysisRequestsTotal.WithLabelValues("websocket", "error").Inc()
		s.sendWebSocketError(conn, requestID, "invalid_request", fmt.Sprintf("Failed to decode image: %v", err))
		return
	}
	pl, err := s.pipelineFor(req.Options)
	if err != nil {
		s.sendWebSocketError(conn, requestID, "invalid_request", err.Error())
		return
	}

	s.sendWebSocketResponse(conn, WebSocketResponse{Type: wsTypeProcessing, RequestID: requestID})

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	streamed := 0
	start := time.Now()
	res, err := pl.ProcessImageStream(ctx, img, req.Filename, func(i int, r descriptor.Result) {
		streamed++
		msg := WebSocketResponse{Type: wsTypeContour, RequestID: requestID, Index: &i, Descriptor: r.Descriptor}
		if r.Err != nil {
			msg.Error = r.Err.Error()
		}
		s.sendWebSocketResponse(conn, msg)
	})
	duration := time.Since(start)
	if err != nil {
		analysisRequestsTotal.WithLabelValues("websocket", "error").Inc()
		s.sendWebSocketError(conn, requestID, "processing_error", fmt.Sprintf("analysis failed: %v", err))
		return
	}

	analysisRequestsTotal.WithLabelValues("websocket", "success").Inc()
	analysisDuration.WithLabelValues("websocket").Observe(duration.Seconds())
	contoursPerImage.WithLabelValues("websocket").Observe(float64(len(res.Contours)))
	contoursFailedTotal.WithLabelValues("websocket").Add(float64(res.Stats.Failed))

	s.sendWebSocketResponse(conn, WebSocketResponse{
		Type:      wsTypeCompleted,
		RequestID: requestID,
		Total:     streamed,
		Progress:  1.0,
		Document:  res.Document,
	})
}

// sendWebSocketResponse sends a response message over WebSocket.
func (s *Server) sendWebSocketResponse(conn WebSocketConnWriter, response WebSocketResponse) {
	data, err := json.Marshal(response)
	if err != nil {
		slog.Error("Failed to marshal WebSocket response", "error", err)
		return
	}

	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		slog.Error("Failed to send WebSocket message", "error", err)
		return
	}

	websocketMessagesTotal.WithLabelValues("sent").Inc()
}

// sendWebSocketError sends an error message over WebSocket.
func (s *Server) sendWebSocketError(conn WebSocketConnWriter, requestID, errorType, message string) {
	s.sendWebSocketResponse(conn, WebSocketResponse{
		Type:      wsTypeError,
		RequestID: requestID,
		Error:     message,
		ErrorType: errorType,
	})
}
