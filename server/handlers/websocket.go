package handlers

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/rangelab/camranger/server/models"
	"github.com/rangelab/camranger/server/processor"
)

type WebSocketHandler struct {
	processor *processor.FrameProcessor
	logger    *zap.Logger
	unit      models.DistanceUnit
	upgrader  websocket.Upgrader
}

type ClientMessage struct {
	Type      string `json:"type"`
	Data      string `json:"data"`
	Timestamp int64  `json:"timestamp"`
}

type ServerMessage struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

func NewWebSocketHandler(processor *processor.FrameProcessor, unit models.DistanceUnit, logger *zap.Logger) *WebSocketHandler {
	if unit == "" {
		unit = models.UnitMeters
	}
	return &WebSocketHandler{
		processor: processor,
		logger:    logger,
		unit:      unit,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("failed to upgrade websocket connection", zap.Error(err))
		return
	}
	defer conn.Close()

	clientIP := c.ClientIP()
	h.logger.Info("websocket client connected", zap.String("client_ip", clientIP))

	conn.SetReadLimit(10 * 1024 * 1024)
	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(appData string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	ticker := time.NewTicker(54 * time.Second)
	defer ticker.Stop()

	done := make(chan struct{})

	go h.pingRoutine(conn, ticker, done)

	for {
		select {
		case <-done:
			return
		default:
			var message ClientMessage
			err := conn.ReadJSON(&message)
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					h.logger.Error("websocket error", zap.Error(err))
				}
				close(done)
				return
			}
			h.handleMessage(conn, &message)
		}
	}
}

func (h *WebSocketHandler) handleMessage(conn *websocket.Conn, message *ClientMessage) {
	switch message.Type {
	case "frame":
		h.rangeVideoFrame(conn, message)
	case "calibrate":
		h.handleCalibration(conn, message)
	case "reset":
		h.processor.ResetSession(h.getClientID(conn))
		h.sendMessage(conn, "reset", map[string]any{"timestamp": time.Now().Unix()})
	case "ping":
		h.sendMessage(conn, "pong", map[string]any{"timestamp": time.Now().Unix()})
	default:
		h.logger.Warn("unknown message type received", zap.String("type", message.Type))
		h.sendError(conn, "Unknown message type: "+message.Type)
	}
}

func (h *WebSocketHandler) rangeVideoFrame(conn *websocket.Conn, message *ClientMessage) {
	imageData, err := h.extractImageData(message.Data)
	if err != nil {
		h.logger.Error("failed to extract image data", zap.Error(err))
		h.sendError(conn, "invalid image data format")
		return
	}

	ts := time.Now()
	if message.Timestamp > 0 {
		ts = time.UnixMilli(message.Timestamp)
	}

	clientID := h.getClientID(conn)
	go func() {
		estimate, ok, err := h.processor.ProcessImage(clientID, imageData, ts)
		if err != nil {
			h.logger.Error("frame ranging failed", zap.Error(err))
			h.sendError(conn, "Frame processing failed")
			return
		}

		h.sendMessage(conn, "estimate", estimatePayload(estimate, ok, h.unit))
	}()
}

func (h *WebSocketHandler) handleCalibration(conn *websocket.Conn, message *ClientMessage) {
	var request CalibrationRequest
	if err := json.Unmarshal([]byte(message.Data), &request); err != nil {
		h.logger.Error("invalid calibration format", zap.Error(err))
		h.sendError(conn, "Invalid calibration format")
		return
	}

	if err := h.processor.Calibrate(h.getClientID(conn), request.KnownDistanceM, request.MeasuredDepth); err != nil {
		h.sendError(conn, err.Error())
		return
	}

	h.sendMessage(conn, "calibrated", map[string]any{
		"known_distance_m": request.KnownDistanceM,
		"measured_depth":   request.MeasuredDepth,
	})
}

func (h *WebSocketHandler) extractImageData(dataURL string) ([]byte, error) {
	payload := dataURL
	if strings.Contains(dataURL, ",") {
		parts := strings.Split(dataURL, ",")
		if len(parts) != 2 {
			return nil, websocket.ErrBadHandshake
		}
		payload = parts[1]
	}

	imageData, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, err
	}
	return imageData, nil
}

func (h *WebSocketHandler) sendMessage(conn *websocket.Conn, messageType string, data any) {
	message := ServerMessage{
		Type: messageType,
		Data: data,
	}

	if err := conn.WriteJSON(message); err != nil {
		h.logger.Error("failed to send websocket message", zap.Error(err))
	}
}

func (h *WebSocketHandler) sendError(conn *websocket.Conn, errorMsg string) {
	h.sendMessage(conn, "error", map[string]any{
		"message":   errorMsg,
		"timestamp": time.Now().Unix(),
	})
}

func (h *WebSocketHandler) pingRoutine(conn *websocket.Conn, ticker *time.Ticker, done chan struct{}) {
	for {
		select {
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.logger.Error("failed to send ping", zap.Error(err))
				close(done)
				return
			}
		case <-done:
			return
		}
	}
}

func (h *WebSocketHandler) getClientID(conn *websocket.Conn) string {
	return conn.RemoteAddr().String()
}
