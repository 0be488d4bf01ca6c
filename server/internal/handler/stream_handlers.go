package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/navid-fn/twradar/server/internal/service"
)

const (
	streamWriteTimeout = 10 * time.Second
	streamPongTimeout  = 60 * time.Second
	streamPingInterval = 30 * time.Second
)

// StreamConfig bounds client-chosen push intervals.
type StreamConfig struct {
	DefaultInterval time.Duration
	MinInterval     time.Duration
}

// StreamMessage is one push to a subscriber.
type StreamMessage struct {
	Type string    `json:"type"`
	At   time.Time `json:"at"`
	service.BatchResult
}

type StreamHandler struct {
	quoteService *service.QuoteService
	cfg          StreamConfig
	logger       *logrus.Logger
	upgrader     websocket.Upgrader
}

func NewStreamHandler(service *service.QuoteService, cfg StreamConfig, logger *logrus.Logger) *StreamHandler {
	if cfg.DefaultInterval <= 0 {
		cfg.DefaultInterval = 5 * time.Second
	}
	if cfg.MinInterval <= 0 {
		cfg.MinInterval = time.Second
	}
	return &StreamHandler{
		quoteService: service,
		cfg:          cfg,
		logger:       logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// Stream upgrades to a websocket and pushes batch quotes for ?symbols= every ?interval= seconds.
// The first push happens immediately.
func (h *StreamHandler) Stream(c *gin.Context) {
	symbols, err := h.quoteService.SplitSymbols(c.Query("symbols"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	interval := h.interval(c.Query("interval"))

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warnf("[stream] upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	ctx := c.Request.Context()
	clientID := c.GetString(requestIDKey)
	h.logger.Infof("[stream %s] subscribed to %d symbols every %s", clientID, len(symbols), interval)

	conn.SetReadDeadline(time.Now().Add(streamPongTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(streamPongTimeout))
	})

	// Reader: the client only sends control frames; any read error ends the stream.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	pushTicker := time.NewTicker(interval)
	defer pushTicker.Stop()
	pingTicker := time.NewTicker(streamPingInterval)
	defer pingTicker.Stop()

	push := func() bool {
		msg := StreamMessage{
			Type:        "quotes",
			At:          time.Now(),
			BatchResult: h.quoteService.GetQuotes(ctx, symbols),
		}
		conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
		if err := conn.WriteJSON(msg); err != nil {
			h.logger.Debugf("[stream %s] write failed: %v", clientID, err)
			return false
		}
		return true
	}

	if !push() {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-closed:
			h.logger.Infof("[stream %s] client went away", clientID)
			return
		case <-pingTicker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteTimeout)); err != nil {
				return
			}
		case <-pushTicker.C:
			if !push() {
				return
			}
		}
	}
}

func (h *StreamHandler) interval(raw string) time.Duration {
	secs, err := strconv.ParseFloat(raw, 64)
	if err != nil || secs <= 0 {
		return h.cfg.DefaultInterval
	}
	return max(time.Duration(secs*float64(time.Second)), h.cfg.MinInterval)
}
