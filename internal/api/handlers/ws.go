package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wonny/pipeline-metrics/backend/internal/contracts"
	"github.com/wonny/pipeline-metrics/backend/internal/dashboard"
	"github.com/wonny/pipeline-metrics/backend/internal/params"
	"github.com/wonny/pipeline-metrics/backend/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// WSRequest is sent by a dashboard client whenever its inputs change
type WSRequest struct {
	RequestID uint64 `json:"request_id"`
	Start     string `json:"start"`
	Pipeline  string `json:"pipeline"`
}

// WSResponse answers one WSRequest
type WSResponse struct {
	RequestID uint64             `json:"request_id"`
	Seq       uint64             `json:"seq,omitempty"`
	Params    *params.Params     `json:"params,omitempty"`
	Views     *contracts.Results `json:"views,omitempty"`
	Error     string             `json:"error,omitempty"`
	ErrorKind string             `json:"error_kind,omitempty"`
}

// ErrorKindRateLimited marks a request refused by the evaluation limiter
const ErrorKindRateLimited = "rate_limited"

// Limiter admits one evaluation at a time against a shared budget
type Limiter interface {
	Allow(ctx context.Context) (bool, error)
}

// WSHandler evaluates dashboards over a WebSocket.
// Each connection runs at most one evaluation; while it runs, only the newest
// request waits behind it and older waiting requests are dropped unanswered.
// A reply whose request id was superseded while it was evaluating is dropped too.
type WSHandler struct {
	service  DashboardService
	limiter  Limiter
	logger   *logger.Logger
	upgrader websocket.Upgrader
}

// WSOption configures a WSHandler
type WSOption func(*WSHandler)

// WithLimiter charges every evaluation against l
func WithLimiter(l Limiter) WSOption {
	return func(h *WSHandler) { h.limiter = l }
}

// NewWSHandler creates a new WebSocket handler
func NewWSHandler(service DashboardService, log *logger.Logger, opts ...WSOption) *WSHandler {
	h := &WSHandler{
		service: service,
		logger:  log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// wsConn serializes writes and tracks the newest request id
type wsConn struct {
	conn   *websocket.Conn
	mu     sync.Mutex
	latest uint64

	// one evaluation in flight, one waiting
	queueMu sync.Mutex
	running bool
	pending *WSRequest
}

// enqueue hands req to the connection's worker. It reports true when the
// caller must start a worker; otherwise req replaces any waiting request.
func (c *wsConn) enqueue(req WSRequest) bool {
	c.queueMu.Lock()
	defer c.queueMu.Unlock()
	if c.running {
		c.pending = &req
		return false
	}
	c.running = true
	return true
}

// next takes the waiting request, or marks the worker idle
func (c *wsConn) next() (WSRequest, bool) {
	c.queueMu.Lock()
	defer c.queueMu.Unlock()
	if c.pending == nil {
		c.running = false
		return WSRequest{}, false
	}
	req := *c.pending
	c.pending = nil
	return req, true
}

func (c *wsConn) observe(id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if id > c.latest {
		c.latest = id
	}
}

// sendIfCurrent writes resp unless a newer request arrived
func (c *wsConn) sendIfCurrent(resp WSResponse) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if resp.RequestID < c.latest {
		return false, nil
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return true, c.conn.WriteJSON(resp)
}

func (c *wsConn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(writeWait))
}

// Serve upgrades the connection and answers requests until it closes
// GET /ws
func (h *WSHandler) Serve(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	c := &wsConn{conn: conn}
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go h.pingLoop(ctx, c)

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		var req WSRequest
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.WithError(err).Debug("WebSocket closed")
			}
			cancel()
			return
		}
		c.observe(req.RequestID)

		if c.enqueue(req) {
			wg.Add(1)
			go func(req WSRequest) {
				defer wg.Done()
				h.work(ctx, c, req)
			}(req)
		}
	}
}

// work answers req, then whatever request is waiting, until none is
func (h *WSHandler) work(ctx context.Context, c *wsConn, req WSRequest) {
	for {
		h.answer(ctx, c, req)

		var ok bool
		if req, ok = c.next(); !ok {
			return
		}
	}
}

func (h *WSHandler) allow(ctx context.Context) bool {
	if h.limiter == nil {
		return true
	}
	allowed, err := h.limiter.Allow(ctx)
	if err != nil {
		h.logger.WithError(err).Warn("Evaluation limiter failed, allowing request")
		return true
	}
	return allowed
}

func (h *WSHandler) answer(ctx context.Context, c *wsConn, req WSRequest) {
	resp := WSResponse{RequestID: req.RequestID}

	if !h.allow(ctx) {
		resp.Error = "Too many evaluation requests"
		resp.ErrorKind = ErrorKindRateLimited
		if _, err := c.sendIfCurrent(resp); err != nil {
			h.logger.WithError(err).Debug("WebSocket write failed")
		}
		return
	}

	out, err := h.service.Refresh(ctx, params.Raw{Start: req.Start, Pipeline: req.Pipeline})
	if err != nil {
		resp.Error = err.Error()
		resp.ErrorKind = dashboard.FailureKind(err)
	} else {
		resp.Seq = out.Ticket.Seq
		resp.Params = &out.Ticket.Params
		resp.Views = out.Results
	}

	sent, err := c.sendIfCurrent(resp)
	if err != nil {
		h.logger.WithError(err).Debug("WebSocket write failed")
		return
	}
	if !sent {
		h.logger.WithField("request_id", req.RequestID).Debug("Superseded WebSocket reply dropped")
	}
}

func (h *WSHandler) pingLoop(ctx context.Context, c *wsConn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.ping(); err != nil {
				return
			}
		}
	}
}
