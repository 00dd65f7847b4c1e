package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/clinical-risk-scorer/internal/domain"
	"github.com/clinical-risk-scorer/internal/service"
)

// Session message types.
const (
	MessageDomains  = "domains"
	MessageDescribe = "describe"
	MessageEvaluate = "evaluate"
	MessageReport   = "report"
	MessageError    = "error"
)

const (
	sessionPongWait   = 60 * time.Second
	sessionPingPeriod = 50 * time.Second
	sessionWriteWait  = 10 * time.Second
	defaultReadLimit  = 1 << 20
)

// SessionRequest is one client message on the session channel.
type SessionRequest struct {
	ID           string                  `json:"id,omitempty"`
	Type         string                  `json:"type"`
	Domain       string                  `json:"domain,omitempty"`
	Inputs       domain.ClinicalInputSet `json:"inputs,omitempty"`
	SymptomScore *int                    `json:"symptom_score,omitempty"`
}

// SessionResponse answers one SessionRequest. Exactly one of the payload
// fields is set.
type SessionResponse struct {
	ID         string                `json:"id,omitempty"`
	Type       string                `json:"type"`
	Evaluation *domain.Evaluation    `json:"evaluation,omitempty"`
	Domain     *service.DomainInfo   `json:"domain,omitempty"`
	Domains    []service.DomainInfo  `json:"domains,omitempty"`
	Report     *domain.Report        `json:"report,omitempty"`
	Error      *domain.ErrorResponse `json:"error,omitempty"`
}

// sessionHandler serves the interactive channel. Each connection is handled
// by one goroutine that reads a request, runs it and writes the answer
// before reading the next, so a connection never has two requests in flight.
type sessionHandler struct {
	evaluator *service.Evaluator
	upgrader  websocket.Upgrader
	readLimit int64
	logger    *logrus.Logger

	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

func newSessionHandler(evaluator *service.Evaluator, cfg domain.ServerConfig, logger *logrus.Logger) *sessionHandler {
	readLimit := cfg.MaxBodyBytes
	if readLimit <= 0 {
		readLimit = defaultReadLimit
	}
	return &sessionHandler{
		evaluator: evaluator,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(cfg.AllowedOrigins),
		},
		readLimit: readLimit,
		logger:    logger,
		conns:     make(map[*websocket.Conn]struct{}),
	}
}

// originChecker accepts requests without an Origin header and origins in
// the allow list.
func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allowed {
			if o == "*" || o == origin {
				return true
			}
		}
		return false
	}
}

func (h *sessionHandler) handle(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// The upgrader has already written the HTTP error.
		h.logger.WithError(err).Debug("Session upgrade failed")
		return
	}

	sessionID := uuid.New().String()
	h.track(conn)
	defer h.untrack(conn)

	log := h.logger.WithField("session_id", sessionID)
	log.Info("Session opened")
	defer log.Info("Session closed")

	conn.SetReadLimit(h.readLimit)
	_ = conn.SetReadDeadline(time.Now().Add(sessionPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(sessionPongWait))
	})

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	go h.keepAlive(ctx, conn)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.WithError(err).Warn("Session read failed")
			}
			return
		}

		resp := h.dispatch(ctx, sessionID, data)

		_ = conn.SetWriteDeadline(time.Now().Add(sessionWriteWait))
		if err := conn.WriteJSON(resp); err != nil {
			log.WithError(err).Warn("Session write failed")
			return
		}
	}
}

func (h *sessionHandler) keepAlive(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(sessionPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(sessionWriteWait)); err != nil {
				return
			}
		}
	}
}

// dispatch runs one request and never fails: errors become error responses.
func (h *sessionHandler) dispatch(ctx context.Context, sessionID string, data []byte) *SessionResponse {
	var req SessionRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return errorMessage("", &domain.ErrorResponse{
			Code:    domain.CodeInvalidRequest,
			Message: "invalid message: " + err.Error(),
		}, sessionID)
	}

	resp := &SessionResponse{ID: req.ID, Type: req.Type}
	requestID := req.ID
	if requestID == "" {
		requestID = sessionID
	}
	opts := domain.EvaluationOptions{SymptomScore: req.SymptomScore, RequestID: requestID}

	switch req.Type {
	case MessageDomains:
		resp.Domains = h.evaluator.Domains()
	case MessageDescribe:
		d, err := domain.ParseDomain(req.Domain)
		if err != nil {
			return errorMessage(req.ID, err, requestID)
		}
		if resp.Domain, err = h.evaluator.Describe(d); err != nil {
			return errorMessage(req.ID, err, requestID)
		}
	case MessageEvaluate:
		d, err := domain.ParseDomain(req.Domain)
		if err != nil {
			return errorMessage(req.ID, err, requestID)
		}
		if resp.Evaluation, err = h.evaluator.Evaluate(ctx, d, req.Inputs, opts); err != nil {
			return errorMessage(req.ID, err, requestID)
		}
	case MessageReport:
		var err error
		if resp.Report, err = h.evaluator.ThyroidReport(ctx, req.Inputs, opts); err != nil {
			return errorMessage(req.ID, err, requestID)
		}
	default:
		return errorMessage(req.ID, &domain.ErrorResponse{
			Code:    domain.CodeInvalidRequest,
			Message: fmt.Sprintf("unknown message type %q", req.Type),
		}, requestID)
	}
	return resp
}

func errorMessage(id string, err error, requestID string) *SessionResponse {
	return &SessionResponse{ID: id, Type: MessageError, Error: errorResponse(err, requestID)}
}

func (h *sessionHandler) track(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[conn] = struct{}{}
}

func (h *sessionHandler) untrack(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.conns, conn)
	h.mu.Unlock()
	conn.Close()
}

// closeAll tells every open session the server is going away.
func (h *sessionHandler) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
	for conn := range h.conns {
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		conn.Close()
	}
}
