// Package websocket hosts form sessions for browsers without the client
// engine. Each connection owns one shield.Form.
package websocket

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/FlooooowY/SteelMount-FormShield/internal/domain"
	"github.com/FlooooowY/SteelMount-FormShield/internal/flow"
	"github.com/FlooooowY/SteelMount-FormShield/internal/logger"
	"github.com/FlooooowY/SteelMount-FormShield/internal/monitoring"
	"github.com/FlooooowY/SteelMount-FormShield/internal/settings"
	"github.com/FlooooowY/SteelMount-FormShield/internal/shield"
	"github.com/FlooooowY/SteelMount-FormShield/internal/usecase"
)

// Client to server events
const (
	EventFocus  = "session:focus"
	EventSubmit = "session:submit"
	EventAnswer = "challenge:answer"
	EventReset  = "session:reset"
)

// Server to client events
const (
	EventReady             = "session:ready"
	EventVerdict           = "session:verdict"
	EventAccepted          = "session:accepted"
	EventError             = "session:error"
	EventChallengeShow     = "challenge:show"
	EventChallengeProgress = "challenge:progress"
	EventChallengeWrong    = "challenge:incorrect"
)

// Options configures the session handler
type Options struct {
	// AllowedOrigins restricts the Origin header; empty allows any origin
	AllowedOrigins []string
	PingInterval   time.Duration
	IdleTimeout    time.Duration
	WriteTimeout   time.Duration
}

// DefaultOptions returns the handler defaults
func DefaultOptions() Options {
	return Options{
		PingInterval: 30 * time.Second,
		IdleTimeout:  2 * time.Minute,
		WriteTimeout: 10 * time.Second,
	}
}

// Handler upgrades requests to hosted form sessions
type Handler struct {
	uc       usecase.SubmissionUsecase
	sessions *SessionService
	metrics  *monitoring.Metrics
	opts     Options
	upgrader websocket.Upgrader
	log      *logrus.Entry
}

// NewHandler creates a session handler. metrics may be nil.
func NewHandler(uc usecase.SubmissionUsecase, sessions *SessionService, metrics *monitoring.Metrics, opts Options) *Handler {
	def := DefaultOptions()
	if opts.PingInterval <= 0 {
		opts.PingInterval = def.PingInterval
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = def.IdleTimeout
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = def.WriteTimeout
	}

	h := &Handler{
		uc:       uc,
		sessions: sessions,
		metrics:  metrics,
		opts:     opts,
		log:      logger.WithComponent("websocket"),
	}
	h.upgrader = websocket.Upgrader{
		CheckOrigin:     h.checkOrigin,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
	return h
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if len(h.opts.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	for _, allowed := range h.opts.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

// ServeHTTP creates the form, upgrades the connection and runs the session.
// Query parameters named like settings options form the local layer.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	local, err := localOverrides(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	sess := &session{
		handler: h,
		queue:   shield.NewTaskQueue(),
	}
	form, err := h.uc.NewForm(r.Context(), local, shield.FormOptions{
		Scheduler:       sess.queue,
		OnError:         sess.onError,
		OnShowChallenge: sess.onShowChallenge,
	})
	if err != nil {
		h.log.WithError(err).Warn("Failed to create hosted form")
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	sess.form = form

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	sess.conn = conn
	sess.info = h.sessions.Open(r.URL.Query().Get("client_id"), r.RemoteAddr)
	defer h.sessions.Close(sess.info.ID)

	sess.run()
}

func localOverrides(r *http.Request) (settings.Overrides, error) {
	raw := make(map[string]string)
	for k, v := range r.URL.Query() {
		if len(v) > 0 {
			raw[k] = v[0]
		}
	}
	return settings.ParseOverrides(raw)
}

// session is the state of one connection. Only the read loop touches it.
type session struct {
	handler *Handler
	conn    *websocket.Conn
	info    *SessionInfo
	form    *shield.Form
	queue   *shield.TaskQueue

	// validating suppresses OnError while the verdict carries the message
	validating bool
	pending    []*Event
}

func (s *session) run() {
	h := s.handler
	log := h.log.WithField("session_id", s.info.ID)

	s.conn.SetReadLimit(64 << 10)
	_ = s.conn.SetReadDeadline(time.Now().Add(h.opts.IdleTimeout))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(h.opts.IdleTimeout))
	})

	s.emit(EventReady, s.readyData())
	if err := s.flush(); err != nil {
		log.WithError(err).Warn("Failed to send ready event")
		return
	}

	done := make(chan struct{})
	defer close(done)
	go s.ping(done)

	for {
		_, message, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.WithError(err).Warn("Session read failed")
			}
			return
		}
		_ = s.conn.SetReadDeadline(time.Now().Add(h.opts.IdleTimeout))

		s.dispatch(message)
		s.queue.Drain()

		if err := s.flush(); err != nil {
			log.WithError(err).Warn("Session write failed")
			return
		}
	}
}

// ping keeps idle connections alive. WriteControl may run alongside the read loop's writes.
func (s *session) ping(done <-chan struct{}) {
	ticker := time.NewTicker(s.handler.opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			deadline := time.Now().Add(s.handler.opts.WriteTimeout)
			if err := s.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

func (s *session) dispatch(message []byte) {
	var in Event
	if err := json.Unmarshal(message, &in); err != nil {
		s.fail("invalid", "malformed", "malformed event", err)
		return
	}

	s.handler.sessions.Touch(s.info.ID, in.Type)
	if s.handler.metrics != nil {
		s.handler.metrics.RecordSessionEvent(in.Type)
	}

	switch in.Type {
	case EventFocus:
		s.form.RecordInteraction()
	case EventSubmit:
		s.submit(in.Data)
	case EventAnswer:
		s.answer(in.Data)
	case EventReset:
		s.form.Reset()
		s.emit(EventReady, s.readyData())
	default:
		s.fail(in.Type, "unknown_type", fmt.Sprintf("unknown event type: %s", in.Type), nil)
	}
}

func (s *session) submit(data map[string]interface{}) {
	values, _ := data["values"].(map[string]interface{})
	if values == nil {
		values = map[string]interface{}{}
	}

	s.validating = true
	v := s.form.ValidateSubmission(values)
	s.validating = false

	s.emit(EventVerdict, map[string]interface{}{"verdict": v})

	// Bots are told they succeeded; the honeypot value in the body makes
	// the server mirror drop the submission.
	if v.Passed || v.IsBot {
		s.accept(values)
	}
}

func (s *session) answer(data map[string]interface{}) {
	answer, _ := data["answer"].(string)

	out, err := s.form.CompleteChallengeFlow(answer, func(values map[string]any, _ bool, metrics domain.ChallengeMetrics) {
		s.handler.uc.RecordSequence(metrics)
		s.accept(values)
	})
	if err != nil {
		kind := "generator"
		if errors.Is(err, flow.ErrNotAwaitingAnswer) {
			kind = "not_awaiting"
		}
		s.fail(EventAnswer, kind, err.Error(), err)
		return
	}

	switch {
	case out.Complete:
	case !out.Correct:
		s.emit(EventChallengeWrong, map[string]interface{}{
			"message":  out.Message,
			"question": out.Next.Question,
		})
	default:
		s.emit(EventChallengeProgress, map[string]interface{}{
			"message":  out.Message,
			"question": out.Next.Question,
			"round":    out.Round,
		})
	}
}

func (s *session) accept(values map[string]any) {
	body := s.form.BuildSubmissionPayload().Body(values)
	s.handler.sessions.MarkAccepted(s.info.ID)
	s.emit(EventAccepted, map[string]interface{}{"body": body})
}

func (s *session) onError(message string) {
	if s.validating {
		return
	}
	s.emit(EventError, map[string]interface{}{"message": message})
}

func (s *session) onShowChallenge(ch domain.Challenge, round int) {
	data := map[string]interface{}{
		"type":     ch.Type,
		"question": ch.Question,
		"round":    round,
		"required": s.form.Metrics().RequiredChallenges,
	}
	if p, ok := s.handler.uc.Registry().Presentation(ch.Type); ok {
		data["presentation"] = p
	}
	s.emit(EventChallengeShow, data)
}

func (s *session) readyData() map[string]interface{} {
	return map[string]interface{}{
		"session_id":     s.info.ID,
		"honeypot_field": s.form.HoneypotField(),
	}
}

// fail reports an event error to the client
func (s *session) fail(eventType, errType, message string, err error) {
	if s.handler.metrics != nil {
		s.handler.metrics.RecordSessionError(eventType, errType)
	}
	entry := s.handler.log.WithFields(logrus.Fields{
		"session_id": s.info.ID,
		"event":      eventType,
	})
	if err != nil {
		entry = entry.WithError(err)
	}
	entry.Debug(message)

	s.emit(EventError, map[string]interface{}{"message": message})
}

func (s *session) emit(eventType string, data map[string]interface{}) {
	s.pending = append(s.pending, NewEvent(eventType, data))
}

func (s *session) flush() error {
	for len(s.pending) > 0 {
		event := s.pending[0]
		s.pending = s.pending[1:]

		if err := s.conn.SetWriteDeadline(time.Now().Add(s.handler.opts.WriteTimeout)); err != nil {
			return err
		}
		if err := s.conn.WriteJSON(event); err != nil {
			return fmt.Errorf("failed to send %s: %w", event.Type, err)
		}
	}
	return nil
}
