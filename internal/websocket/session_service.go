package websocket

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/FlooooowY/SteelMount-FormShield/internal/logger"
)

// Event is the envelope exchanged in both directions
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// NewEvent creates an event with a fresh ID
func NewEvent(eventType string, data map[string]interface{}) *Event {
	return &Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now(),
	}
}

// SessionInfo describes one live hosted form session
type SessionInfo struct {
	ID         string    `json:"id"`
	ClientID   string    `json:"client_id,omitempty"`
	RemoteAddr string    `json:"remote_addr"`
	CreatedAt  time.Time `json:"created_at"`
	LastSeen   time.Time `json:"last_seen"`
	Events     int       `json:"events"`
	Accepted   int       `json:"accepted"`
}

// Stats is the snapshot reported by /ws/stats
type Stats struct {
	ActiveSessions   int            `json:"active_sessions"`
	TotalSessions    int64          `json:"total_sessions"`
	AcceptedSessions int64          `json:"accepted_submissions"`
	EventsByType     map[string]int `json:"events_by_type"`
	Timestamp        int64          `json:"timestamp"`
}

// SessionService tracks live sessions. Form state never leaves the
// connection goroutine; the service only keeps bookkeeping.
type SessionService struct {
	mu       sync.RWMutex
	sessions map[string]*SessionInfo
	total    int64
	accepted int64
	byType   map[string]int
	log      *logrus.Entry
}

// NewSessionService creates an empty session registry
func NewSessionService() *SessionService {
	return &SessionService{
		sessions: make(map[string]*SessionInfo),
		byType:   make(map[string]int),
		log:      logger.WithComponent("websocket"),
	}
}

// Open registers a new session
func (s *SessionService) Open(clientID, remoteAddr string) *SessionInfo {
	now := time.Now()
	info := &SessionInfo{
		ID:         uuid.New().String(),
		ClientID:   clientID,
		RemoteAddr: remoteAddr,
		CreatedAt:  now,
		LastSeen:   now,
	}

	s.mu.Lock()
	s.sessions[info.ID] = info
	s.total++
	s.mu.Unlock()

	s.log.WithFields(logrus.Fields{
		"session_id": info.ID,
		"client_id":  clientID,
		"remote":     remoteAddr,
	}).Info("Session opened")

	return info
}

// Touch records an incoming event for the session
func (s *SessionService) Touch(id, eventType string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if info, ok := s.sessions[id]; ok {
		info.LastSeen = time.Now()
		info.Events++
	}
	s.byType[eventType]++
}

// MarkAccepted counts a submission released to the client, both on the
// session and in the process totals
func (s *SessionService) MarkAccepted(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if info, ok := s.sessions[id]; ok {
		info.Accepted++
	}
	s.accepted++
}

// Close removes the session
func (s *SessionService) Close(id string) {
	s.mu.Lock()
	info, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()

	if ok {
		s.log.WithFields(logrus.Fields{
			"session_id": id,
			"events":     info.Events,
			"accepted":   info.Accepted,
			"duration":   time.Since(info.CreatedAt).String(),
		}).Info("Session closed")
	}
}

// Get returns a copy of the session info
func (s *SessionService) Get(id string) (SessionInfo, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	info, ok := s.sessions[id]
	if !ok {
		return SessionInfo{}, false
	}
	return *info, true
}

// Stats returns session statistics
func (s *SessionService) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byType := make(map[string]int, len(s.byType))
	for k, v := range s.byType {
		byType[k] = v
	}

	return Stats{
		ActiveSessions:   len(s.sessions),
		TotalSessions:    s.total,
		AcceptedSessions: s.accepted,
		EventsByType:     byType,
		Timestamp:        time.Now().Unix(),
	}
}

// StatsHandler serves the statistics as JSON
func (s *SessionService) StatsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	if err := json.NewEncoder(w).Encode(s.Stats()); err != nil {
		s.log.WithError(err).Error("Failed to encode stats")
	}
}
