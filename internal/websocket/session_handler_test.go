package websocket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FlooooowY/SteelMount-FormShield/internal/challenge"
	"github.com/FlooooowY/SteelMount-FormShield/internal/domain"
	"github.com/FlooooowY/SteelMount-FormShield/internal/monitoring"
	"github.com/FlooooowY/SteelMount-FormShield/internal/usecase"
	"github.com/FlooooowY/SteelMount-FormShield/internal/validator"
)

type testServer struct {
	url      string
	sessions *SessionService
	metrics  *monitoring.Metrics
}

func newTestServer(t *testing.T, opts Options) *testServer {
	t.Helper()

	reg := challenge.NewRegistry(challenge.NewRand(1))
	require.NoError(t, reg.Register("fixed", challenge.Definition{
		Generate: func() domain.Challenge {
			return domain.Challenge{Question: "What is 40 + 2?", Answer: "42"}
		},
		Presentation: map[string]string{"input": "number"},
	}))

	metrics := monitoring.NewMetricsWithRegistry(prometheus.NewRegistry())
	uc := usecase.NewSubmissionUsecase(usecase.Config{
		Validation:        validator.DefaultOptions(),
		MinSubmissionTime: 10,
		ChallengeType:     "fixed",
	}, reg, nil, metrics)

	sessions := NewSessionService()
	srv := httptest.NewServer(NewHandler(uc, sessions, metrics, opts))
	t.Cleanup(srv.Close)

	return &testServer{
		url:      "ws" + strings.TrimPrefix(srv.URL, "http"),
		sessions: sessions,
		metrics:  metrics,
	}
}

type client struct {
	t    *testing.T
	conn *websocket.Conn
}

func (s *testServer) dial(t *testing.T, query string) *client {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(s.url+"?"+query, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return &client{t: t, conn: conn}
}

func (c *client) send(eventType string, data map[string]interface{}) {
	c.t.Helper()
	require.NoError(c.t, c.conn.WriteJSON(NewEvent(eventType, data)))
}

func (c *client) expect(eventType string) map[string]interface{} {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var ev Event
	require.NoError(c.t, c.conn.ReadJSON(&ev))
	require.Equal(c.t, eventType, ev.Type, "data: %v", ev.Data)
	assert.NotEmpty(c.t, ev.ID)
	return ev.Data
}

func TestSession_MultiRoundChallenge(t *testing.T) {
	srv := newTestServer(t, Options{})
	c := srv.dial(t, "client_id=checkout&ENABLE_MULTIPLE_CHALLENGES=true")

	ready := c.expect(EventReady)
	assert.NotEmpty(t, ready["session_id"])
	assert.NotEmpty(t, ready["honeypot_field"])

	c.send(EventFocus, nil)
	c.send(EventSubmit, map[string]interface{}{"values": map[string]interface{}{"email": "ada@example.com"}})

	verdict := c.expect(EventVerdict)["verdict"].(map[string]interface{})
	assert.Equal(t, false, verdict["passed"])
	assert.Equal(t, false, verdict["isBot"])
	assert.Equal(t, "Please complete 2 challenges to verify you are human.", verdict["errorMessage"])

	show := c.expect(EventChallengeShow)
	assert.Equal(t, "What is 40 + 2?", show["question"])
	assert.Equal(t, 1.0, show["round"])
	assert.Equal(t, 2.0, show["required"])
	assert.Equal(t, map[string]interface{}{"input": "number"}, show["presentation"])

	c.send(EventAnswer, map[string]interface{}{"answer": "41"})
	wrong := c.expect(EventChallengeWrong)
	assert.Equal(t, "Incorrect answer. Please try again.", wrong["message"])

	c.send(EventAnswer, map[string]interface{}{"answer": "42"})
	progress := c.expect(EventChallengeProgress)
	assert.Equal(t, 2.0, progress["round"])
	assert.Equal(t, "Challenge 1 of 2 completed. Please complete the next challenge.", progress["message"])

	c.send(EventAnswer, map[string]interface{}{"answer": " 42 "})
	body := c.expect(EventAccepted)["body"].(map[string]interface{})
	assert.Equal(t, "ada@example.com", body["email"])
	assert.Equal(t, true, body[domain.FieldChallengeCompleted])

	verdictOnServer := validator.ValidateFormShield(validator.Body(body))
	assert.True(t, verdictOnServer.Valid, verdictOnServer.Message())

	stats := srv.sessions.Stats()
	assert.Equal(t, 1, stats.ActiveSessions)
	assert.Equal(t, int64(1), stats.AcceptedSessions)
	assert.Equal(t, 3, stats.EventsByType[EventAnswer])
	assert.Equal(t, 1.0, testutil.ToFloat64(srv.metrics.SequencesCompleted))
}

func TestSession_BotIsAcceptedSilently(t *testing.T) {
	srv := newTestServer(t, Options{})
	c := srv.dial(t, "")

	field := c.expect(EventReady)["honeypot_field"].(string)

	c.send(EventFocus, nil)
	c.send(EventSubmit, map[string]interface{}{"values": map[string]interface{}{
		"email": "bot@example.com",
		field:   "https://spam.example",
	}})

	verdict := c.expect(EventVerdict)["verdict"].(map[string]interface{})
	assert.Equal(t, true, verdict["isBot"])
	assert.Nil(t, verdict["errorMessage"])

	body := c.expect(EventAccepted)["body"].(map[string]interface{})
	assert.Equal(t, "https://spam.example", body[field])

	assert.True(t, validator.ValidateFormShield(validator.Body(body)).IsBot)
}

func TestSession_ErrorsAndReset(t *testing.T) {
	srv := newTestServer(t, Options{})
	c := srv.dial(t, "ENABLE_MULTIPLE_CHALLENGES=false")

	first := c.expect(EventReady)

	c.send(EventAnswer, map[string]interface{}{"answer": "42"})
	assert.Contains(t, c.expect(EventError)["message"], "not awaiting")

	require.NoError(t, c.conn.WriteMessage(websocket.TextMessage, []byte("{oops")))
	assert.Equal(t, "malformed event", c.expect(EventError)["message"])

	c.send("session:dance", nil)
	assert.Equal(t, "unknown event type: session:dance", c.expect(EventError)["message"])

	c.send(EventSubmit, map[string]interface{}{"values": map[string]interface{}{}})
	verdict := c.expect(EventVerdict)["verdict"].(map[string]interface{})
	assert.Equal(t, "Please complete the verification challenge.", verdict["errorMessage"])
	assert.Equal(t, 1.0, c.expect(EventChallengeShow)["required"])

	c.send(EventReset, nil)
	again := c.expect(EventReady)
	assert.Equal(t, first["session_id"], again["session_id"])
	assert.Equal(t, first["honeypot_field"], again["honeypot_field"])

	assert.Equal(t, 1.0, testutil.ToFloat64(srv.metrics.SessionErrors.WithLabelValues(EventAnswer, "not_awaiting")))
}

func TestSession_RejectsBadSettingsAndOrigins(t *testing.T) {
	srv := newTestServer(t, Options{AllowedOrigins: []string{"https://shop.example"}})

	_, resp, err := websocket.DefaultDialer.Dial(srv.url+"?MAX_CHALLENGES=lots", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	header := http.Header{"Origin": {"https://evil.example"}}
	_, resp, err = websocket.DefaultDialer.Dial(srv.url, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	header = http.Header{"Origin": {"https://shop.example"}}
	conn, _, err := websocket.DefaultDialer.Dial(srv.url, header)
	require.NoError(t, err)
	conn.Close()
}

func TestSessionService_Stats(t *testing.T) {
	svc := NewSessionService()
	a := svc.Open("a", "127.0.0.1:1")
	b := svc.Open("b", "127.0.0.1:2")
	svc.Touch(a.ID, EventFocus)
	svc.Touch(a.ID, EventSubmit)
	svc.Close(b.ID)

	info, ok := svc.Get(a.ID)
	require.True(t, ok)
	assert.Equal(t, 2, info.Events)
	_, ok = svc.Get(b.ID)
	assert.False(t, ok)

	rec := httptest.NewRecorder()
	svc.StatsHandler(rec, httptest.NewRequest(http.MethodGet, "/ws/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var stats Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 1, stats.ActiveSessions)
	assert.Equal(t, int64(2), stats.TotalSessions)
	assert.Equal(t, map[string]int{EventFocus: 1, EventSubmit: 1}, stats.EventsByType)
}
