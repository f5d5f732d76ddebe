package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/FlooooowY/SteelMount-FormShield/internal/usecase"
)

// HealthCheckFunc probes one optional component
type HealthCheckFunc func(ctx context.Context) error

// Handler contains all HTTP handlers
type Handler struct {
	uc           usecase.SubmissionUsecase
	maxBodyBytes int64
	checks       map[string]HealthCheckFunc
}

// NewHandler creates a new handler
func NewHandler(uc usecase.SubmissionUsecase, maxBodyBytes int64, checks map[string]HealthCheckFunc) *Handler {
	return &Handler{
		uc:           uc,
		maxBodyBytes: maxBodyBytes,
		checks:       checks,
	}
}

// HealthCheck returns the service health status. Optional components only
// degrade the status; the validators keep working without them.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	components := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		err := check(ctx)
		cancel()

		if err != nil {
			requestLogger(r).WithError(err).WithField("component", name).Warn("Health check failed")
			components[name] = "unavailable"
			status = "degraded"
		} else {
			components[name] = "ok"
		}
	}

	resp := map[string]interface{}{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if len(components) > 0 {
		resp["components"] = components
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetSettings returns the ambient settings every form starts from
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	s, err := h.uc.AmbientSettings(r.Context())
	if err != nil {
		requestLogger(r).WithError(err).Error("Failed to resolve settings")
		writeError(w, http.StatusInternalServerError, "Failed to resolve settings")
		return
	}

	opts := h.uc.Options()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"settings": s,
		"validation": map[string]interface{}{
			"honeypotCheck":      opts.HoneypotCheck,
			"timeDelayCheck":     opts.TimeDelayCheck,
			"challengeCheck":     opts.ChallengeCheck,
			"minSubmissionTime":  opts.MinSubmissionTime,
			"challengeTimeValue": opts.ChallengeTimeValue,
		},
		"challengeTypes": h.uc.Registry().ListTypes(),
		"challengeStats": h.uc.Registry().GetStats(),
	})
}

// Validate reports the verdict of a submission without acting on it
func (h *Handler) Validate(w http.ResponseWriter, r *http.Request) {
	body, err := readSubmission(r, h.maxBodyBytes)
	if err != nil {
		writeError(w, http.StatusBadRequest, MessageInvalidFallback)
		return
	}

	writeJSON(w, http.StatusOK, h.uc.ValidateSubmission(r.Context(), usecase.SurfaceHTTP, body))
}

// Submit is the protected action. It only runs behind FormShield.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	body, ok := SubmissionFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusBadRequest, MessageInvalidFallback)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": MessageAccepted,
		"fields":  body.FormFields(),
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
