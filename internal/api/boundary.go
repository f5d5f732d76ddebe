package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"

	"github.com/FlooooowY/SteelMount-FormShield/internal/usecase"
	"github.com/FlooooowY/SteelMount-FormShield/internal/validator"
)

// Boundary responses
const (
	MessageAccepted        = "Form submitted successfully!"
	MessageInvalidFallback = "Invalid form submission"
)

const bodyContextKey contextKey = "submissionBody"

// FormShield guards every unsafe request with the server validators.
// Bots get a fake success without reaching next; invalid submissions get a
// 400 with the verdict message. The raw body is restored for next.
func FormShield(uc usecase.SubmissionUsecase, maxBodyBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isSafeMethod(r.Method) {
				next.ServeHTTP(w, r)
				return
			}

			body, err := readSubmission(r, maxBodyBytes)
			if err != nil {
				requestLogger(r).WithError(err).Debug("Unreadable submission")
				writeJSON(w, http.StatusBadRequest, map[string]interface{}{
					"success": false,
					"error":   MessageInvalidFallback,
				})
				return
			}

			verdict := uc.ValidateSubmission(r.Context(), usecase.SurfaceHTTP, body)
			if verdict.IsBot {
				writeJSON(w, http.StatusOK, map[string]interface{}{
					"success": true,
					"message": MessageAccepted,
				})
				return
			}
			if !verdict.Valid {
				msg := verdict.Message()
				if msg == "" {
					msg = MessageInvalidFallback
				}
				writeJSON(w, http.StatusBadRequest, map[string]interface{}{
					"success": false,
					"error":   msg,
				})
				return
			}

			ctx := context.WithValue(r.Context(), bodyContextKey, body)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SubmissionFromContext returns the body validated by FormShield
func SubmissionFromContext(ctx context.Context) (validator.Body, bool) {
	body, ok := ctx.Value(bodyContextKey).(validator.Body)
	return body, ok
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	default:
		return false
	}
}

// readSubmission decodes a JSON or url-encoded body and puts the raw bytes back on r
func readSubmission(r *http.Request, maxBodyBytes int64) (validator.Body, error) {
	if r.Body == nil {
		return nil, errors.New("empty body")
	}

	reader := io.Reader(r.Body)
	if maxBodyBytes > 0 {
		reader = io.LimitReader(r.Body, maxBodyBytes+1)
	}
	data, err := io.ReadAll(reader)
	r.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}
	if maxBodyBytes > 0 && int64(len(data)) > maxBodyBytes {
		return nil, fmt.Errorf("body exceeds %d bytes", maxBodyBytes)
	}
	r.Body = io.NopCloser(bytes.NewReader(data))

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/x-www-form-urlencoded" {
		values, err := url.ParseQuery(string(data))
		if err != nil {
			return nil, fmt.Errorf("failed to parse form: %w", err)
		}
		return validator.ParseForm(values), nil
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return validator.Body{}, nil
	}
	return validator.DecodeJSON(data)
}
