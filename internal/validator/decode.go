package validator

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"sort"
	"strconv"

	"github.com/FlooooowY/SteelMount-FormShield/internal/domain"
)

// DecodeJSON parses a JSON submission body
func DecodeJSON(data []byte) (Body, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var body Body
	if err := dec.Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode submission: %w", err)
	}
	if body == nil {
		body = Body{}
	}
	return body, nil
}

// ParseForm converts url-encoded values into a Body. Payload fields are
// coerced to the types a JSON client would send; form values stay strings.
func ParseForm(values url.Values) Body {
	body := make(Body, len(values))
	for key, vals := range values {
		if len(vals) == 0 {
			continue
		}
		if len(vals) > 1 && !domain.IsKnownField(key) {
			body[key] = append([]string(nil), vals...)
			continue
		}

		raw := vals[0]
		switch key {
		case domain.FieldFirstFocusTime, domain.FieldSubmissionTime:
			if n, err := strconv.ParseFloat(raw, 64); err == nil {
				body[key] = n
			} else if raw == "" || raw == "null" {
				body[key] = nil
			} else {
				body[key] = raw
			}
		case domain.FieldChallengeCompleted:
			if b, err := strconv.ParseBool(raw); err == nil {
				body[key] = b
			} else {
				body[key] = raw
			}
		case domain.FieldChallengeMetrics, domain.FieldAntiSpamSettings:
			var doc map[string]any
			if err := json.Unmarshal([]byte(raw), &doc); err == nil {
				body[key] = doc
			} else {
				body[key] = nil
			}
		default:
			body[key] = raw
		}
	}
	return body
}

// number reads a numeric value leniently: JSON numbers, Go numbers and
// numeric strings. Missing, null and non-numeric values are not numbers.
func number(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case nil:
		return 0, false
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case int32:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		s, ok := firstString(v)
		if !ok || s == "" {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// FormFields lists the submitted form values, without the anti-spam payload
func (b Body) FormFields() []string {
	fields := make([]string, 0, len(b))
	for k := range b {
		if !domain.IsKnownField(k) {
			fields = append(fields, k)
		}
	}
	sort.Strings(fields)
	return fields
}
