package scanner

import (
	"encoding/json"
	"strings"
)

// Payload is what a camera frame or manual entry resolved to. Exactly one of
// Token/Code is set.
type Payload struct {
	Token string
	Code  string
}

// ParsePayload routes a raw QR payload. Displayed passes carry a JSON
// envelope {"token": "..."}; older clients show the bare token string, and
// anything that isn't JSON is treated as a manual-entry code.
func ParsePayload(raw string) Payload {
	trimmed := strings.TrimSpace(raw)

	if strings.HasPrefix(trimmed, "{") {
		var envelope struct {
			Token string `json:"token"`
		}
		if err := json.Unmarshal([]byte(trimmed), &envelope); err == nil && envelope.Token != "" {
			return Payload{Token: envelope.Token}
		}
	}

	// Bare JWTs are three dot-separated segments; treat those as tokens so
	// an unwrapped pass still takes the verified path.
	if strings.Count(trimmed, ".") == 2 && !strings.Contains(trimmed, " ") {
		return Payload{Token: trimmed}
	}

	return Payload{Code: trimmed}
}
