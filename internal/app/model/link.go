package model

import (
	"encoding/json"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Link is a short link as returned by the backend. The backend owns it; the
// dashboard only reads it and sends whole replacements.
type Link struct {
	ID        string          `json:"id"`
	Content   string          `json:"content"`
	QRInfo    json.RawMessage `json:"qrinfo,omitempty"`
	Clicks    int64           `json:"clicks"`
	CreatedAt Timestamp       `json:"createdAt"`
	UpdatedAt Timestamp       `json:"updatedAt"`
}

// ShortURL joins the public base with the link id.
func ShortURL(base, id string) string {
	return strings.TrimRight(base, "/") + "/" + id
}

// ValidateLinkID rejects slugs the backend cannot route. Empty is allowed and
// means "let the backend pick one".
func ValidateLinkID(id string) error {
	if strings.Contains(id, "/") {
		return NewValidationError("linkid", `linkid cannot include "/"`)
	}
	return nil
}

// ValidateContent requires an absolute http(s) URL.
func ValidateContent(content string) error {
	u, err := url.Parse(strings.TrimSpace(content))
	if err != nil || !u.IsAbs() || u.Host == "" {
		return NewValidationError("content", "invalid URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return NewValidationError("content", "URL must start with http:// or https://")
	}
	return nil
}

// Timestamp accepts RFC 3339 strings and epoch milliseconds, the two shapes
// the backend has used for createdAt/updatedAt.
type Timestamp struct {
	time.Time
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" || s == `""` {
		t.Time = time.Time{}
		return nil
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		t.Time = time.UnixMilli(ms).UTC()
		return nil
	}
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	if ms, err := strconv.ParseInt(str, 10, 64); err == nil {
		t.Time = time.UnixMilli(ms).UTC()
		return nil
	}
	parsed, err := time.Parse(time.RFC3339Nano, str)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Time.UTC().Format(time.RFC3339Nano))
}
