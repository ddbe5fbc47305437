package model

import "time"

// SessionKey is the fixed key the session lives under in the KV store.
const SessionKey = "qr_session_v1"

// SessionTTL is fixed at issuance and never extended by use.
const SessionTTL = 24 * time.Hour

// Session is the stored login token.
type Session struct {
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expiresAt"` // epoch ms
}

// ValidAt reports whether the session is still usable at now.
func (s Session) ValidAt(now time.Time) bool {
	return s.Token != "" && now.UnixMilli() < s.ExpiresAt
}
