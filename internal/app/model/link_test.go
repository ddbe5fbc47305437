package model

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateLinkID(t *testing.T) {
	assert.NoError(t, ValidateLinkID("a-b"))
	assert.NoError(t, ValidateLinkID(""))

	err := ValidateLinkID("a/b")
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "linkid", verr.Field)
}

func TestValidateContent(t *testing.T) {
	tests := []struct {
		content string
		ok      bool
	}{
		{"https://x.com", true},
		{"http://example.com/page?q=1", true},
		{"ftp://x", false},
		{"x.com", false},
		{"", false},
		{"https://", false},
		{"javascript:alert(1)", false},
	}

	for _, tt := range tests {
		t.Run(tt.content, func(t *testing.T) {
			err := ValidateContent(tt.content)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			var verr *ValidationError
			assert.True(t, errors.As(err, &verr))
		})
	}
}

func TestShortURL(t *testing.T) {
	assert.Equal(t, "https://s.example/abc", ShortURL("https://s.example/", "abc"))
}

func TestTimestamp_UnmarshalJSON(t *testing.T) {
	var l Link
	err := json.Unmarshal([]byte(`{"id":"a","createdAt":1700000000000,"updatedAt":"2024-01-02T03:04:05Z"}`), &l)
	require.NoError(t, err)
	assert.True(t, time.UnixMilli(1700000000000).Equal(l.CreatedAt.Time))
	assert.True(t, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC).Equal(l.UpdatedAt.Time))

	var empty Link
	require.NoError(t, json.Unmarshal([]byte(`{"id":"b","createdAt":null}`), &empty))
	assert.True(t, empty.CreatedAt.IsZero())
}

func TestSession_ValidAt(t *testing.T) {
	now := time.Now()
	assert.True(t, Session{Token: "t", ExpiresAt: now.Add(time.Minute).UnixMilli()}.ValidAt(now))
	assert.False(t, Session{Token: "t", ExpiresAt: now.Add(-time.Minute).UnixMilli()}.ValidAt(now))
	assert.False(t, Session{Token: "t", ExpiresAt: now.UnixMilli()}.ValidAt(now))
	assert.False(t, Session{ExpiresAt: now.Add(time.Minute).UnixMilli()}.ValidAt(now))
}
