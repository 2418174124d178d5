// SPDX-License-Identifier: MIT

package slack

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func sign(secret, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "v0:%s:", timestamp)
	mac.Write(body)
	return "v0=" + hex.EncodeToString(mac.Sum(nil))
}

func TestVerifySignature(t *testing.T) {
	secret := "8f742231b10e8888abcd99yyyzzz85a5"
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	body := []byte(`{"type":"event_callback"}`)
	ts := strconv.FormatInt(now.Unix(), 10)

	tests := []struct {
		name      string
		timestamp string
		signature string
		body      []byte
		want      bool
	}{
		{
			name:      "valid",
			timestamp: ts,
			signature: sign(secret, ts, body),
			body:      body,
			want:      true,
		},
		{
			name:      "wrong secret",
			timestamp: ts,
			signature: sign("other-secret", ts, body),
			body:      body,
			want:      false,
		},
		{
			name:      "tampered body",
			timestamp: ts,
			signature: sign(secret, ts, body),
			body:      []byte(`{"type":"forged"}`),
			want:      false,
		},
		{
			name:      "stale timestamp",
			timestamp: strconv.FormatInt(now.Add(-6*time.Minute).Unix(), 10),
			signature: sign(secret, strconv.FormatInt(now.Add(-6*time.Minute).Unix(), 10), body),
			body:      body,
			want:      false,
		},
		{
			name:      "future timestamp",
			timestamp: strconv.FormatInt(now.Add(6*time.Minute).Unix(), 10),
			signature: sign(secret, strconv.FormatInt(now.Add(6*time.Minute).Unix(), 10), body),
			body:      body,
			want:      false,
		},
		{
			name:      "garbage timestamp",
			timestamp: "not-a-number",
			signature: sign(secret, "not-a-number", body),
			body:      body,
			want:      false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := VerifySignature(secret, tt.timestamp, tt.signature, tt.body, now)
			assert.Equal(t, tt.want, got)
		})
	}
}
