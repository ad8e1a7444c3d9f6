package lognorm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "empty input",
			input: "",
			want:  "",
		},
		{
			name:  "lowercases",
			input: "Connection REFUSED",
			want:  "connection refused",
		},
		{
			name:  "uuid placeholder",
			input: "request 550e8400-e29b-41d4-a716-446655440000 failed",
			want:  "request <uuid> failed",
		},
		{
			name:  "uppercase uuid placeholder",
			input: "request 550E8400-E29B-41D4-A716-446655440000 failed",
			want:  "request <uuid> failed",
		},
		{
			name:  "ip placeholder",
			input: "dial tcp 10.0.12.7: connection refused",
			want:  "dial tcp <ip>: connection refused",
		},
		{
			name:  "long hex id placeholder",
			input: "trace deadbeefdeadbeef0123 aborted",
			want:  "trace <hex_id> aborted",
		},
		{
			name:  "short hex untouched",
			input: "code deadbeef returned",
			want:  "code deadbeef returned",
		},
		{
			name:  "iso timestamp with T separator",
			input: "2024-01-15T10:30:45Z ERROR disk full",
			want:  "<timestamp> error disk full",
		},
		{
			name:  "iso timestamp with space separator and offset",
			input: "2024-01-15 10:30:45.123+02:00 worker crashed",
			want:  "<timestamp> worker crashed",
		},
		{
			name:  "unix epoch timestamp",
			input: "at 1705312245.123456 queue stalled",
			want:  "at <timestamp> queue stalled",
		},
		{
			name:  "whitespace collapsed and trimmed",
			input: "  too\t\tmany\n spaces  ",
			want:  "too many spaces",
		},
		{
			name:  "mixed volatile tokens",
			input: "2024-01-15T10:30:45Z [api] req 550e8400-e29b-41d4-a716-446655440000 from 192.168.1.10 failed",
			want:  "<timestamp> [api] req <uuid> from <ip> failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.input))
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	corpus := []string{
		"",
		"Connection refused",
		"2024-01-15T10:30:45Z ERROR [api] req 550e8400-e29b-41d4-a716-446655440000 failed",
		"dial tcp 10.0.12.7: i/o timeout at 1705312245.5",
		"trace deadbeefdeadbeefdeadbeef aborted\n  with   stack",
		"already normalized <uuid> at <ip> on <timestamp>",
	}

	for _, text := range corpus {
		once := Normalize(text)
		assert.Equal(t, once, Normalize(once), "normalize must be idempotent for %q", text)
	}
}

func TestExtractServiceName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "service equals marker",
			input: "service=payment-api request timed out",
			want:  "payment-api",
		},
		{
			name:  "service colon marker case insensitive",
			input: "SERVICE: Checkout failed to start",
			want:  "Checkout",
		},
		{
			name:  "service_name marker",
			input: "service_name: billing_worker crashed",
			want:  "billing_worker",
		},
		{
			name:  "bracketed tag keeps case",
			input: "2024-01-15 [Auth-Service] token expired",
			want:  "Auth-Service",
		},
		{
			name:  "angle bracket tag",
			input: "<scheduler> tick missed",
			want:  "scheduler",
		},
		{
			name:  "keyword qualified by preceding word",
			input: "payment api returned 502",
			want:  "payment-api",
		},
		{
			name:  "keyword as first word",
			input: "api returned 502",
			want:  "api",
		},
		{
			name:  "keyword priority over position",
			input: "auth api failed",
			want:  "auth-api",
		},
		{
			name:  "keyword requires exact word",
			input: "apis are degraded",
			want:  "unknown",
		},
		{
			name:  "no signal",
			input: "something unexpected happened",
			want:  "unknown",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractServiceName(tt.input))
		})
	}
}

func TestExtractErrorLevel(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "critical beats error regardless of position",
			input: "2024 CRITICAL disk full, ERROR downstream",
			want:  "CRITICAL",
		},
		{
			name:  "fatal maps to critical",
			input: "fatal signal received",
			want:  "CRITICAL",
		},
		{
			name:  "panic substring maps to critical",
			input: "goroutine panicked during shutdown",
			want:  "CRITICAL",
		},
		{
			name:  "error keyword",
			input: "ERROR: connection refused",
			want:  "ERROR",
		},
		{
			name:  "err abbreviation",
			input: "transport err: broken pipe",
			want:  "ERROR",
		},
		{
			name:  "error beats warn",
			input: "WARNING: previous ERROR resolved",
			want:  "ERROR",
		},
		{
			name:  "warning maps to warn",
			input: "warning: low disk space",
			want:  "WARN",
		},
		{
			name:  "debug",
			input: "debug: cache miss",
			want:  "DEBUG",
		},
		{
			name:  "info",
			input: "INFO server started",
			want:  "INFO",
		},
		{
			name:  "default is info",
			input: "all systems nominal",
			want:  "INFO",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractErrorLevel(tt.input))
		})
	}
}

func TestExtractErrorMessage(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		maxLength int
		want      string
	}{
		{
			name:      "strips timestamp and level prefixes",
			input:     "2024-01-15T10:30:45Z ERROR connection refused",
			maxLength: 500,
			want:      "connection refused",
		},
		{
			name:      "strips bracketed tag then level",
			input:     "[api] ERROR timeout talking to db",
			maxLength: 500,
			want:      "timeout talking to db",
		},
		{
			name:      "first line only",
			input:     "ERROR first line\nstack trace line 2\nstack trace line 3",
			maxLength: 500,
			want:      "first line",
		},
		{
			name:      "custom max length truncates with marker",
			input:     "abcdef",
			maxLength: 3,
			want:      "abc...",
		},
		{
			name:      "prefix-only input falls back to raw",
			input:     "[worker] ",
			maxLength: 500,
			want:      "[worker]",
		},
		{
			name:      "empty input",
			input:     "",
			maxLength: 500,
			want:      "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractErrorMessage(tt.input, tt.maxLength))
		})
	}
}

func TestExtractErrorMessage_DefaultMaxLength(t *testing.T) {
	long := strings.Repeat("x", DefaultMaxMessageLength+100)

	got := ExtractErrorMessage(long, 0)

	assert.Len(t, got, DefaultMaxMessageLength+len("..."))
	assert.True(t, strings.HasSuffix(got, "..."))
}
