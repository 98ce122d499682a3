package action

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatInstant(t *testing.T) {
	berlin := time.FixedZone("CET", 3600)
	at := time.Date(2024, 1, 2, 4, 0, 0, 123456789, berlin)

	assert.Equal(t, "2024-01-02T03:00:00.123Z", FormatInstant(at))
	assert.Equal(t, "2024-01-02T03:00:00.000Z", FormatInstant(time.Date(2024, 1, 2, 3, 0, 0, 0, time.UTC)))
}

func TestParseRunAt(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*3600)
	want := time.Date(2024, 1, 2, 1, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		value string
	}{
		{"datetime-local", "2024-01-02T03:00"},
		{"datetime-local with seconds", "2024-01-02T03:00:00"},
		{"space separated", "2024-01-02 03:00"},
		{"space separated with seconds", " 2024-01-02 03:00:00 "},
		{"RFC 3339 with offset", "2024-01-02T01:00:00Z"},
		{"RFC 3339 nano", "2024-01-02T03:00:00.000+02:00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRunAt(tt.value, loc)
			require.NoError(t, err)
			assert.True(t, want.Equal(got), "got %s", got)
		})
	}
}

func TestParseRunAt_Invalid(t *testing.T) {
	for _, value := range []string{"", "   ", "tomorrow", "2024-13-45T99:00", "02/01/2024 03:00"} {
		t.Run(value, func(t *testing.T) {
			_, err := ParseRunAt(value, time.UTC)
			require.Error(t, err)
			assert.True(t, IsValidationError(err))
		})
	}
}

func TestParseRunAt_NilLocationIsLocal(t *testing.T) {
	got, err := ParseRunAt("2024-01-02T03:00", nil)
	require.NoError(t, err)
	assert.Equal(t, time.Local, got.Location())
}

func TestParseParams(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []any
	}{
		{"empty", "", []any{}},
		{"plain words", "alpha beta", []any{"alpha", "beta"}},
		{"json scalars", "42 true null 1.5", []any{float64(42), true, nil, 1.5}},
		{"quoted word with space", `"hello world" x`, []any{"hello world", "x"}},
		{"json object", `'{"region":"eu"}'`, []any{map[string]any{"region": "eu"}}},
		{"json array", `'[1,2]'`, []any{[]any{float64(1), float64(2)}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseParams(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseParams_UnbalancedQuote(t *testing.T) {
	_, err := ParseParams(`"unterminated`)
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
}
