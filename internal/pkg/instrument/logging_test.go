package instrument

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_MasksAndCorrelates(t *testing.T) {
	// Arrange
	var buf bytes.Buffer
	logger := NewLogger(&buf, "otpguard", nil, []string{"code", " Password "})
	ctx := SetCorrelationID(context.Background(), "cid-1")

	// Act
	logger.InfoContext(ctx, "verify attempt",
		"email", "alice@example.com",
		"code", "123456",
		"body", map[string]any{"password": "secret", "nested": map[string]any{"CODE": "1"}},
	)

	// Assert
	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "cid-1", rec["_cID"])
	assert.Equal(t, "otpguard", rec["service"])
	assert.Equal(t, "INFO", rec["severity"])
	assert.Contains(t, rec, "ts")
	assert.Equal(t, "alice@example.com", rec["email"])
	assert.Equal(t, "***", rec["code"])

	body := rec["body"].(map[string]any)
	assert.Equal(t, "***", body["password"])
	assert.Equal(t, "***", body["nested"].(map[string]any)["CODE"])
}

func TestNewLogger_MasksWithAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "otpguard", nil, []string{"ticket"}).With("ticket", "abc")

	logger.Info("reset")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "***", rec["ticket"])
}

func TestMasker(t *testing.T) {
	m := NewMasker([]string{"authorization", "", "code"})

	h := http.Header{}
	h.Set("Authorization", "Bearer x")
	h.Set("Accept", "application/json")
	out := m.Headers(h)
	assert.Equal(t, "***", out.Get("Authorization"))
	assert.Equal(t, "application/json", out.Get("Accept"))
	assert.Equal(t, "Bearer x", h.Get("Authorization"))

	v, ok := m.JSON([]byte(`[{"code":"1"},{"email":"a"}]`))
	require.True(t, ok)
	assert.Equal(t, []any{map[string]any{"code": "***"}, map[string]any{"email": "a"}}, v)

	_, ok = m.JSON([]byte("plain"))
	assert.False(t, ok)
}

func TestCorrelationID(t *testing.T) {
	assert.Empty(t, GetCorrelationID(context.Background()))
	assert.Equal(t, "x", GetCorrelationID(SetCorrelationID(context.Background(), "x")))
}
