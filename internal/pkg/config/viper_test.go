package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
modules:
  otp:
    code_length: 6
    lockout_minutes: 60
    resend_cooldown_seconds: 30
    expiry_minutes:
      login: 10
instrument:
  log_mask_fields: "password, code ,,ticket"
authorization:
  policies:
    - "p, role:admin, /api/v1/otp/admin/sweep, POST"
    - "g, admin@example.com, role:admin"
`

func TestNewViperFromBytes(t *testing.T) {
	// Arrange
	cfg, err := NewViperFromBytes("yaml", []byte(sample))
	require.NoError(t, err)

	// Act & Assert
	assert.Equal(t, 6, cfg.GetInt("modules.otp.code_length"))
	assert.Equal(t, time.Hour, cfg.GetMinute("modules.otp.lockout_minutes"))
	assert.Equal(t, 30*time.Second, cfg.GetSecond("modules.otp.resend_cooldown_seconds"))
	assert.Equal(t, 10*time.Minute, cfg.GetMinute("modules.otp.expiry_minutes.login"))
	assert.True(t, cfg.IsSet("modules.otp.expiry_minutes.login"))
	assert.False(t, cfg.IsSet("modules.otp.expiry_minutes.registration"))
	assert.Zero(t, cfg.GetMinute("modules.otp.expiry_minutes.registration"))
}

func TestViper_GetArray(t *testing.T) {
	cfg, err := NewViperFromBytes("yaml", []byte(sample))
	require.NoError(t, err)

	assert.Equal(t, []string{"password", "code", "ticket"}, cfg.GetArray("instrument.log_mask_fields"))
	assert.Equal(t, []string{
		"p, role:admin, /api/v1/otp/admin/sweep, POST",
		"g, admin@example.com, role:admin",
	}, cfg.GetArray("authorization.policies"))
	assert.Nil(t, cfg.GetArray("missing.key"))
}

func TestViper_EnvOverride(t *testing.T) {
	t.Setenv("MODULES_OTP_CODE_LENGTH", "8")

	cfg, err := NewViperFromBytes("yaml", []byte(sample))
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.GetInt("modules.otp.code_length"))
}

func TestNewViperFromBytes_RequiresType(t *testing.T) {
	_, err := NewViperFromBytes(" ", nil)
	assert.ErrorIs(t, err, ErrConfigTypeRequired)
}
