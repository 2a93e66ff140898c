package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Email       string `json:"email" validate:"required,email"`
	NewPassword string `json:"new_password" validate:"required,password"`
	RetryCount  int    `validate:"gte=0,lte=3"`
}

func TestV10Validator_Validate(t *testing.T) {
	v, err := NewV10Validator()
	require.NoError(t, err)

	tests := []struct {
		name   string
		input  sample
		fields []string
	}{
		{name: "valid", input: sample{Email: "alice@example.com", NewPassword: "correct horse"}},
		{name: "bad email", input: sample{Email: "alice", NewPassword: "correct horse"}, fields: []string{"email"}},
		{name: "short password", input: sample{Email: "a@b.co", NewPassword: "short"}, fields: []string{"new_password"}},
		{name: "snake fallback", input: sample{Email: "a@b.co", NewPassword: "correct horse", RetryCount: 9}, fields: []string{"retry_count"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.input)
			if len(tt.fields) == 0 {
				assert.NoError(t, err)
				return
			}

			var verr V10ValidationError
			require.ErrorAs(t, err, &verr)
			for _, f := range tt.fields {
				assert.Contains(t, verr.Values(), f)
			}
		})
	}
}

func TestV10Validator_PasswordMessage(t *testing.T) {
	v, err := NewV10Validator()
	require.NoError(t, err)

	err = v.Validate(sample{Email: "a@b.co", NewPassword: "1234567"})

	var verr V10ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "new_password must be at least 8 characters and at most 72 bytes", verr["new_password"])
}
