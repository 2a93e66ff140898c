package tests

import (
	"net/http"
	"testing"
)

func TestIssue_LoginUnknownEmailIsGeneric(t *testing.T) {

	// Arrange
	payload := map[string]string{
		"email":   uniqueEmail("real-unknown"),
		"purpose": "login",
	}

	// Act
	status, body := doJSON(t, http.MethodPost, "/api/v1/otp/issue", payload, "")

	// Assert
	if status != http.StatusOK {
		errEnv := decodeError(t, body)
		t.Fatalf("issue failed: status=%d message=%q", status, errEnv.Message)
	}
	env := decodeSuccess(t, body, nil)
	if env.Message != "If an account with that email exists, a code has been sent." {
		t.Fatalf("unexpected message %q", env.Message)
	}
}

func TestIssue_InvalidPurpose(t *testing.T) {

	// Arrange
	payload := map[string]string{
		"email":   uniqueEmail("real-purpose"),
		"purpose": "password_change",
	}

	// Act
	status, body := doJSON(t, http.MethodPost, "/api/v1/otp/issue", payload, "")

	// Assert
	if status != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", status)
	}
	if errEnv := decodeError(t, body); errEnv.Error["purpose"] == "" {
		t.Fatalf("expected purpose field error, got %v", errEnv.Error)
	}
}

func TestIssue_ResendCooldown(t *testing.T) {

	// Arrange
	email := uniqueEmail("real-cooldown")
	issue(t, email, "registration")

	// Act
	status, body := doJSON(t, http.MethodPost, "/api/v1/otp/issue", map[string]string{
		"email":   email,
		"purpose": "registration",
	}, "")

	// Assert
	if status != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", status)
	}
	if errEnv := decodeError(t, body); errEnv.Error["retry_after_seconds"] == "" {
		t.Fatal("missing retry_after_seconds")
	}
}
