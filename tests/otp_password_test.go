package tests

import (
	"net/http"
	"strings"
	"testing"
)

func TestPasswordLogin_UnknownEmail(t *testing.T) {

	// Arrange
	payload := map[string]string{
		"email":    uniqueEmail("real-nopass"),
		"password": "Secret123!",
	}

	// Act
	status, _ := doJSON(t, http.MethodPost, "/api/v1/otp/password/login", payload, "")

	// Assert
	if status != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", status)
	}
}

func TestPasswordReset_UnknownTicket(t *testing.T) {

	// Arrange
	payload := map[string]string{
		"email":        uniqueEmail("real-reset"),
		"ticket":       strings.Repeat("ab", 32),
		"new_password": "N3w-Secret-Phrase",
	}

	// Act
	status, _ := doJSON(t, http.MethodPost, "/api/v1/otp/password/reset", payload, "")

	// Assert
	if status != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", status)
	}
}

func TestAdmin_RequiresToken(t *testing.T) {

	// Act
	status, _ := doJSON(t, http.MethodPost, "/api/v1/otp/admin/sweep", nil, "")

	// Assert
	if status != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", status)
	}
}
