package tests

import (
	"fmt"
	"net/http"
	"testing"
	"time"
)

// wrongCode is well formed but never issued: generated codes come from a
// uniform draw and the suite uses a fresh email per test.
const wrongCode = "000000"

func uniqueEmail(prefix string) string {
	return fmt.Sprintf("%s-%d@example.com", prefix, time.Now().UnixNano())
}

// issue requests a code and accepts a delivery failure, which still stores
// the token and creates the registration account.
func issue(t *testing.T, email, purpose string) int {
	t.Helper()

	status, body := doJSON(t, http.MethodPost, "/api/v1/otp/issue", map[string]string{
		"email":   email,
		"purpose": purpose,
	}, "")
	if status != http.StatusOK && status != http.StatusBadGateway {
		errEnv := decodeError(t, body)
		t.Fatalf("issue failed: status=%d message=%q", status, errEnv.Message)
	}

	return status
}

func verify(t *testing.T, email, purpose, code string) (int, errorEnvelope) {
	t.Helper()

	status, body := doJSON(t, http.MethodPost, "/api/v1/otp/verify", map[string]string{
		"email":   email,
		"purpose": purpose,
		"code":    code,
	}, "")
	if status == http.StatusOK {
		return status, errorEnvelope{}
	}

	return status, decodeError(t, body)
}
