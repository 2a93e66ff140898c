package inbound

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shandysiswandi/otpguard/internal/otp/entity"
	"github.com/shandysiswandi/otpguard/internal/otp/usecase"
	"github.com/shandysiswandi/otpguard/internal/pkg/jwt"
	"github.com/shandysiswandi/otpguard/internal/pkg/router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedID string

func (f fixedID) Generate() string { return string(f) }

type allowEmails []string

func (a allowEmails) Enforce(rvals ...any) (bool, error) {
	for _, e := range a {
		if rvals[0] == e {
			return true, nil
		}
	}
	return false, nil
}

type fakeUC struct {
	issue    *usecase.IssueOutput
	verify   *usecase.VerifyOutput
	login    *usecase.LoginPasswordOutput
	reset    *usecase.ResetPasswordOutput
	status   *usecase.AccountStatusOutput
	err      error
	gotIssue usecase.IssueInput
	unlocked usecase.UnlockAccountInput
}

func (f *fakeUC) Issue(_ context.Context, in usecase.IssueInput) (*usecase.IssueOutput, error) {
	f.gotIssue = in
	return f.issue, f.err
}

func (f *fakeUC) Verify(context.Context, usecase.VerifyInput) (*usecase.VerifyOutput, error) {
	return f.verify, f.err
}

func (f *fakeUC) LoginPassword(context.Context, usecase.LoginPasswordInput) (*usecase.LoginPasswordOutput, error) {
	return f.login, f.err
}

func (f *fakeUC) ResetPassword(context.Context, usecase.ResetPasswordInput) (*usecase.ResetPasswordOutput, error) {
	return f.reset, f.err
}

func (f *fakeUC) AccountStatus(context.Context, usecase.AccountStatusInput) (*usecase.AccountStatusOutput, error) {
	return f.status, f.err
}

func (f *fakeUC) UnlockAccount(_ context.Context, in usecase.UnlockAccountInput) error {
	f.unlocked = in
	return f.err
}

type fakeSweeper struct{ out *usecase.SweepOutput }

func (f fakeSweeper) Sweep(context.Context) (*usecase.SweepOutput, error) { return f.out, nil }

func newTestServer(t *testing.T, uc *fakeUC) (*router.Router, jwt.JWT) {
	t.Helper()

	j, err := jwt.NewHS512(jwt.Config{
		Secret: []byte(strings.Repeat("k", 64)),
		Issuer: "otpguard-test",
		TTL:    time.Minute,
		UUID:   fixedID("jti"),
	})
	require.NoError(t, err)

	r := router.NewRouter(router.Config{UUID: fixedID("cid"), JWT: j})
	reaper := NewReaper(fakeSweeper{out: &usecase.SweepOutput{TokensRemoved: 3, LocksCleared: 1}})
	RegisterHTTPEndpoint(r, uc, reaper, allowEmails{"admin@example.com"})
	return r, j
}

func do(t *testing.T, h http.Handler, method, path string, body any, token string) (int, map[string]any) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "otp-test/1")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	out := map[string]any{}
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec.Code, out
}

func TestIssue_GenericForLogin(t *testing.T) {
	for _, res := range []entity.Result{entity.ResultSuccess, entity.ResultAccepted} {
		t.Run(res.String(), func(t *testing.T) {
			// Arrange
			uc := &fakeUC{issue: &usecase.IssueOutput{Result: res, TokenID: 42, ExpiresAt: time.Now(), Code: "123456"}}
			srv, _ := newTestServer(t, uc)

			// Act
			code, body := do(t, srv, http.MethodPost, "/api/v1/otp/issue", IssueRequest{Email: "a@example.com", Purpose: "login"}, "")

			// Assert
			assert.Equal(t, http.StatusOK, code)
			assert.Equal(t, "If an account with that email exists, a code has been sent.", body["message"])
			assert.Equal(t, map[string]any{}, body["data"])
			assert.Equal(t, "otp-test/1", uc.gotIssue.UserAgent)
			assert.NotEmpty(t, uc.gotIssue.Origin)
		})
	}
}

func TestIssue_NeverReturnsCode(t *testing.T) {
	uc := &fakeUC{issue: &usecase.IssueOutput{Result: entity.ResultSuccess, ExpiresAt: time.Now(), Code: "123456"}}
	srv, _ := newTestServer(t, uc)

	code, body := do(t, srv, http.MethodPost, "/api/v1/otp/issue", IssueRequest{Email: "a@example.com", Purpose: "registration"}, "")

	assert.Equal(t, http.StatusOK, code)
	raw, _ := json.Marshal(body)
	assert.NotContains(t, string(raw), "123456")
	assert.Contains(t, body["data"], "expires_at")
}

func TestVerify_ResultStatus(t *testing.T) {
	tests := []struct {
		result  entity.Result
		status  int
		message string
		field   string
	}{
		{result: entity.ResultInvalidCode, status: http.StatusUnauthorized, message: "Invalid or expired code"},
		{result: entity.ResultExpired, status: http.StatusGone, message: "Code has expired, request a new one"},
		{result: entity.ResultAlreadyUsed, status: http.StatusConflict, message: "Code has already been used"},
		{result: entity.ResultLockedOut, status: http.StatusLocked, message: "Account is temporarily locked", field: "retry_after_seconds"},
	}

	for _, tt := range tests {
		t.Run(tt.result.String(), func(t *testing.T) {
			uc := &fakeUC{verify: &usecase.VerifyOutput{Result: tt.result, RetryAfter: 90 * time.Second}}
			srv, _ := newTestServer(t, uc)

			code, body := do(t, srv, http.MethodPost, "/api/v1/otp/verify",
				VerifyRequest{Email: "a@example.com", Purpose: "login", Code: "123456"}, "")

			assert.Equal(t, tt.status, code)
			assert.Equal(t, tt.message, body["message"])
			if tt.field != "" {
				assert.Equal(t, "90", body["error"].(map[string]any)[tt.field])
			}
		})
	}
}

func TestVerify_LoginSession(t *testing.T) {
	uc := &fakeUC{verify: &usecase.VerifyOutput{Result: entity.ResultSuccess, AccessToken: "tok", ExpiresIn: 15 * time.Minute}}
	srv, _ := newTestServer(t, uc)

	code, body := do(t, srv, http.MethodPost, "/api/v1/otp/verify",
		VerifyRequest{Email: "a@example.com", Purpose: "login", Code: "123456"}, "")

	require.Equal(t, http.StatusOK, code)
	data := body["data"].(map[string]any)
	assert.Equal(t, "tok", data["access_token"])
	assert.Equal(t, "Bearer", data["token_type"])
	assert.InDelta(t, 900, data["expires_in"], 0)
}

func TestIssue_DeliveryFailed(t *testing.T) {
	uc := &fakeUC{issue: &usecase.IssueOutput{Result: entity.ResultDeliveryFailed, TokenID: 77}}
	srv, _ := newTestServer(t, uc)

	code, body := do(t, srv, http.MethodPost, "/api/v1/otp/issue", IssueRequest{Email: "a@example.com", Purpose: "registration"}, "")

	assert.Equal(t, http.StatusBadGateway, code)
	assert.Equal(t, "77", body["error"].(map[string]any)["token_id"])
}

func TestPasswordLogin_InvalidMessage(t *testing.T) {
	uc := &fakeUC{login: &usecase.LoginPasswordOutput{Result: entity.ResultInvalidCode}}
	srv, _ := newTestServer(t, uc)

	code, body := do(t, srv, http.MethodPost, "/api/v1/otp/password/login", PasswordLoginRequest{Email: "a@example.com", Password: "x"}, "")

	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "Invalid email or password", body["message"])
}

func TestAdmin_Authorization(t *testing.T) {
	// Arrange
	uc := &fakeUC{status: &usecase.AccountStatusOutput{ID: 5, Email: "zoe@example.com", FailedAttempts: 2}}
	srv, j := newTestServer(t, uc)
	admin, err := j.Generate(1, "admin@example.com")
	require.NoError(t, err)
	user, err := j.Generate(2, "user@example.com")
	require.NoError(t, err)

	// Act
	anonCode, _ := do(t, srv, http.MethodGet, "/api/v1/otp/admin/accounts/zoe@example.com", nil, "")
	userCode, _ := do(t, srv, http.MethodGet, "/api/v1/otp/admin/accounts/zoe@example.com", nil, user)
	adminCode, body := do(t, srv, http.MethodGet, "/api/v1/otp/admin/accounts/zoe@example.com", nil, admin)

	// Assert
	assert.Equal(t, http.StatusUnauthorized, anonCode)
	assert.Equal(t, http.StatusForbidden, userCode)
	require.Equal(t, http.StatusOK, adminCode)
	assert.Equal(t, "5", body["data"].(map[string]any)["id"])
}

func TestAdmin_UnlockAndSweep(t *testing.T) {
	uc := &fakeUC{}
	srv, j := newTestServer(t, uc)
	admin, err := j.Generate(1, "admin@example.com")
	require.NoError(t, err)

	unlockCode, _ := do(t, srv, http.MethodPost, "/api/v1/otp/admin/accounts/zoe@example.com/unlock", nil, admin)
	sweepCode, body := do(t, srv, http.MethodPost, "/api/v1/otp/admin/sweep", nil, admin)

	assert.Equal(t, http.StatusOK, unlockCode)
	assert.Equal(t, "zoe@example.com", uc.unlocked.Email)
	assert.Equal(t, "admin@example.com", uc.unlocked.ActorEmail)
	assert.Equal(t, http.StatusOK, sweepCode)
	assert.InDelta(t, 3, body["data"].(map[string]any)["tokens_removed"], 0)
}
