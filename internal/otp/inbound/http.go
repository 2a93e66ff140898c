package inbound

import (
	"context"
	"net/http"

	"github.com/shandysiswandi/otpguard/internal/otp/usecase"
	"github.com/shandysiswandi/otpguard/internal/pkg/router"
)

type uc interface {
	Issue(ctx context.Context, in usecase.IssueInput) (*usecase.IssueOutput, error)
	Verify(ctx context.Context, in usecase.VerifyInput) (*usecase.VerifyOutput, error)
	LoginPassword(ctx context.Context, in usecase.LoginPasswordInput) (*usecase.LoginPasswordOutput, error)
	ResetPassword(ctx context.Context, in usecase.ResetPasswordInput) (*usecase.ResetPasswordOutput, error)

	AccountStatus(ctx context.Context, in usecase.AccountStatusInput) (*usecase.AccountStatusOutput, error)
	UnlockAccount(ctx context.Context, in usecase.UnlockAccountInput) error
}

func RegisterHTTPEndpoint(r *router.Router, uc uc, reaper *Reaper, enforcer router.Enforcer) {
	end := &HTTPEndpoint{uc: uc, reaper: reaper}

	// Codes
	r.Public(http.MethodPost, "/api/v1/otp/issue")
	r.Public(http.MethodPost, "/api/v1/otp/verify")
	r.POST("/api/v1/otp/issue", end.Issue)
	r.POST("/api/v1/otp/verify", end.Verify)

	// Password
	r.Public(http.MethodPost, "/api/v1/otp/password/login")
	r.Public(http.MethodPost, "/api/v1/otp/password/reset")
	r.POST("/api/v1/otp/password/login", end.PasswordLogin)
	r.POST("/api/v1/otp/password/reset", end.PasswordReset)

	// Admin (need authenticated & authorization)
	admin := router.Authorize(enforcer)
	r.GET("/api/v1/otp/admin/accounts/:email", end.AccountStatus, admin)
	r.POST("/api/v1/otp/admin/accounts/:email/unlock", end.UnlockAccount, admin)
	r.POST("/api/v1/otp/admin/sweep", end.Sweep, admin)
}
