package inbound

import (
	"github.com/shandysiswandi/otpguard/internal/otp/entity"
	"github.com/shandysiswandi/otpguard/internal/otp/usecase"
	"github.com/shandysiswandi/otpguard/internal/pkg/jwt"
	"github.com/shandysiswandi/otpguard/internal/pkg/router"
)

// HTTPEndpoint exposes the one-time code, password and account security handlers.
type HTTPEndpoint struct {
	uc     uc
	reaper *Reaper
}

// Issue sends a fresh code and invalidates any earlier one.
// @Summary Issue a one-time code
// @Description Generates a code for the purpose and emails it. For login and password_reset the response is the same whether or not the email is known.
// @Tags OTP
// @Accept json
// @Produce json
// @Param request body IssueRequest true "Issue payload"
// @Success 200 {object} router.successResponse{data=IssueResponse} "Code sent"
// @Failure 400 {object} router.errorResponse "Invalid request body"
// @Failure 409 {object} router.errorResponse "Account already verified"
// @Failure 422 {object} router.errorResponse "Validation error"
// @Failure 423 {object} router.errorResponse "Account locked" example:{"message":"Account is temporarily locked","error":{"retry_after_seconds":"3540"}}
// @Failure 429 {object} router.errorResponse "Resend cooldown"
// @Failure 502 {object} router.errorResponse "Delivery failed"
// @Failure 503 {object} router.errorResponse "Store unavailable"
// @Router /api/v1/otp/issue [post]
func (h *HTTPEndpoint) Issue(r *router.Request) (any, error) {
	var req IssueRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	out, err := h.uc.Issue(r.Context(), usecase.IssueInput{
		Email:     req.Email,
		Purpose:   req.Purpose,
		Origin:    r.ClientIP(),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		return nil, err
	}
	if err := resultError(out.Result, out.RetryAfter, out.TokenID, ""); err != nil {
		return nil, err
	}

	if entity.ParsePurpose(req.Purpose) != entity.PurposeRegistration {
		return IssueResponse{generic: true}, nil
	}
	return IssueResponse{ExpiresAt: &out.ExpiresAt}, nil
}

// Verify checks a code and applies its purpose.
// @Summary Verify a one-time code
// @Description Registration marks the email verified and may set a first password. Login returns an access token. Password reset returns a single-use ticket for /password/reset.
// @Tags OTP
// @Accept json
// @Produce json
// @Param request body VerifyRequest true "Verify payload"
// @Success 200 {object} router.successResponse{data=VerifyResponse} "Verified"
// @Failure 401 {object} router.errorResponse "Invalid or expired code"
// @Failure 409 {object} router.errorResponse "Code already used"
// @Failure 410 {object} router.errorResponse "Code expired"
// @Failure 422 {object} router.errorResponse "Validation error"
// @Failure 423 {object} router.errorResponse "Account locked"
// @Failure 503 {object} router.errorResponse "Store unavailable"
// @Router /api/v1/otp/verify [post]
func (h *HTTPEndpoint) Verify(r *router.Request) (any, error) {
	var req VerifyRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	out, err := h.uc.Verify(r.Context(), usecase.VerifyInput{
		Email:    req.Email,
		Purpose:  req.Purpose,
		Code:     req.Code,
		Password: req.Password,
		Origin:   r.ClientIP(),
	})
	if err != nil {
		return nil, err
	}
	if err := resultError(out.Result, out.RetryAfter, 0, ""); err != nil {
		return nil, err
	}

	switch entity.ParsePurpose(req.Purpose) {
	case entity.PurposeLogin:
		return VerifyResponse{
			AccessToken: out.AccessToken,
			TokenType:   "Bearer",
			ExpiresIn:   int64(out.ExpiresIn.Seconds()),
			message:     "Signed in.",
		}, nil
	case entity.PurposePasswordReset:
		return VerifyResponse{
			ResetTicket:     out.ResetTicket,
			TicketExpiresAt: &out.TicketExpiresAt,
			message:         "Code accepted, choose a new password.",
		}, nil
	default:
		return VerifyResponse{message: "Email verified."}, nil
	}
}

// PasswordLogin signs in with email and password.
// @Summary Sign in with password
// @Tags OTP, Password
// @Accept json
// @Produce json
// @Param request body PasswordLoginRequest true "Login payload"
// @Success 200 {object} router.successResponse{data=PasswordLoginResponse} "Signed in"
// @Failure 401 {object} router.errorResponse "Invalid email or password"
// @Failure 403 {object} router.errorResponse "Email not verified"
// @Failure 423 {object} router.errorResponse "Account locked"
// @Router /api/v1/otp/password/login [post]
func (h *HTTPEndpoint) PasswordLogin(r *router.Request) (any, error) {
	var req PasswordLoginRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	out, err := h.uc.LoginPassword(r.Context(), usecase.LoginPasswordInput{
		Email:    req.Email,
		Password: req.Password,
		Origin:   r.ClientIP(),
	})
	if err != nil {
		return nil, err
	}
	if err := resultError(out.Result, out.RetryAfter, 0, "Invalid email or password"); err != nil {
		return nil, err
	}

	return PasswordLoginResponse{
		AccessToken: out.AccessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int64(out.ExpiresIn.Seconds()),
	}, nil
}

// PasswordReset spends a reset ticket to set a new password.
// @Summary Set a new password
// @Tags OTP, Password
// @Accept json
// @Produce json
// @Param request body PasswordResetRequest true "Reset payload"
// @Success 200 {object} router.successResponse{data=PasswordResetResponse} "Password changed"
// @Failure 401 {object} router.errorResponse "Invalid ticket"
// @Failure 409 {object} router.errorResponse "Ticket already used"
// @Failure 410 {object} router.errorResponse "Ticket expired"
// @Failure 423 {object} router.errorResponse "Account locked"
// @Router /api/v1/otp/password/reset [post]
func (h *HTTPEndpoint) PasswordReset(r *router.Request) (any, error) {
	var req PasswordResetRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	out, err := h.uc.ResetPassword(r.Context(), usecase.ResetPasswordInput{
		Email:       req.Email,
		Ticket:      req.Ticket,
		NewPassword: req.NewPassword,
		Origin:      r.ClientIP(),
	})
	if err != nil {
		return nil, err
	}
	if err := resultError(out.Result, out.RetryAfter, 0, "Invalid reset ticket"); err != nil {
		return nil, err
	}

	return PasswordResetResponse{}, nil
}

// AccountStatus reports the security state of an account.
// @Summary Account security status
// @Tags OTP, Admin
// @Produce json
// @Security BearerAuth
// @Param email path string true "Account email"
// @Success 200 {object} router.successResponse{data=AccountStatusResponse} "Account status"
// @Failure 403 {object} router.errorResponse "Access denied"
// @Failure 404 {object} router.errorResponse "Account not found"
// @Router /api/v1/otp/admin/accounts/{email} [get]
func (h *HTTPEndpoint) AccountStatus(r *router.Request) (any, error) {
	out, err := h.uc.AccountStatus(r.Context(), usecase.AccountStatusInput{Email: r.GetParam("email")})
	if err != nil {
		return nil, err
	}

	return AccountStatusResponse{
		ID:                out.ID,
		Email:             out.Email,
		Verified:          out.Verified,
		HasPassword:       out.HasPassword,
		FailedAttempts:    out.FailedAttempts,
		Locked:            out.Locked,
		LockedUntil:       out.LockedUntil,
		RetryAfterSeconds: int64(out.RetryAfter.Seconds()),
	}, nil
}

// UnlockAccount clears the lock and failure counter of an account.
// @Summary Unlock an account
// @Tags OTP, Admin
// @Produce json
// @Security BearerAuth
// @Param email path string true "Account email"
// @Success 200 {object} router.successResponse{data=UnlockAccountResponse} "Unlocked"
// @Failure 403 {object} router.errorResponse "Access denied"
// @Failure 404 {object} router.errorResponse "Account not found"
// @Router /api/v1/otp/admin/accounts/{email}/unlock [post]
func (h *HTTPEndpoint) UnlockAccount(r *router.Request) (any, error) {
	var actor string
	if clm := jwt.GetAuth(r.Context()); clm != nil {
		actor = clm.UserEmail
	}

	if err := h.uc.UnlockAccount(r.Context(), usecase.UnlockAccountInput{
		Email:      r.GetParam("email"),
		ActorEmail: actor,
	}); err != nil {
		return nil, err
	}

	return UnlockAccountResponse{}, nil
}

// Sweep runs the expired token reaper now.
// @Summary Run the reaper
// @Tags OTP, Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} router.successResponse{data=SweepResponse} "Sweep stats"
// @Failure 409 {object} router.errorResponse "Sweep already running"
// @Router /api/v1/otp/admin/sweep [post]
func (h *HTTPEndpoint) Sweep(r *router.Request) (any, error) {
	out, err := h.reaper.Run(r.Context())
	if err != nil {
		return nil, err
	}

	return SweepResponse{
		TokensRemoved: out.TokensRemoved,
		LocksCleared:  out.LocksCleared,
		Archived:      out.Archived,
	}, nil
}
