package inbound

import (
	"fmt"
	"strconv"
	"time"

	"github.com/shandysiswandi/otpguard/internal/otp/entity"
	"github.com/shandysiswandi/otpguard/internal/pkg/goerror"
)

func seconds(d time.Duration) string {
	return strconv.FormatInt(int64((d+time.Second-1)/time.Second), 10)
}

// resultError turns a non-success outcome into the error the router renders.
// invalidMsg replaces the default message for InvalidCode.
func resultError(res entity.Result, retryAfter time.Duration, tokenID int64, invalidMsg string) error {
	switch res {
	case entity.ResultSuccess, entity.ResultAccepted:
		return nil
	case entity.ResultInvalidCode:
		if invalidMsg == "" {
			invalidMsg = "Invalid or expired code"
		}
		return goerror.NewBusiness(invalidMsg, goerror.CodeUnauthorized)
	case entity.ResultExpired:
		return goerror.NewBusiness("Code has expired, request a new one", goerror.CodeGone)
	case entity.ResultAlreadyUsed:
		return goerror.NewBusiness("Code has already been used", goerror.CodeConflict)
	case entity.ResultLockedOut:
		return goerror.NewBusinessWithFields("Account is temporarily locked", goerror.CodeLocked,
			"retry_after_seconds", seconds(retryAfter))
	case entity.ResultDeliveryFailed:
		return goerror.NewBusinessWithFields("Code could not be delivered, try again later", goerror.CodeBadGateway,
			"token_id", strconv.FormatInt(tokenID, 10))
	default:
		return goerror.NewServer(fmt.Errorf("unexpected otp result %s", res))
	}
}
