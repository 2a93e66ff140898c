package inbound

import (
	"context"

	"github.com/shandysiswandi/otpguard/internal/notification/usecase"
)

type uc interface {
	ConsumeAccountVerified(ctx context.Context, in usecase.ConsumeAccountVerifiedInput) error
	ConsumeAccountLocked(ctx context.Context, in usecase.ConsumeAccountLockedInput) error
}
