// Package archive writes swept tokens to object storage as JSON lines.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strconv"
	"time"

	"github.com/shandysiswandi/otpguard/internal/otp/entity"
	"github.com/shandysiswandi/otpguard/internal/pkg/instrument"
	"github.com/shandysiswandi/otpguard/internal/pkg/storage"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// record is one archived token. The digest is never written.
type record struct {
	ID        int64      `json:"id,string"`
	Subject   string     `json:"subject"`
	Purpose   string     `json:"purpose"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt time.Time  `json:"expires_at"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
	Origin    string     `json:"origin,omitempty"`
}

type Archive struct {
	store  storage.Storage
	ins    instrument.Instrumentation
	bucket string
	prefix string
}

func New(store storage.Storage, ins instrument.Instrumentation, bucket, prefix string) *Archive {
	return &Archive{store: store, ins: ins, bucket: bucket, prefix: prefix}
}

// Archive uploads tokens as one object keyed by sweep date and first token id.
func (a *Archive) Archive(ctx context.Context, tokens []entity.Token, sweptAt time.Time) error {
	if len(tokens) == 0 {
		return nil
	}

	ctx, span := a.ins.Tracer("otp.outbound.archive").Start(ctx, "Archive")
	defer span.End()

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, t := range tokens {
		if err := enc.Encode(record{
			ID:        t.ID,
			Subject:   t.Subject,
			Purpose:   t.Purpose.String(),
			CreatedAt: t.CreatedAt,
			ExpiresAt: t.ExpiresAt,
			UsedAt:    t.UsedAt,
			RevokedAt: t.RevokedAt,
			Origin:    t.Origin,
		}); err != nil {
			span.RecordError(err)
			return err
		}
	}

	key := a.key(tokens[0].ID, sweptAt)
	span.SetAttributes(attribute.String("archive.key", key), attribute.Int("archive.count", len(tokens)))

	size := int64(buf.Len())
	if _, err := a.store.PutObject(ctx, a.bucket, key, &buf, storage.PutOptions{
		Size:        size,
		ContentType: "application/x-ndjson",
		Metadata:    map[string]string{"records": strconv.Itoa(len(tokens))},
	}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("archive: put %s: %w", key, err)
	}

	return nil
}

func (a *Archive) key(firstID int64, at time.Time) string {
	at = at.UTC()
	return path.Join(a.prefix, at.Format("2006/01/02"), at.Format("150405")+"-"+strconv.FormatInt(firstID, 10)+".jsonl")
}
