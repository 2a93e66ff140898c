package archive

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/shandysiswandi/otpguard/internal/otp/entity"
	"github.com/shandysiswandi/otpguard/internal/pkg/instrument"
	"github.com/shandysiswandi/otpguard/internal/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type putCall struct {
	bucket string
	key    string
	body   []byte
	opts   storage.PutOptions
}

type fakeStorage struct {
	calls []putCall
	err   error
}

func (f *fakeStorage) PutObject(_ context.Context, bucket, key string, r io.Reader, opts storage.PutOptions) (storage.ObjectInfo, error) {
	if f.err != nil {
		return storage.ObjectInfo{}, f.err
	}
	body, err := io.ReadAll(r)
	if err != nil {
		return storage.ObjectInfo{}, err
	}
	f.calls = append(f.calls, putCall{bucket: bucket, key: key, body: body, opts: opts})
	return storage.ObjectInfo{Bucket: bucket, Key: key, Size: int64(len(body))}, nil
}

func (*fakeStorage) Close() error { return nil }

func TestArchive(t *testing.T) {
	// Arrange
	store := &fakeStorage{}
	a := New(store, instrument.NewNoop(), "otp-archive", "tokens")
	created := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	used := created.Add(time.Minute)
	tokens := []entity.Token{
		{ID: 11, Subject: "a@example.com", Purpose: entity.PurposeLogin, CodeDigest: "secret-digest", CreatedAt: created, ExpiresAt: created.Add(10 * time.Minute), UsedAt: &used, Origin: "203.0.113.7"},
		{ID: 12, Subject: "b@example.com", Purpose: entity.PurposeRegistration, CreatedAt: created, ExpiresAt: created.Add(15 * time.Minute)},
	}

	// Act
	err := a.Archive(context.Background(), tokens, time.Date(2026, 3, 1, 10, 30, 5, 0, time.UTC))

	// Assert
	require.NoError(t, err)
	require.Len(t, store.calls, 1)
	call := store.calls[0]
	assert.Equal(t, "otp-archive", call.bucket)
	assert.Equal(t, "tokens/2026/03/01/103005-11.jsonl", call.key)
	assert.Equal(t, int64(len(call.body)), call.opts.Size)
	assert.Equal(t, "2", call.opts.Metadata["records"])
	assert.NotContains(t, string(call.body), "secret-digest")

	var lines []map[string]any
	sc := bufio.NewScanner(bytes.NewReader(call.body))
	for sc.Scan() {
		var m map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &m))
		lines = append(lines, m)
	}
	require.Len(t, lines, 2)
	assert.Equal(t, "11", lines[0]["id"])
	assert.Equal(t, "login", lines[0]["purpose"])
	assert.NotContains(t, lines[1], "used_at")
}

func TestArchive_Empty(t *testing.T) {
	store := &fakeStorage{}
	a := New(store, instrument.NewNoop(), "b", "")

	require.NoError(t, a.Archive(context.Background(), nil, time.Now()))
	assert.Empty(t, store.calls)
}

func TestArchive_PutError(t *testing.T) {
	store := &fakeStorage{err: errors.New("AccessDenied")}
	a := New(store, instrument.NewNoop(), "b", "p")

	err := a.Archive(context.Background(), []entity.Token{{ID: 1}}, time.Now())

	assert.ErrorContains(t, err, "AccessDenied")
}
