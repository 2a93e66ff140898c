package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/shandysiswandi/otpguard/internal/otp/entity"
	"github.com/shandysiswandi/otpguard/internal/pkg/clock"
	"github.com/shandysiswandi/otpguard/internal/pkg/config"
	"github.com/shandysiswandi/otpguard/internal/pkg/goerror"
	"github.com/shandysiswandi/otpguard/internal/pkg/hash"
	"github.com/shandysiswandi/otpguard/internal/pkg/idempotency"
	"github.com/shandysiswandi/otpguard/internal/pkg/instrument"
	"github.com/shandysiswandi/otpguard/internal/pkg/jwt"
	"github.com/shandysiswandi/otpguard/internal/pkg/uid"
	"github.com/shandysiswandi/otpguard/internal/pkg/validator"
	"github.com/stretchr/testify/require"
)

const testConfig = `
modules:
  otp:
    max_failed_attempts: 5
    lockout_minutes: 60
    retention_grace_minutes: 60
    password_change_minutes: 15
    resend_cooldown_seconds: 60
    expiry_minutes:
      registration: 15
      login: 10
      password_reset: 15
    reaper:
      batch_size: 2
`

// memStore keeps the same conditional-update contracts as the postgres store.
type memStore struct {
	mu       sync.Mutex
	accounts map[string]*entity.Account
	tokens   []*entity.Token
	err      error
	verified int
}

func newMemStore() *memStore {
	return &memStore{accounts: map[string]*entity.Account{}}
}

func (m *memStore) byID(id int64) *entity.Account {
	for _, a := range m.accounts {
		if a.ID == id {
			return a
		}
	}
	return nil
}

func (m *memStore) ReplaceToken(_ context.Context, in entity.NewToken, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}

	for _, t := range m.tokens {
		if t.Subject == in.Subject && t.Purpose == in.Purpose && t.UsedAt == nil && t.RevokedAt == nil {
			t.RevokedAt = &now
		}
	}
	m.tokens = append(m.tokens, &entity.Token{
		ID:         in.ID,
		Subject:    in.Subject,
		Purpose:    in.Purpose,
		CodeDigest: in.CodeDigest,
		CreatedAt:  now,
		ExpiresAt:  in.ExpiresAt,
		Origin:     in.Origin,
		Metadata:   in.Metadata,
	})
	return nil
}

func (m *memStore) GetCurrentToken(_ context.Context, subject string, p entity.Purpose) (*entity.Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}

	for _, t := range slices.Backward(m.tokens) {
		if t.Subject == subject && t.Purpose == p && t.RevokedAt == nil {
			cp := *t
			return &cp, nil
		}
	}
	return nil, goerror.ErrNotFound
}

func (m *memStore) ConsumeToken(_ context.Context, tokenID, accountID int64, now time.Time) (entity.Consumption, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return entity.Consumption{}, m.err
	}

	a := m.byID(accountID)
	if a != nil && a.LockedUntil != nil && now.Before(*a.LockedUntil) {
		until := *a.LockedUntil
		return entity.Consumption{LockedUntil: &until}, nil
	}

	for _, t := range m.tokens {
		if t.ID == tokenID && t.UsedAt == nil && t.RevokedAt == nil && !now.After(t.ExpiresAt) {
			t.UsedAt = &now
			if a != nil {
				a.FailedAttempts, a.LockedUntil = 0, nil
			}
			return entity.Consumption{Consumed: true}, nil
		}
	}
	return entity.Consumption{}, nil
}

func (m *memStore) DeleteExpiredTokens(_ context.Context, cutoff time.Time, limit int) ([]entity.Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}

	var out []entity.Token
	m.tokens = slices.DeleteFunc(m.tokens, func(t *entity.Token) bool {
		if len(out) >= limit || !t.ExpiresAt.Before(cutoff) {
			return false
		}
		cp := *t
		cp.CodeDigest = ""
		out = append(out, cp)
		return true
	})
	return out, nil
}

func (m *memStore) GetAccountByEmail(_ context.Context, email string) (*entity.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}

	a, ok := m.accounts[email]
	if !ok {
		return nil, goerror.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *memStore) EnsureAccount(_ context.Context, in entity.NewAccount, now time.Time) (*entity.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}

	a, ok := m.accounts[in.Email]
	if !ok {
		a = &entity.Account{ID: in.ID, Email: in.Email, CreatedAt: now, UpdatedAt: now}
		m.accounts[in.Email] = a
	}
	cp := *a
	return &cp, nil
}

func (m *memStore) UnlockExpired(_ context.Context, id int64, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}

	a := m.byID(id)
	if a == nil || a.LockedUntil == nil || now.Before(*a.LockedUntil) {
		return false, nil
	}
	a.FailedAttempts, a.LockedUntil = 0, nil
	return true, nil
}

func (m *memStore) RegisterFailure(_ context.Context, id int64, now time.Time, threshold int, lockUntil time.Time) (*entity.LockState, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, false, m.err
	}

	a := m.byID(id)
	if a == nil || (a.LockedUntil != nil && now.Before(*a.LockedUntil)) {
		return nil, false, nil
	}

	n := a.FailedAttempts + 1
	if a.LockedUntil != nil {
		n = 1
	}
	a.FailedAttempts, a.LockedUntil = n, nil
	if n >= threshold {
		a.LockedUntil = &lockUntil
	}
	return &entity.LockState{FailedAttempts: n, LockedUntil: a.LockedUntil, Locked: a.LockedUntil != nil}, true, nil
}

func (m *memStore) ResetFailures(_ context.Context, id int64, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}

	if a := m.byID(id); a != nil {
		a.FailedAttempts, a.LockedUntil = 0, nil
	}
	return nil
}

func (m *memStore) ResetFailuresIfOpen(_ context.Context, id int64, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}

	a := m.byID(id)
	if a == nil || (a.LockedUntil != nil && now.Before(*a.LockedUntil)) {
		return false, nil
	}
	a.FailedAttempts, a.LockedUntil = 0, nil
	return true, nil
}

func (m *memStore) MarkVerified(_ context.Context, id int64, _ time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}

	a := m.byID(id)
	if a == nil || a.Verified {
		return false, nil
	}
	a.Verified = true
	m.verified++
	return true, nil
}

func (m *memStore) UpdatePassword(_ context.Context, id int64, h string, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}

	if a := m.byID(id); a != nil {
		a.PasswordHash = h
	}
	return nil
}

func (m *memStore) ClearExpiredLocks(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}

	var n int64
	for _, a := range m.accounts {
		if a.LockedUntil != nil && !now.Before(*a.LockedUntil) {
			a.FailedAttempts, a.LockedUntil = 0, nil
			n++
		}
	}
	return n, nil
}

// account returns a snapshot of the stored row.
func (m *memStore) account(email string) *entity.Account {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *m.accounts[email]
	return &cp
}

func (m *memStore) fail(err error) {
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
}

// lockingStore locks email the first time the guarded path reads its token,
// or its account when onAccountRead is set. This is a wrong-code attempt
// from another request landing between the entry check and the success step.
type lockingStore struct {
	*memStore
	email         string
	clock         clock.Clocker
	onAccountRead bool
	once          sync.Once
}

func (l *lockingStore) lock() {
	l.once.Do(func() {
		acc, err := l.memStore.GetAccountByEmail(context.Background(), l.email)
		if err != nil {
			return
		}
		now := l.clock.Now()
		for range 5 {
			_, _, _ = l.memStore.RegisterFailure(context.Background(), acc.ID, now, 5, now.Add(time.Hour))
		}
	})
}

func (l *lockingStore) GetAccountByEmail(ctx context.Context, email string) (*entity.Account, error) {
	acc, err := l.memStore.GetAccountByEmail(ctx, email)
	if l.onAccountRead {
		l.lock()
	}
	return acc, err
}

func (l *lockingStore) GetCurrentToken(ctx context.Context, subject string, p entity.Purpose) (*entity.Token, error) {
	if !l.onAccountRead {
		l.lock()
	}
	return l.memStore.GetCurrentToken(ctx, subject, p)
}

// failingAfterConsume reports a token that was no longer live, then loses
// its connection before the follow-up read.
type failingAfterConsume struct {
	*memStore
}

func (f failingAfterConsume) ConsumeToken(context.Context, int64, int64, time.Time) (entity.Consumption, error) {
	f.fail(errors.New("connection reset by peer"))
	return entity.Consumption{}, nil
}

type sentCode struct {
	to      string
	code    string
	purpose entity.Purpose
}

type fakeDelivery struct {
	mu   sync.Mutex
	sent []sentCode
	err  error
}

func (f *fakeDelivery) Send(_ context.Context, to, code string, p entity.Purpose) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentCode{to: to, code: code, purpose: p})
	return nil
}

func (f *fakeDelivery) last() sentCode {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sent[len(f.sent)-1]
}

type fakeMessaging struct {
	mu       sync.Mutex
	verified []AccountVerifiedEvent
	locked   []AccountLockedEvent
}

func (f *fakeMessaging) PublishAccountVerified(_ context.Context, msg AccountVerifiedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.verified = append(f.verified, msg)
	return nil
}

func (f *fakeMessaging) PublishAccountLocked(_ context.Context, msg AccountLockedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.locked = append(f.locked, msg)
	return nil
}

type fakeArchive struct {
	batches [][]entity.Token
	err     error
}

func (f *fakeArchive) Archive(_ context.Context, tokens []entity.Token, _ time.Time) error {
	if f.err != nil {
		return f.err
	}
	f.batches = append(f.batches, tokens)
	return nil
}

// memTracker expires keys on the injected clock.
type memTracker struct {
	mu    sync.Mutex
	clock clock.Clocker
	keys  map[string]time.Time
	err   error
}

func (f *memTracker) Acquire(_ context.Context, key string, ttl time.Duration) (idempotency.State, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return idempotency.StateError, f.err
	}
	if exp, ok := f.keys[key]; ok && f.clock.Now().Before(exp) {
		return idempotency.StateInProgress, nil
	}
	f.keys[key] = f.clock.Now().Add(ttl)
	return idempotency.StateNone, nil
}

func (f *memTracker) Complete(_ context.Context, key string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys[key] = f.clock.Now().Add(ttl)
	return nil
}

func (f *memTracker) Release(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.keys, key)
	return nil
}

func (f *memTracker) Remaining(_ context.Context, key string) (time.Duration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.keys[key].Sub(f.clock.Now()), nil
}

// seqCode hands out 100001, 100002, ... so tests know every code in advance.
type seqCode struct {
	mu sync.Mutex
	n  int
}

func (s *seqCode) Generate() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return fmt.Sprintf("%06d", 100000+s.n), nil
}

func (*seqCode) Length() int { return 6 }

type seqID struct {
	mu sync.Mutex
	n  int64
}

func (s *seqID) Generate() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return s.n
}

type harness struct {
	uc        *Usecase
	store     *memStore
	delivery  *fakeDelivery
	messaging *fakeMessaging
	archive   *fakeArchive
	tracker   *memTracker
	clock     *clock.Manual
	jwt       jwt.JWT
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	cfg, err := config.NewViperFromBytes("yaml", []byte(testConfig))
	require.NoError(t, err)

	v, err := validator.NewV10Validator()
	require.NoError(t, err)

	hmac, err := hash.NewHMACSHA256("otp-test-secret")
	require.NoError(t, err)

	clk := clock.NewManual(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))

	sessions, err := jwt.NewHS512(jwt.Config{
		Secret:    bytes.Repeat([]byte("s"), 64),
		Issuer:    "otpguard",
		Audiences: []string{"otpguard-api"},
		TTL:       15 * time.Minute,
		Clock:     clk,
		UUID:      uid.NewUUID(),
	})
	require.NoError(t, err)

	h := &harness{
		store:     newMemStore(),
		delivery:  &fakeDelivery{},
		messaging: &fakeMessaging{},
		archive:   &fakeArchive{},
		tracker:   &memTracker{clock: clk, keys: map[string]time.Time{}},
		clock:     clk,
		jwt:       sessions,
	}
	h.uc = New(Dependency{
		RepoDB:        h.store,
		RepoMessaging: h.messaging,
		Delivery:      h.delivery,
		Archive:       h.archive,
		Idempotency:   h.tracker,
		Validator:     v,
		Config:        cfg,
		HMAC:          hmac,
		Password:      hash.NewBcrypt(4, "pepper"),
		Code:          &seqCode{},
		Ticket:        uid.NewSecureToken(32),
		UID:           &seqID{},
		Clock:         clk,
		JWT:           sessions,
		Instrument:    instrument.NewNoop(),
	})
	return h
}

func (h *harness) issue(t *testing.T, email string, p entity.Purpose) *IssueOutput {
	t.Helper()

	out, err := h.uc.Issue(context.Background(), IssueInput{Email: email, Purpose: p.String(), Origin: "203.0.113.7"})
	require.NoError(t, err)
	return out
}

func (h *harness) verify(t *testing.T, email string, p entity.Purpose, code string) *VerifyOutput {
	t.Helper()

	out, err := h.uc.Verify(context.Background(), VerifyInput{Email: email, Purpose: p.String(), Code: code, Origin: "203.0.113.7"})
	require.NoError(t, err)
	return out
}

// registered creates a verified account with a password.
func (h *harness) registered(t *testing.T, email, password string) {
	t.Helper()

	out := h.issue(t, email, entity.PurposeRegistration)
	_, err := h.uc.Verify(context.Background(), VerifyInput{
		Email:    email,
		Purpose:  entity.PurposeRegistration.String(),
		Code:     out.Code,
		Password: password,
	})
	require.NoError(t, err)
	h.clock.Advance(2 * time.Minute)
}
