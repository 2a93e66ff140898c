package db

const (
	tokenColumns = `id, subject, purpose, code_digest, created_at, expires_at, used_at, revoked_at, origin, metadata`

	accountColumns = `id, email, password_hash, verified, failed_attempts, locked_until, created_at, updated_at`

	// Serializes writers of one (subject, purpose) so revoke-then-insert
	// never interleaves with another replace.
	lockSubjectPurpose = `SELECT pg_advisory_xact_lock(hashtext($1 || ':' || $2))`

	revokeLiveTokens = `
UPDATE otp_tokens SET revoked_at = $3
WHERE subject = $1 AND purpose = $2 AND used_at IS NULL AND revoked_at IS NULL`

	insertToken = `
INSERT INTO otp_tokens (id, subject, purpose, code_digest, created_at, expires_at, origin, metadata)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	getCurrentToken = `
SELECT ` + tokenColumns + `
FROM otp_tokens
WHERE subject = $1 AND purpose = $2 AND revoked_at IS NULL
ORDER BY id DESC
LIMIT 1`

	markTokenUsed = `
UPDATE otp_tokens SET used_at = $2
WHERE id = $1 AND used_at IS NULL AND revoked_at IS NULL AND expires_at >= $2`

	// Row lock shared with registerFailure, so a lock applied by a concurrent
	// failure is either seen here or waits for this consume to commit.
	lockAccountForConsume = `SELECT locked_until FROM otp_accounts WHERE id = $1 FOR UPDATE`

	// code_digest is blanked so swept rows never carry it out of the database.
	deleteExpiredTokens = `
DELETE FROM otp_tokens
WHERE id IN (
	SELECT id FROM otp_tokens
	WHERE expires_at < $1
	ORDER BY expires_at
	LIMIT $2
	FOR UPDATE SKIP LOCKED
)
RETURNING id, subject, purpose, '' AS code_digest, created_at, expires_at, used_at, revoked_at, origin, metadata`

	getAccountByEmail = `SELECT ` + accountColumns + ` FROM otp_accounts WHERE email = $1`

	insertAccountIfMissing = `
INSERT INTO otp_accounts (id, email, created_at, updated_at)
VALUES ($1, $2, $3, $3)
ON CONFLICT (email) DO NOTHING`

	unlockExpired = `
UPDATE otp_accounts SET failed_attempts = 0, locked_until = NULL, updated_at = $2
WHERE id = $1 AND locked_until IS NOT NULL AND locked_until <= $2`

	// Both CASE arms read the pre-update row, so the increment and the lock
	// decision come from the same snapshot. An elapsed lock restarts the count.
	registerFailure = `
UPDATE otp_accounts SET
	failed_attempts = CASE WHEN locked_until IS NULL THEN failed_attempts + 1 ELSE 1 END,
	locked_until = CASE
		WHEN (CASE WHEN locked_until IS NULL THEN failed_attempts + 1 ELSE 1 END) >= $3 THEN $4::timestamptz
		ELSE NULL
	END,
	updated_at = $2
WHERE id = $1 AND (locked_until IS NULL OR locked_until <= $2)
RETURNING failed_attempts, locked_until`

	resetFailures = `
UPDATE otp_accounts SET failed_attempts = 0, locked_until = NULL, updated_at = $2
WHERE id = $1`

	resetFailuresIfOpen = `
UPDATE otp_accounts SET failed_attempts = 0, locked_until = NULL, updated_at = $2
WHERE id = $1 AND (locked_until IS NULL OR locked_until <= $2)`

	markVerified = `
UPDATE otp_accounts SET verified = TRUE, updated_at = $2
WHERE id = $1 AND verified = FALSE`

	updatePassword = `
UPDATE otp_accounts SET password_hash = $2, updated_at = $3
WHERE id = $1`

	clearExpiredLocks = `
UPDATE otp_accounts SET failed_attempts = 0, locked_until = NULL, updated_at = $1
WHERE locked_until IS NOT NULL AND locked_until <= $1`
)
