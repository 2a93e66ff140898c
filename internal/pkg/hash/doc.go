// Package hash provides helpers for hashing and verifying secrets.
//
// Store only the digest, then verify user input by comparing the plaintext
// against it. HMACSHA256 covers one-time codes and tickets; Bcrypt and Argon2id
// cover passwords and are selected with NewPassword.
package hash
