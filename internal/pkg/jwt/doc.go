// Package jwt issues and verifies the HS512 access tokens that represent an
// authenticated session, and carries verified claims through a context.
package jwt
