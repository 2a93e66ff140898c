// Package mail sends email. Callers depend on the Mail interface; SMTP is
// the provided implementation.
package mail
