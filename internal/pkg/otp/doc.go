// Package otp generates short numeric one-time passcodes.
//
// Codes are drawn digit by digit from crypto/rand with rejection sampling, so
// every code of the configured length is equally likely and nothing about a
// code can be predicted from earlier ones.
package otp
