// Package clock provides a tiny time abstraction.
//
// Code that compares against expiry or lock windows depends on Clocker rather
// than time.Now so tests can drive time with Manual.
package clock
