// Package validator validates request structs with go-playground/validator
// and reports failures as a map of snake_case field names to English messages.
package validator
