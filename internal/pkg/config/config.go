package config

import (
	"io"
	"time"
)

// TimeConfig defines helpers for retrieving time-based configuration values.
type TimeConfig interface {
	// GetSecond retrieves the value associated with key as a number of seconds.
	// Missing or non-numeric values yield zero.
	GetSecond(key string) time.Duration

	// GetMinute retrieves the value associated with key as a number of minutes.
	// Missing or non-numeric values yield zero.
	GetMinute(key string) time.Duration

	// GetHour retrieves the value associated with key as a number of hours.
	// Missing or non-numeric values yield zero.
	GetHour(key string) time.Duration
}

// NumberConfig defines helpers for retrieving numeric configuration values.
type NumberConfig interface {
	// GetInt retrieves the value associated with key as an int.
	GetInt(key string) int

	// GetInt32 retrieves the value associated with key as an int32.
	GetInt32(key string) int32

	// GetUint16 retrieves the value associated with key as a uint16.
	GetUint16(key string) uint16

	// GetFloat64 retrieves the value associated with key as a float64.
	GetFloat64(key string) float64
}

// Config defines a set of methods for retrieving configuration values of various types.
// Implementations handle retrieval and type conversion, returning zero values
// for keys that are not set.
type Config interface {
	io.Closer
	TimeConfig
	NumberConfig

	// IsSet reports whether key has a value in any configuration source.
	IsSet(key string) bool

	// GetBool retrieves the value associated with key as a bool.
	GetBool(key string) bool

	// GetString retrieves the value associated with key as a string.
	GetString(key string) string

	// GetBinary retrieves the value associated with key decoded from base64.
	GetBinary(key string) []byte

	// GetArray retrieves the value associated with key as a slice of strings.
	// Both YAML sequences and comma separated strings (<e1>,<e2>,...) are accepted,
	// the latter being the only form available from environment variables.
	GetArray(key string) []string
}
