package mail

import (
	"context"
	"io"
)

// Message is a provider-agnostic email payload.
type Message struct {
	// From overrides the sender configured on the implementation.
	From     string
	To       []string
	Subject  string
	TextBody string
	// HTMLBody is sent as an alternative part when not empty.
	HTMLBody string
}

// Mail sends messages.
type Mail interface {
	io.Closer
	Send(ctx context.Context, msg Message) error
}
