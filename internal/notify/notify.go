// Package notify delivers push notifications to customer, restaurant,
// and courier devices through an FCM-style HTTP sender.
package notify

import (
	"context"
	"errors"
)

// ErrInvalidToken marks a device token the sender reports as dead.
// Callers clear the stored token so the device re-registers.
var ErrInvalidToken = errors.New("device token is no longer valid")

// Notification is one push message.
type Notification struct {
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
}

// BatchResult summarizes a fanout send.
type BatchResult struct {
	SuccessCount  int
	FailureCount  int
	InvalidTokens []string
}

// Sender is the push surface the services depend on.
// Satisfied by *HTTPSender; mocked in tests.
type Sender interface {
	SendToToken(ctx context.Context, token string, n Notification) error
	SendToTokens(ctx context.Context, tokens []string, n Notification) (BatchResult, error)
}
