package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// HTTPSender posts messages to the push relay one token at a time.
type HTTPSender struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPSender creates a sender against the relay at baseURL.
func NewHTTPSender(baseURL, apiKey string) *HTTPSender {
	return &HTTPSender{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// SendToToken delivers one message. A relay response naming the token
// as unregistered maps to ErrInvalidToken.
func (s *HTTPSender) SendToToken(ctx context.Context, token string, n Notification) error {
	payload, err := json.Marshal(map[string]any{
		"token":        token,
		"notification": n,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v1/send", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send push: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return ErrInvalidToken
	default:
		return fmt.Errorf("send push: relay status %d", resp.StatusCode)
	}
}

// SendToTokens fans a message out to many tokens, collecting dead ones
// instead of failing the batch.
func (s *HTTPSender) SendToTokens(ctx context.Context, tokens []string, n Notification) (BatchResult, error) {
	var result BatchResult
	for _, token := range tokens {
		err := s.SendToToken(ctx, token, n)
		switch {
		case err == nil:
			result.SuccessCount++
		case ctx.Err() != nil:
			return result, ctx.Err()
		default:
			result.FailureCount++
			if err == ErrInvalidToken {
				result.InvalidTokens = append(result.InvalidTokens, token)
			}
		}
	}
	return result, nil
}
