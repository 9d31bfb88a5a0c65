// Package providererr maps HTTP-level failures of AI providers onto the
// domain errors the core degrades on.
package providererr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/custodia-labs/recall/internal/core/domain"
)

// maxBodyInError caps how many runes of a response body are echoed into
// errors.
const maxBodyInError = 512

// quotaMarkers appear in provider error bodies when the account is out of
// quota even though the status is not 429.
var quotaMarkers = []string{
	"insufficient_quota",
	"quota exceeded",
	"rate_limit",
	"credit balance is too low",
}

// FromStatus returns nil for 2xx responses and a classified error otherwise.
//
//   - 429, or a body carrying a quota marker: domain.ErrQuotaExceeded
//   - 5xx (including Anthropic's 529 overloaded): domain.ErrProviderUnavailable
//   - anything else: a plain error carrying the status and body
func FromStatus(provider string, status int, body []byte) error {
	if status >= 200 && status < 300 {
		return nil
	}

	msg := strings.TrimSpace(string(body))
	if r := []rune(msg); len(r) > maxBodyInError {
		msg = string(r[:maxBodyInError]) + "..."
	}

	switch {
	case status == http.StatusTooManyRequests || hasQuotaMarker(msg):
		return fmt.Errorf("%s: %w (status %d): %s", provider, domain.ErrQuotaExceeded, status, msg)
	case status >= 500:
		return fmt.Errorf("%s: %w (status %d): %s", provider, domain.ErrProviderUnavailable, status, msg)
	default:
		return fmt.Errorf("%s: API returned status %d: %s", provider, status, msg)
	}
}

// FromTransport classifies an error from http.Client.Do. Cancellation of
// the caller's context is returned as the context error so that callers
// can tell it apart from an outage.
func FromTransport(ctx context.Context, provider string, err error) error {
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%s: %w: %v", provider, domain.ErrProviderUnavailable, err)
}

func hasQuotaMarker(msg string) bool {
	lower := strings.ToLower(msg)
	for _, m := range quotaMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}
