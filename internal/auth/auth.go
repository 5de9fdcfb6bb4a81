package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ErrUnauthorized is returned for a missing or invalid credential.
var ErrUnauthorized = errors.New("invalid or missing credential")

// Verifier validates a bearer credential.
type Verifier interface {
	Verify(ctx context.Context, token string) error
}

// StaticVerifier compares the credential against a configured secret in
// constant time.
type StaticVerifier struct {
	secret string
}

func NewStaticVerifier(secret string) *StaticVerifier {
	return &StaticVerifier{secret: secret}
}

func (v *StaticVerifier) Verify(_ context.Context, token string) error {
	if v.secret == "" || token == "" {
		return ErrUnauthorized
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(v.secret)) != 1 {
		return ErrUnauthorized
	}
	return nil
}

// RemoteVerifier validates the credential against an identity provider's
// userinfo endpoint: a 2xx response accepts it, a 4xx rejects it, and
// anything else is a verification failure distinct from rejection.
type RemoteVerifier struct {
	url        string
	httpClient *http.Client
}

func NewRemoteVerifier(url string) *RemoteVerifier {
	return &RemoteVerifier{
		url:        url,
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
}

func (v *RemoteVerifier) Verify(ctx context.Context, token string) error {
	if token == "" {
		return ErrUnauthorized
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("identity provider unreachable: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return ErrUnauthorized
	default:
		return fmt.Errorf("identity provider returned status %d", resp.StatusCode)
	}
}

// BearerToken extracts the credential from an Authorization header.
func BearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
