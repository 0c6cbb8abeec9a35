// Package auth talks to the external authentication endpoint that decides
// which room a connecting client belongs to.
package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dkeye/Relay/internal/domain"
)

// Kind classifies a verification attempt.
type Kind int

const (
	Verified Kind = iota
	// AuthFailed means the endpoint answered non-2xx or could not be reached.
	AuthFailed
	// UnknownError covers everything else: bad response bodies, bad requests.
	UnknownError
)

func (k Kind) String() string {
	switch k {
	case Verified:
		return "verified"
	case AuthFailed:
		return "auth_failed"
	case UnknownError:
		return "unknown_error"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

var (
	ErrStatus        = errors.New("auth endpoint rejected credentials")
	ErrEmptyRoom     = errors.New("auth endpoint returned an empty room")
	ErrMalformedRoom = errors.New("auth endpoint returned a malformed room")
)

const maxBody = 64 << 10

// Result is the tagged outcome of one verification call.
type Result struct {
	Kind Kind
	Room domain.RoomName
	Err  error
}

type Verifier interface {
	Verify(ctx context.Context, creds domain.Credentials) Result
}

// HTTPVerifier performs a single GET per call; it never retries.
type HTTPVerifier struct {
	endpoint string
	client   *http.Client
}

func NewHTTPVerifier(endpoint string, timeout time.Duration) *HTTPVerifier {
	return &HTTPVerifier{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

func (v *HTTPVerifier) Verify(ctx context.Context, creds domain.Credentials) Result {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.endpoint, nil)
	if err != nil {
		return Result{Kind: UnknownError, Err: fmt.Errorf("build auth request: %w", err)}
	}
	if creds.Token != "" {
		req.Header.Set("Authorization", "Bearer "+creds.Token)
	}
	if creds.Cookie != "" {
		req.Header.Set("Cookie", creds.Cookie)
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return Result{Kind: AuthFailed, Err: fmt.Errorf("auth request: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return Result{Kind: AuthFailed, Err: fmt.Errorf("read auth response: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Result{Kind: AuthFailed, Err: fmt.Errorf("%w: status %d", ErrStatus, resp.StatusCode)}
	}

	room, err := roomFromBody(body)
	if err != nil {
		return Result{Kind: UnknownError, Err: err}
	}
	return Result{Kind: Verified, Room: room}
}

// roomFromBody accepts either a JSON string or plain text.
func roomFromBody(body []byte) (domain.RoomName, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return "", ErrEmptyRoom
	}
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return "", fmt.Errorf("%w: %v", ErrMalformedRoom, err)
		}
		if s == "" {
			return "", ErrEmptyRoom
		}
		return domain.RoomName(s), nil
	case '{', '[':
		return "", ErrMalformedRoom
	}
	return domain.RoomName(trimmed), nil
}
