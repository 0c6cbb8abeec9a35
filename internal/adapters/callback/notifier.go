// Package callback posts acknowledgement aggregates to the configured
// collaborator endpoint. Delivery is best effort.
package callback

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/dkeye/Relay/internal/domain"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
)

var (
	ErrStatus   = errors.New("unexpected callback status")
	errRejected = errors.New("callback rejected")
)

const defaultRetryWindow = 2 * time.Second

type Notifier struct {
	endpoint    string
	secret      string
	client      *http.Client
	cb          *gobreaker.CircuitBreaker
	retryWindow time.Duration
}

func NewNotifier(endpoint, secret string, timeout time.Duration) *Notifier {
	st := gobreaker.Settings{
		Name:        "ack-callback",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Warn().Str("module", "callback").Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state")
		},
	}
	return &Notifier{
		endpoint:    endpoint,
		secret:      secret,
		client:      &http.Client{Timeout: timeout},
		cb:          gobreaker.NewCircuitBreaker(st),
		retryWindow: defaultRetryWindow,
	}
}

// Notify posts the aggregate. Failures are logged and never returned.
func (n *Notifier) Notify(ctx context.Context, acks []domain.Ack) {
	if acks == nil {
		acks = []domain.Ack{}
	}
	body, err := json.Marshal(acks)
	if err != nil {
		log.Error().Err(err).Str("module", "callback").Msg("marshal acknowledgements")
		return
	}

	operation := func() error {
		_, err := n.cb.Execute(func() (interface{}, error) {
			return nil, n.post(ctx, body)
		})
		switch {
		case err == nil:
			return nil
		case errors.Is(err, errRejected),
			errors.Is(err, gobreaker.ErrOpenState),
			errors.Is(err, gobreaker.ErrTooManyRequests):
			return backoff.Permanent(err)
		}
		return err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxElapsedTime = n.retryWindow
	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		log.Warn().Err(err).Str("module", "callback").Str("endpoint", n.endpoint).Int("acks", len(acks)).Msg("callback delivery failed")
		return
	}
	log.Debug().Str("module", "callback").Int("acks", len(acks)).Msg("callback delivered")
}

func (n *Notifier) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, bytes.NewReader(body))
	if err != nil {
		return backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if n.secret != "" {
		req.Header.Set("Authorization", "Bearer "+n.secret)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return fmt.Errorf("%w: %w %d", errRejected, ErrStatus, resp.StatusCode)
	default:
		return fmt.Errorf("%w %d", ErrStatus, resp.StatusCode)
	}
}
