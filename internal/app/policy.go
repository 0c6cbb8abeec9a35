package app

import (
	"context"

	"github.com/dkeye/Relay/internal/auth"
	"github.com/dkeye/Relay/internal/config"
	"github.com/dkeye/Relay/internal/domain"
	"github.com/rs/zerolog/log"
)

type Decision int

const (
	Admitted Decision = iota
	UnauthenticatedAdmitted
	Rejected
)

// Reason explains a rejection. The values are stable identifiers; Message
// gives the text sent to the client.
type Reason string

const (
	ReasonAuthFailed   Reason = "authentication_failed"
	ReasonUnknownError Reason = "unknown_error"
	ReasonAuthRequired Reason = "authentication_required"
)

func (r Reason) Message() string {
	switch r {
	case ReasonAuthFailed:
		return "authentication failed"
	case ReasonUnknownError:
		return "unknown error"
	case ReasonAuthRequired:
		return "authentication required"
	default:
		return string(r)
	}
}

// Outcome is computed once per connection attempt.
type Outcome struct {
	Decision Decision
	Room     domain.RoomName
	Reason   Reason
}

func (o Outcome) Rejected() bool { return o.Decision == Rejected }

// Rooms is the initial membership of an admitted connection.
func (o Outcome) Rooms() []domain.RoomName {
	if o.Decision != Admitted || o.Room == "" {
		return nil
	}
	return []domain.RoomName{o.Room}
}

type Policy interface {
	Decide(ctx context.Context, sid domain.ConnID, creds domain.Credentials) Outcome
}

// AdmissionPolicy decides whether a connection attempt is admitted and into
// which room. Verifier is nil when no auth endpoint is configured.
type AdmissionPolicy struct {
	Verifier    auth.Verifier
	CookieAuth  bool
	AllowUnauth bool
	Fallback    bool
}

func NewAdmissionPolicy(cfg *config.Config) *AdmissionPolicy {
	p := &AdmissionPolicy{
		CookieAuth:  cfg.AuthCookie,
		AllowUnauth: cfg.AllowUnauth,
		Fallback:    cfg.UnauthFallback,
	}
	if cfg.AuthEndpoint != "" {
		p.Verifier = auth.NewHTTPVerifier(cfg.AuthEndpoint, cfg.AuthTimeout)
	}
	return p
}

func (p *AdmissionPolicy) Decide(ctx context.Context, sid domain.ConnID, creds domain.Credentials) Outcome {
	logger := log.With().Str("module", "app.policy").Str("sid", string(sid)).Logger()

	if !p.CookieAuth {
		creds.Cookie = ""
	}

	if p.Verifier != nil && (creds.HasToken() || p.CookieAuth) {
		res := p.Verifier.Verify(ctx, creds)
		switch res.Kind {
		case auth.Verified:
			logger.Debug().Str("room", string(res.Room)).Msg("connection authenticated")
			return Outcome{Decision: Admitted, Room: res.Room}
		case auth.AuthFailed:
			if !p.Fallback {
				logger.Debug().Err(res.Err).Msg("authentication failed")
				return Outcome{Decision: Rejected, Reason: ReasonAuthFailed}
			}
			logger.Debug().Err(res.Err).Msg("authentication failed, trying unauthenticated")
		default:
			logger.Debug().Err(res.Err).Msg("unknown error during authentication")
			return Outcome{Decision: Rejected, Reason: ReasonUnknownError}
		}
	}

	if p.AllowUnauth {
		logger.Debug().Msg("unauthenticated connection")
		return Outcome{Decision: UnauthenticatedAdmitted}
	}
	logger.Debug().Msg("unauthenticated connection rejected")
	return Outcome{Decision: Rejected, Reason: ReasonAuthRequired}
}
