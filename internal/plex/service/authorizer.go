package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/railzwaylabs/plexsource/internal/clock"
	"github.com/railzwaylabs/plexsource/internal/config"
	"github.com/railzwaylabs/plexsource/internal/plex/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const windowTitle = "plex auth"

// Polling bounds used when neither bound is configured.
const (
	DefaultMaxAttempts = 300
	DefaultTimeout     = 5 * time.Minute
)

type AuthorizerParams struct {
	fx.In

	Config   config.Config
	Provider domain.Provider
	Clock    clock.Clock
	Log      *zap.Logger
}

// Authorizer runs the Plex PIN handshake: request a pin, present the
// approval URL, poll until approval or a stop condition.
type Authorizer struct {
	provider    domain.Provider
	clock       clock.Clock
	log         *zap.Logger
	interval    time.Duration
	maxAttempts int
	timeout     time.Duration
	window      domain.WindowSpec
}

func NewAuthorizer(p AuthorizerParams) *Authorizer {
	cfg := p.Config.Plex
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = time.Second
	}
	maxAttempts, timeout := cfg.MaxAttempts, cfg.Timeout
	if maxAttempts <= 0 && timeout <= 0 {
		maxAttempts, timeout = DefaultMaxAttempts, DefaultTimeout
	}
	return &Authorizer{
		provider:    p.Provider,
		clock:       p.Clock,
		log:         p.Log.Named("plex.authorizer"),
		interval:    interval,
		maxAttempts: maxAttempts,
		timeout:     timeout,
		window: domain.WindowSpec{
			Title:  windowTitle,
			Width:  cfg.WindowWidth,
			Height: cfg.WindowHeight,
		},
	}
}

// Begin requests a new pin for clientID.
func (a *Authorizer) Begin(ctx context.Context, clientID string) (*domain.AuthorizationSession, error) {
	pin, err := a.provider.CreatePin(ctx, clientID)
	if err != nil {
		authorizationsTotal.WithLabelValues("provider_unavailable").Inc()
		if errors.Is(err, domain.ErrProviderUnavailable) || errors.Is(err, domain.ErrMissingClientID) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrProviderUnavailable, err)
	}

	a.log.Info("plex pin created", zap.Int64("pin_id", pin.ID))
	return &domain.AuthorizationSession{
		ClientID:         clientID,
		Pin:              pin,
		AuthorizationURL: a.provider.AuthorizationURL(clientID, pin),
		State:            domain.StatePending,
	}, nil
}

// Present opens the approval window. A nil presenter or a presenter failure
// yields a nil window; polling still runs, bounded, so the user can approve
// from another tab.
func (a *Authorizer) Present(ctx context.Context, presenter domain.Presenter, url string) (domain.Window, error) {
	if presenter == nil {
		return nil, nil
	}
	window, err := presenter.Present(ctx, url, a.window)
	if err != nil {
		a.log.Warn("approval window not presented", zap.Error(err))
		return nil, err
	}
	return window, nil
}

// Await polls the pin until it is approved, it expires, the caller cancels
// or the window closes, or the attempt/time bound is reached.
func (a *Authorizer) Await(ctx context.Context, clientID string, pinID int64, window domain.Window) (string, error) {
	var closed <-chan struct{}
	if window != nil {
		closed = window.Closed()
	}

	var deadline time.Time
	if a.timeout > 0 {
		deadline = a.clock.Now(ctx).Add(a.timeout)
	}

	log := a.log.With(zap.Int64("pin_id", pinID))
	for attempt := 0; ; attempt++ {
		if a.maxAttempts > 0 && attempt >= a.maxAttempts {
			return "", a.timedOut(log, attempt)
		}
		if !deadline.IsZero() && !a.clock.Now(ctx).Before(deadline) {
			return "", a.timedOut(log, attempt)
		}

		select {
		case <-ctx.Done():
			return "", a.cancelled(log, ctx.Err())
		case <-closed:
			return "", a.cancelled(log, nil)
		case <-a.clock.After(a.interval):
		}
		// a stop signal that raced the timer wins
		select {
		case <-ctx.Done():
			return "", a.cancelled(log, ctx.Err())
		case <-closed:
			return "", a.cancelled(log, nil)
		default:
		}

		token, err := a.provider.CheckPin(ctx, clientID, pinID)
		switch {
		case errors.Is(err, domain.ErrAuthorizationExpired):
			pollAttemptsTotal.WithLabelValues("expired").Inc()
			authorizationsTotal.WithLabelValues("expired").Inc()
			log.Info("plex pin expired")
			return "", err
		case err != nil:
			if ctx.Err() != nil {
				return "", a.cancelled(log, ctx.Err())
			}
			pollAttemptsTotal.WithLabelValues("error").Inc()
			log.Debug("plex pin poll failed", zap.Int("attempt", attempt+1), zap.Error(err))
		case token == "":
			pollAttemptsTotal.WithLabelValues("pending").Inc()
		default:
			pollAttemptsTotal.WithLabelValues("approved").Inc()
			authorizationsTotal.WithLabelValues("completed").Inc()
			log.Info("plex pin approved", zap.Int("attempts", attempt+1))
			return token, nil
		}
	}
}

// Complete presents the approval window for an already begun session and
// waits for the credential. The window is closed on every exit path.
func (a *Authorizer) Complete(ctx context.Context, sess *domain.AuthorizationSession, presenter domain.Presenter) (string, error) {
	window, _ := a.Present(ctx, presenter, sess.AuthorizationURL)
	if window != nil {
		defer func() {
			if err := window.Close(); err != nil {
				a.log.Warn("close approval window", zap.Error(err))
			}
		}()
	}
	return a.Await(ctx, sess.ClientID, sess.Pin.ID, window)
}

// Authorize runs the full handshake. onBegin, when set, observes the
// session before polling starts.
func (a *Authorizer) Authorize(ctx context.Context, clientID string, presenter domain.Presenter, onBegin func(*domain.AuthorizationSession)) (string, error) {
	sess, err := a.Begin(ctx, clientID)
	if err != nil {
		return "", err
	}
	if onBegin != nil {
		onBegin(sess)
	}
	return a.Complete(ctx, sess, presenter)
}

func (a *Authorizer) timedOut(log *zap.Logger, attempts int) error {
	authorizationsTotal.WithLabelValues("timed_out").Inc()
	log.Info("plex pin polling bound reached", zap.Int("attempts", attempts))
	return domain.ErrAuthorizationTimedOut
}

func (a *Authorizer) cancelled(log *zap.Logger, cause error) error {
	authorizationsTotal.WithLabelValues("cancelled").Inc()
	log.Info("plex authorization cancelled")
	if cause != nil {
		return fmt.Errorf("%w: %w", domain.ErrAuthorizationCancelled, cause)
	}
	return domain.ErrAuthorizationCancelled
}
