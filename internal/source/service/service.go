package service

import (
	"context"
	"errors"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/railzwaylabs/plexsource/internal/source/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	MessageCreated = "Successfully created source."
	MessageUpdated = "Successfully updated source."
)

var submissionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "plexsource",
	Subsystem: "source",
	Name:      "submissions_total",
	Help:      "Source submissions by operation and outcome.",
}, []string{"operation", "outcome"})

type Params struct {
	fx.In

	Gateway domain.Gateway
	Log     *zap.Logger
}

type Service struct {
	gateway domain.Gateway
	log     *zap.Logger
}

// SaveResult is the stored source plus the message shown to the user.
type SaveResult struct {
	Source  *domain.Source `json:"source"`
	Created bool           `json:"created"`
	Message string         `json:"message"`
}

func New(p Params) *Service {
	return &Service{
		gateway: p.Gateway,
		log:     p.Log.Named("source.service"),
	}
}

func (s *Service) Get(ctx context.Context, slug string) (*domain.Source, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return nil, domain.ErrNotFound
	}
	return s.gateway.Get(ctx, slug)
}

// Save validates src and creates it, or updates the source stored under
// persistedSlug when that is set. Nothing is sent when validation fails.
func (s *Service) Save(ctx context.Context, persistedSlug string, src domain.Source, token string) (*SaveResult, error) {
	op := "create"
	if persistedSlug != "" {
		op = "update"
	}

	if err := domain.Validate(src); err != nil {
		submissionsTotal.WithLabelValues(op, "invalid").Inc()
		return nil, err
	}

	var (
		out *domain.Source
		err error
	)
	if persistedSlug != "" {
		out, err = s.gateway.Update(ctx, persistedSlug, src, token)
	} else {
		out, err = s.gateway.Create(ctx, src, token)
	}
	if err != nil {
		submissionsTotal.WithLabelValues(op, outcome(err)).Inc()
		s.log.Warn("source save failed", zap.String("operation", op), zap.String("slug", src.Slug), zap.Error(err))
		return nil, err
	}

	submissionsTotal.WithLabelValues(op, "succeeded").Inc()
	s.log.Info("source saved", zap.String("operation", op), zap.String("slug", out.Slug))

	res := &SaveResult{Source: out, Created: persistedSlug == "", Message: MessageUpdated}
	if res.Created {
		res.Message = MessageCreated
	}
	return res, nil
}

func outcome(err error) string {
	switch {
	case errors.Is(err, domain.ErrValidationFailed):
		return "rejected"
	case errors.Is(err, domain.ErrConflict):
		return "conflict"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	default:
		return "failed"
	}
}
