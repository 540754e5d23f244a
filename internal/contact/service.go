// Package contact validates, gates, and stores contact form
// submissions for the shared contact API.
package contact

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/skycms/skycms/internal/config"
	"github.com/skycms/skycms/internal/events"
	"github.com/skycms/skycms/internal/foundation/errors"
	"github.com/skycms/skycms/internal/logfields"
	"github.com/skycms/skycms/internal/metrics"
	"github.com/skycms/skycms/internal/model"
	"github.com/skycms/skycms/internal/ratelimit"
	"github.com/skycms/skycms/internal/tenant"
)

// Submission is the payload accepted by the submit endpoint.
type Submission struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	Subject      string `json:"subject"`
	Body         string `json:"body"`
	CaptchaToken string `json:"captcha_token"`
}

// Service runs a submission through the rate limiter, validation, and
// CAPTCHA check before storing it in the tenant database.
type Service struct {
	manager  *tenant.Manager
	limiter  *ratelimit.Limiter
	verifier Verifier
	bus      *events.Bus
	recorder metrics.Recorder
	logger   *slog.Logger
	now      func() time.Time
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithBus attaches an event bus; accepted submissions emit
// ContactReceived.
func WithBus(bus *events.Bus) ServiceOption {
	return func(s *Service) { s.bus = bus }
}

// WithRecorder attaches a metrics recorder.
func WithRecorder(r metrics.Recorder) ServiceOption {
	return func(s *Service) { s.recorder = r }
}

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) { s.logger = logger }
}

// NewService wires the contact pipeline from its configuration block.
func NewService(cfg config.ContactConfig, manager *tenant.Manager, opts ...ServiceOption) (*Service, error) {
	verifier, err := NewVerifier(cfg.Captcha)
	if err != nil {
		return nil, err
	}

	s := &Service{
		manager:  manager,
		limiter:  ratelimit.New(cfg.RateLimitPerMinute, time.Minute),
		verifier: verifier,
		recorder: metrics.NoopRecorder{},
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Submit stores one contact message for the tenant. Rejections keep
// their cause: rate limiting surfaces a *ratelimit.LimitError so the
// handler can set Retry-After, everything else is a classified error.
func (s *Service) Submit(ctx context.Context, t *tenant.Tenant, sub Submission, remoteIP string) (*model.ContactMessage, error) {
	accepted := false
	defer func() { s.recorder.IncContactSubmission(t.ID, accepted) }()

	if err := s.limiter.Allow(remoteIP); err != nil {
		s.logger.Warn("contact submission rate limited",
			logfields.Tenant(t.ID),
			logfields.RemoteAddr(remoteIP))
		return nil, err
	}

	msg := &model.ContactMessage{
		ID:        uuid.NewString(),
		Name:      sub.Name,
		Email:     sub.Email,
		Subject:   sub.Subject,
		Body:      sub.Body,
		RemoteIP:  remoteIP,
		CreatedAt: s.now().UTC(),
	}
	if err := msg.Validate().ToError(); err != nil {
		return nil, err
	}

	if err := s.verifier.Verify(ctx, sub.CaptchaToken, remoteIP); err != nil {
		s.logger.Warn("contact submission failed captcha",
			logfields.Tenant(t.ID),
			logfields.RemoteAddr(remoteIP),
			logfields.Error(err))
		return nil, err
	}

	db, err := s.manager.DB(t)
	if err != nil {
		return nil, err
	}
	if err := db.InsertContact(ctx, msg); err != nil {
		return nil, errors.ContactError("failed to store contact message").WithCause(err).Build()
	}

	accepted = true
	s.logger.Info("contact submission stored",
		logfields.Tenant(t.ID),
		slog.String("message_id", msg.ID))
	s.publishEvent(ctx, events.ContactReceived{
		Tenant:    t.ID,
		MessageID: msg.ID,
		Timestamp: s.now().UTC(),
	})
	return msg, nil
}

func (s *Service) publishEvent(ctx context.Context, evt events.ContactReceived) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(ctx, evt); err != nil {
		s.logger.Warn("contact event dropped", logfields.Error(err))
	}
}
