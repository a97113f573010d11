// Package chat composes the send pipeline: validate, reserve a rate-limit
// slot, stamp, publish.
package chat

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/chatify/chatify/internal/domain"
	"github.com/chatify/chatify/internal/eventbus"
	"github.com/chatify/chatify/internal/metrics"
)

// RateLimiter reserves a send slot for a sender, returning a rate-limit
// domain.Error on rejection.
type RateLimiter interface {
	Allow(ctx context.Context, userID string) *domain.Error
}

// SendRequest is the transport-agnostic input to Send.
type SendRequest struct {
	ScopeType domain.ScopeType
	ScopeID   string
	Text      string
}

// Service composes the rate limiter and event producer behind a single
// Send operation.
type Service struct {
	limiter  RateLimiter
	producer eventbus.Producer
	podID    string
	now      func() time.Time
	log      *logrus.Entry
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source used to stamp events. Tests supply a
// fixed clock; production uses time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService constructs a Service. podID identifies the pod stamped into
// every event this pod sends; it must be non-empty.
func NewService(limiter RateLimiter, producer eventbus.Producer, podID string, log *logrus.Entry, opts ...Option) *Service {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	s := &Service{
		limiter:  limiter,
		producer: producer,
		podID:    podID,
		now:      time.Now,
		log:      log.WithField("component", "send_pipeline"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Send validates the request, reserves a rate-limit slot, stamps the event
// with a fresh message id, the current time, and this pod's identity, then
// publishes it. Each step short-circuits on failure: a malformed request
// never burns rate-limit budget, and a throttled sender never reaches the
// log.
func (s *Service) Send(ctx context.Context, senderID string, req SendRequest) domain.Result[domain.EnrichedChatEvent] {
	scope, err := domain.NewScopeKey(req.ScopeType, req.ScopeID)
	if err != nil {
		de, _ := domain.AsError(err)
		metrics.SendsTotal.WithLabelValues("validation_failed").Inc()
		return domain.Failure[domain.EnrichedChatEvent](de)
	}
	if verr := domain.ValidateChatEventFields(senderID, req.Text); verr != nil {
		de, _ := domain.AsError(verr)
		metrics.SendsTotal.WithLabelValues("validation_failed").Inc()
		return domain.Failure[domain.EnrichedChatEvent](de)
	}

	if rerr := s.limiter.Allow(ctx, senderID); rerr != nil {
		metrics.RateLimitRejectionsTotal.Inc()
		metrics.SendsTotal.WithLabelValues("rate_limited").Inc()
		return domain.Failure[domain.EnrichedChatEvent](rerr)
	}

	event, err := domain.NewChatEvent(scope, senderID, req.Text, s.podID, s.now())
	if err != nil {
		de, _ := domain.AsError(err)
		metrics.SendsTotal.WithLabelValues("configuration_error").Inc()
		return domain.Failure[domain.EnrichedChatEvent](de)
	}

	publishStart := s.now()
	published := s.producer.Produce(ctx, event)
	metrics.ObservePublishLatency(publishStart)
	if !published.Ok() {
		metrics.SendsTotal.WithLabelValues("publish_failed").Inc()
		return domain.Failure[domain.EnrichedChatEvent](published.Err())
	}

	s.log.WithFields(logrus.Fields{
		"scope":      scope.String(),
		"message_id": event.MessageID.String(),
	}).Debug("message sent")

	metrics.SendsTotal.WithLabelValues("success").Inc()
	return domain.Success(domain.EnrichedChatEvent{
		ChatEvent: event,
		Partition: published.Value().Partition,
		Offset:    published.Value().Offset,
	})
}
