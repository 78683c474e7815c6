// Package domain defines the business logic for activity signups.
package domain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

var (
	// ErrActivityNotFound is returned when no activity has the requested name.
	ErrActivityNotFound = errors.New("activity not found")
	// ErrAlreadySignedUp is returned when the email is already on the roster.
	ErrAlreadySignedUp = errors.New("student is already signed up for this activity")
	// ErrNotRegistered is returned when unregistering an email that is not on the roster.
	ErrNotRegistered = errors.New("student is not registered for this activity")
)

// Registry captures storage operations over the activity roster.
type Registry interface {
	Snapshot(ctx context.Context) (Catalog, error)
	Get(ctx context.Context, name string) (*Activity, error)
	AddParticipant(ctx context.Context, name, email string) (Activity, error)
	RemoveParticipant(ctx context.Context, name, email string) (Activity, error)
}

// RosterChange describes a successful signup or unregister.
type RosterChange struct {
	Kind             RosterChangeKind
	Activity         string
	Email            string
	ParticipantCount int
	OccurredAt       time.Time
}

// RosterChangeKind distinguishes signups from unregisters.
type RosterChangeKind string

const (
	RosterSignedUp     RosterChangeKind = "signed_up"
	RosterUnregistered RosterChangeKind = "unregistered"
)

// EventPublisher receives roster changes after they are applied.
type EventPublisher interface {
	Publish(ctx context.Context, change RosterChange) error
}

// Option configures optional behaviour for the Service.
type Option func(*Service)

// WithPublisher attaches an EventPublisher.
func WithPublisher(p EventPublisher) Option {
	return func(s *Service) {
		s.publisher = p
	}
}

// WithLogger overrides the logger used to report publish failures.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// Service orchestrates activity signups.
type Service struct {
	registry  Registry
	publisher EventPublisher
	logger    *slog.Logger
	now       func() time.Time
}

// NewService constructs a Service.
func NewService(registry Registry, opts ...Option) *Service {
	s := &Service{
		registry: registry,
		logger:   slog.Default(),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListActivities returns every activity keyed by name.
func (s *Service) ListActivities(ctx context.Context) (Catalog, error) {
	return s.registry.Snapshot(ctx)
}

// GetActivity fetches a single activity by name.
func (s *Service) GetActivity(ctx context.Context, name string) (*Activity, error) {
	activity, err := s.registry.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	if activity == nil {
		return nil, ErrActivityNotFound
	}
	return activity, nil
}

// Signup adds email to the named activity's roster.
func (s *Service) Signup(ctx context.Context, name, email string) (string, error) {
	updated, err := s.registry.AddParticipant(ctx, name, email)
	if err != nil {
		return "", err
	}

	s.publish(ctx, RosterChange{
		Kind:             RosterSignedUp,
		Activity:         name,
		Email:            email,
		ParticipantCount: len(updated.Participants),
		OccurredAt:       s.now(),
	})
	return fmt.Sprintf("%s signed up successfully for %s", email, name), nil
}

// Unregister removes email from the named activity's roster.
func (s *Service) Unregister(ctx context.Context, name, email string) (string, error) {
	updated, err := s.registry.RemoveParticipant(ctx, name, email)
	if err != nil {
		return "", err
	}

	s.publish(ctx, RosterChange{
		Kind:             RosterUnregistered,
		Activity:         name,
		Email:            email,
		ParticipantCount: len(updated.Participants),
		OccurredAt:       s.now(),
	})
	return fmt.Sprintf("%s unregistered successfully from %s", email, name), nil
}

// publish is best effort; the roster change has already been applied.
func (s *Service) publish(ctx context.Context, change RosterChange) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, change); err != nil {
		s.logger.Warn("roster event publish failed",
			slog.String("activity", change.Activity),
			slog.String("kind", string(change.Kind)),
			slog.Any("error", err))
	}
}
