package recommend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/CampusPulseLab/pulse/backend/internal/store"
	"go.uber.org/zap"
)

var (
	errMissingStore  = errors.New("store is required")
	errMissingUserID = errors.New("user identifier is required")
	noOpLogger       = zap.NewNop()
)

const preferenceKeyPrefix = "preferred_categories:"

const (
	opServiceNew = "recommend.service.new"
	opRecommend  = "recommend.recommend"
)

// ServiceError carries a stable operation code alongside the underlying cause.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

// Code returns the <operation>.<reason> identifier of the failure.
func (e *ServiceError) Code() string {
	return e.code
}

func newServiceError(operation, reason string, cause error) error {
	return &ServiceError{code: fmt.Sprintf("%s.%s", operation, reason), err: cause}
}

// ServiceConfig describes the dependencies of the recommender.
type ServiceConfig struct {
	Store  *store.Store
	Clock  func() time.Time
	Logger *zap.Logger
}

// Service ranks upcoming events for a user from their registration history.
type Service struct {
	store  *store.Store
	clock  func() time.Time
	logger *zap.Logger
}

// NewService validates the configuration and returns a ready Service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, newServiceError(opServiceNew, "missing_store", errMissingStore)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Service{store: cfg.Store, clock: clock, logger: logger}, nil
}

// Recommend returns up to TopN upcoming events ranked for the user. The
// preference list is derived from registration history on first use and
// persisted for reuse; subsequent calls read the stored list.
func (s *Service) Recommend(ctx context.Context, userID string) ([]store.Event, error) {
	if userID == "" {
		return nil, newServiceError(opRecommend, "missing_user_id", errMissingUserID)
	}

	preferences, err := s.preferencesFor(ctx, userID)
	if err != nil {
		return nil, err
	}

	events, err := s.store.Events(ctx)
	if err != nil {
		s.logger.Error("recommendation catalog read failed",
			zap.String("operation", opRecommend),
			zap.String("reason", "events_read_failed"),
			zap.Error(err),
			zap.String("user_id", userID))
		return nil, newServiceError(opRecommend, "events_read_failed", err)
	}

	return Rank(events, preferences, s.clock()), nil
}

func (s *Service) preferencesFor(ctx context.Context, userID string) ([]string, error) {
	stored, ok, err := store.GetData[[]string](ctx, s.store, preferenceKeyPrefix+userID)
	if err != nil {
		return nil, newServiceError(opRecommend, "preferences_read_failed", err)
	}
	if ok {
		return stored, nil
	}

	derived, err := s.derivePreferences(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(derived) > 0 {
		if err := store.SetData(ctx, s.store, preferenceKeyPrefix+userID, derived); err != nil {
			return nil, newServiceError(opRecommend, "preferences_write_failed", err)
		}
	}
	return derived, nil
}

// derivePreferences maps the user's non-cancelled registrations to event
// categories, in registration order.
func (s *Service) derivePreferences(ctx context.Context, userID string) ([]string, error) {
	registrations, err := s.store.RegistrationsForUser(ctx, userID)
	if err != nil {
		return nil, newServiceError(opRecommend, "registrations_read_failed", err)
	}
	if len(registrations) == 0 {
		return nil, nil
	}

	events, err := s.store.Events(ctx)
	if err != nil {
		return nil, newServiceError(opRecommend, "events_read_failed", err)
	}
	categoryByEvent := make(map[string]string, len(events))
	for _, event := range events {
		categoryByEvent[event.ID] = event.Category
	}

	categories := make([]string, 0, len(registrations))
	for _, registration := range registrations {
		if registration.Status == store.StatusCancelled {
			continue
		}
		if category, ok := categoryByEvent[registration.EventID]; ok {
			categories = append(categories, category)
		}
	}
	return DerivePreferences(categories), nil
}
