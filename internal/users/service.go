package users

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrInvalidIdentity indicates the login did not contain a usable identifier.
var ErrInvalidIdentity = errors.New("users: invalid identity")

const defaultProvider = "campus"

// ServiceConfig describes the dependencies required for identity resolution.
type ServiceConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
	Logger   *zap.Logger
}

// Service manages canonical user identifiers and provider-specific identities.
type Service struct {
	db     *gorm.DB
	now    func() time.Time
	logger *zap.Logger
	cache  sync.Map
}

// NewService constructs the identity service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("users: database connection required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		db:     cfg.Database,
		now:    clock,
		logger: logger,
		cache:  sync.Map{},
	}, nil
}

// ResolveCanonicalUserID returns the canonical Pulse user id for a verified
// login, creating the identity mapping when the provider+subject pair has not
// been seen before and refreshing profile fields when it has.
func (s *Service) ResolveCanonicalUserID(login Login) (string, error) {
	provider := normalize(login.Provider)
	if provider == "" {
		provider = defaultProvider
	}
	subject := normalize(login.Subject)
	if subject == "" {
		subject = normalize(login.Email)
	}
	if subject == "" {
		return "", ErrInvalidIdentity
	}

	cacheKey := provider + ":" + subject
	if cachedIdentifier, ok := s.cache.Load(cacheKey); ok {
		canonicalIdentifier, ok := cachedIdentifier.(string)
		if ok {
			return canonicalIdentifier, nil
		}
	}

	var identity Identity
	err := s.db.
		Where("provider = ? AND subject = ?", provider, subject).
		First(&identity).
		Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		identity = Identity{
			Provider:   provider,
			Subject:    subject,
			UserID:     subject,
			Email:      normalize(login.Email),
			FullName:   normalize(login.FullName),
			AvatarURL:  normalize(login.AvatarURL),
			LastSeenAt: s.now(),
		}
		if err := s.db.Create(&identity).Error; err != nil {
			return "", err
		}
	} else if err != nil {
		return "", err
	} else {
		updates := map[string]interface{}{}
		if email := normalize(login.Email); email != "" && email != identity.Email {
			updates["user_email"] = email
		}
		if fullName := normalize(login.FullName); fullName != "" && fullName != identity.FullName {
			updates["user_full_name"] = fullName
		}
		if avatar := normalize(login.AvatarURL); avatar != "" && avatar != identity.AvatarURL {
			updates["user_avatar_url"] = avatar
		}
		updates["last_seen_at"] = s.now()
		if len(updates) > 0 {
			// The canonical id is already resolved, so a failed refresh is
			// logged rather than surfaced to the sign-in path.
			if err := s.db.Model(&Identity{}).
				Where("provider = ? AND subject = ?", provider, subject).
				Updates(updates).
				Error; err != nil {
				s.logger.Warn("identity refresh failed",
					zap.String("operation", "users.resolve"),
					zap.String("reason", "refresh_failed"),
					zap.Error(err),
					zap.String("provider", provider))
			}
		}
	}

	s.cache.Store(cacheKey, identity.UserID)
	return identity.UserID, nil
}
