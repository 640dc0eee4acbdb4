package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/CampusPulseLab/pulse/backend/internal/auth"
	"github.com/CampusPulseLab/pulse/backend/internal/feed"
	"github.com/CampusPulseLab/pulse/backend/internal/recommend"
	"github.com/CampusPulseLab/pulse/backend/internal/remote"
	"github.com/CampusPulseLab/pulse/backend/internal/store"
	"github.com/CampusPulseLab/pulse/backend/internal/users"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const userIDContextKey = "pulse_user_id"

var (
	errMissingStore         = errors.New("store dependency required")
	errMissingTokenManager  = errors.New("session issuer dependency required")
	errMissingIdentities    = errors.New("identity service dependency required")
	errMissingRecommender   = errors.New("recommender dependency required")
	errInvalidAuthorization = errors.New("authorization header missing or invalid")
)

// RemoteDirectory is the slice of the managed backend the server consumes.
type RemoteDirectory interface {
	FetchUser(ctx context.Context, accessToken string) (remote.User, error)
	FetchEvents(ctx context.Context, accessToken string) ([]store.Event, error)
}

// SessionTokens issues and validates bearer tokens for the API.
type SessionTokens interface {
	IssueSessionToken(ctx context.Context, profile auth.SessionProfile) (string, int64, error)
	ValidateToken(token string) (string, error)
}

// IdentityResolver maps verified remote logins to canonical user ids.
type IdentityResolver interface {
	ResolveCanonicalUserID(login users.Login) (string, error)
}

// Dependencies wires the HTTP surface to the services behind it.
type Dependencies struct {
	Store       *store.Store
	Tokens      SessionTokens
	Identities  IdentityResolver
	Recommender *recommend.Service
	Remote      RemoteDirectory
	Feed        *feed.Dispatcher
	Logger      *zap.Logger
	Clock       func() time.Time
}

// NewHTTPHandler assembles the gin router for the Pulse API.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Store == nil {
		return nil, errMissingStore
	}
	if deps.Tokens == nil {
		return nil, errMissingTokenManager
	}
	if deps.Identities == nil {
		return nil, errMissingIdentities
	}
	if deps.Recommender == nil {
		return nil, errMissingRecommender
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	dispatcher := deps.Feed
	if dispatcher == nil {
		dispatcher = feed.NewDispatcher()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	handler := &httpHandler{
		store:       deps.Store,
		tokens:      deps.Tokens,
		identities:  deps.Identities,
		recommender: deps.Recommender,
		remote:      deps.Remote,
		feed:        dispatcher,
		logger:      logger,
		clock:       clock,
	}

	router.POST("/auth/session", handler.handleCreateSession)

	protected := router.Group("/")
	protected.Use(handler.authorizeRequest)

	protected.GET("/events", handler.handleListEvents)
	protected.GET("/events/:id", handler.handleGetEvent)
	protected.POST("/events", handler.handleCreateEvent)
	protected.PATCH("/events/:id", handler.handlePatchEvent)
	protected.DELETE("/events/:id", handler.handleDeleteEvent)

	protected.POST("/events/:id/registrations", handler.handleRegister)
	protected.GET("/me/registrations", handler.handleMyRegistrations)
	protected.PATCH("/registrations/:id", handler.handlePatchRegistration)

	protected.GET("/me/profile", handler.handleGetProfile)
	protected.PUT("/me/profile", handler.handlePutProfile)

	protected.GET("/events/:id/comments", handler.handleListComments)
	protected.POST("/events/:id/comments", handler.handleCreateComment)
	protected.DELETE("/comments/:id", handler.handleDeleteComment)
	protected.POST("/comments/:id/likes", handler.handleLikeComment)
	protected.DELETE("/comments/:id/likes", handler.handleUnlikeComment)

	protected.GET("/me/recommendations", handler.handleRecommendations)
	protected.PUT("/me/push-token", handler.handlePutPushToken)
	protected.GET("/feed/stream", handler.handleFeedStream)

	protected.POST("/catalog/refresh", handler.handleCatalogRefresh)
	protected.POST("/admin/reset", handler.handleResetData)
	protected.POST("/admin/reset-tokens", handler.handleResetPushTokens)
	protected.POST("/admin/reset-all", handler.handleResetEverything)

	return router, nil
}

type httpHandler struct {
	store       *store.Store
	tokens      SessionTokens
	identities  IdentityResolver
	recommender *recommend.Service
	remote      RemoteDirectory
	feed        *feed.Dispatcher
	logger      *zap.Logger
	clock       func() time.Time
}

func (h *httpHandler) authorizeRequest(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	subject, err := h.tokens.ValidateToken(token)
	if err != nil {
		h.logger.Warn("token validation failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Set(userIDContextKey, subject)
	c.Next()
}

func (h *httpHandler) currentUserID(c *gin.Context) string {
	return c.GetString(userIDContextKey)
}
