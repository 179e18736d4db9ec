// Package server contains the HTTP handlers for the application's endpoints.
package server

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"warbler/internal/cache"
	"warbler/internal/config"
	"warbler/internal/database"
	"warbler/internal/middleware"
	"warbler/internal/observability"
	"warbler/internal/repository"
	"warbler/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/csrf"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/session"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// CurrUserKey is the session key holding the logged-in user's ID.
const CurrUserKey = "curr_user_id"

const (
	tokenIssuer   = "warbler-api"
	tokenAudience = "warbler-client"
)

// Server holds all dependencies and provides handlers.
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	promMiddleware *fiberprometheus.FiberPrometheus
	sessions       *session.Store

	userRepo    repository.UserRepository
	messageRepo repository.MessageRepository
	followRepo  repository.FollowRepository

	authService    *service.AuthService
	userService    *service.UserService
	messageService *service.MessageService
	followService  *service.FollowService
}

// NewServer creates a new server instance with all dependencies.
func NewServer(cfg *config.Config) (*Server, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	cache.InitRedis(cfg.RedisURL)
	redisClient := cache.GetClient()

	prom := middleware.InitMetrics("warbler-api")
	return wireDependencies(cfg, db, redisClient, prom), nil
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Use this when a bootstrap layer establishes DB/Redis itself.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	prom := middleware.InitMetrics("warbler-api")
	return wireDependencies(cfg, db, redisClient, prom), nil
}

// wireDependencies builds repositories, services and the session store.
// Kept separate so tests can wire a Server without registering Prometheus
// collectors twice.
func wireDependencies(cfg *config.Config, db *gorm.DB, redisClient *redis.Client, prom *fiberprometheus.FiberPrometheus) *Server {
	userRepo := repository.NewUserRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	followRepo := repository.NewFollowRepository(db)

	sessCfg := session.Config{
		KeyLookup:      "cookie:" + cfg.SessionCookie,
		Expiration:     time.Duration(cfg.SessionTTLHours) * time.Hour,
		CookieHTTPOnly: true,
		CookieSameSite: "Lax",
	}
	// Redis-backed sessions when available; Fiber's in-process store otherwise.
	if redisClient != nil {
		sessCfg.Storage = cache.NewSessionStorageWithClient(redisClient)
	}

	server := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: prom,
		sessions:       session.New(sessCfg),
		userRepo:       userRepo,
		messageRepo:    messageRepo,
		followRepo:     followRepo,
	}
	server.authService = service.NewAuthService(userRepo)
	server.userService = service.NewUserService(userRepo, followRepo)
	server.messageService = service.NewMessageService(messageRepo, followRepo)
	server.followService = service.NewFollowService(followRepo, userRepo)

	return server
}

// SetupMiddleware configures middleware for the Fiber app.
func (s *Server) SetupMiddleware(app *fiber.App) {
	// Panic recovery
	app.Use(recover.New())

	// Request ID for tracing
	app.Use(requestid.New())

	// Context middleware to propagate request ID and user ID
	app.Use(middleware.ContextMiddleware())

	// Prometheus metrics
	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	// Security headers
	app.Use(helmet.New())

	// Structured logging (after requestid and context middleware)
	app.Use(middleware.StructuredLogger())

	if s.config.TracingEnabled {
		app.Use(middleware.TracingMiddleware())
	}

	// CORS before middlewares that can short-circuit, so browser clients
	// still receive CORS headers on error responses.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// CSRF protection for cookie-based sessions. Switchable so test suites
	// and token-only deployments can POST without a CSRF handshake.
	if s.config.CSRFEnabled {
		app.Use(csrf.New(csrf.Config{
			KeyLookup:      "header:X-Csrf-Token",
			CookieName:     "warbler_csrf",
			CookieSameSite: "Lax",
			Expiration:     1 * time.Hour,
		}))
	}

	// Global rate limiting (100 requests per minute per IP)
	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		// Never rate-limit preflight requests.
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests, please try again later.",
			})
		},
	}))
}

// SetupRoutes configures all routes for the application.
func (s *Server) SetupRoutes(app *fiber.App) {
	// Health checks
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.ReadinessCheck)

	// Metrics endpoint for Prometheus
	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}
	app.Get("/metrics/dashboard", monitor.New(monitor.Config{
		Title: "Warbler Metrics Dashboard",
	}))

	// Home feed
	app.Get("/", s.Home)

	// Auth
	app.Get("/signup", s.SignupPage)
	app.Post("/signup", middleware.RateLimit(
		s.redis, 3, 10*time.Minute, "signup"), s.Signup)
	app.Get("/login", s.LoginPage)
	app.Post("/login", middleware.RateLimit(
		s.redis, 10, 5*time.Minute, "login"), s.Login)
	app.Post("/logout", s.Logout)

	// Token issuance for programmatic clients
	api := app.Group("/api")
	api.Post("/token", middleware.RateLimit(
		s.redis, 10, 5*time.Minute, "token"), s.IssueToken)

	// User routes. Specific paths before the generic /:id.
	users := app.Group("/users")
	users.Get("/", s.ListUsers)
	users.Get("/profile", s.AuthRequired(), s.GetOwnProfile)
	users.Post("/profile", s.AuthRequired(), s.UpdateProfile)
	users.Post("/delete", s.AuthRequired(), s.DeleteAccount)
	users.Post("/follow/:id", s.AuthRequired(), s.StartFollowing)
	users.Post("/stop-following/:id", s.AuthRequired(), s.StopFollowing)
	users.Post("/add_like/:id", s.AuthRequired(), s.AddLike)
	users.Get("/:id/following", s.AuthRequired(), s.GetFollowing)
	users.Get("/:id/followers", s.AuthRequired(), s.GetFollowers)
	users.Get("/:id/likes", s.AuthRequired(), s.GetLikes)
	users.Get("/:id", s.GetUserProfile)

	// Message routes
	messages := app.Group("/messages")
	messages.Post("/new", s.AuthRequired(), middleware.RateLimit(
		s.redis, 30, time.Minute, "create_message"), s.CreateMessage)
	messages.Post("/:id/delete", s.AuthRequired(), s.DeleteMessage)
	messages.Get("/:id", s.ShowMessage)
}

// LivenessCheck handles liveness probe requests.
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness probe requests.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	sqlDB, err := s.db.DB()
	if err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "healthy"
	if s.redis != nil {
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	} else {
		// Redis is optional: sessions fall back to the in-process store.
		redisStatus = "unavailable"
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// AuthRequired returns the authentication middleware. It accepts either the
// login session cookie or a JWT bearer token; without both it redirects the
// client to /login without touching anything.
func (s *Server) AuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if userID, ok := s.sessionUserID(c); ok {
			s.setCurrentUser(c, userID)
			return c.Next()
		}

		if c.Get("Authorization") != "" {
			userID, err := middleware.UserIDFromBearer(c, s.config.JWTSecret)
			if err == nil {
				s.setCurrentUser(c, userID)
				return c.Next()
			}
		}

		return c.Redirect("/login", fiber.StatusFound)
	}
}

// sessionUserID reads the current user's ID from the login session.
func (s *Server) sessionUserID(c *fiber.Ctx) (uint, bool) {
	sess, err := s.sessions.Get(c)
	if err != nil {
		return 0, false
	}
	switch v := sess.Get(CurrUserKey).(type) {
	case uint:
		return v, true
	case int:
		if v > 0 {
			return uint(v), true
		}
	case int64:
		if v > 0 {
			return uint(v), true
		}
	case string:
		if id, err := strconv.ParseUint(v, 10, 32); err == nil && id > 0 {
			return uint(id), true
		}
	}
	return 0, false
}

// setCurrentUser stores the user ID in locals and the request context.
func (s *Server) setCurrentUser(c *fiber.Ctx, userID uint) {
	c.Locals("userID", userID)
	ctx := context.WithValue(c.UserContext(), middleware.UserIDKey, userID)
	c.SetUserContext(ctx)
}

// loginSession writes the user ID into a fresh session.
func (s *Server) loginSession(c *fiber.Ctx, userID uint) error {
	sess, err := s.sessions.Get(c)
	if err != nil {
		return err
	}
	// New identity, new session ID.
	if err := sess.Regenerate(); err != nil {
		return err
	}
	sess.Set(CurrUserKey, userID)
	if err := sess.Save(); err != nil {
		return err
	}
	observability.SessionsActive.Inc()
	return nil
}

// logoutSession destroys the current session if one exists.
func (s *Server) logoutSession(c *fiber.Ctx) {
	sess, err := s.sessions.Get(c)
	if err != nil {
		return
	}
	loggedIn := sess.Get(CurrUserKey) != nil
	if err := sess.Destroy(); err != nil {
		return
	}
	if loggedIn {
		observability.SessionsActive.Dec()
	}
}

// optionalUserID extracts the viewer's ID from session or bearer token
// without enforcing authentication.
func (s *Server) optionalUserID(c *fiber.Ctx) (uint, bool) {
	if userID, ok := s.sessionUserID(c); ok {
		return userID, true
	}
	if c.Get("Authorization") != "" {
		if userID, err := middleware.UserIDFromBearer(c, s.config.JWTSecret); err == nil {
			return userID, true
		}
	}
	return 0, false
}

// generateToken creates a JWT token for the given user ID and username.
func (s *Server) generateToken(userID uint, username string) (string, error) {
	if s.config.JWTSecret == "" {
		return "", fmt.Errorf("JWT secret not configured")
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"sub":      strconv.FormatUint(uint64(userID), 10),
		"username": username,
		"iss":      tokenIssuer,
		"aud":      tokenAudience,
		"exp":      now.Add(time.Hour * 24 * 7).Unix(),
		"iat":      now.Unix(),
		"nbf":      now.Unix(),
		"jti":      s.generateJTI(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.config.JWTSecret))
}

// generateJTI creates a unique JWT ID to prevent replay attacks.
func (s *Server) generateJTI() string {
	return fmt.Sprintf("%d-%s", time.Now().Unix(), uuid.New().String()[:8])
}

// Shutdown releases server-held resources (database pool, Redis connection).
func (s *Server) Shutdown(ctx context.Context) error {
	var firstErr error

	if sqlDB, err := s.db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			firstErr = err
		}
	}

	if s.redis != nil {
		if err := s.redis.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}

// Start begins listening on the configured port.
func (s *Server) Start() error {
	app := fiber.New(fiber.Config{
		AppName: "Warbler",
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app.Listen(":" + s.config.Port)
}

// App builds a configured fiber.App without starting it. Used by tests.
func (s *Server) App() *fiber.App {
	app := fiber.New()
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}
