// Package server contains the HTTP and WebSocket handlers of the microblogs API.
package server

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	_ "microblogs/docs" // swagger docs
	"microblogs/internal/auth"
	"microblogs/internal/bootstrap"
	"microblogs/internal/cache"
	"microblogs/internal/config"
	"microblogs/internal/database"
	"microblogs/internal/middleware"
	"microblogs/internal/notifications"
	"microblogs/internal/repository"
	"microblogs/internal/service"
	"microblogs/models"
)

// Server wires the repositories, services and live feed hub behind the HTTP API.
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc
	userRepo       repository.UserRepository
	postRepo       repository.PostRepository
	tokens         *auth.TokenIssuer
	revoker        *auth.Revoker
	notifier       *notifications.Notifier
	hub            *notifications.Hub
	userService    *service.UserService
	feedService    *service.FeedService
}

// NewServer connects to the database and Redis and builds the server.
func NewServer(ctx context.Context, cfg *config.Config) (*Server, error) {
	db, rdb, err := bootstrap.InitRuntime(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewServerWithDeps(cfg, db, rdb)
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// redisClient may be nil; caching, rate limits and token revocation are then off
// and the live feed only reaches clients of this instance.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	if cfg == nil || db == nil {
		return nil, errors.New("server needs a config and a database")
	}

	userRepo := repository.NewUserRepository(db)
	postRepo := repository.NewPostRepository(db)
	store := cache.NewStore(redisClient)

	s := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics("microblogs-api"),
		userRepo:       userRepo,
		postRepo:       postRepo,
		tokens:         auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTTTL()),
		revoker:        auth.NewRevoker(redisClient),
		notifier:       notifications.NewNotifier(redisClient),
		hub:            notifications.NewHub(),
	}
	s.userService = service.NewUserService(userRepo, auth.NewHasher(0), store)
	s.feedService = service.NewFeedService(postRepo, userRepo, store, cfg.FeedCacheTTL(), s.notifier)
	return s, nil
}

// App builds the Fiber application with middleware and routes.
func (s *Server) App() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "Microblogs API",
		BodyLimit:    64 * 1024,
		ErrorHandler: s.errorHandler,
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(models.ErrorResponse{Error: fe.Message})
	}
	middleware.Logger.ErrorContext(c.UserContext(), "unhandled error", slog.String("error", err.Error()))
	return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
}

const defaultOrigins = "http://localhost:5173,http://localhost:3000"

// SetupMiddleware installs the global chain. Order matters: request IDs and
// spans exist before logging, and CORS wraps the limiter so 429s keep their
// CORS headers.
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New(), requestid.New(), middleware.ContextMiddleware(), middleware.TracingMiddleware())
	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}
	app.Use(helmet.New(), middleware.StructuredLogger())
	app.Use(cors.New(s.corsConfig()))
	app.Use(limiter.New(globalLimit()))
}

func (s *Server) corsConfig() cors.Config {
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = defaultOrigins
	}
	return cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     strings.Join([]string{fiber.HeaderOrigin, fiber.HeaderContentType, fiber.HeaderAccept, fiber.HeaderAuthorization, fiber.HeaderUpgrade, fiber.HeaderConnection, "Sec-WebSocket-Key", "Sec-WebSocket-Version"}, ", "),
		AllowCredentials: true,
		MaxAge:           int((24 * time.Hour).Seconds()),
	}
}

// globalLimit caps each client IP at 100 requests a minute. Preflights are free.
func globalLimit() limiter.Config {
	return limiter.Config{
		Max:          100,
		Expiration:   time.Minute,
		Next:         func(c *fiber.Ctx) bool { return c.Method() == fiber.MethodOptions },
		KeyGenerator: func(c *fiber.Ctx) string { return c.IP() },
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(models.ErrorResponse{Error: "too many requests, slow down"})
		},
	}
}

// SetupRoutes mounts health, metrics, docs and the /api routes.
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	api := app.Group("/api")
	api.Get("/metrics/dashboard", monitor.New(monitor.Config{
		Title: "Microblogs Metrics Dashboard",
	}))
	api.Get("/swagger/*", swagger.HandlerDefault)

	authRoutes := api.Group("/auth")
	authRoutes.Post("/sign_up", middleware.RateLimit(s.redis, 5, 10*time.Minute, "sign_up"), s.SignUp)
	authRoutes.Post("/login", middleware.RateLimit(s.redis, 10, 5*time.Minute, "login"), s.Login)
	authRoutes.Post("/logout", s.AuthRequired(), s.Logout)

	feed := api.Group("/feed")
	feed.Get("/", s.GetFeed)
	feed.Post("/", s.AuthRequired(), middleware.RateLimit(s.redis, 30, time.Minute, "create_post"), s.CreatePost)
	feed.Get("/live", s.AuthRequired(), s.requireUpgrade, s.LiveFeedHandler())

	users := api.Group("/users")
	// /me routes before the generic /:id
	users.Get("/me", s.AuthRequired(), s.GetMyProfile)
	users.Put("/me", s.AuthRequired(), s.UpdateMyProfile)
	users.Delete("/me", s.AuthRequired(), s.DeleteMyAccount)
	users.Get("/:id/posts", s.GetUserPosts)
	users.Get("/:id", s.GetUserProfile)
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now().UTC(),
	})
}

// ReadinessCheck reports unhealthy when the database, or a configured Redis,
// does not answer.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	if err := database.Ping(ctx, s.db); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "disabled"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	status := fiber.StatusOK
	overall := "healthy"
	if dbStatus != "healthy" || redisStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overall = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overall,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now().UTC(),
	})
}

const sessionCookie = "session"

// AuthRequired accepts a Bearer token or the session cookie. Revoked tokens
// are rejected.
func (s *Server) AuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString := bearerToken(c.Get(fiber.HeaderAuthorization))
		if tokenString == "" {
			tokenString = c.Cookies(sessionCookie)
		}
		if tokenString == "" {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Authorization required"))
		}

		claims, err := s.tokens.Parse(tokenString)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Invalid or expired token"))
		}
		if err := s.revoker.Check(c.UserContext(), claims); err != nil {
			return models.RespondWithError(c, fiber.StatusUnauthorized, models.NewUnauthorizedError(err.Error()))
		}

		c.Locals("userID", claims.UserID)
		c.Locals("claims", claims)
		c.SetUserContext(middleware.WithUserID(c.UserContext(), claims.UserID))
		return c.Next()
	}
}

func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || scheme != "Bearer" {
		return ""
	}
	return strings.TrimSpace(token)
}

// Start builds the app, wires the live feed and listens on the configured port.
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	s.app = s.App()

	if err := s.hub.StartWiring(s.shutdownCtx, s.notifier); err != nil {
		middleware.Logger.Error("failed to start live feed wiring", slog.String("error", err.Error()))
	}

	middleware.Logger.Info("Server starting", slog.String("port", s.config.Port))
	return s.app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("error shutting down HTTP server", slog.String("error", err.Error()))
		}
	}

	if err := s.hub.Shutdown(ctx); err != nil {
		middleware.Logger.Error("error shutting down live feed", slog.String("error", err.Error()))
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			middleware.Logger.Error("error closing sql DB", slog.String("error", cerr.Error()))
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			middleware.Logger.Error("error closing redis", slog.String("error", rerr.Error()))
		}
	}

	middleware.Logger.Info("Server shutdown complete")
	return nil
}
