package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/MahmoudAthamneh01/leonra/internal/auth"
	"github.com/MahmoudAthamneh01/leonra/internal/config"
	"github.com/MahmoudAthamneh01/leonra/internal/database"
	"github.com/MahmoudAthamneh01/leonra/internal/email"
	httpServer "github.com/MahmoudAthamneh01/leonra/internal/http"
	"github.com/MahmoudAthamneh01/leonra/internal/logging"
	"github.com/MahmoudAthamneh01/leonra/internal/ratelimit"
	"github.com/MahmoudAthamneh01/leonra/internal/user"
)

// @title           Leonra Marketplace Auth API
// @version         1.0
// @description     Authentication and session-token service for the Leonra marketplace: registration with email verification, credential login, password reset and token refresh.

// @host      localhost:8080
// @BasePath  /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the access token.

func main() {
	if err := run(); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := logging.NewLogger(cfg.Server.IsDevelopment())
	logger.Info("starting application",
		"env", cfg.Server.Env,
		"port", cfg.Server.Port,
	)

	db, err := database.Connect(cfg.Database.ConnectionString())
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	redisClient, err := initRedis(cfg.Redis)
	if err != nil {
		return fmt.Errorf("failed to initialize Redis: %w", err)
	}
	defer redisClient.Close()

	// Repositories
	userRepo := user.NewRepository(db)
	verificationTokens := auth.NewVerificationTokenRepository(redisClient)
	resetTokens := auth.NewPasswordResetTokenRepository(redisClient)

	rateLimiter := ratelimit.NewLimiter(redisClient)

	issuer, err := auth.NewPasetoIssuer(cfg.Auth.AccessTokenKey, cfg.Auth.RefreshTokenKey)
	if err != nil {
		return fmt.Errorf("failed to initialize token issuer: %w", err)
	}

	hasher := auth.NewPasswordHasher(cfg.Auth.BcryptCost)

	mailer := email.NewService(
		cfg.Email.SMTPHost,
		cfg.Email.SMTPPort,
		cfg.Email.SMTPUser,
		cfg.Email.SMTPPassword,
		cfg.Email.BaseURL,
	)

	authService := auth.NewService(
		userRepo,
		verificationTokens,
		resetTokens,
		issuer,
		hasher,
		mailer,
		logger,
		auth.TokenTTLs{
			Access:       cfg.Auth.AccessTokenDuration,
			Refresh:      cfg.Auth.RefreshTokenDuration,
			Verification: cfg.Auth.VerificationTokenTTL,
			Reset:        cfg.Auth.ResetTokenTTL,
		},
	)

	authHandler := auth.NewHandler(authService, rateLimiter, logger)
	authMiddleware := auth.NewMiddleware(issuer)

	router := httpServer.NewRouter(cfg, authHandler, authMiddleware, logger)

	server := httpServer.NewServer(
		":"+cfg.Server.Port,
		router,
		cfg.Server.ReadTimeout,
		cfg.Server.WriteTimeout,
		logger,
	)

	// Start server in a goroutine
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- server.Start()
	}()

	// Wait for interrupt signal or server error
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdown:
		logger.Info("received shutdown signal", "signal", sig.String())

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// initRedis initializes the Redis connection and returns a Redis client
func initRedis(cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return client, nil
}
