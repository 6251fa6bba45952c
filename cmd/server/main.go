package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/PrasangJhawar/storefront/internal/auth"
	c "github.com/PrasangJhawar/storefront/internal/cache"
	"github.com/PrasangJhawar/storefront/internal/config"
	h "github.com/PrasangJhawar/storefront/internal/http"
	"github.com/PrasangJhawar/storefront/internal/mailer"
	"github.com/PrasangJhawar/storefront/internal/metrics"
	"github.com/PrasangJhawar/storefront/internal/publisher"
	"github.com/PrasangJhawar/storefront/internal/repository"
	s "github.com/PrasangJhawar/storefront/internal/service"
)

func main() {
	cfg := config.Load()

	// Database
	pg, err := repository.NewPostgres(&cfg.DB)
	if err != nil {
		log.Fatalf("Failed to connect to postgres: %v", err)
	}
	defer pg.Close()

	if err := pg.RunMigrations(&cfg.DB); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Printf("Connected to postgres at %s:%d", cfg.DB.Host, cfg.DB.Port)

	// Redis
	ctx := context.Background()
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       0,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatal("Redis connection failed:", err)
	}
	log.Printf("Redis ping succeeded")
	cache := c.NewRedisCache(redisClient)

	// Services
	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	mail := mailer.NewSMTPMailer(cfg.SMTP)

	authService := s.NewAuthService(pg, tokens, mail)
	productService := s.NewProductService(pg)
	cartService := s.NewCartService(pg, cache)
	checkoutService := s.NewCheckoutService(pg, cache)
	orderService := s.NewOrderService(pg)

	// Outbox poller publishes order events to Kafka in the background.
	pollerCtx, stopPoller := context.WithCancel(ctx)
	poller := publisher.NewOutboxPoller(pg, cfg.KafkaBrokers...)
	go poller.Run(pollerCtx)

	serverMetrics := metrics.NewServerMetrics()

	router := h.NewRouter(h.RouterDeps{
		Tokens:   tokens,
		Metrics:  serverMetrics,
		Auth:     h.NewAuthHandler(authService),
		Products: h.NewProductHandler(productService),
		Cart:     h.NewCartHandler(cartService),
		Checkout: h.NewCheckoutHandler(checkoutService),
		Orders:   h.NewOrdersHandler(orderService),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Storefront listening on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("server forced to shutdown: %v", err)
	}

	stopPoller()
	poller.Close()
	log.Println("server exited")
}
