package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/charleshuang3/authsession/internal/accesstoken"
	"github.com/charleshuang3/authsession/internal/config"
	"github.com/charleshuang3/authsession/internal/gormw"
	"github.com/charleshuang3/authsession/internal/handlers/account"
	"github.com/charleshuang3/authsession/internal/handlers/api"
	"github.com/charleshuang3/authsession/internal/handlers/firewall"
	"github.com/charleshuang3/authsession/internal/handlers/health"
	"github.com/charleshuang3/authsession/internal/handlers/middleware"
	"github.com/charleshuang3/authsession/internal/metrics"
	"github.com/charleshuang3/authsession/internal/password"
	"github.com/charleshuang3/authsession/internal/storage"
)

var (
	configPath = flag.String("c", os.Getenv("CONFIG_PATH"), "Path to configuration file")
)

func main() {
	flag.Parse()
	if *configPath == "" {
		log.Fatal().Msg("Config path must be provided via CONFIG_PATH env var or -c flag")
	}

	// Load configuration
	cfg := config.LoadConfig(*configPath)

	m := metrics.New()

	// Initialize database
	db, err := gormw.Open(&cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate database")
	}

	// cron schedule
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create scheduler")
	}
	if err := storage.RegisterRefreshTokensCleaner(scheduler, db, m); err != nil {
		log.Fatal().Err(err).Msg("Failed to schedule refresh token cleaner")
	}
	scheduler.Start()

	codec, err := accesstoken.NewCodec(cfg.Token.Secret)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create access token codec")
	}

	limiter, err := middleware.NewRateLimiter(cfg.RateLimit)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create rate limiter")
	}
	defer limiter.Close()

	// Set up Gin router
	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Logger(), api.Recovery(m), api.BodyLimit(cfg.BodyLimitBytes))

	admin := gin.New()
	admin.Use(gin.Logger(), gin.Recovery())
	m.RegisterHandlers(admin.Group("/"))

	if cfg.Firewall != nil {
		fw := firewall.New(cfg.Firewall)
		router.Use(fw.Middleware())
		fw.RegisterHandlers(admin.Group("/firewall"))
	}

	accountService := account.NewService(db, codec, password.NewBcrypt(bcrypt.DefaultCost), m)
	accountService.RegisterHandlers(router.Group("/"), limiter.Middleware())

	health.New(db).RegisterHandlers(router.Group("/"))

	// Start server
	srv := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.Port),
		// Good practice to set timeouts to avoid Slowloris attacks.
		WriteTimeout: time.Second * 15,
		ReadTimeout:  time.Second * 15,
		IdleTimeout:  time.Second * 60,
		Handler:      router,
	}
	servers := []*http.Server{srv}

	if cfg.AdminPort != 0 {
		servers = append(servers, &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.AdminPort),
			WriteTimeout: time.Second * 15,
			ReadTimeout:  time.Second * 15,
			Handler:      admin,
		})
	}

	// Run our servers in goroutines so that they don't block.
	for _, s := range servers {
		go func() {
			log.Info().Msgf("start server at %q", s.Addr)
			if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Fatal().Err(err).Msg("Failed to start server")
			}
		}()
	}

	c := make(chan os.Signal, 1)
	// We'll accept graceful shutdowns when quit via SIGINT (Ctrl+C)
	// SIGKILL, SIGQUIT or SIGTERM (Ctrl+/) will not be caught.
	signal.Notify(c, os.Interrupt)

	// Block until we receive our signal.
	<-c

	// Create a deadline to wait for.
	wait := time.Second * 15
	ctx, cancel := context.WithTimeout(context.Background(), wait)
	defer cancel()
	// Doesn't block if no connections, but will otherwise wait
	// until the timeout deadline.
	for _, s := range servers {
		if err := s.Shutdown(ctx); err != nil {
			log.Error().Err(err).Str("addr", s.Addr).Msg("Failed to shut down server")
		}
	}

	if err := scheduler.Shutdown(); err != nil {
		log.Error().Err(err).Msg("Failed to shut down scheduler")
	}

	log.Info().Msg("shutting down")
}
