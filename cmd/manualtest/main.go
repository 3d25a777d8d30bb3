// manualtest boots the server on an in-memory database with a seeded user and
// drives the device client against it.
package main

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/charleshuang3/authsession/internal/accesstoken"
	"github.com/charleshuang3/authsession/internal/client"
	"github.com/charleshuang3/authsession/internal/config"
	"github.com/charleshuang3/authsession/internal/gormw"
	"github.com/charleshuang3/authsession/internal/handlers/account"
	"github.com/charleshuang3/authsession/internal/handlers/api"
	"github.com/charleshuang3/authsession/internal/handlers/health"
	"github.com/charleshuang3/authsession/internal/metrics"
	"github.com/charleshuang3/authsession/internal/password"
	"github.com/charleshuang3/authsession/internal/storage"
	"github.com/charleshuang3/authsession/internal/types"
)

const (
	port     = 8081
	email    = "alice@example.com"
	name     = "Alice"
	pass     = "Qwe1234#"
	callers  = 5
	tokenKey = "manualtest-secret-0123456789abcdef"
)

func main() {
	cfg := config.Config{
		Port:           port,
		GinMode:        "debug",
		BodyLimitBytes: 400 * 1024,
		Token:          config.TokenConfig{Secret: tokenKey},
		DB:             gormw.Config{},
	}

	// Initialize database
	db, err := gormw.Open(&cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate database")
	}

	hasher := password.NewBcrypt(bcrypt.MinCost)
	preloadData(db, hasher)

	codec, err := accesstoken.NewCodec(cfg.Token.Secret)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create access token codec")
	}
	m := metrics.New()

	// Set up Gin router
	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Logger(), api.Recovery(m), api.BodyLimit(cfg.BodyLimitBytes))
	account.NewService(db, codec, hasher, m).RegisterHandlers(router.Group("/"))
	health.New(db).RegisterHandlers(router.Group("/"))

	// Start server
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Port)
		log.Info().Msgf("Starting server on %s", addr)
		if err := router.Run(addr); err != nil {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	time.Sleep(time.Second)

	if err := run(fmt.Sprintf("http://127.0.0.1:%d", cfg.Port)); err != nil {
		log.Fatal().Err(err).Msg("Manual test failed")
	}
	log.Info().Msg("Manual test passed")
}

func run(baseURL string) error {
	ctx := context.Background()

	// every request refreshes first, the access token lives for an hour
	c := client.New(client.Config{
		BaseURL:       baseURL,
		HTTPClient:    &http.Client{Timeout: 5 * time.Second},
		RefreshBefore: 2 * time.Hour,
	}, client.NewMemoryStorage())

	e, _ := types.ParseEmail(email)
	p, _ := types.ParsePassword(pass)

	user, err := c.Login(ctx, e, p)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	log.Info().Str("id", user.ID.String()).Str("name", user.Name.String()).Msg("Logged in")

	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			u, err := c.Home(ctx)
			if err != nil {
				errs <- fmt.Errorf("home %d: %w", i, err)
				return
			}
			log.Info().Int("caller", i).Str("email", u.Email.String()).Msg("Home")
		}()
	}
	wg.Wait()
	close(errs)
	if err, ok := <-errs; ok {
		return err
	}

	if err := c.Logout(ctx); err != nil {
		return fmt.Errorf("logout: %w", err)
	}

	_, err = c.Home(ctx)
	if err == nil {
		return fmt.Errorf("home after logout succeeded")
	}
	log.Info().Err(err).Msg("Home after logout rejected")
	return nil
}

func preloadData(db *gormw.DB, hasher password.Hasher) {
	e, _ := types.ParseEmail(email)
	n, _ := types.ParseName(name)
	p, _ := types.ParsePassword(pass)

	hashed, err := hasher.Issue(p)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to hash password")
	}

	if _, err := storage.CreateUser(db, storage.NewUser{Email: e, Name: n, HashedPassword: hashed}); err != nil {
		log.Fatal().Err(err).Msg("Failed to create user")
	}
}
