package api

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/charleshuang3/authsession/internal/accesstoken"
	"github.com/charleshuang3/authsession/internal/contract"
	"github.com/charleshuang3/authsession/internal/gormw"
	"github.com/charleshuang3/authsession/internal/metrics"
	"github.com/charleshuang3/authsession/internal/models"
	"github.com/charleshuang3/authsession/internal/storage"
)

const (
	keyUser      = "authsession.user"
	bearerPrefix = "Bearer "
)

var errUnauthorised = errors.New("unauthorised")

// CurrentUser returns the user set by the Authenticator, nil outside of it.
func CurrentUser(c *gin.Context) *models.User {
	v, ok := c.Get(keyUser)
	if !ok {
		return nil
	}
	return v.(*models.User)
}

// Authenticator is the Bearer gate in front of the auth endpoints.
type Authenticator struct {
	db      *gormw.DB
	codec   *accesstoken.Codec
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewAuthenticator(db *gormw.DB, codec *accesstoken.Codec, m *metrics.Metrics) *Authenticator {
	return &Authenticator{
		db:      db,
		codec:   codec,
		metrics: m,
		now:     time.Now,
	}
}

// Middleware admits the request only with a well-formed, correctly signed,
// unexpired access token whose user still exists. Anything else is answered
// with AuthErr UNAUTHORISED and the handler does not run.
func (a *Authenticator) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := a.authenticate(c.GetHeader("Authorization"))
		if errors.Is(err, errUnauthorised) {
			logger.Warn().Err(err).Str("route", c.FullPath()).Msg("Unauthorised request")
			writeErr(c, authTags, contract.CodeUnauthorised)
			return
		}
		if err != nil {
			serverError(c, a.metrics, authTags, err)
			return
		}

		c.Set(keyUser, user)
		c.Next()
	}
}

func (a *Authenticator) authenticate(header string) (*models.User, error) {
	raw, ok := strings.CutPrefix(header, bearerPrefix)
	if !ok || raw == "" {
		return nil, fmt.Errorf("%w: invalid authorization header", errUnauthorised)
	}

	token, err := a.codec.Verify(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errUnauthorised, err)
	}
	if token.Expired(a.now()) {
		return nil, fmt.Errorf("%w: access token expired", errUnauthorised)
	}

	user, err := storage.GetUserByID(a.db, token.UserID())
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", token.UserID(), err)
	}
	if user == nil {
		return nil, fmt.Errorf("%w: invalid user with id %s", errUnauthorised, token.UserID())
	}
	return user, nil
}
