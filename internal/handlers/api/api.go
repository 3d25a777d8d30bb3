// Package api adapts typed handlers to gin: it decodes the JSON body, runs the
// handler and writes the result in the response envelope.
//
// A handler returns a contract.Code for an expected domain outcome, which is
// sent as an Err envelope with HTTP 400. Any other error is a server fault: it
// is logged under an opaque error id and only the id is sent, with HTTP 500.
package api

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-set/v3"
	"github.com/rs/zerolog/log"

	"github.com/charleshuang3/authsession/internal/contract"
	"github.com/charleshuang3/authsession/internal/handlers/firewall"
	"github.com/charleshuang3/authsession/internal/metrics"
	"github.com/charleshuang3/authsession/internal/models"
)

var (
	logger = log.With().Str("component", "api").Logger()

	// codes a well-behaved client does not produce
	suspiciousCodes = set.From([]contract.Code{
		contract.CodeInvalid,
		contract.CodeUnauthorised,
	})
)

const errorIDLength = 9

type envelopeTags struct {
	ok          string
	err         string
	serverError string
}

var (
	publicTags = envelopeTags{
		ok:          contract.TagOk,
		err:         contract.TagErr,
		serverError: contract.TagServerError,
	}
	authTags = envelopeTags{
		ok:          contract.TagAuthOk,
		err:         contract.TagAuthErr,
		serverError: contract.TagAuthServerError,
	}
)

// PublicHandler serves an endpoint that needs no access token.
type PublicHandler[P, T any] func(params *P) (*T, error)

// AuthHandler serves an endpoint behind the Authenticator. user is the live
// row of the token's owner.
type AuthHandler[P, T any] func(user *models.User, params *P) (*T, error)

// Public adapts h to gin with the Ok/Err/ServerError envelopes.
func Public[P, T any](m *metrics.Metrics, h PublicHandler[P, T]) gin.HandlerFunc {
	return func(c *gin.Context) {
		params, ok := decode[P](c, m, publicTags)
		if !ok {
			return
		}
		data, err := h(params)
		respond(c, m, publicTags, data, err)
	}
}

// Auth adapts h to gin with the AuthOk/AuthErr/AuthServerError envelopes. It
// must be mounted behind Authenticator.Middleware.
func Auth[P, T any](m *metrics.Metrics, h AuthHandler[P, T]) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil {
			serverError(c, m, authTags, errors.New("auth handler mounted without authenticator"))
			return
		}
		params, ok := decode[P](c, m, authTags)
		if !ok {
			return
		}
		data, err := h(user, params)
		respond(c, m, authTags, data, err)
	}
}

func decode[P any](c *gin.Context, m *metrics.Metrics, tags envelopeTags) (*P, bool) {
	params := new(P)
	// An empty body is allowed, required fields are checked by Validate.
	if err := c.ShouldBindJSON(params); err != nil && !errors.Is(err, io.EOF) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeErr(c, tags, contract.CodePayloadTooLarge)
			return nil, false
		}
		serverError(c, m, tags, fmt.Errorf("decode params: %w", err))
		return nil, false
	}
	if v, ok := any(params).(contract.Validator); ok {
		if err := v.Validate(); err != nil {
			serverError(c, m, tags, fmt.Errorf("decode params: %w", err))
			return nil, false
		}
	}
	return params, true
}

func respond[T any](c *gin.Context, m *metrics.Metrics, tags envelopeTags, data *T, err error) {
	if err != nil {
		var code contract.Code
		if errors.As(err, &code) {
			writeErr(c, tags, code)
			return
		}
		serverError(c, m, tags, err)
		return
	}
	if data == nil {
		data = new(T)
	}
	c.JSON(http.StatusOK, contract.Envelope[T]{Tag: tags.ok, Data: data})
}

func writeErr(c *gin.Context, tags envelopeTags, code contract.Code) {
	if suspiciousCodes.Contains(code) {
		firewall.MarkSuspicious(c, string(code))
	}
	c.AbortWithStatusJSON(http.StatusBadRequest, contract.Envelope[contract.NoPayload]{
		Tag:  tags.err,
		Code: code,
	})
}

func serverError(c *gin.Context, m *metrics.Metrics, tags envelopeTags, err error) {
	message := c.Request.Method + " " + c.FullPath() + "\nError: " + err.Error()
	id := ErrorID(message)
	logger.Error().Err(err).Str("errorID", id).Str("route", c.FullPath()).Msg("Server error")
	m.ObserveServerError()

	c.AbortWithStatusJSON(http.StatusInternalServerError, contract.Envelope[contract.NoPayload]{
		Tag:     tags.serverError,
		ErrorID: id,
	})
}

// ErrorID is the id reported to clients for a server fault: the first 9 hex
// characters of the md5 of the logged message. Equal faults share an id.
func ErrorID(message string) string {
	sum := md5.Sum([]byte(message))
	return hex.EncodeToString(sum[:])[:errorIDLength]
}

// BodyLimit caps the request body at n bytes. Reading past it fails decoding
// with PAYLOAD_TOO_LARGE.
func BodyLimit(n int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, n)
		}
		c.Next()
	}
}

// Recovery turns a panic into a ServerError envelope.
func Recovery(m *metrics.Metrics) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		tags := publicTags
		if CurrentUser(c) != nil {
			tags = authTags
		}
		serverError(c, m, tags, fmt.Errorf("panic: %v", recovered))
	})
}
