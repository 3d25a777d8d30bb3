package account

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	gormlog "gorm.io/gorm/logger"

	"github.com/charleshuang3/authsession/internal/accesstoken"
	"github.com/charleshuang3/authsession/internal/contract"
	"github.com/charleshuang3/authsession/internal/gormw"
	"github.com/charleshuang3/authsession/internal/metrics"
	"github.com/charleshuang3/authsession/internal/models"
	"github.com/charleshuang3/authsession/internal/password"
	"github.com/charleshuang3/authsession/internal/storage"
	"github.com/charleshuang3/authsession/internal/types"
)

const (
	testSecret   = "0123456789abcdef0123456789abcdef"
	testPassword = "Qwe1234#"
)

func setupTestService(t *testing.T) (*Service, *gormw.DB, *gin.Engine) {
	t.Helper()

	db, err := gormw.Open(&gormw.Config{LogLevel: gormlog.Silent})
	require.NoError(t, err)
	require.NoError(t, db.Migrate())

	codec, err := accesstoken.NewCodec(testSecret)
	require.NoError(t, err)

	s := NewService(db, codec, password.NewBcrypt(bcrypt.MinCost), metrics.New())

	gin.SetMode(gin.TestMode)
	router := gin.New()
	s.RegisterHandlers(router.Group(""))

	return s, db, router
}

func createTestUser(t *testing.T, s *Service, email string) *models.User {
	t.Helper()

	e, err := types.ParseEmail(email)
	require.NoError(t, err)
	name, err := types.ParseName("Test User")
	require.NoError(t, err)
	pw, err := types.ParsePassword(testPassword)
	require.NoError(t, err)
	hashed, err := s.hasher.Issue(pw)
	require.NoError(t, err)

	user, err := storage.CreateUser(s.db, storage.NewUser{Email: e, Name: name, HashedPassword: hashed})
	require.NoError(t, err)
	return user
}

// call sends body as JSON and decodes the envelope into T.
func call[T any](t *testing.T, router *gin.Engine, endpoint contract.Endpoint, body any, accessToken string) (int, contract.Envelope[T]) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(endpoint.Method, endpoint.Route, reader)
	req.Header.Set("Content-Type", "application/json")
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var env contract.Envelope[T]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec.Code, env
}

func login(t *testing.T, router *gin.Engine, email string) *contract.AuthPayload {
	t.Helper()
	status, env := call[contract.AuthPayload](t, router, contract.Login, map[string]string{
		"email":    email,
		"password": testPassword,
	}, "")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, contract.TagOk, env.Tag)
	require.NotNil(t, env.Data)
	return env.Data
}

func refresh(t *testing.T, router *gin.Engine, userID types.UserID, token types.RefreshToken) (int, contract.Envelope[contract.AuthPayload]) {
	t.Helper()
	return call[contract.AuthPayload](t, router, contract.RefreshToken, contract.RefreshTokenBody{
		UserID:       userID,
		RefreshToken: token,
	}, "")
}
