// Package health serves liveness endpoints for load balancers and operators.
package health

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/charleshuang3/authsession/internal/gormw"
)

var (
	logger = log.With().Str("component", "health").Logger()
)

const (
	statusOK   = "ok"
	databaseOK = "Ok"
)

type Handlers struct {
	db  *gormw.DB
	now func() time.Time
}

func New(db *gormw.DB) *Handlers {
	return &Handlers{db: db, now: time.Now}
}

func (h *Handlers) RegisterHandlers(rg *gin.RouterGroup) {
	// For status pinging
	rg.GET("/uptime", h.uptime)
	// For internal use, reports the database as well
	rg.GET("/healthcheck", h.healthcheck)
}

func (h *Handlers) uptime(c *gin.Context) {
	c.String(http.StatusOK, statusOK)
}

type healthcheckResponse struct {
	Status     string `json:"status"`
	ServerTime int64  `json:"serverTime"`
	// Database is "Ok" or the error from pinging it.
	Database string `json:"database"`
}

// healthcheck always answers 200, a broken database is reported in the body.
func (h *Handlers) healthcheck(c *gin.Context) {
	database := databaseOK
	if err := h.db.Ping(); err != nil {
		logger.Error().Err(err).Msg("Database ping failed")
		database = err.Error()
	}

	c.JSON(http.StatusOK, &healthcheckResponse{
		Status:     statusOK,
		ServerTime: h.now().UnixMilli(),
		Database:   database,
	})
}
