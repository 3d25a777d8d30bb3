// Package firewall counts suspicious requests per client IP and bans repeat
// offenders through github.com/charleshuang3/firewall.
//
// Handlers do not talk to the firewall directly. They call MarkSuspicious and
// the middleware reports the request once the handler chain has finished.
package firewall

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	zlog "github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	fw "github.com/charleshuang3/firewall"
	"github.com/charleshuang3/firewall/gcplog"
	"github.com/charleshuang3/firewall/ipgeo"
	"github.com/charleshuang3/firewall/opn"
	"github.com/charleshuang3/firewall/pf"
	"github.com/charleshuang3/firewall/ros"
	"github.com/charleshuang3/firewall/zerolog"
)

var (
	logger = log.With().Str("component", "firewall").Logger()
)

const (
	KeyHackingError = "HACKING_ERROR"

	reasonUndefinedURL = "undefined_url"
	serviceName        = "authsession"
)

// MarkSuspicious flags the request so the middleware counts an error against
// the client IP. It is a no-op when no firewall is installed.
func MarkSuspicious(c *gin.Context, reason string) {
	c.Set(KeyHackingError, c.FullPath()+" "+reason)
}

type Firewall struct {
	fw   *fw.Firewall
	conf *FirewallConfig
}

// New builds the firewall from a validated config. Failing to load the geo
// databases is fatal.
func New(conf *FirewallConfig) *Firewall {
	var firewallProvider fw.IFirewall
	switch conf.Provider {
	case "ros":
		firewallProvider = ros.New(
			conf.ProviderIP, conf.ProviderUser, conf.ProviderPassword)
	case "pf":
		firewallProvider = pf.New(
			conf.ProviderIP, conf.ProviderUser, conf.ProviderPassword)
	case "opn":
		firewallProvider = opn.New(
			conf.ProviderIP, conf.ProviderUser, conf.ProviderPassword, conf.ListUUID)
	default:
		// nil provider only logs, nothing is blocked
	}

	var fwlogger fw.ILogger
	if conf.GoogleKeyFile != "" {
		var err error
		fwlogger, err = gcplog.New(conf.GoogleKeyFile, conf.GoogleProjectID, serviceName)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to create gcp logger")
		}
	} else {
		fwlogger = zerolog.New(logger, zlog.InfoLevel, serviceName)
	}

	mm, err := ipgeo.NewAutoUpdateMMIPGeo(
		conf.CityDBFile,
		conf.UpdatedCityDBFile,
		conf.ASNDBFile,
		conf.UpdatedASNDBFile)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load ip geo databases")
	}

	return &Firewall{
		fw: fw.New(
			conf.Whitelist,
			firewallProvider,
			fwlogger,
			mm,
			fw.ForgivableError{
				Duration:    time.Duration(conf.Forgivable.DurationInMinute) * time.Minute,
				Count:       int(conf.Forgivable.Count),
				BanInMinute: int(conf.BanMinutes),
			}),
		conf: conf,
	}
}

// Middleware reports requests marked by MarkSuspicious and requests to
// routes that do not exist.
func (f *Firewall) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if reason, ok := c.Get(KeyHackingError); ok {
			f.fw.LogIPError(c.ClientIP(), reason.(string))
			return
		}

		if c.Writer.Status() == http.StatusNotFound {
			f.fw.LogIPError(c.ClientIP(), reasonUndefinedURL)
		}
	}
}
