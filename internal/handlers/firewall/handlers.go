package firewall

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterHandlers mounts the manual ban endpoints. They belong on the admin
// listener only.
func (f *Firewall) RegisterHandlers(rg *gin.RouterGroup) {
	rg.GET("/ban", f.ban)
	rg.GET("/logerr", f.logError)
}

type firewallRequest struct {
	IP     string `form:"ip" binding:"required"`
	Reason string `form:"reason" binding:"required"`
}

func (f *Firewall) ban(c *gin.Context) {
	req := &firewallRequest{}
	if err := c.ShouldBind(req); err != nil {
		c.String(http.StatusBadRequest, "Missing required parameters")
		return
	}

	logger.Info().Str("ip", req.IP).Str("reason", req.Reason).Msg("Manual ban")
	f.fw.BanIP(req.IP, int(f.conf.BanMinutes), req.Reason)
}

func (f *Firewall) logError(c *gin.Context) {
	req := &firewallRequest{}
	if err := c.ShouldBind(req); err != nil {
		c.String(http.StatusBadRequest, "Missing required parameters")
		return
	}

	f.fw.LogIPError(req.IP, req.Reason)
}
