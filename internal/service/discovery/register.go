package discovery

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/amberapp/amber-core/internal/app"
	svcErr "github.com/amberapp/amber-core/internal/errors"
	"github.com/amberapp/amber-core/internal/server"
)

// Registrar ties the discovery service into the HTTP server.
type Registrar struct {
	appCtx *app.AppContext
}

// NewRegistrar creates a new Registrar for the discovery service.
func NewRegistrar(appCtx *app.AppContext) *Registrar {
	return &Registrar{appCtx: appCtx}
}

// Register attaches the discovery routes to the authenticated group.
func (r *Registrar) Register(rg *gin.RouterGroup) {
	svc := NewService(r.appCtx)

	rg.GET("/discovery/potential-matches", func(c *gin.Context) {
		userID, ok := server.UserID(c)
		if !ok {
			svcErr.JSON(c, svcErr.ErrAuthenticationRequired)
			return
		}

		candidates, err := svc.PotentialMatches(c.Request.Context(), userID)
		if err != nil {
			r.appCtx.Logger.Error("PotentialMatches failed", "user", userID, "err", err)
			svcErr.JSON(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"candidates": candidates})
	})
}
