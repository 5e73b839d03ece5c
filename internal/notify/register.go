package notify

import (
	"github.com/gin-gonic/gin"

	svcErr "github.com/amberapp/amber-core/internal/errors"
	"github.com/amberapp/amber-core/internal/server"
)

// Registrar ties the notification hub into the HTTP server.
type Registrar struct {
	hub *Hub
}

// NewRegistrar creates a new Registrar for the notification hub.
func NewRegistrar(hub *Hub) *Registrar {
	return &Registrar{hub: hub}
}

// Register attaches the notification websocket to the authenticated group.
func (r *Registrar) Register(rg *gin.RouterGroup) {
	rg.GET("/notifications/ws", func(c *gin.Context) {
		userID, ok := server.UserID(c)
		if !ok {
			svcErr.JSON(c, svcErr.ErrAuthenticationRequired)
			return
		}
		r.hub.Serve(c, userID)
	})
}
