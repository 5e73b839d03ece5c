package chat

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/amberapp/amber-core/internal/app"
	svcErr "github.com/amberapp/amber-core/internal/errors"
	"github.com/amberapp/amber-core/internal/server"
	"github.com/amberapp/amber-core/internal/stream"
)

// Registrar ties the chat provisioning service into the HTTP server.
type Registrar struct {
	appCtx    *app.AppContext
	transport stream.Transport
}

// NewRegistrar creates a new Registrar for the chat service.
func NewRegistrar(appCtx *app.AppContext, transport stream.Transport) *Registrar {
	return &Registrar{appCtx: appCtx, transport: transport}
}

// Register attaches the provisioning routes to the authenticated group.
func (r *Registrar) Register(rg *gin.RouterGroup) {
	svc := NewService(r.appCtx, r.transport)

	rg.POST("/chat/conversations/:userID", func(c *gin.Context) {
		requesterID, otherID, ok := resolvePair(c)
		if !ok {
			return
		}

		id, err := svc.EnsureConversation(c.Request.Context(), requesterID, otherID)
		if err != nil {
			r.appCtx.Logger.Error("EnsureConversation failed", "requester", requesterID, "other", otherID, "err", err)
			svcErr.JSON(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"conversation_id": id})
	})

	rg.POST("/chat/calls/:userID", func(c *gin.Context) {
		requesterID, otherID, ok := resolvePair(c)
		if !ok {
			return
		}

		id, err := svc.EnsureCallSession(c.Request.Context(), requesterID, otherID)
		if err != nil {
			r.appCtx.Logger.Error("EnsureCallSession failed", "requester", requesterID, "other", otherID, "err", err)
			svcErr.JSON(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"call_id": id})
	})
}

// resolvePair reads the caller from the session and the counterpart from the
// path. Writes the error response itself when validation fails.
func resolvePair(c *gin.Context) (requesterID, otherID uint64, ok bool) {
	requesterID, exists := server.UserID(c)
	if !exists {
		svcErr.JSON(c, svcErr.ErrAuthenticationRequired)
		return 0, 0, false
	}

	otherID, err := strconv.ParseUint(c.Param("userID"), 10, 64)
	if err != nil || otherID == 0 {
		svcErr.JSON(c, svcErr.Validation("userID", "must be a positive integer"))
		return 0, 0, false
	}
	return requesterID, otherID, true
}
