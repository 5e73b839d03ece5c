package match

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/amberapp/amber-core/internal/app"
	svcErr "github.com/amberapp/amber-core/internal/errors"
	"github.com/amberapp/amber-core/internal/server"
)

// Registrar ties the match service into the HTTP server.
type Registrar struct {
	appCtx *app.AppContext
}

// NewRegistrar creates a new Registrar for the match service.
func NewRegistrar(appCtx *app.AppContext) *Registrar {
	return &Registrar{appCtx: appCtx}
}

type likeRequest struct {
	ToUserID uint64 `json:"to_user_id"`
}

// Register attaches the like/unlike/match routes to the authenticated group.
func (r *Registrar) Register(rg *gin.RouterGroup) {
	svc := NewService(r.appCtx)

	rg.POST("/matches/like", func(c *gin.Context) {
		userID, ok := server.UserID(c)
		if !ok {
			svcErr.JSON(c, svcErr.ErrAuthenticationRequired)
			return
		}

		var req likeRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.ToUserID == 0 {
			svcErr.JSON(c, svcErr.Validation("to_user_id", "must be a positive integer"))
			return
		}

		result, err := svc.Like(c.Request.Context(), userID, req.ToUserID)
		if err != nil {
			r.appCtx.Logger.Error("Like failed", "from", userID, "to", req.ToUserID, "err", err)
			svcErr.JSON(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	})

	rg.POST("/matches/unlike", func(c *gin.Context) {
		userID, ok := server.UserID(c)
		if !ok {
			svcErr.JSON(c, svcErr.ErrAuthenticationRequired)
			return
		}

		var req likeRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.ToUserID == 0 {
			svcErr.JSON(c, svcErr.Validation("to_user_id", "must be a positive integer"))
			return
		}

		if err := svc.Unlike(c.Request.Context(), userID, req.ToUserID); err != nil {
			r.appCtx.Logger.Error("Unlike failed", "from", userID, "to", req.ToUserID, "err", err)
			svcErr.JSON(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	rg.GET("/matches", func(c *gin.Context) {
		userID, ok := server.UserID(c)
		if !ok {
			svcErr.JSON(c, svcErr.ErrAuthenticationRequired)
			return
		}

		matches, err := svc.Matches(c.Request.Context(), userID)
		if err != nil {
			r.appCtx.Logger.Error("Matches failed", "user", userID, "err", err)
			svcErr.JSON(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"matches": matches})
	})

	rg.GET("/matches/count", func(c *gin.Context) {
		userID, ok := server.UserID(c)
		if !ok {
			svcErr.JSON(c, svcErr.ErrAuthenticationRequired)
			return
		}

		count, err := svc.MatchCount(c.Request.Context(), userID)
		if err != nil {
			svcErr.JSON(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"count": count})
	})
}
