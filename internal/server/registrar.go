package server

import "github.com/gin-gonic/gin"

// Registrar is a common interface for all HTTP service registrars.
// Each service package attaches its own routes to the authenticated group.
type Registrar interface {
	Register(rg *gin.RouterGroup)
}
