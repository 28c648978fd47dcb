package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/repuestosv/api/internal/api/middleware"
	"github.com/repuestosv/api/internal/services"
	"github.com/repuestosv/api/internal/utils"
)

// respondData wraps a payload in the success envelope.
func respondData(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{"ok": true, "data": data})
}

// respondError maps a service error to the error envelope. The string code is
// the stable contract; the HTTP status only encodes the error class. Anything
// unrecognized degrades to unexpected_error so internals never leak.
func respondError(c *gin.Context, err error) {
	var ve *services.ValidationError
	if errors.As(err, &ve) {
		c.JSON(http.StatusBadRequest, gin.H{
			"ok":     false,
			"error":  services.CodeInvalidRequest,
			"issues": ve.Issues,
		})
		return
	}

	var be *services.BusinessError
	if errors.As(err, &be) {
		c.JSON(be.Status, gin.H{"ok": false, "error": be.Code})
		return
	}

	log.Printf("Unexpected error on %s %s: %v", c.Request.Method, c.FullPath(), err)
	c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": services.CodeUnexpected})
}

// respondInvalid reports a single-field invalid_request without going through
// the services package.
func respondInvalid(c *gin.Context, path, message string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"ok":     false,
		"error":  services.CodeInvalidRequest,
		"issues": []services.Issue{{Path: path, Message: message, Code: "invalid"}},
	})
}

// callerID extracts and parses the authenticated subject set by the auth
// middleware. ParseSixID treats "" as the zero ID, so an empty claim is
// rejected here rather than resolving to the all-zero profile.
func callerID(c *gin.Context) (utils.SixID, bool) {
	userIDStr := c.GetString(middleware.ContextKeyUserID)
	if userIDStr == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"ok": false, "error": "unauthorized"})
		return utils.SixID{}, false
	}
	userID, err := utils.ParseSixID(userIDStr)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"ok": false, "error": "unauthorized"})
		return utils.SixID{}, false
	}
	return userID, true
}
