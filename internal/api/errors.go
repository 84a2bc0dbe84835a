package api

import (
	"net/http"
	"strconv"

	"marketplace-service/internal/models"
	"marketplace-service/internal/util"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var kindStatus = map[models.ErrorKind]int{
	models.KindValidation:        http.StatusBadRequest,
	models.KindInvalidCode:       http.StatusBadRequest,
	models.KindNotFound:          http.StatusNotFound,
	models.KindPermissionDenied:  http.StatusForbidden,
	models.KindConflict:          http.StatusConflict,
	models.KindInvalidTransition: http.StatusConflict,
	models.KindInsufficientStock: http.StatusUnprocessableEntity,
	models.KindUnauthenticated:   http.StatusUnauthorized,
	models.KindDependency:        http.StatusBadGateway,
}

// statusFor maps an error kind to its HTTP status; unclassified errors are internal
func statusFor(err error) int {
	if status, ok := kindStatus[models.KindOf(err)]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// respondError writes the error with the status of its kind
func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		fields := append([]zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		}, util.SpanFields(c.Request.Context())...)
		util.GetLogger().Error("Request failed", fields...)
		c.JSON(status, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(status, gin.H{
		"error": err.Error(),
		"kind":  models.KindOf(err),
	})
}

func abortWithError(c *gin.Context, err error) {
	respondError(c, err)
	c.Abort()
}

func badRequest(c *gin.Context, err error) {
	respondError(c, models.WrapError(models.KindValidation, err, "invalid request body"))
}

// paramID parses a positive int64 path parameter
func paramID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		respondError(c, models.NewError(models.KindValidation, "invalid %s", name))
		return 0, false
	}
	return id, true
}
