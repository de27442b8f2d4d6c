package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/omnimarket-backend/internal/logger"
	"github.com/ignatzorin/omnimarket-backend/internal/pkg/apperror"
)

// ErrorHandler обрабатывает ошибки централизованно.
// Доменные ошибки отдаются клиенту с их кодом, остальные маскируются.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() || len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err

		statusCode := http.StatusInternalServerError
		code := apperror.ErrCodeInternal
		message := "внутренняя ошибка сервера"

		if appErr, ok := apperror.As(err); ok && appErr.HTTPStatus < http.StatusInternalServerError {
			statusCode = appErr.HTTPStatus
			code = appErr.Code
			message = appErr.Message
		}

		fields := logrus.Fields{
			"error":  err.Error(),
			"path":   c.FullPath(),
			"method": c.Request.Method,
			"status": statusCode,
		}
		if statusCode >= http.StatusInternalServerError {
			logger.Log.WithFields(fields).Error("Request error")
		} else {
			logger.Log.WithFields(fields).Debug("Request rejected")
		}

		c.JSON(statusCode, gin.H{"error": message, "code": code})
	}
}
