package controllers

import (
	"context"
	"time"

	"khoomi-api-io/catalog/internal/common"

	"github.com/gin-gonic/gin"
)

// WithTimeout derives the handler context from the request, bounded by timeout
// (the standard request timeout when zero).
func WithTimeout(c *gin.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = common.REQUEST_TIMEOUT_SECS
	}
	return context.WithTimeout(c.Request.Context(), timeout)
}
