package util

import (
	"net/http"

	"khoomi-api-io/catalog/pkg/errs"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type SuccessResponse struct {
	Data    interface{} `json:"data,omitempty"`
	Meta    interface{} `json:"meta,omitempty"`
	Message string      `json:"message"`
	Status  int         `json:"status"`
}

func HandleSuccess(c *gin.Context, statusCode int, message string, data interface{}) {
	c.JSON(statusCode, SuccessResponse{
		Status:  statusCode,
		Message: message,
		Data:    data,
		Meta:    nil,
	})
}

func HandleSuccessMeta(c *gin.Context, statusCode int, message string, data, meta interface{}) {
	c.JSON(statusCode, SuccessResponse{
		Status:  statusCode,
		Message: message,
		Data:    data,
		Meta:    meta,
	})
}

type ErrorResponse struct {
	Error  string    `json:"error,omitempty"`
	Kind   errs.Kind `json:"kind,omitempty"`
	Status int       `json:"status"`
}

// HandleError answers with statusCode. Only the message of a typed error is
// rendered; anything else gets the status text.
func HandleError(c *gin.Context, statusCode int, err error) {
	Logger.Debug("request failed", zap.Int("status", statusCode), zap.Error(err))
	message := http.StatusText(statusCode)
	if errs.KindOf(err) != errs.Internal {
		message = errs.MessageOf(err)
	}
	c.JSON(statusCode, ErrorResponse{
		Error:  message,
		Status: statusCode,
	})
}

// StatusForKind maps an error kind to its HTTP status.
func StatusForKind(kind errs.Kind) int {
	switch kind {
	case errs.Validation, errs.ParentNotFound:
		return http.StatusUnprocessableEntity
	case errs.DuplicateName:
		return http.StatusConflict
	case errs.NotFound:
		return http.StatusNotFound
	case errs.AuthorizationDenied:
		return http.StatusForbidden
	case errs.StoreUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// HandleAppError renders a core error. Store and internal failures are logged
// in full but answered with a generic message only.
func HandleAppError(c *gin.Context, err error) {
	kind := errs.KindOf(err)
	status := StatusForKind(kind)

	message := errs.MessageOf(err)
	if kind == errs.StoreUnavailable || kind == errs.Internal {
		LogError("request failed", err,
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("kind", string(kind)))
		message = "something went wrong, please try again later"
	}

	c.JSON(status, ErrorResponse{
		Error:  message,
		Kind:   kind,
		Status: status,
	})
}
