package middleware

import (
	"net/http"

	"khoomi-api-io/catalog/pkg/errs"
	"khoomi-api-io/catalog/pkg/models"
	"khoomi-api-io/catalog/pkg/services"
	"khoomi-api-io/catalog/pkg/util"

	"github.com/gin-gonic/gin"
)

// RequireRole rejects callers the gate does not admit before the handler runs.
// The category service repeats the same check, so handlers stay safe when
// mounted without this stage.
func RequireRole(gate services.Authorizer) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := ActorFromContext(c)
		if err := gate.Authorize(actor, services.CapabilityAdmin); err != nil {
			status := http.StatusForbidden
			if actor.Role == models.RoleNone {
				status = http.StatusUnauthorized
			}
			c.AbortWithStatusJSON(status, util.ErrorResponse{
				Error:  errs.MessageOf(err),
				Kind:   errs.KindOf(err),
				Status: status,
			})
			return
		}

		c.Next()
	}
}
