package middleware

import (
	"net/http"

	"khoomi-api-io/catalog/internal/auth"
	"khoomi-api-io/catalog/pkg/errs"
	"khoomi-api-io/catalog/pkg/models"
	"khoomi-api-io/catalog/pkg/util"

	"github.com/gin-gonic/gin"
)

const actorKey = "actor"

// Authenticate resolves the caller's role from the bearer token. Requests
// without an Authorization header continue as the anonymous actor; a header
// carrying a bad token is rejected.
func Authenticate(verifier *auth.TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			SetActor(c, models.Anonymous)
			c.Next()
			return
		}

		token, err := auth.ExtractBearerToken(header)
		if err != nil {
			util.HandleError(c, http.StatusUnauthorized, err)
			c.Abort()
			return
		}
		claim, err := verifier.ValidateToken(c.Request.Context(), token)
		if errs.Is(err, errs.StoreUnavailable) {
			util.HandleAppError(c, err)
			c.Abort()
			return
		}
		if err != nil {
			util.HandleError(c, http.StatusUnauthorized, err)
			c.Abort()
			return
		}

		SetActor(c, claim.Actor())
		c.Next()
	}
}

// SetActor records the caller for the handlers further down the chain.
func SetActor(c *gin.Context, actor models.Actor) {
	c.Set(actorKey, actor)
}

// ActorFromContext returns the actor set by Authenticate, anonymous otherwise.
func ActorFromContext(c *gin.Context) models.Actor {
	if v, ok := c.Get(actorKey); ok {
		if actor, ok := v.(models.Actor); ok {
			return actor
		}
	}
	return models.Anonymous
}
