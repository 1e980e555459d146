package helpers

import (
	"strings"

	"khoomi-api-io/catalog/internal/common"
	"khoomi-api-io/catalog/pkg/errs"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ObjectIDParam parses the named route parameter as an ObjectID.
func ObjectIDParam(c *gin.Context, name string) (primitive.ObjectID, error) {
	raw := c.Param(name)
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		return primitive.NilObjectID, errs.Wrap(err, errs.Validation, "invalid %s %q", name, raw)
	}
	return id, nil
}

// SearchQuery extracts the trimmed search term from the s query parameter.
func SearchQuery(c *gin.Context) (string, error) {
	query := strings.TrimSpace(c.Query("s"))
	if len([]rune(query)) < common.MIN_SEARCH_LENGTH {
		return "", errs.E(errs.Validation, "search query must be at least %d characters", common.MIN_SEARCH_LENGTH)
	}
	return query, nil
}
