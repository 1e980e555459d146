package services

import (
	"testing"

	"khoomi-api-io/catalog/pkg/errs"
	"khoomi-api-io/catalog/pkg/models"

	"github.com/stretchr/testify/assert"
)

func TestRoleGate_Authorize(t *testing.T) {
	gate := NewRoleGate(models.RoleAdmin)

	tests := []struct {
		name  string
		actor models.Actor
		ok    bool
	}{
		{name: "admin", actor: models.Actor{UserID: "1", Role: models.RoleAdmin}, ok: true},
		{name: "system", actor: models.System, ok: true},
		{name: "regular user", actor: models.Actor{UserID: "2", Role: models.RoleRegular}},
		{name: "anonymous", actor: models.Anonymous},
		{name: "unknown role", actor: models.Actor{UserID: "3", Role: "moderator"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := gate.Authorize(tt.actor, CapabilityAdmin)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errs.Is(err, errs.AuthorizationDenied))
		})
	}
}
