package services

import (
	"khoomi-api-io/catalog/pkg/errs"
	"khoomi-api-io/catalog/pkg/models"
)

// RoleGate passes only actors whose role equals Required.
type RoleGate struct {
	Required models.UserRole
}

func NewRoleGate(required models.UserRole) RoleGate {
	return RoleGate{Required: required}
}

func (g RoleGate) Authorize(actor models.Actor, capability Capability) error {
	if actor.Role == models.RoleNone {
		return errs.E(errs.AuthorizationDenied, "authentication required for %s access", capability)
	}
	if actor.Role != g.Required {
		return errs.E(errs.AuthorizationDenied, "insufficient permissions: %s access required", capability)
	}
	return nil
}
