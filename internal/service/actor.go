package service

import (
	"github.com/google/uuid"

	"foodshare/internal/errors"
	"foodshare/internal/model"
)

// Actor is the authenticated caller of a protected operation.
type Actor struct {
	UserID uuid.UUID
	Role   model.Role
}

// requireRole rejects actors whose role differs from required.
func requireRole(actor Actor, required model.Role) error {
	switch actor.Role {
	case model.RoleDonor, model.RoleReceiver, model.RoleDelivery:
		if actor.Role == required {
			return nil
		}
		return errors.Forbidden(string(required))
	default:
		return errors.ErrForbidden
	}
}
