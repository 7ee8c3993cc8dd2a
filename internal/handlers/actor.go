package handlers

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/noberman/PTSessionTrackerBack/internal/models"
)

var errInvalidActor = errors.New("invalid actor")

// parseActorID reads the authenticated user id placed in Locals by the auth
// middleware.
func parseActorID(c *fiber.Ctx) (int64, error) {
	raw, ok := c.Locals("user_id").(string)
	if !ok {
		return 0, errInvalidActor
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, errInvalidActor
	}
	return id, nil
}

// parseOrgID reads the organization id resolved by the auth middleware.
func parseOrgID(c *fiber.Ctx) (int64, error) {
	raw, ok := c.Locals("org_id").(string)
	if !ok {
		return 0, errInvalidActor
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, errInvalidActor
	}
	return id, nil
}

func actorRole(c *fiber.Ctx) string {
	role, _ := c.Locals("role").(string)
	return role
}

// requireRole enforces the closed role set. Unknown role strings never pass.
func requireRole(c *fiber.Ctx, allowed ...string) bool {
	role := actorRole(c)
	if role != models.RoleOwner && role != models.RoleTrainer {
		return false
	}
	for _, candidate := range allowed {
		if role == candidate {
			return true
		}
	}
	return false
}
