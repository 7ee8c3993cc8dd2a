package middleware

import (
	"context"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/noberman/PTSessionTrackerBack/internal/models"
	"github.com/noberman/PTSessionTrackerBack/pkg/utils"
)

type userReader interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
}

// AuthRequired validates the bearer token and resolves the caller's account.
// Downstream handlers read user_id, role and org_id from Locals.
func AuthRequired(secret string, users userReader) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Missing authorization header",
			})
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid authorization header format",
			})
		}

		tokenString := parts[1]
		claims, err := utils.ValidateToken(tokenString, secret)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid or expired token",
			})
		}

		userID, err := strconv.ParseInt(claims.UserID, 10, 64)
		if err != nil || userID <= 0 {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid or expired token",
			})
		}

		// The role and organization come from the database, not the token, so
		// revoked or reassigned accounts lose access as soon as the row changes.
		user, err := users.GetByID(c.Context(), userID)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Account not found",
			})
		}

		c.Locals("user_id", strconv.FormatInt(user.ID, 10))
		c.Locals("role", user.Role)
		c.Locals("org_id", strconv.FormatInt(user.OrgID, 10))

		return c.Next()
	}
}
