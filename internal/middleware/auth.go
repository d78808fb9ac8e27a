package middleware

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"todoforge/internal/config"
	"todoforge/internal/models"
	"todoforge/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"go.uber.org/zap"
)

// UseToken verifies the bearer token and resolves it to a live user row.
// The four failure cases carry distinct codes so the client can decide
// whether to force a re-login.
func UseToken(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"success": false,
			"message": "Not Authorized, token missing",
			"code":    "UNAUTHENTICATED",
		})
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"success": false,
			"message": "Invalid token format",
			"code":    "UNAUTHENTICATED",
		})
	}

	token, err := jwt.Parse(parts[1], func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return config.SecretKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"message": "Token expired",
				"code":    "TOKEN_EXPIRED",
			})
		}
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"success": false,
			"message": "Invalid token",
			"code":    "INVALID_TOKEN",
		})
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"success": false,
			"message": "Invalid token claims",
			"code":    "INVALID_TOKEN",
		})
	}
	userID, ok := claims["user_id"].(float64)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"success": false,
			"message": "Invalid user ID in token",
			"code":    "INVALID_TOKEN",
		})
	}

	// The identity may have been deleted after the token was issued
	var user models.User
	err = config.DB.QueryRow(
		"SELECT id, name, email FROM users WHERE id = $1",
		int(userID)).Scan(&user.ID, &user.Name, &user.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			logger.SecurityLogger.Warn("Token for deleted user", zap.Int("user_id", int(userID)))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"message": "User not found",
				"code":    "USER_NOT_FOUND",
			})
		}
		logger.ErrorLogger.Error("Error resolving token user", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Error resolving user",
		})
	}

	c.Locals("userID", user.ID)
	c.Locals("userName", user.Name)
	c.Locals("userEmail", user.Email)
	return c.Next()
}
