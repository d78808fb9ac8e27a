package handlers

import (
	"todoforge/internal/config"
	"todoforge/internal/models"
	"todoforge/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/lib/pq"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// User handlers

// GetCurrentUser returns the profile of the authenticated user.
func GetCurrentUser(c *fiber.Ctx) error {
	userID := c.Locals("userID").(int)

	var user models.User
	err := config.DB.QueryRow(
		"SELECT id, name, email, created_at, updated_at FROM users WHERE id = $1",
		userID).Scan(&user.ID, &user.Name, &user.Email, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		logger.ErrorLogger.Error("Error fetching user", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"success": false,
			"message": "Error fetching user",
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"user":    user,
	})
}

func UpdateProfile(c *fiber.Ctx) error {
	userID := c.Locals("userID").(int)

	type ProfileRequest struct {
		Name  string `json:"name" validate:"required,min=2"`
		Email string `json:"email" validate:"required,email"`
	}

	var req ProfileRequest
	if err := c.BodyParser(&req); err != nil {
		logger.ErrorLogger.Error("Bad request in update profile", zap.Error(err))
		return c.Status(400).JSON(fiber.Map{
			"success": false,
			"message": "Bad request",
		})
	}

	if err := config.Validate.Struct(req); err != nil {
		logger.AuditLogger.Warn("Validation error during profile update", zap.Error(err))
		return c.Status(400).JSON(fiber.Map{
			"success": false,
			"message": "Validation failed",
			"errors":  validationMessages(err, registerMessages),
		})
	}

	var user models.User
	err := config.DB.QueryRow(
		"UPDATE users SET name = $1, email = $2, updated_at = CURRENT_TIMESTAMP WHERE id = $3 RETURNING id, name, email, created_at, updated_at",
		req.Name, req.Email, userID,
	).Scan(&user.ID, &user.Name, &user.Email, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			logger.SecurityLogger.Warn("Duplicate email on profile update", zap.String("email", req.Email))
			return c.Status(409).JSON(fiber.Map{
				"success": false,
				"message": "Email already exists",
			})
		}
		logger.ErrorLogger.Error("Error updating profile", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"success": false,
			"message": "Error updating profile",
		})
	}

	logger.AuditLogger.Info("Profile updated", zap.Int("user_id", userID))
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Profile updated successfully",
		"user":    user,
	})
}

func UpdatePassword(c *fiber.Ctx) error {
	userID := c.Locals("userID").(int)

	type PasswordRequest struct {
		CurrentPassword string `json:"currentPassword" validate:"required"`
		NewPassword     string `json:"newPassword" validate:"required,min=6"`
	}

	var req PasswordRequest
	if err := c.BodyParser(&req); err != nil {
		logger.ErrorLogger.Error("Bad request in update password", zap.Error(err))
		return c.Status(400).JSON(fiber.Map{
			"success": false,
			"message": "Bad request",
		})
	}

	if err := config.Validate.Struct(req); err != nil {
		logger.AuditLogger.Warn("Validation error during password update", zap.Error(err))
		return c.Status(400).JSON(fiber.Map{
			"success": false,
			"message": "Validation failed",
			"errors": validationMessages(err, map[string]string{
				"CurrentPassword": "Current password is required",
				"NewPassword":     "Password must be at least 6 characters long",
			}),
		})
	}

	var hashed string
	err := config.DB.QueryRow("SELECT password FROM users WHERE id = $1", userID).Scan(&hashed)
	if err != nil {
		logger.ErrorLogger.Error("Error fetching user", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"success": false,
			"message": "Error fetching user",
		})
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hashed), []byte(req.CurrentPassword)); err != nil {
		logger.SecurityLogger.Warn("Wrong current password", zap.Int("user_id", userID))
		return c.Status(401).JSON(fiber.Map{
			"success": false,
			"message": "Current password is incorrect",
		})
	}

	newHash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		logger.ErrorLogger.Error("Error hashing password", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"success": false,
			"message": "Password processing error",
		})
	}

	_, err = config.DB.Exec(
		"UPDATE users SET password = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2",
		string(newHash), userID)
	if err != nil {
		logger.ErrorLogger.Error("Error updating password", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"success": false,
			"message": "Error updating password",
		})
	}

	logger.AuditLogger.Info("Password updated", zap.Int("user_id", userID))
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Password updated successfully",
	})
}
