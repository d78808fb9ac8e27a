package handlers

import (
	"time"

	"todoforge/internal/config"
	"todoforge/internal/models"
	"todoforge/pkg/logger"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/lib/pq"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Auth handlers

// registerMessages maps failed validator fields to the messages the client
// displays. All violations are collected, not just the first.
var registerMessages = map[string]string{
	"Name":     "Name must be at least 2 characters long",
	"Email":    "Please provide a valid email address",
	"Password": "Password must be at least 6 characters long",
}

func validationMessages(err error, messages map[string]string) []string {
	var out []string
	if verrs, ok := err.(validator.ValidationErrors); ok {
		for _, fe := range verrs {
			if msg, ok := messages[fe.Field()]; ok {
				out = append(out, msg)
			} else {
				out = append(out, fe.Error())
			}
		}
	} else {
		out = append(out, err.Error())
	}
	return out
}

func issueToken(userID int) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"exp":     time.Now().Add(24 * time.Hour).Unix(),
	})
	return token.SignedString(config.SecretKey)
}

func Register(c *fiber.Ctx) error {
	type RegisterRequest struct {
		Name     string `json:"name" validate:"required,min=2"`
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required,min=6"`
	}

	var req RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		logger.ErrorLogger.Error("Bad request in register", zap.Error(err))
		return c.Status(400).JSON(fiber.Map{
			"success": false,
			"message": "Bad request",
		})
	}

	if err := config.Validate.Struct(req); err != nil {
		logger.AuditLogger.Warn("Validation error during register", zap.Error(err))
		return c.Status(400).JSON(fiber.Map{
			"success": false,
			"message": "Validation failed",
			"errors":  validationMessages(err, registerMessages),
		})
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		logger.ErrorLogger.Error("Error hashing password", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"success": false,
			"message": "Password processing error",
		})
	}

	var user models.User
	err = config.DB.QueryRow(
		"INSERT INTO users (name, email, password) VALUES ($1, $2, $3) RETURNING id, name, email, created_at, updated_at",
		req.Name, req.Email, string(hashedPassword),
	).Scan(&user.ID, &user.Name, &user.Email, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			logger.SecurityLogger.Warn("Duplicate email", zap.String("email", req.Email))
			return c.Status(409).JSON(fiber.Map{
				"success": false,
				"message": "Email already exists",
			})
		}
		logger.ErrorLogger.Error("Error creating user", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"success": false,
			"message": "Error creating user",
		})
	}

	tokenString, err := issueToken(user.ID)
	if err != nil {
		logger.ErrorLogger.Error("Error generating token", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"success": false,
			"message": "Authentication service error",
		})
	}

	logger.AuditLogger.Info("User registered successfully", zap.Int("user_id", user.ID))
	return c.Status(201).JSON(fiber.Map{
		"success": true,
		"message": "User created successfully",
		"token":   tokenString,
		"user":    user,
	})
}

func Login(c *fiber.Ctx) error {
	type LoginRequest struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}

	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		logger.ErrorLogger.Error("Bad request in login", zap.Error(err))
		return c.Status(400).JSON(fiber.Map{
			"success": false,
			"message": "Bad request",
		})
	}

	if err := config.Validate.Struct(req); err != nil {
		logger.AuditLogger.Warn("Validation error during login", zap.Error(err))
		return c.Status(400).JSON(fiber.Map{
			"success": false,
			"message": "Validation failed",
			"errors": validationMessages(err, map[string]string{
				"Email":    "Please provide a valid email address",
				"Password": "Password is required",
			}),
		})
	}

	var user models.User
	var hashed string
	err := config.DB.QueryRow(
		"SELECT id, name, email, password, created_at, updated_at FROM users WHERE email = $1",
		req.Email).Scan(&user.ID, &user.Name, &user.Email, &hashed, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		logger.SecurityLogger.Warn("User not found", zap.String("email", req.Email))
		return c.Status(401).JSON(fiber.Map{
			"success": false,
			"message": "Invalid credentials",
		})
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hashed), []byte(req.Password)); err != nil {
		logger.SecurityLogger.Warn("Invalid password", zap.String("email", req.Email))
		return c.Status(401).JSON(fiber.Map{
			"success": false,
			"message": "Invalid credentials",
		})
	}

	tokenString, err := issueToken(user.ID)
	if err != nil {
		logger.ErrorLogger.Error("Error generating token", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"success": false,
			"message": "Authentication service error",
		})
	}

	logger.AuditLogger.Info("Login success", zap.Int("user_id", user.ID))
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Login success",
		"token":   tokenString,
		"user":    user,
	})
}
