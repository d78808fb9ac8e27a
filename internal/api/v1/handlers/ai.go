package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"todoforge/internal/config"
	"todoforge/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// AI chat proxy. The provider is a black box: its failures degrade to a
// stable user-visible message, never a raw provider error.

const (
	chatTimeout    = 10 * time.Second
	maxHistorySize = 20
	systemPrompt   = "You are AI-Forge, a helpful assistant integrated into a Todo/Task management application called Todo Forge. You help users with task management, productivity tips, and general assistance. Keep your responses concise and helpful."
)

type chatMessage struct {
	Sender string `json:"sender"`
	Text   string `json:"text"`
}

type providerMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func Chat(c *fiber.Ctx) error {
	type ChatRequest struct {
		Message             string        `json:"message"`
		ConversationHistory []chatMessage `json:"conversationHistory"`
	}

	var req ChatRequest
	if err := c.BodyParser(&req); err != nil {
		logger.ErrorLogger.Error("Bad request in chat", zap.Error(err))
		return c.Status(400).JSON(fiber.Map{
			"success": false,
			"message": "Bad request",
		})
	}

	if strings.TrimSpace(req.Message) == "" {
		return c.Status(400).JSON(fiber.Map{
			"success": false,
			"message": "Message must be a non-empty string",
		})
	}
	for _, msg := range req.ConversationHistory {
		if msg.Sender == "" || msg.Text == "" {
			return c.Status(400).JSON(fiber.Map{
				"success": false,
				"message": "Invalid conversation history format",
			})
		}
	}

	// Keep the relayed history bounded
	history := req.ConversationHistory
	if len(history) > maxHistorySize {
		history = history[len(history)-maxHistorySize:]
	}

	messages := []providerMessage{{Role: "system", Content: systemPrompt}}
	for _, msg := range history {
		role := "assistant"
		if msg.Sender == "user" {
			role = "user"
		}
		messages = append(messages, providerMessage{Role: role, Content: msg.Text})
	}
	messages = append(messages, providerMessage{Role: "user", Content: req.Message})

	payload, err := json.Marshal(fiber.Map{
		"model":       config.AIModel,
		"messages":    messages,
		"max_tokens":  1000,
		"temperature": 0.7,
		"stream":      false,
	})
	if err != nil {
		logger.ErrorLogger.Error("Error encoding chat payload", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"success": false,
			"message": "Internal server error",
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), chatTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, "POST", config.AIAPIURL, bytes.NewReader(payload))
	if err != nil {
		logger.ErrorLogger.Error("Error building chat request", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"success": false,
			"message": "Internal server error",
		})
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+config.AIAPIKey)

	resp, err := http.DefaultClient.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			logger.ErrorLogger.Error("AI service timeout", zap.Error(err))
			return c.Status(504).JSON(fiber.Map{
				"success": false,
				"message": "AI service timeout. Please try again.",
			})
		}
		logger.ErrorLogger.Error("AI service request failed", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"success": false,
			"message": "AI service temporarily unavailable",
		})
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		logger.ErrorLogger.Error("AI service error", zap.Int("status", resp.StatusCode))
		return c.Status(500).JSON(fiber.Map{
			"success": false,
			"message": "AI service temporarily unavailable",
		})
	}

	var result struct {
		Model   string `json:"model"`
		Choices []struct {
			Message providerMessage `json:"message"`
		} `json:"choices"`
		Usage map[string]interface{} `json:"usage"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil || len(result.Choices) == 0 {
		logger.ErrorLogger.Error("Invalid response format from AI service", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"success": false,
			"message": "AI service temporarily unavailable",
		})
	}

	logger.AuditLogger.Info("Chat completion relayed", zap.String("model", result.Model))
	return c.JSON(fiber.Map{
		"success": true,
		"message": result.Choices[0].Message.Content,
		"model":   result.Model,
		"usage":   result.Usage,
	})
}
