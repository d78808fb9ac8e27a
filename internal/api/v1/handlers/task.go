package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"todoforge/internal/config"
	"todoforge/internal/models"
	"todoforge/pkg/completion"
	"todoforge/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Task handlers

const taskColumns = "id, owner_id, title, description, priority, due_date, completed, created_at, updated_at"

func validPriority(priority string) bool {
	switch priority {
	case "Low", "Medium", "High":
		return true
	default:
		return false
	}
}

// parseDueDate accepts a calendar date or a full timestamp. Blank means
// "no due date", never an error.
func parseDueDate(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if d, err := time.Parse("2006-01-02", raw); err == nil {
		return &d, nil
	}
	if d, err := time.Parse(time.RFC3339, raw); err == nil {
		day := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
		return &day, nil
	}
	return nil, errors.New("invalid date")
}

func taskCacheKey(userID int) string {
	return fmt.Sprintf("tasks:user:%d", userID)
}

// Every mutation drops the owner's cached list so the next read
// resynchronizes from the store.
func invalidateTaskCache(userID int) {
	if err := config.RedisClient.Del(config.Ctx, taskCacheKey(userID)).Err(); err != nil {
		logger.ErrorLogger.Error("Error invalidating task cache", zap.Error(err))
	}
}

func CreateTask(c *fiber.Ctx) error {
	userID := c.Locals("userID").(int)

	type TaskRequest struct {
		Title       string      `json:"title"`
		Description string      `json:"description"`
		Priority    string      `json:"priority"`
		DueDate     string      `json:"dueDate"`
		Completed   interface{} `json:"completed"`
	}

	var req TaskRequest
	if err := c.BodyParser(&req); err != nil {
		logger.ErrorLogger.Error("Bad request in create task", zap.Error(err))
		return c.Status(400).JSON(fiber.Map{
			"success": false,
			"message": "Bad request",
		})
	}

	// Collect every violated constraint, not just the first
	var errs []string
	if strings.TrimSpace(req.Title) == "" {
		errs = append(errs, "Task title is required")
	}
	if req.Priority != "" && !validPriority(req.Priority) {
		errs = append(errs, "Priority must be Low, Medium, or High")
	}
	dueDate, err := parseDueDate(req.DueDate)
	if err != nil {
		errs = append(errs, "Due date must be a valid date")
	}
	if len(errs) > 0 {
		logger.AuditLogger.Warn("Validation error in create task", zap.Strings("errors", errs))
		return c.Status(400).JSON(fiber.Map{
			"success": false,
			"message": "Validation failed",
			"errors":  errs,
		})
	}

	var priority interface{}
	if req.Priority != "" {
		priority = req.Priority
	}
	var due interface{}
	if dueDate != nil {
		due = *dueDate
	}

	var task models.Task
	row := config.DB.QueryRow(
		"INSERT INTO tasks (owner_id, title, description, priority, due_date, completed) VALUES ($1, $2, $3, $4, $5, $6) RETURNING "+taskColumns,
		userID, strings.TrimSpace(req.Title), req.Description, priority, due, completion.Normalize(req.Completed),
	)
	if err := task.ScanRow(row); err != nil {
		logger.ErrorLogger.Error("Error creating task", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"success": false,
			"message": "Error creating task",
		})
	}

	invalidateTaskCache(userID)

	logger.AuditLogger.Info("Task created successfully", zap.Int("task_id", task.ID), zap.Int("owner_id", userID))
	return c.Status(201).JSON(fiber.Map{
		"success": true,
		"message": "Task created successfully",
		"task":    task,
	})
}

func ListTasks(c *fiber.Ctx) error {
	userID := c.Locals("userID").(int)

	// Cache-aside: try the owner's cached list first
	cacheKey := taskCacheKey(userID)
	if cached, err := config.RedisClient.Get(config.Ctx, cacheKey).Result(); err == nil {
		tasks := []models.Task{}
		if err = json.Unmarshal([]byte(cached), &tasks); err == nil {
			return c.JSON(fiber.Map{
				"success": true,
				"message": "Tasks fetched successfully (from cache)",
				"tasks":   tasks,
			})
		}
	}

	rows, err := config.DB.Query(
		"SELECT "+taskColumns+" FROM tasks WHERE owner_id = $1 ORDER BY created_at DESC, id DESC",
		userID)
	if err != nil {
		logger.ErrorLogger.Error("Error fetching tasks", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"success": false,
			"message": "Error fetching tasks",
		})
	}
	defer rows.Close()

	tasks := []models.Task{}
	for rows.Next() {
		var task models.Task
		if err := task.ScanRow(rows); err != nil {
			logger.ErrorLogger.Error("Error scanning tasks", zap.Error(err))
			return c.Status(500).JSON(fiber.Map{
				"success": false,
				"message": "Error scanning tasks",
			})
		}
		tasks = append(tasks, task)
	}
	if err = rows.Err(); err != nil {
		logger.ErrorLogger.Error("Error iterating over tasks", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"success": false,
			"message": "Error iterating over tasks",
		})
	}

	if jsonData, err := json.Marshal(tasks); err == nil {
		if err = config.RedisClient.Set(config.Ctx, cacheKey, jsonData, time.Hour).Err(); err != nil {
			logger.ErrorLogger.Error("Error caching tasks", zap.Error(err))
		}
	}

	logger.AuditLogger.Info("Tasks fetched successfully", zap.Int("owner_id", userID), zap.Int("count", len(tasks)))
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Tasks fetched successfully",
		"tasks":   tasks,
	})
}

func GetTask(c *fiber.Ctx) error {
	userID := c.Locals("userID").(int)

	taskID, err := c.ParamsInt("id")
	if err != nil {
		logger.ErrorLogger.Error("Invalid task ID", zap.Error(err))
		return c.Status(400).JSON(fiber.Map{
			"success": false,
			"message": "Invalid task ID",
		})
	}

	// Owner is part of the lookup predicate. A foreign task and a missing
	// task are indistinguishable on purpose.
	var task models.Task
	row := config.DB.QueryRow(
		"SELECT "+taskColumns+" FROM tasks WHERE id = $1 AND owner_id = $2",
		taskID, userID)
	if err := task.ScanRow(row); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.Status(404).JSON(fiber.Map{
				"success": false,
				"message": "Task not found",
			})
		}
		logger.ErrorLogger.Error("Error fetching task", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"success": false,
			"message": "Error fetching task",
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Task found",
		"task":    task,
	})
}

func UpdateTask(c *fiber.Ctx) error {
	userID := c.Locals("userID").(int)

	taskID, err := c.ParamsInt("id")
	if err != nil {
		logger.ErrorLogger.Error("Invalid task ID", zap.Error(err))
		return c.Status(400).JSON(fiber.Map{
			"success": false,
			"message": "Invalid task ID",
		})
	}

	// Pointers mark field presence: an omitted field is left untouched
	type UpdateTaskRequest struct {
		Title       *string     `json:"title"`
		Description *string     `json:"description"`
		Priority    *string     `json:"priority"`
		DueDate     *string     `json:"dueDate"`
		Completed   interface{} `json:"completed"`
	}

	var req UpdateTaskRequest
	if err := c.BodyParser(&req); err != nil {
		logger.ErrorLogger.Error("Bad request in update task", zap.Error(err))
		return c.Status(400).JSON(fiber.Map{
			"success": false,
			"message": "Bad request",
		})
	}

	var errs []string
	if req.Title != nil && strings.TrimSpace(*req.Title) == "" {
		errs = append(errs, "Task title cannot be empty")
	}
	if req.Priority != nil && *req.Priority != "" && !validPriority(*req.Priority) {
		errs = append(errs, "Priority must be Low, Medium, or High")
	}
	var dueDate *time.Time
	if req.DueDate != nil {
		dueDate, err = parseDueDate(*req.DueDate)
		if err != nil {
			errs = append(errs, "Due date must be a valid date")
		}
	}
	if len(errs) > 0 {
		logger.AuditLogger.Warn("Validation error in update task", zap.Strings("errors", errs))
		return c.Status(400).JSON(fiber.Map{
			"success": false,
			"message": "Validation failed",
			"errors":  errs,
		})
	}

	set := []string{}
	args := []interface{}{}
	add := func(column string, value interface{}) {
		args = append(args, value)
		set = append(set, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if req.Title != nil {
		add("title", strings.TrimSpace(*req.Title))
	}
	if req.Description != nil {
		add("description", *req.Description)
	}
	if req.Priority != nil {
		if *req.Priority == "" {
			add("priority", nil)
		} else {
			add("priority", *req.Priority)
		}
	}
	if req.DueDate != nil {
		if dueDate == nil {
			add("due_date", nil)
		} else {
			add("due_date", *dueDate)
		}
	}
	if req.Completed != nil {
		add("completed", completion.Normalize(req.Completed))
	}
	set = append(set, "updated_at = CURRENT_TIMESTAMP")

	// id and owner share one atomic predicate; there is no unscoped read
	// of the row before the ownership check.
	args = append(args, taskID, userID)
	query := fmt.Sprintf("UPDATE tasks SET %s WHERE id = $%d AND owner_id = $%d RETURNING %s",
		strings.Join(set, ", "), len(args)-1, len(args), taskColumns)

	var task models.Task
	if err := task.ScanRow(config.DB.QueryRow(query, args...)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.Status(404).JSON(fiber.Map{
				"success": false,
				"message": "Task not found or not authorized",
			})
		}
		logger.ErrorLogger.Error("Error updating task", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"success": false,
			"message": "Error updating task",
		})
	}

	invalidateTaskCache(userID)

	logger.AuditLogger.Info("Task updated", zap.Int("task_id", taskID), zap.Int("owner_id", userID))
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Task updated successfully",
		"task":    task,
	})
}

func DeleteTask(c *fiber.Ctx) error {
	userID := c.Locals("userID").(int)

	taskID, err := c.ParamsInt("id")
	if err != nil {
		logger.ErrorLogger.Error("Invalid task ID", zap.Error(err))
		return c.Status(400).JSON(fiber.Map{
			"success": false,
			"message": "Invalid task ID",
		})
	}

	res, err := config.DB.Exec(
		"DELETE FROM tasks WHERE id = $1 AND owner_id = $2",
		taskID, userID)
	if err != nil {
		logger.ErrorLogger.Error("Error deleting task", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"success": false,
			"message": "Error deleting task",
		})
	}
	affected, err := res.RowsAffected()
	if err != nil {
		logger.ErrorLogger.Error("Error deleting task", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"success": false,
			"message": "Error deleting task",
		})
	}
	if affected == 0 {
		return c.Status(404).JSON(fiber.Map{
			"success": false,
			"message": "Task not found or not authorized",
		})
	}

	invalidateTaskCache(userID)

	logger.AuditLogger.Info("Task deleted", zap.Int("task_id", taskID), zap.Int("owner_id", userID))
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Task deleted successfully",
	})
}
