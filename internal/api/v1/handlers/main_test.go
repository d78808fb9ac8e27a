package handlers_test

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"todoforge/configs"
	v1 "todoforge/internal/api/v1"
	"todoforge/internal/config"
	"todoforge/internal/middleware"
	"todoforge/internal/repository"
	"todoforge/pkg/database"
	"todoforge/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/joho/godotenv"
)

func connectDBTest(cfg configs.Config) *sql.DB {
	psqlconn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBNameTest)
	db, err := sql.Open("postgres", psqlconn)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}
	return db
}

func TestMain(m *testing.M) {
	logger.InitLoggers()
	defer logger.SyncLoggers()

	os.Setenv("GO_ENV", "test")
	if err := godotenv.Load(); err != nil {
		if err := godotenv.Load("../../../../.env"); err != nil {
			logger.SystemLogger.Info("No .env file found, using default values")
		}
	}

	cfg := configs.LoadConfig()
	config.SecretKey = []byte(cfg.JWTSecret)
	config.DB = connectDBTest(cfg)
	defer config.DB.Close()

	repository.CreateTableIfNotExists(config.DB)

	config.RedisClient = database.ConnectRedis(cfg)
	defer config.RedisClient.Close()

	code := m.Run()

	repository.DeleteAllTable(config.DB)
	os.Exit(code)
}

func CreateTestApp() *fiber.App {
	app := fiber.New()
	app.Use(middleware.ErrorHandler())
	v1.RegisterRoutes(app)
	return app
}

// doJSON performs one request against the app and decodes the JSON body.
func doJSON(t *testing.T, app *fiber.App, method, path, token string, body interface{}) (int, map[string]interface{}) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Error encoding request body: %v", err)
		}
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, path, err)
	}
	defer resp.Body.Close()

	var result map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("Error decoding %s %s response: %v", method, path, err)
	}
	return resp.StatusCode, result
}

// registerUser creates a fresh user and returns its session token and id.
func registerUser(t *testing.T, app *fiber.App) (string, int, string) {
	t.Helper()

	email := fmt.Sprintf("user_%d@example.com", time.Now().UnixNano())
	status, result := doJSON(t, app, "POST", "/api/v1/register", "", map[string]string{
		"name":     "Test User",
		"email":    email,
		"password": "secret123",
	})
	if status != http.StatusCreated {
		t.Fatalf("Expected status 201 for register, got %d: %v", status, result)
	}
	token, _ := result["token"].(string)
	if token == "" {
		t.Fatalf("Expected token in register response")
	}
	user, ok := result["user"].(map[string]interface{})
	if !ok {
		t.Fatalf("Expected user in register response")
	}
	return token, int(user["id"].(float64)), email
}

// createTask creates a task for the given session and returns the task body.
func createTask(t *testing.T, app *fiber.App, token string, body map[string]interface{}) map[string]interface{} {
	t.Helper()

	status, result := doJSON(t, app, "POST", "/api/v1/tasks/", token, body)
	if status != http.StatusCreated {
		t.Fatalf("Expected status 201 for create task, got %d: %v", status, result)
	}
	task, ok := result["task"].(map[string]interface{})
	if !ok {
		t.Fatalf("Expected task in create response")
	}
	return task
}
