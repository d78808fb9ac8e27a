package v1

import (
	"todoforge/internal/api/v1/handlers"
	"todoforge/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(app *fiber.App) {
	api := app.Group("/api/v1")

	// Auth
	api.Post("/register", handlers.Register)
	api.Post("/login", handlers.Login)

	// User
	userRoutes := api.Group("/users", middleware.UseToken)
	userRoutes.Get("/me", handlers.GetCurrentUser)
	userRoutes.Put("/profile", handlers.UpdateProfile)
	userRoutes.Put("/password", handlers.UpdatePassword)

	// Task
	taskRoutes := api.Group("/tasks", middleware.UseToken)
	taskRoutes.Post("/", handlers.CreateTask)
	taskRoutes.Get("/", handlers.ListTasks)
	taskRoutes.Get("/:id", handlers.GetTask)
	taskRoutes.Put("/:id", handlers.UpdateTask)
	taskRoutes.Delete("/:id", handlers.DeleteTask)

	// AI chat
	aiRoutes := api.Group("/ai", middleware.UseToken)
	aiRoutes.Post("/chat", handlers.Chat)
}
