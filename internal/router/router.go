package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/mpereira-dev/tasknest/internal/api/auth"
	"github.com/mpereira-dev/tasknest/internal/api/todo"
	"github.com/mpereira-dev/tasknest/internal/api/user"
)

// Config carries the handlers and middleware the router wires together.
// Server-wide middleware (request ID, logger, recoverer) is applied in
// main.go before this router is mounted.
type Config struct {
	AuthHandler            *auth.AuthHandler
	TodoHandler            *todo.TodoHandler
	UserHandler            *user.UserHandler
	AuthenticateMiddleware func(http.Handler) http.Handler
	FrontendURL            string
	UploadsDir             string
}

// SetupRouter builds the full route tree: public auth endpoints, protected
// todo and profile endpoints, and static serving for uploaded images.
func SetupRouter(cfg *Config) chi.Router {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.FrontendURL},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/ping", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("pong"))
	})

	if cfg.UploadsDir != "" {
		fs := http.StripPrefix("/uploads/", http.FileServer(http.Dir(cfg.UploadsDir)))
		r.Get("/uploads/*", fs.ServeHTTP)
	}

	r.Route("/api/v1", func(r chi.Router) {
		// Public: no access token required.
		r.Group(func(r chi.Router) {
			r.Post("/auth/register", cfg.AuthHandler.Register)
			r.Post("/auth/login", cfg.AuthHandler.Login)
			r.Post("/auth/refresh", cfg.AuthHandler.Refresh)
			r.Post("/auth/logout", cfg.AuthHandler.Logout)
			r.Post("/auth/forgot-password", cfg.AuthHandler.ForgotPassword)
			r.Post("/auth/reset-password", cfg.AuthHandler.ResetPassword)
			r.Post("/auth/verify-email", cfg.AuthHandler.VerifyEmail)
		})

		// Protected: requires a valid access token.
		r.Group(func(r chi.Router) {
			r.Use(cfg.AuthenticateMiddleware)

			r.Post("/todos", cfg.TodoHandler.CreateTodo)
			r.Get("/todos", cfg.TodoHandler.GetTodos)
			r.Get("/todos/{todoID}", cfg.TodoHandler.GetTodo)
			r.Patch("/todos/{todoID}", cfg.TodoHandler.UpdateTodo)
			r.Delete("/todos/{todoID}", cfg.TodoHandler.DeleteTodo)

			r.Get("/users/me", cfg.UserHandler.GetProfile)
			r.Patch("/users/me", cfg.UserHandler.UpdateProfile)
			r.Post("/users/me/image", cfg.UserHandler.UploadProfileImage)
			r.Delete("/users/me", cfg.UserHandler.DeleteAccount)
		})
	})

	return r
}
