package router

import (
	"encoding/json"
	"net/http"
	"strings"

	"zudlik/internal/handlers/api/v1/auth"
	"zudlik/internal/handlers/api/v1/comments"
	"zudlik/internal/handlers/api/v1/notifications"
	"zudlik/internal/handlers/api/v1/problems"
	"zudlik/internal/handlers/api/v1/tags"
	"zudlik/internal/middleware"
	"zudlik/internal/response"
	"zudlik/internal/services"

	"go.uber.org/zap"
)

// New builds the full HTTP handler: routes, auth, and the shared middleware
// chain.
func New(collection *services.ServiceCollection, logger *zap.Logger) http.Handler {
	builder := response.NewBuilder(logger)
	authenticator := middleware.NewAuthenticator(collection.Config.Auth, logger)

	authController := auth.NewAuthController(collection.AuthService, logger, builder)
	problemController := problems.NewProblemController(collection.ProblemService, logger, builder)
	commentController := comments.NewCommentController(collection.CommentService, logger, builder)
	notificationController := notifications.NewNotificationController(collection.NotificationService, logger, builder)
	tagController := tags.NewTagController(collection.ProblemService, logger, builder)

	mux := http.NewServeMux()

	mux.HandleFunc("/health", healthHandler(collection))

	// Auth routes
	mux.HandleFunc("/api/v1/auth/register", methodHandler(http.MethodPost, authController.Register))
	mux.HandleFunc("/api/v1/auth/login", methodHandler(http.MethodPost, authController.Login))
	mux.HandleFunc("/api/v1/auth/me", methodHandler(http.MethodGet, authController.GetMe))
	mux.HandleFunc("/api/v1/auth/profile", methodHandler(http.MethodPut, authController.UpdateProfile))
	mux.HandleFunc("/api/v1/auth/password", methodHandler(http.MethodPut, authController.ChangePassword))
	mux.HandleFunc("/api/v1/auth/forgot-password", methodHandler(http.MethodPost, authController.ForgotPassword))
	mux.HandleFunc("/api/v1/auth/reset-password", methodHandler(http.MethodPost, authController.ResetPassword))
	mux.HandleFunc("/api/v1/auth/avatar", methodHandler(http.MethodPost, authController.UploadAvatar))

	// Problem routes, including nested comment and solution routes
	mux.HandleFunc("/api/v1/problems", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			problemController.ListProblems(w, r)
		case http.MethodPost:
			problemController.CreateProblem(w, r)
		default:
			methodNotAllowed(w)
		}
	})
	mux.HandleFunc("/api/v1/problems/", func(w http.ResponseWriter, r *http.Request) {
		segments := pathSegments(r.URL.Path)
		switch {
		case len(segments) == 2 && segments[1] == "my" && r.Method == http.MethodGet:
			problemController.ListMyProblems(w, r)
		case len(segments) == 2 && r.Method == http.MethodGet:
			problemController.GetProblem(w, r)
		case len(segments) == 2 && r.Method == http.MethodPut:
			problemController.UpdateProblem(w, r)
		case len(segments) == 2 && r.Method == http.MethodDelete:
			problemController.DeleteProblem(w, r)
		case len(segments) == 3 && segments[2] == "close" && r.Method == http.MethodPost:
			problemController.CloseProblem(w, r)
		case len(segments) == 3 && segments[2] == "comments" && r.Method == http.MethodGet:
			commentController.GetThread(w, r)
		case len(segments) == 3 && segments[2] == "comments" && r.Method == http.MethodPost:
			commentController.CreateComment(w, r)
		case len(segments) == 4 && segments[2] == "solution" && r.Method == http.MethodPost:
			commentController.DesignateSolution(w, r)
		default:
			http.NotFound(w, r)
		}
	})

	// Comment routes
	mux.HandleFunc("/api/v1/comments/", func(w http.ResponseWriter, r *http.Request) {
		segments := pathSegments(r.URL.Path)
		switch {
		case len(segments) == 2 && r.Method == http.MethodPut:
			commentController.UpdateComment(w, r)
		case len(segments) == 2 && r.Method == http.MethodDelete:
			commentController.DeleteComment(w, r)
		case len(segments) == 3 && segments[2] == "like" && r.Method == http.MethodPost:
			commentController.ToggleLike(w, r)
		default:
			http.NotFound(w, r)
		}
	})

	// Notification routes, whole subtree behind RequireAuth
	requireAuth := authenticator.RequireAuth()
	mux.Handle("/api/v1/notifications", requireAuth(methodHandler(http.MethodGet, notificationController.ListNotifications)))
	mux.Handle("/api/v1/notifications/", requireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		segments := pathSegments(r.URL.Path)
		switch {
		case len(segments) == 2 && segments[1] == "unread-count" && r.Method == http.MethodGet:
			notificationController.GetUnreadCount(w, r)
		case len(segments) == 2 && segments[1] == "read-all" && r.Method == http.MethodPut:
			notificationController.MarkAllAsRead(w, r)
		case len(segments) == 3 && segments[2] == "read" && r.Method == http.MethodPut:
			notificationController.MarkAsRead(w, r)
		case len(segments) == 2 && r.Method == http.MethodDelete:
			notificationController.DeleteNotification(w, r)
		default:
			http.NotFound(w, r)
		}
	})))

	// Tag routes
	mux.HandleFunc("/api/v1/tags/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		segments := pathSegments(r.URL.Path)
		switch {
		case len(segments) == 2 && segments[1] == "popular":
			tagController.PopularTags(w, r)
		case len(segments) == 2 && segments[1] == "search":
			tagController.SearchTags(w, r)
		case len(segments) == 3 && segments[1] == "category":
			tagController.TagsByCategory(w, r)
		case len(segments) == 3 && segments[2] == "problems":
			tagController.TagProblems(w, r)
		default:
			http.NotFound(w, r)
		}
	})

	return middleware.Chain(mux,
		middleware.RequestID(),
		middleware.Recovery(logger),
		middleware.SecurityHeaders(),
		authenticator.OptionalAuth(),
		middleware.RateLimit(collection.Cache, nil, logger),
		middleware.Logger(logger),
	)
}

// pathSegments splits an /api/v1/... path into its segments after the
// prefix.
func pathSegments(path string) []string {
	trimmed := strings.TrimPrefix(path, "/api/v1/")
	return strings.Split(strings.Trim(trimmed, "/"), "/")
}

func methodHandler(method string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			methodNotAllowed(w)
			return
		}
		handler(w, r)
	}
}

func methodNotAllowed(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusMethodNotAllowed)
	_, _ = w.Write([]byte(`{"success":false,"error":{"type":"VALIDATION_ERROR","message":"method not allowed"}}`))
}

func healthHandler(collection *services.ServiceCollection) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		status := http.StatusOK
		checks := map[string]string{
			"database": "ok",
			"cache":    "ok",
		}

		if err := collection.Database.Health(ctx); err != nil {
			checks["database"] = err.Error()
			status = http.StatusServiceUnavailable
		}
		if err := collection.Cache.Health(ctx); err != nil {
			checks["cache"] = err.Error()
			status = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"status": http.StatusText(status),
			"checks": checks,
		})
	}
}
