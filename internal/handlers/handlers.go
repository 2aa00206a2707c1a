package handlers

import (
	"ReqKeeper/internal/config"
	"ReqKeeper/internal/metrics"
	"ReqKeeper/internal/middleware"
	"ReqKeeper/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

type Handler struct {
	Router chi.Router
}

// Services, которые обслуживает HTTP-слой.
type Services struct {
	Users         *service.UserService
	Projects      *service.ProjectService
	Requirements  *service.RequirementService
	Blocking      *service.BlockingService
	History       *service.HistoryService
	Comments      *service.CommentService
	Notifications *service.NotificationService
	Presence      *service.PresenceService
}

// NewHandler разводящий для хендлеров
func NewHandler(
	svc Services,
	m *metrics.Metrics,
	logger *zap.SugaredLogger,
	config *config.Config,
) *Handler {
	r := chi.NewRouter()

	if len(config.CORSOrigins) > 0 {
		r.Use(cors.New(cors.Options{
			AllowedOrigins:   config.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Content-Type", "Authorization", "Content-Encoding"},
			AllowCredentials: true,
		}).Handler)
	}
	r.Use(middleware.WithGzip)
	r.Use(middleware.WithLogging)
	r.Use(middleware.WithAuth(config.AuthSecret))

	if m != nil {
		r.Handle("/metrics", m.Handler())
	}

	// Handlers
	userHandler := NewUserHandler(svc.Users, logger, config)
	projectHandler := &ProjectHandler{Projects: svc.Projects, Presence: svc.Presence, Logger: logger}
	reqHandler := &RequirementHandler{Requirements: svc.Requirements, History: svc.History, Logger: logger}
	versionHandler := &VersionHandler{Requirements: svc.Requirements, Blocking: svc.Blocking, History: svc.History, Logger: logger}
	commentHandler := &CommentHandler{Comments: svc.Comments, Logger: logger}
	notificationHandler := &NotificationHandler{Notifications: svc.Notifications, Logger: logger}

	// User routes
	r.Post("/api/user/register", userHandler.Register)
	r.Post("/api/user/login", userHandler.Login)
	r.Post("/api/user/logout", userHandler.Logout)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth)

		r.Get("/api/user/me", userHandler.Me)

		r.Route("/api/projects", func(r chi.Router) {
			r.Get("/", projectHandler.List)
			r.Post("/", projectHandler.Create)
			r.Route("/{projectID}", func(r chi.Router) {
				r.Get("/", projectHandler.Get)
				r.Delete("/", projectHandler.Delete)
				r.Post("/shares", projectHandler.Share)
				r.Delete("/shares/{userID}", projectHandler.Unshare)
				r.Post("/columns", projectHandler.AddColumn)
				r.Delete("/columns/{name}", projectHandler.RemoveColumn)
				r.Post("/presence", projectHandler.Heartbeat)
				r.Get("/presence", projectHandler.ActiveUsers)
				r.Get("/mentions", commentHandler.MentionSuggestions)

				r.Get("/requirements", reqHandler.List)
				r.Post("/requirements", reqHandler.Create)
				r.Get("/requirements/match", reqHandler.Match)
				r.Post("/requirements/resolve", reqHandler.ResolveOrCreate)
				r.Post("/ingest", reqHandler.Ingest)
				r.Get("/status", reqHandler.StatusBoard)
				r.Get("/kanban", reqHandler.Kanban)
			})
		})

		r.Get("/api/trash", reqHandler.Trash)

		r.Route("/api/requirements/{requirementID}", func(r chi.Router) {
			r.Get("/versions", reqHandler.Versions)
			r.Post("/versions", reqHandler.AppendVersion)
			r.Get("/timeline", reqHandler.Timeline)
			r.Delete("/", reqHandler.SoftDelete)
			r.Post("/restore", reqHandler.Restore)
			r.Delete("/permanent", reqHandler.PermanentlyDelete)
		})

		r.Route("/api/versions/{versionID}", func(r chi.Router) {
			r.Put("/", versionHandler.Update)
			r.Delete("/", versionHandler.Delete)
			r.Post("/status", versionHandler.SetStatus)
			r.Post("/custom", versionHandler.SetCustomValue)
			r.Post("/quantifiable", versionHandler.ToggleQuantifiable)
			r.Post("/block", versionHandler.Block)
			r.Post("/unblock", versionHandler.Unblock)
			r.Get("/can-edit", versionHandler.CanEdit)
			r.Get("/history", versionHandler.VersionHistory)

			r.Get("/comments", commentHandler.Thread)
			r.Post("/comments", commentHandler.Add)
		})

		r.Put("/api/comments/{commentID}", commentHandler.Edit)
		r.Delete("/api/comments/{commentID}", commentHandler.Delete)

		r.Get("/api/notifications", notificationHandler.List)
		r.Get("/api/notifications/unread-count", notificationHandler.UnreadCount)
		r.Post("/api/notifications/read-all", notificationHandler.MarkAllRead)
		r.Post("/api/notifications/{notificationID}/read", notificationHandler.MarkRead)
	})

	return &Handler{Router: r}
}
