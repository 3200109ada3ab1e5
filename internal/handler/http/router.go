package http

import (
	"log/slog"
	"net/http"
	"os"

	"github.com/cmlabs-hris/hris-timekeeping/internal/config"
	"github.com/cmlabs-hris/hris-timekeeping/internal/handler/http/middleware"
	"github.com/cmlabs-hris/hris-timekeeping/internal/pkg/jwt"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v3"
	"github.com/go-chi/jwtauth/v5"
)

// Handlers groups every HTTP handler mounted by NewRouter.
type Handlers struct {
	Attendance    AttendanceHandler
	Correction    CorrectionHandler
	TimeException TimeExceptionHandler
	TimeConfig    TimeConfigHandler
	PayrollSync   PayrollSyncHandler
	Notification  NotificationHandler
}

func NewRouter(app config.AppConfig, JWTService jwt.Service, h Handlers) *chi.Mux {
	r := chi.NewRouter()
	logFormat := httplog.SchemaECS.Concise(app.Env != "production")
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		ReplaceAttr: logFormat.ReplaceAttr,
	})).With(
		slog.String("app", "hris-timekeeping"),
		slog.String("version", "v1.0.0"),
		slog.String("env", app.Env),
	)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   app.AllowedOrigins,
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		MaxAge:           300,
	}))

	r.Use(httplog.RequestLogger(logger, &httplog.Options{
		Level:  slog.LevelDebug,
		Schema: httplog.SchemaECS,
	}))

	r.Use(chiMiddleware.AllowContentEncoding("application/json"))
	r.Use(chiMiddleware.CleanPath)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/"))

	r.Route("/api/v1", func(r chi.Router) {
		// SSE authenticates with its own short-lived query token
		r.Get("/notifications/stream", h.Notification.Stream)

		// Requires authentication
		r.Group(func(r chi.Router) {
			r.Use(jwtauth.Verifier(JWTService.JWTAuth()))
			r.Use(middleware.AuthRequired(JWTService.JWTAuth()))

			r.Route("/attendance", func(r chi.Router) {
				r.With(middleware.RequireEmployeeOrHR).Post("/punches", h.Attendance.Punch)
				r.Post("/shift-check", h.Attendance.ShiftCheck)
				r.Get("/records", h.Attendance.List)
				r.Get("/records/{id}", h.Attendance.Get)
				r.Get("/records/{id}/audit", h.Attendance.AuditTrail)

				// HR only
				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireHR)
					r.Post("/manual-punches", h.Attendance.ManualPunch)
					r.Post("/records/{id}/round", h.Attendance.Round)
				})
			})

			r.Route("/corrections", func(r chi.Router) {
				r.Post("/", h.Correction.Create)
				r.Get("/", h.Correction.List)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", h.Correction.Get)
					r.Post("/manager-decision", h.Correction.ManagerDecision)
					r.Post("/hr-decision", h.Correction.HRDecision)
					r.Post("/cancel", h.Correction.Cancel)
				})
			})

			r.Route("/time-exceptions", func(r chi.Router) {
				r.Post("/", h.TimeException.Create)
				r.Get("/", h.TimeException.List)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", h.TimeException.Get)
					r.Post("/pre-approve", h.TimeException.PreApprove)
					r.Post("/manager-decision", h.TimeException.ManagerDecision)
					r.Post("/hr-decision", h.TimeException.HRDecision)
					r.Post("/cancel", h.TimeException.Cancel)
				})
			})

			r.Route("/payroll-sync", func(r chi.Router) {
				r.Use(middleware.RequireHR)
				r.Post("/validate", h.PayrollSync.Validate)
				r.Get("/attendance", h.PayrollSync.Attendance)
				r.Get("/overtime", h.PayrollSync.Overtime)
				r.Get("/pending", h.PayrollSync.Pending)
				r.Post("/finalize", h.PayrollSync.Finalize)
				r.Get("/history", h.PayrollSync.History)
				r.Post("/export", h.PayrollSync.Export)
				r.Get("/summaries", h.PayrollSync.Summaries)
				r.Get("/logs", h.PayrollSync.Logs)
			})

			r.Route("/time-config", func(r chi.Router) {
				// Reads are open to every authenticated actor
				r.Get("/shift-types", h.TimeConfig.ListShiftTypes)
				r.Get("/shift-types/{id}", h.TimeConfig.GetShiftType)
				r.Get("/assignments", h.TimeConfig.ListAssignments)
				r.Get("/assignments/{id}", h.TimeConfig.GetAssignment)
				r.Get("/scheduling-rules", h.TimeConfig.ListSchedulingRules)
				r.Get("/scheduling-rules/{id}", h.TimeConfig.GetSchedulingRule)
				r.Get("/overtime-rules", h.TimeConfig.ListOvertimeRules)
				r.Get("/overtime-rules/{id}", h.TimeConfig.GetOvertimeRule)
				r.Get("/permission-rules", h.TimeConfig.ListPermissionRules)
				r.Get("/permission-rules/{id}", h.TimeConfig.GetPermissionRule)

				// HR only
				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireHR)
					r.Post("/shift-types", h.TimeConfig.CreateShiftType)
					r.Post("/assignments", h.TimeConfig.CreateAssignment)
					r.Post("/assignments/{id}/transition", h.TimeConfig.TransitionAssignment)
					r.Post("/scheduling-rules", h.TimeConfig.CreateSchedulingRule)
					r.Post("/overtime-rules", h.TimeConfig.CreateOvertimeRule)
					r.Post("/permission-rules", h.TimeConfig.CreatePermissionRule)
				})
			})

			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", h.Notification.List)
				r.Get("/unread-count", h.Notification.UnreadCount)
				r.Post("/read", h.Notification.MarkAsRead)
				r.Post("/sse-token", h.Notification.GetSSEToken)
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "route not found", http.StatusNotFound)
	})

	return r
}
