// Package app assembles the timekeeping engine from configuration. Both the
// API server and the operator CLI build on it.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/cmlabs-hris/hris-timekeeping/internal/config"
	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/attendance"
	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/audit"
	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/correction"
	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/employee"
	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/notification"
	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/payrollsync"
	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/timeconfig"
	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/timeexception"
	appHTTP "github.com/cmlabs-hris/hris-timekeeping/internal/handler/http"
	"github.com/cmlabs-hris/hris-timekeeping/internal/pkg/alert"
	"github.com/cmlabs-hris/hris-timekeeping/internal/pkg/cron"
	"github.com/cmlabs-hris/hris-timekeeping/internal/pkg/database"
	"github.com/cmlabs-hris/hris-timekeeping/internal/pkg/jwt"
	"github.com/cmlabs-hris/hris-timekeeping/internal/pkg/sse"
	"github.com/cmlabs-hris/hris-timekeeping/internal/pkg/storage"
	"github.com/cmlabs-hris/hris-timekeeping/internal/repository/memory"
	"github.com/cmlabs-hris/hris-timekeeping/internal/repository/postgresql"
	attendanceService "github.com/cmlabs-hris/hris-timekeeping/internal/service/attendance"
	correctionService "github.com/cmlabs-hris/hris-timekeeping/internal/service/correction"
	notificationService "github.com/cmlabs-hris/hris-timekeeping/internal/service/notification"
	payrollSyncService "github.com/cmlabs-hris/hris-timekeeping/internal/service/payrollsync"
	timeConfigService "github.com/cmlabs-hris/hris-timekeeping/internal/service/timeconfig"
	timeExceptionService "github.com/cmlabs-hris/hris-timekeeping/internal/service/timeexception"
	"gopkg.in/yaml.v3"
)

// App holds every wired component of the engine.
type App struct {
	Config *config.Config

	JWT            jwt.Service
	Directory      employee.Directory
	Recorder       attendance.Recorder
	ShiftValidator attendance.ShiftValidator
	Detector       attendance.MissedPunchDetector
	Corrections    correction.Service
	Exceptions     timeexception.Service
	TimeConfig     timeconfig.Service
	PayrollSync    payrollsync.Service
	Notifications  notification.Service
	Alerter        alert.Alerter
	Scheduler      *cron.Scheduler

	closers []func()
}

type repositories struct {
	records     attendance.RecordRepository
	corrections correction.Repository
	exceptions  timeexception.Repository
	timeConfig  timeconfig.Repository
	syncLogs    payrollsync.SyncLogRepository
	auditLog    audit.Repository
	notifs      notification.Repository
	directory   employee.Directory
	tx          database.TxManager
}

// New builds the engine for cfg. Call Close when done.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg}

	repos, err := a.openRepositories(ctx)
	if err != nil {
		return nil, err
	}

	files, err := openStorage(ctx, cfg.Storage)
	if err != nil {
		a.Close()
		return nil, err
	}

	policy := cfg.TimePolicy
	a.JWT = jwt.NewJWTService(cfg.JWT.Secret, cfg.JWT.AccessExpiration)
	a.Directory = repos.directory
	a.Alerter = alert.New(cfg.Slack.BotToken, alert.Options{
		InfoChannelID:  cfg.Slack.InfoChannelID,
		ErrorChannelID: cfg.Slack.ErrorChannelID,
	})

	a.Notifications = notificationService.NewNotificationService(repos.notifs, sse.NewHub[notification.SSEEvent](), notificationService.Config{})
	a.closers = append(a.closers, a.Notifications.Stop)

	registry := timeConfigService.NewTimeConfigService(repos.timeConfig, repos.auditLog)
	a.TimeConfig = registry

	a.ShiftValidator = attendanceService.NewShiftValidator(registry, repos.directory, policy)
	recorder := attendanceService.NewRecorder(repos.records, repos.auditLog, repos.directory, a.ShiftValidator, repos.tx, policy)
	a.Recorder = recorder

	exceptions := timeExceptionService.NewTimeExceptionService(repos.exceptions, repos.records, registry, repos.directory, a.Notifications, repos.auditLog, policy)
	a.Exceptions = exceptions
	recorder.WithMissedPunchResolver(exceptions)

	a.Corrections = correctionService.NewCorrectionService(repos.corrections, repos.records, recorder, repos.directory, a.Notifications, repos.auditLog, repos.tx, policy)
	a.Detector = attendanceService.NewMissedPunchDetector(repos.records, recorder, exceptions, a.ShiftValidator, repos.directory, a.Notifications)

	a.PayrollSync = payrollSyncService.NewPayrollSyncService(
		repos.records,
		repos.corrections,
		repos.exceptions,
		exceptions,
		registry,
		repos.directory,
		repos.syncLogs,
		repos.auditLog,
		files,
		a.Alerter,
		policy,
	)

	a.Scheduler = cron.NewScheduler()
	cron.NewTimekeepingJobs(
		a.Detector,
		a.Corrections,
		a.Exceptions,
		a.PayrollSync,
		a.TimeConfig,
		a.Alerter,
		policy.Location(),
		policy.PayrollCutoffDay,
	).RegisterJobs(a.Scheduler)

	return a, nil
}

// Router returns the HTTP API.
func (a *App) Router() http.Handler {
	return appHTTP.NewRouter(a.Config.App, a.JWT, appHTTP.Handlers{
		Attendance:    appHTTP.NewAttendanceHandler(a.Recorder, a.ShiftValidator),
		Correction:    appHTTP.NewCorrectionHandler(a.Corrections),
		TimeException: appHTTP.NewTimeExceptionHandler(a.Exceptions),
		TimeConfig:    appHTTP.NewTimeConfigHandler(a.TimeConfig),
		PayrollSync:   appHTTP.NewPayrollSyncHandler(a.PayrollSync),
		Notification:  appHTTP.NewNotificationHandler(a.Notifications, a.JWT),
	})
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *App) openRepositories(ctx context.Context) (repositories, error) {
	switch a.Config.Database.Driver {
	case "memory":
		directory := memory.NewEmployeeDirectory()
		if a.Config.Database.SeedFile != "" {
			employees, err := LoadEmployees(a.Config.Database.SeedFile)
			if err != nil {
				return repositories{}, err
			}
			for _, e := range employees {
				directory.Put(e)
			}
		}
		slog.Warn("Using in-memory storage; data is lost on exit")
		return repositories{
			records:     memory.NewAttendanceRepository(),
			corrections: memory.NewCorrectionRepository(),
			exceptions:  memory.NewTimeExceptionRepository(),
			timeConfig:  memory.NewTimeConfigRepository(),
			syncLogs:    memory.NewSyncLogRepository(),
			auditLog:    memory.NewAuditRepository(),
			notifs:      memory.NewNotificationRepository(),
			directory:   directory,
			tx:          memory.TxManager{},
		}, nil

	case "postgres":
		db, err := database.NewPostgreSQLDB(ctx, a.Config.DatabaseURL())
		if err != nil {
			return repositories{}, fmt.Errorf("failed to connect to database: %w", err)
		}
		a.closers = append(a.closers, db.Close)
		return repositories{
			records:     postgresql.NewAttendanceRepository(db),
			corrections: postgresql.NewCorrectionRepository(db),
			exceptions:  postgresql.NewTimeExceptionRepository(db),
			timeConfig:  postgresql.NewTimeConfigRepository(db),
			syncLogs:    postgresql.NewSyncLogRepository(db),
			auditLog:    postgresql.NewAuditRepository(db),
			notifs:      postgresql.NewNotificationRepository(db),
			directory:   postgresql.NewEmployeeDirectory(db),
			tx:          postgresql.NewTxManager(db),
		}, nil
	}
	return repositories{}, fmt.Errorf("unsupported database driver %q", a.Config.Database.Driver)
}

func openStorage(ctx context.Context, cfg config.StorageConfig) (storage.FileStorage, error) {
	switch cfg.Driver {
	case "local":
		files, err := storage.NewLocalStorage(cfg.BasePath, cfg.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize local storage: %w", err)
		}
		return files, nil
	case "s3":
		files, err := storage.NewS3Storage(ctx, cfg.Bucket, cfg.Region, cfg.Prefix)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize s3 storage: %w", err)
		}
		return files, nil
	}
	return nil, fmt.Errorf("unsupported storage driver %q", cfg.Driver)
}

type employeeSeed struct {
	ID           string  `yaml:"id"`
	UserID       *string `yaml:"user_id"`
	EmployeeCode string  `yaml:"employee_code"`
	FullName     string  `yaml:"full_name"`
	ManagerID    *string `yaml:"manager_id"`
	DepartmentID *string `yaml:"department_id"`
	PositionID   *string `yaml:"position_id"`
	IsHRReviewer bool    `yaml:"is_hr_reviewer"`
	Status       string  `yaml:"employment_status"`
}

// LoadEmployees reads a YAML list of employees for the in-memory directory.
// A missing employment_status means active.
func LoadEmployees(path string) ([]employee.Employee, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}

	var seeds []employeeSeed
	if err := yaml.Unmarshal(raw, &seeds); err != nil {
		return nil, fmt.Errorf("failed to parse seed file %s: %w", path, err)
	}

	employees := make([]employee.Employee, 0, len(seeds))
	for _, s := range seeds {
		if s.ID == "" {
			return nil, fmt.Errorf("seed file %s: employee without id", path)
		}
		status := employee.EmploymentStatus(s.Status)
		if status == "" {
			status = employee.EmploymentStatusActive
		}
		employees = append(employees, employee.Employee{
			ID:               s.ID,
			UserID:           s.UserID,
			EmployeeCode:     s.EmployeeCode,
			FullName:         s.FullName,
			ManagerID:        s.ManagerID,
			DepartmentID:     s.DepartmentID,
			PositionID:       s.PositionID,
			IsHRReviewer:     s.IsHRReviewer,
			EmploymentStatus: status,
		})
	}
	return employees, nil
}
