package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/icompcare/icompcare/internal/config"
	"github.com/icompcare/icompcare/internal/domain/appointment"
	"github.com/icompcare/icompcare/internal/domain/availability"
	"github.com/icompcare/icompcare/internal/domain/identity"
	"github.com/icompcare/icompcare/internal/domain/session"
	"github.com/icompcare/icompcare/internal/domain/sessiontype"
	"github.com/icompcare/icompcare/internal/platform/auth"
	"github.com/icompcare/icompcare/internal/platform/db"
	"github.com/icompcare/icompcare/internal/platform/middleware"
	"github.com/icompcare/icompcare/internal/platform/notification"
)

// DirectoryAdapter adapts the identity service to the participant lookups the
// scheduling domains need, avoiding circular imports between packages.
type DirectoryAdapter struct {
	svc *identity.Service
}

func NewDirectoryAdapter(svc *identity.Service) *DirectoryAdapter {
	return &DirectoryAdapter{svc: svc}
}

// EnsureProfessional implements availability.Directory and session.Directory.
func (a *DirectoryAdapter) EnsureProfessional(ctx context.Context, id uuid.UUID) error {
	_, err := a.svc.GetProfessional(ctx, id)
	return err
}

// Professional implements appointment.Directory.
func (a *DirectoryAdapter) Professional(ctx context.Context, id uuid.UUID) (appointment.Contact, error) {
	u, err := a.svc.GetProfessional(ctx, id)
	if err != nil {
		return appointment.Contact{}, err
	}
	return appointment.Contact{ID: u.ID, Name: u.Name, Email: u.Email}, nil
}

// Student implements appointment.Directory.
func (a *DirectoryAdapter) Student(ctx context.Context, id uuid.UUID) (appointment.Contact, error) {
	u, err := a.svc.GetStudent(ctx, id)
	if err != nil {
		return appointment.Contact{}, err
	}
	return appointment.Contact{ID: u.ID, Name: u.Name, Email: u.Email}, nil
}

// SessionTypeAdapter adapts the session type service to
// appointment.SessionTypes.
type SessionTypeAdapter struct {
	svc *sessiontype.Service
}

func NewSessionTypeAdapter(svc *sessiontype.Service) *SessionTypeAdapter {
	return &SessionTypeAdapter{svc: svc}
}

func (a *SessionTypeAdapter) Duration(ctx context.Context, id uuid.UUID) (time.Duration, error) {
	t, err := a.svc.Get(ctx, id)
	if err != nil {
		return 0, err
	}
	return t.Duration(), nil
}

// AppointmentLinkAdapter adapts the appointment service to
// session.Appointments.
type AppointmentLinkAdapter struct {
	svc *appointment.Service
}

func NewAppointmentLinkAdapter(svc *appointment.Service) *AppointmentLinkAdapter {
	return &AppointmentLinkAdapter{svc: svc}
}

func (a *AppointmentLinkAdapter) Get(ctx context.Context, id uuid.UUID) (session.ApptInfo, error) {
	appt, err := a.svc.Get(ctx, id)
	if err != nil {
		return session.ApptInfo{}, err
	}
	return session.ApptInfo{
		ID:             appt.ID,
		ProfessionalID: appt.ProfessionalID,
		StudentID:      appt.StudentID,
		Status:         string(appt.Status),
	}, nil
}

func (a *AppointmentLinkAdapter) SetStatus(ctx context.Context, id uuid.UUID, status string) error {
	parsed, err := appointment.ParseStatus(status)
	if err != nil {
		return err
	}
	return a.svc.SetStatus(ctx, id, parsed)
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "icompcare-server",
		Short: "Appointment scheduling API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the scheduling API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if dir == "" {
				dir = cfg.MigrationsDir
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if dir == "" {
				dir = cfg.MigrationsDir
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("dir", "", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}

func runServer() error {
	// Logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		logger = logger.Level(lvl)
	}

	loc, err := cfg.ScheduleLocation()
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid schedule timezone")
	}

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.ErrorHandler(logger)

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	// Health check
	e.GET("/health", db.HealthHandler(pool))

	// API group behind auth
	apiV1 := e.Group("/api/v1")
	if cfg.IsDev() {
		apiV1.Use(auth.DevAuthMiddleware())
	} else {
		apiV1.Use(auth.JWTMiddleware([]byte(cfg.JWTSecret)))
	}

	// Notifications
	sender := notification.EmailSender(notification.NoopEmailSender{})
	if cfg.SendGridAPIKey != "" {
		sender = notification.NewSendGridSender(cfg.SendGridAPIKey, cfg.EmailFrom, cfg.EmailFromName)
		logger.Info().Msg("sendgrid email delivery enabled")
	} else {
		logger.Warn().Msg("SENDGRID_API_KEY not set; email delivery is disabled")
	}
	notifyMgr := notification.NewManager(sender, notification.NewTemplateEngine())
	mailer := notification.NewAppointmentMailer(notifyMgr, loc, logger)

	// Transactions
	txRunner := func(ctx context.Context, fn func(ctx context.Context) error) error {
		return db.WithTx(ctx, pool, fn)
	}

	// -- Register domain handlers --

	// Identity domain
	userRepo := identity.NewRepo(pool)
	identitySvc := identity.NewService(userRepo)
	directory := NewDirectoryAdapter(identitySvc)
	identity.NewHandler(identitySvc).RegisterRoutes(apiV1)

	// Session type domain
	typeRepo := sessiontype.NewRepo(pool)
	typeSvc := sessiontype.NewService(typeRepo)
	sessiontype.NewHandler(typeSvc).RegisterRoutes(apiV1)

	// Appointment domain. The availability repo doubles as the coverage
	// checker for confirmations.
	availRepo := availability.NewRepo(pool)
	apptRepo := appointment.NewRepo(pool)
	apptSvc := appointment.NewService(apptRepo, directory, NewSessionTypeAdapter(typeSvc), availRepo, txRunner)
	apptSvc.SetNotifier(mailer)
	appointment.NewHandler(apptSvc).RegisterRoutes(apiV1)

	// Availability domain. Appointments feed the busy intervals the agenda
	// subtracts from open windows.
	availSvc := availability.NewService(availRepo, directory, apptSvc, loc)
	availability.NewHandler(availSvc).RegisterRoutes(apiV1)

	// Session domain
	sessRepo := session.NewRepo(pool)
	sessSvc := session.NewService(sessRepo, directory, NewAppointmentLinkAdapter(apptSvc), txRunner)
	apptSvc.SetSessionCloser(sessSvc)
	session.NewHandler(sessSvc).RegisterRoutes(apiV1)

	// Notification audit endpoints, admin only
	notifGroup := apiV1.Group("", auth.RequireRole("admin"))
	notification.NewHandler(notifyMgr).RegisterRoutes(notifGroup)

	// Start server with graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("forced shutdown")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}
