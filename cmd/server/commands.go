package main

import (
	"ReqKeeper/internal/config"
	"ReqKeeper/internal/handlers"
	"ReqKeeper/internal/ingest"
	"ReqKeeper/internal/metrics"
	"ReqKeeper/internal/middleware"
	"ReqKeeper/internal/repo"
	"ReqKeeper/internal/service"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const shutdownTimeout = 10 * time.Second

// app хранит общее состояние команд: конфиг, логгер и открытая БД.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	sugar  *zap.SugaredLogger
	db     *gorm.DB
}

func newRootCmd() *cobra.Command {
	a := &app{}
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	a.cfg = cfg

	root := &cobra.Command{
		Use:           "reqkeeper",
		Short:         "Versioned requirements management server",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// help и completion не требуют БД
			if cmd.Name() == "help" || (cmd.HasParent() && cmd.Parent().Name() == "completion") {
				return nil
			}
			return a.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.close()
		},
	}
	cfg.RegisterFlags(root.PersistentFlags())

	root.AddCommand(a.serveCmd(), a.migrateCmd(), a.ingestCmd())
	return root
}

// setup проверяет конфиг, создаёт логгер и открывает БД
func (a *app) setup() error {
	if err := a.cfg.Normalize(); err != nil {
		return err
	}

	var err error
	if a.cfg.LogMode == "production" {
		a.logger, err = zap.NewProduction()
	} else {
		a.logger, err = zap.NewDevelopment()
	}
	if err != nil {
		return err
	}
	a.sugar = a.logger.Sugar()
	middleware.SetLogger(a.sugar)
	repo.SetLogger(a.sugar)

	a.db, err = repo.InitDB(a.cfg.DatabaseDSN)
	if err != nil {
		a.sugar.Errorw("failed to initialize database", "error", err)
		return err
	}
	return nil
}

func (a *app) close() {
	if a.db != nil {
		if sqlDB, err := a.db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	if a.logger != nil {
		//сброс буфера логгера
		_ = a.logger.Sync()
	}
}

// services собирает сервисный слой над одной БД
func (a *app) services(m *metrics.Metrics) (handlers.Services, error) {
	policy, err := service.ParseEditPolicy(a.cfg.EditPolicy)
	if err != nil {
		return handlers.Services{}, err
	}
	repos := repo.NewRepositories(a.db)
	notifications := service.NewNotificationService(repos.Notifications, repos.Users, m, a.sugar)
	return handlers.Services{
		Users:         service.NewUserService(repos.Users),
		Projects:      service.NewProjectService(repos.Projects, repos.Users, a.sugar),
		Requirements:  service.NewRequirementService(repos, notifications, m, a.sugar, policy),
		Blocking:      service.NewBlockingService(repos, a.sugar),
		History:       service.NewHistoryService(repos),
		Comments:      service.NewCommentService(repos, notifications, m, a.sugar),
		Notifications: notifications,
		Presence:      service.NewPresenceService(repos, a.cfg.PresenceWindow, a.sugar),
	}, nil
}

func (a *app) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := repo.Migrate(a.db); err != nil {
				return err
			}
			a.sugar.Infow("schema migrated", "dsn", a.cfg.DatabaseDSN)
			return nil
		},
	}
}

func (a *app) serveCmd() *cobra.Command {
	var skipMigrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !skipMigrate {
				if err := repo.Migrate(a.db); err != nil {
					return err
				}
			}

			m := metrics.New()
			svc, err := a.services(m)
			if err != nil {
				return err
			}
			h := handlers.NewHandler(svc, m, a.sugar, a.cfg)

			srv := &http.Server{
				Addr:              a.cfg.BaseURL,
				Handler:           h.Router,
				ReadHeaderTimeout: 10 * time.Second,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a.sugar.Infow("Starting server",
				"addr", srv.Addr,
				"server_url", a.cfg.ServerURL,
				"edit_policy", a.cfg.EditPolicy,
				"presence_window", a.cfg.PresenceWindow,
			)

			errCh := make(chan error, 1)
			go func() {
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					a.sugar.Errorw("Server failed", "error", err)
					return err
				}
				return nil
			case <-ctx.Done():
			}

			a.sugar.Infow("Shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().BoolVar(&skipMigrate, "skip-migrate", false, "не выполнять миграцию схемы при старте")
	return cmd
}

func (a *app) ingestCmd() *cobra.Command {
	var (
		projectID  int64
		email      string
		file       string
		source     string
		addColumns bool
	)
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Resolve a file of candidate requirements into a project",
		RunE: func(cmd *cobra.Command, args []string) error {
			batch, err := ingest.Load(file)
			if err != nil {
				return err
			}
			if source == "" {
				source = batch.Source
			}

			svc, err := a.services(nil)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			actor, err := repo.NewUserRepository(a.db).GetUserByEmail(ctx, email)
			if err != nil {
				return fmt.Errorf("user %s: %w", email, err)
			}

			report, err := svc.Requirements.Ingest(ctx, projectID, actor.ID, batch.Rows,
				service.IngestOptions{Source: source, AddUnknownColumns: addColumns})
			if err != nil {
				return err
			}
			a.sugar.Infow("ingest finished",
				"run_id", report.RunID,
				"created", report.Created,
				"updated", report.Updated,
				"restored", report.Restored,
				"skipped", report.Skipped,
				"added_columns", report.AddedColumns,
			)
			for _, e := range report.Errors {
				a.sugar.Warnw("row skipped", "reason", e)
			}
			return nil
		},
	}
	cmd.Flags().Int64Var(&projectID, "project", 0, "ID проекта")
	cmd.Flags().StringVar(&email, "email", "", "email пользователя, от имени которого идёт загрузка")
	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML/JSON файл с наборами полей")
	cmd.Flags().StringVar(&source, "source", "", "источник для истории (import, ai, ...)")
	cmd.Flags().BoolVar(&addColumns, "add-columns", false, "добавлять неизвестные заголовки как колонки проекта")
	_ = cmd.MarkFlagRequired("project")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
