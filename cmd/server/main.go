package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/casavia/estate-crm/modules"
	"github.com/casavia/estate-crm/modules/crm/domain/task"
	"github.com/casavia/estate-crm/modules/crm/importer"
	"github.com/casavia/estate-crm/modules/crm/infrastructure/persistence"
	"github.com/casavia/estate-crm/pkg/application"
	"github.com/casavia/estate-crm/pkg/bgtasks"
	"github.com/casavia/estate-crm/pkg/composables"
	"github.com/casavia/estate-crm/pkg/configuration"
	"github.com/casavia/estate-crm/pkg/eventbus"
	"github.com/casavia/estate-crm/pkg/httpapi"
	"github.com/casavia/estate-crm/pkg/metrics"
	"github.com/casavia/estate-crm/pkg/middleware"
	"github.com/casavia/estate-crm/pkg/server"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			configuration.Use().Unload()
			log.Println(r)
			debug.PrintStack()
			os.Exit(1)
		}
	}()

	conf := configuration.Use()
	logger := conf.Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	poolCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	pool, err := pgxpool.New(poolCtx, conf.Database.ConnectionString())
	if err != nil {
		log.Fatalf("failed to create database pool: %v", err)
	}
	defer pool.Close()

	app := application.New(pool, eventbus.NewEventPublisher(logger))
	if err := modules.Load(app); err != nil {
		log.Fatalf("failed to load modules: %v", err)
	}

	bootCtx := composables.WithPool(ctx, pool)
	if err := app.RunMigrations(bootCtx); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}
	if err := persistence.SeedDistricts(bootCtx); err != nil {
		log.Fatalf("failed to seed districts: %v", err)
	}

	app.RegisterMiddleware(
		middleware.WithPool(pool),
		middleware.RequestContext(logger),
	)
	if conf.Prometheus.Enabled {
		app.RegisterControllers(metrics.NewPrometheusController(conf.Prometheus.Path))
	}

	bus := app.EventPublisher()
	bus.Subscribe(func(event task.CreatedEvent) {
		logger.WithField("task_id", event.Task.ID()).
			WithField("task_type", event.Task.Type()).
			Info("task created")
	})
	bus.Subscribe(func(event task.FinishedEvent) {
		logger.WithField("task_id", event.ID).
			WithField("task_type", event.Type).
			WithField("state", event.State).
			Info("task finished")
	})

	g, runCtx := errgroup.WithContext(ctx)

	if conf.Tasks.Enabled {
		runner, err := bgtasks.NewRunner(persistence.NewTaskRepository(), bgtasks.RunnerOptions{
			PollInterval: conf.Tasks.PollInterval,
			BatchSize:    conf.Tasks.BatchSize,
			Workers:      conf.Tasks.Workers,
			LockTTL:      conf.Tasks.LockTTL,
			MaxAttempts:  conf.Tasks.MaxAttempts,
			MaxBackoff:   conf.Tasks.MaxBackoff,
			Logger:       logger.WithField("component", "bgtasks"),
			OnSettle: func(_ context.Context, rec bgtasks.Record, state string) {
				bus.Publish(task.FinishedEvent{
					ID:       rec.ID,
					TenantID: rec.TenantID,
					Type:     task.Type(rec.Type),
					State:    task.State(state),
				})
			},
		})
		if err != nil {
			log.Fatalf("failed to create task runner: %v", err)
		}
		imp := app.Service(&importer.Importer{}).(*importer.Importer)
		imp.RegisterHandlers(runner)
		bus.Subscribe(func(event task.CreatedEvent) {
			runner.Nudge()
		})
		g.Go(func() error {
			return runner.Run(composables.WithPool(runCtx, pool))
		})
	}

	srv := server.NewHTTPServer(app, notFoundHandler(), methodNotAllowedHandler())
	g.Go(func() error {
		logger.Infof("listening on %s", conf.SocketAddress)
		return srv.Start(runCtx, conf.SocketAddress)
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		log.Fatalf("server exited: %v", err)
	}
}

func notFoundHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = httpapi.WriteError(w, http.StatusNotFound, "NOT_FOUND", "resource not found", nil)
	})
}

func methodNotAllowedHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = httpapi.WriteError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed", nil)
	})
}
