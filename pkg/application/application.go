package application

import (
	"context"
	"reflect"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/casavia/estate-crm/pkg/eventbus"
)

// Controller registers a set of routes on the root router.
type Controller interface {
	Register(r *mux.Router)
}

// Application is the assembly point modules register themselves into.
type Application interface {
	Pool() *pgxpool.Pool
	EventPublisher() eventbus.EventBus

	RegisterControllers(controllers ...Controller)
	Controllers() []Controller
	RegisterMiddleware(middleware ...mux.MiddlewareFunc)
	Middleware() []mux.MiddlewareFunc
	RegisterServices(services ...interface{})
	// Service returns the registered service of the same concrete type as
	// like, panicking when absent. Wiring bugs surface at startup.
	Service(like interface{}) interface{}
	RegisterSchema(ddl string)
	// RunMigrations applies every registered schema script in order.
	RunMigrations(ctx context.Context) error
}

func New(pool *pgxpool.Pool, publisher eventbus.EventBus) Application {
	return &application{
		pool:      pool,
		publisher: publisher,
		services:  make(map[reflect.Type]interface{}),
	}
}

type application struct {
	pool        *pgxpool.Pool
	publisher   eventbus.EventBus
	controllers []Controller
	middleware  []mux.MiddlewareFunc
	services    map[reflect.Type]interface{}
	schemas     []string
}

func (a *application) Pool() *pgxpool.Pool               { return a.pool }
func (a *application) EventPublisher() eventbus.EventBus { return a.publisher }

func (a *application) RegisterControllers(controllers ...Controller) {
	a.controllers = append(a.controllers, controllers...)
}

func (a *application) Controllers() []Controller { return a.controllers }

func (a *application) RegisterMiddleware(middleware ...mux.MiddlewareFunc) {
	a.middleware = append(a.middleware, middleware...)
}

func (a *application) Middleware() []mux.MiddlewareFunc { return a.middleware }

func (a *application) RegisterServices(services ...interface{}) {
	for _, s := range services {
		a.services[reflect.TypeOf(s)] = s
	}
}

func (a *application) Service(like interface{}) interface{} {
	s, ok := a.services[reflect.TypeOf(like)]
	if !ok {
		panic("service not registered: " + reflect.TypeOf(like).String())
	}
	return s
}

func (a *application) RegisterSchema(ddl string) {
	a.schemas = append(a.schemas, ddl)
}

func (a *application) RunMigrations(ctx context.Context) error {
	for _, ddl := range a.schemas {
		if _, err := a.pool.Exec(ctx, ddl); err != nil {
			return err
		}
	}
	return nil
}
