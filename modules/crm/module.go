package crm

import (
	"embed"

	"github.com/casavia/estate-crm/modules/crm/importer"
	"github.com/casavia/estate-crm/modules/crm/infrastructure/persistence"
	"github.com/casavia/estate-crm/modules/crm/presentation/controllers"
	"github.com/casavia/estate-crm/modules/crm/services"
	"github.com/casavia/estate-crm/pkg/application"
	"github.com/casavia/estate-crm/pkg/configuration"
)

//go:embed infrastructure/persistence/schema/crm-schema.sql
var migrationFiles embed.FS

func NewModule() application.Module {
	return &Module{}
}

type Module struct {
}

func (m *Module) Register(app application.Application) error {
	ddl, err := migrationFiles.ReadFile("infrastructure/persistence/schema/crm-schema.sql")
	if err != nil {
		return err
	}
	app.RegisterSchema(string(ddl))

	conf := configuration.Use()
	taskRepo := persistence.NewTaskRepository()
	errorRepo := persistence.NewImportErrorRepository()
	estateRepo := persistence.NewEstateRepository()

	app.RegisterServices(
		services.NewTaskService(taskRepo, errorRepo, estateRepo, app.EventPublisher(), conf.UploadsPath),
		importer.New(
			taskRepo,
			persistence.NewCustomerRepository(),
			persistence.NewBlacklistRepository(),
			errorRepo,
			persistence.NewTagRepository(),
			persistence.NewDistrictRepository(),
			estateRepo,
		),
	)
	app.RegisterControllers(
		controllers.NewTaskController(app),
	)
	return nil
}

func (m *Module) Name() string {
	return "crm"
}
