package modules

import (
	"github.com/casavia/estate-crm/modules/crm"
	"github.com/casavia/estate-crm/pkg/application"
)

// BuiltInModules is the default module set the server boots with.
var BuiltInModules = []application.Module{
	crm.NewModule(),
}

func Load(app application.Application, externalModules ...application.Module) error {
	return application.Load(app, append(BuiltInModules, externalModules...)...)
}
