package application

// Module is a self-contained feature set that wires its services, controllers
// and schema into the application at startup.
type Module interface {
	Register(app Application) error
	Name() string
}

// Load registers every module in order, stopping at the first failure.
func Load(app Application, mods ...Module) error {
	for _, m := range mods {
		if err := m.Register(app); err != nil {
			return err
		}
	}
	return nil
}
