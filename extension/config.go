package extension

// Config holds the credits extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.credits" or "credits" keys).
type Config struct {
	// DisableMigrate prevents auto-migration and catalog seeding on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// Driver names the store backend for a grove database supplied via
	// WithGroveDB: "postgres", "sqlite" or "mongo". Ignored when a store
	// was provided directly.
	Driver string `json:"driver" mapstructure:"driver" yaml:"driver"`

	// ReconcileOnConfirm replays the ledger after every confirmed debit.
	ReconcileOnConfirm bool `json:"reconcile_on_confirm" mapstructure:"reconcile_on_confirm" yaml:"reconcile_on_confirm"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// Supported Driver values.
const (
	DriverPostgres = "postgres"
	DriverSqlite   = "sqlite"
	DriverMongo    = "mongo"
)

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{}
}
