// Package config holds the settings of a named database connection.
package config

// PoolConfig holds database connection pool settings.
type PoolConfig struct {
	MaxOpenConns           int `yaml:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns           int `yaml:"max_idle_conns" mapstructure:"max_idle_conns"`
	ConnMaxLifetimeMinutes int `yaml:"conn_max_lifetime_minutes" mapstructure:"conn_max_lifetime_minutes"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Type     string `yaml:"type" mapstructure:"type"` // "postgres", "mysql" or "sqlite".
	Host     string `yaml:"host" mapstructure:"host"`
	Port     int    `yaml:"port" mapstructure:"port"`
	Database string `yaml:"database" mapstructure:"database"` // Database name, or the file path for SQLite.
	User     string `yaml:"user" mapstructure:"user"`
	Password string `yaml:"password" mapstructure:"password"`
	Schema   string `yaml:"schema,omitempty" mapstructure:"schema"` // PostgreSQL search path.
	Sslmode  string `yaml:"sslmode" mapstructure:"sslmode"`
	// Params are appended to the DSN as driver specific options.
	Params map[string]string `yaml:"params,omitempty" mapstructure:"params"`
	// LogLevel is the GORM log level. Empty means silent.
	LogLevel string     `yaml:"log_level,omitempty" mapstructure:"log_level"`
	Pool     PoolConfig `yaml:"pool" mapstructure:"pool"`
}
