package config

const (
	// EnvPrefix namespaces every environment variable the service reads.
	EnvPrefix = "PANDHAM"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)
