package config

const (
	EnvPrefix = "PRINTDUNGEON"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "PRINTDUNGEON_DB_DSN"
	EnvDBHost = "PRINTDUNGEON_DB_HOST"
	EnvDBUser = "PRINTDUNGEON_DB_USER"
	EnvDBName = "PRINTDUNGEON_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
