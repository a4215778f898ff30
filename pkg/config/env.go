package config

const (
	EnvPrefix = "CAKESTORE"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv = "CAKESTORE_APP_ENV"
	EnvPort   = "CAKESTORE_APP_PORT"

	EnvDBDSN  = "CAKESTORE_DB_DSN"
	EnvDBHost = "CAKESTORE_DB_HOST"
	EnvDBUser = "CAKESTORE_DB_USER"
	EnvDBName = "CAKESTORE_DB_NAME"

	EnvRedisURL = "CAKESTORE_REDIS_URL"

	EnvUseSQLite = "CAKESTORE_USE_SQLITE"

	EnvSchedulingTimeZone        = "CAKESTORE_SCHEDULING_TIMEZONE"
	EnvSchedulingCutoffHour      = "CAKESTORE_SCHEDULING_CUTOFF_HOUR"
	EnvSchedulingHorizonDays     = "CAKESTORE_SCHEDULING_HORIZON_DAYS"
	EnvSchedulingDefaultCapacity = "CAKESTORE_SCHEDULING_DEFAULT_DAILY_CAPACITY"

	defaultSQLiteDSN = "file:cakestore.db?_busy_timeout=5000&_foreign_keys=on"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
