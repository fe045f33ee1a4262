package config

// EnvPrefix is handed to envconfig; every field carries an explicit envconfig tag.
const EnvPrefix = "STARFEED"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv   = "STARFEED_APP_ENV"
	EnvPort     = "STARFEED_APP_PORT"
	EnvLogLevel = "STARFEED_LOG_LEVEL"

	EnvDBDSN  = "STARFEED_DB_DSN"
	EnvDBHost = "STARFEED_DB_HOST"
	EnvDBUser = "STARFEED_DB_USER"
	EnvDBName = "STARFEED_DB_NAME"

	EnvRedisURL = "STARFEED_REDIS_URL"

	EnvJWTSecret = "STARFEED_AUTH_JWT_SECRET"
	EnvJWTIssuer = "STARFEED_AUTH_JWT_ISSUER"

	EnvStarValueNGN = "STARFEED_LEDGER_STAR_VALUE_NGN"

	EnvCORSOrigins = "STARFEED_CORS_ALLOWED_ORIGINS"

	EnvGCPProjectID      = "STARFEED_GCP_PROJECT_ID"
	EnvPubSubLedgerTopic = "STARFEED_PUBSUB_LEDGER_TOPIC"
)
