package config

const (
	EnvPrefix = "CHECKOUT"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv = "CHECKOUT_APP_ENV"
	EnvPort   = "CHECKOUT_APP_PORT"

	EnvDBDSN  = "CHECKOUT_DB_DSN"
	EnvDBHost = "CHECKOUT_DB_HOST"
	EnvDBUser = "CHECKOUT_DB_USER"
	EnvDBName = "CHECKOUT_DB_NAME"

	EnvRedisURL  = "CHECKOUT_REDIS_URL"
	EnvJWTSecret = "CHECKOUT_JWT_SECRET"

	EnvStripeAPIKey        = "CHECKOUT_STRIPE_API_KEY"
	EnvStripeWebhookSecret = "CHECKOUT_STRIPE_WEBHOOK_SECRET"

	EnvCurrency      = "CHECKOUT_CURRENCY"
	EnvMetadataChunk = "CHECKOUT_METADATA_CHUNK_SIZE"
	EnvMetadataKeys  = "CHECKOUT_METADATA_MAX_CHUNKS"
)

var discreteDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
