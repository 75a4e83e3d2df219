package config

// EnvPrefix is handed to envconfig; every field also declares its full name.
const EnvPrefix = "STOREFRONT"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv   = "STOREFRONT_APP_ENV"
	EnvPort     = "STOREFRONT_APP_PORT"
	EnvLogLevel = "STOREFRONT_LOG_LEVEL"

	EnvDBDSN  = "STOREFRONT_DB_DSN"
	EnvDBHost = "STOREFRONT_DB_HOST"
	EnvDBUser = "STOREFRONT_DB_USER"
	EnvDBName = "STOREFRONT_DB_NAME"

	EnvRedisURL = "STOREFRONT_REDIS_URL"

	EnvJWTSecret = "STOREFRONT_JWT_SECRET"
	EnvJWTIssuer = "STOREFRONT_JWT_ISSUER"

	EnvCartSlotTTL           = "STOREFRONT_CART_SLOT_TTL"
	EnvCheckoutRejectPartial = "STOREFRONT_CHECKOUT_REJECT_PARTIAL"
	EnvCheckoutInFlightTTL   = "STOREFRONT_CHECKOUT_INFLIGHT_TTL"

	EnvGCPProjectID     = "STOREFRONT_GCP_PROJECT_ID"
	EnvPubSubSalesTopic = "STOREFRONT_PUBSUB_SALES_TOPIC"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
