package config

const EnvPrefix = "GROCER"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv   = "GROCER_APP_ENV"
	EnvPort     = "GROCER_APP_PORT"
	EnvLogLevel = "GROCER_LOG_LEVEL"

	EnvDBDSN      = "GROCER_DB_DSN"
	EnvDBHost     = "GROCER_DB_HOST"
	EnvDBPort     = "GROCER_DB_PORT"
	EnvDBUser     = "GROCER_DB_USER"
	EnvDBPassword = "GROCER_DB_PASSWORD"
	EnvDBName     = "GROCER_DB_NAME"

	EnvRedisURL = "GROCER_REDIS_URL"

	EnvJWTSecret  = "GROCER_JWT_SECRET"
	EnvJWTIssuer  = "GROCER_JWT_ISSUER"
	EnvJWTExpMins = "GROCER_JWT_EXPIRATION_MINUTES"

	EnvGCPProjectID = "GROCER_GCP_PROJECT_ID"

	EnvPubSubOrdersTopic       = "GROCER_PUBSUB_ORDERS_TOPIC"
	EnvPubSubNotificationTopic = "GROCER_PUBSUB_NOTIFICATION_TOPIC"
	EnvPubSubNotificationSub   = "GROCER_PUBSUB_NOTIFICATION_SUBSCRIPTION"

	EnvCheckoutTaxRate               = "GROCER_CHECKOUT_TAX_RATE_PERCENT"
	EnvCheckoutFreeDeliveryThreshold = "GROCER_CHECKOUT_FREE_DELIVERY_THRESHOLD_CENTS"
	EnvCheckoutDeliveryFee           = "GROCER_CHECKOUT_DELIVERY_FEE_CENTS"
	EnvCheckoutOrderNumberAttempts   = "GROCER_CHECKOUT_ORDER_NUMBER_ATTEMPTS"

	EnvOutboxBatchSize   = "GROCER_OUTBOX_PUBLISH_BATCH_SIZE"
	EnvOutboxMaxAttempts = "GROCER_OUTBOX_MAX_ATTEMPTS"

	EnvDeliveryPartnerIDs = "GROCER_DELIVERY_PARTNER_IDS"
)
