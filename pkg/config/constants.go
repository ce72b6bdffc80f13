package config

// EnvPrefix is passed to envconfig; individual fields carry explicit
// VEILPOST_-prefixed names so the prefix stays empty.
const EnvPrefix = ""

const (
	AppEnvDev  = "development"
	AppEnvProd = "production"
)

const (
	EnvDBDSN  = "VEILPOST_DB_DSN"
	EnvDBHost = "VEILPOST_DB_HOST"
	EnvDBUser = "VEILPOST_DB_USER"
	EnvDBName = "VEILPOST_DB_NAME"

	EnvContentMasterSecret = "VEILPOST_CONTENT_MASTER_SECRET"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
