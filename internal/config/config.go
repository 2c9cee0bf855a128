package config // package config loads application configuration from environment variables

import (
    "log"     // log is used to report configuration errors and halt execution
    "os"      // os provides access to environment variables
    "strings" // strings splits list-valued variables
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  It is built once in main and passed down
// explicitly; nothing reads the environment at request time.
type Config struct {
    Env            string   // application environment (e.g. "dev", "prod")
    Port           string   // HTTP port to listen on
    DBUser         string   // database username
    DBPass         string   // database password (optional)
    DBHost         string   // database host address
    DBPort         string   // database port number
    DBName         string   // database name
    JWTSecret      string   // secret used to sign access tokens
    GoogleClientID string   // OAuth client id Google ID tokens must be minted for
    AdminEmails    []string // emails that receive the admin role on account creation

    BypassEnabled  bool   // fixture password shortcut (ignored in production)
    BypassSentinel string // stored hash value marking fixture accounts
    BypassPassword string // plaintext accepted for fixture accounts

    RevokeChainOnReuse bool // revoke all descendants when a rotated refresh token is replayed

    RabbitURL            string // AMQP broker for auth audit events ("" disables publishing)
    AuditLogDir          string // where the audit consumer writes auth.log
    AuditConsumerEnabled bool   // run the audit consumer inside this process
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.
func Load() Config {
    return Config{
        Env:            must("APP_ENV"),               // environment (dev/test/prod)
        Port:           envStr("APP_PORT", "8080"),    // port to bind the HTTP server
        DBUser:         must("DB_USER"),               // database user
        DBPass:         os.Getenv("DB_PASS"),          // database password (empty allowed)
        DBHost:         must("DB_HOST"),               // database host
        DBPort:         envStr("DB_PORT", "3306"),     // database port
        DBName:         must("DB_NAME"),               // database name
        JWTSecret:      must("JWT_SECRET"),            // secret used for signing JWTs
        GoogleClientID: os.Getenv("GOOGLE_CLIENT_ID"), // empty disables Google sign in
        AdminEmails:    splitList(os.Getenv("ADMIN_EMAILS")),

        BypassEnabled:  envBool("AUTH_BYPASS_ENABLED", false),
        BypassSentinel: os.Getenv("AUTH_BYPASS_SENTINEL"),
        BypassPassword: os.Getenv("AUTH_BYPASS_PASSWORD"),

        RevokeChainOnReuse: envBool("REFRESH_REUSE_REVOKES_CHAIN", false),

        RabbitURL:            firstNonEmpty(os.Getenv("RABBITMQ_URL"), os.Getenv("AMQP_URL")),
        AuditLogDir:          envStr("AUDIT_LOG_DIR", "logs"),
        AuditConsumerEnabled: envBool("AUDIT_CONSUMER_ENABLED", false),
    }
}

// IsProduction reports whether the service runs in production.  Cookie
// flags and the fixture password bypass depend on it.  Only the explicit
// development environments below are non-production; any other APP_ENV,
// including a typo, is treated as production.
func (c Config) IsProduction() bool {
    switch strings.ToLower(strings.TrimSpace(c.Env)) {
    case "dev", "development", "local", "test":
        return false
    }
    return true
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
    v, ok := os.LookupEnv(key)
    if !ok || v == "" {
        log.Fatalf("missing required env var: %s", key)
    }
    return v
}
