package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort  string
	AppEnv   string
	DBDriver string // "dynamo" | "mongo"

	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string
	DynamoTables   DynamoTables

	MongoURI string
	MongoDB  string

	JWTPrivateKeyPath string
	JWTPublicKeyPath  string
	JWTExpiry         time.Duration

	OTPTTL              time.Duration
	PasswordResetWindow time.Duration

	SMTPHost               string
	SMTPPort               int
	SMTPFrom               string
	SMTPUsername           string
	SMTPPassword           string
	SMTPBreakerMaxFailures uint32
	SMTPBreakerTimeout     time.Duration

	SNSRegion            string
	FriendEventsTopicARN string // optional; events are not published when empty

	AllowedOrigins []string // CORS allowed origins
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	Users    string
	Sessions string
	OTPs     string
}

// Load reads all configuration from environment variables.
func Load() *Config {
	return &Config{
		AppPort:  getEnv("APP_PORT", "3000"),
		AppEnv:   getEnv("APP_ENV", "development"),
		DBDriver: getEnv("DB_DRIVER", "dynamo"),

		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		DynamoTables: DynamoTables{
			Users:    getEnv("DYNAMO_TABLE_USERS", "users"),
			Sessions: getEnv("DYNAMO_TABLE_SESSIONS", "sessions"),
			OTPs:     getEnv("DYNAMO_TABLE_OTPS", "otps"),
		},

		MongoURI: getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:  getEnv("MONGO_DB", "hive"),

		JWTPrivateKeyPath: getEnv("JWT_PRIVATE_KEY_PATH", "./private_key.pem"),
		JWTPublicKeyPath:  getEnv("JWT_PUBLIC_KEY_PATH", "./public_key.pem"),
		JWTExpiry:         time.Duration(getEnvInt("JWT_EXPIRY_HOURS", 24)) * time.Hour,

		OTPTTL:              time.Duration(getEnvInt("OTP_TTL_SECONDS", 60)) * time.Second,
		PasswordResetWindow: time.Duration(getEnvInt("PASSWORD_RESET_WINDOW_MINUTES", 10)) * time.Minute,

		SMTPHost:               getEnv("SMTP_HOST", "localhost"),
		SMTPPort:               getEnvInt("SMTP_PORT", 1025),
		SMTPFrom:               getEnv("SMTP_FROM", "noreply@example.com"),
		SMTPUsername:           getEnv("SMTP_USERNAME", ""),
		SMTPPassword:           getEnv("SMTP_PASSWORD", ""),
		SMTPBreakerMaxFailures: uint32(getEnvInt("SMTP_BREAKER_MAX_FAILURES", 5)),
		SMTPBreakerTimeout:     time.Duration(getEnvInt("SMTP_BREAKER_TIMEOUT_SECONDS", 30)) * time.Second,

		SNSRegion:            getEnv("SNS_REGION", "us-east-1"),
		FriendEventsTopicARN: getEnv("FRIEND_EVENTS_TOPIC_ARN", ""),

		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "http://localhost:4200"), ","),
	}
}

// IsProduction reports whether cookies should be marked Secure.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
