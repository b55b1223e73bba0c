package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string

	HTTPAddr string

	// Default settlement currency for checkout sessions.
	Currency string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	// Optional. When set, webhook processing takes a per-order lock.
	RedisAddr     string
	RedisPassword string

	// Optional. When set, settlement receipts are written here as PDFs.
	ReceiptsDir string

	YooKassa YooKassaConfig
	Tinkoff  TinkoffConfig
}

// YooKassaConfig carries the shop credential pair used to authenticate
// outbound API calls. YooKassa webhooks are unsigned; authenticity is
// established by re-fetching the payment through the API.
type YooKassaConfig struct {
	ShopID    string
	SecretKey string
	APIURL    string
}

// TinkoffConfig carries the merchant terminal credentials. The password is
// also the shared secret of the webhook token scheme.
type TinkoffConfig struct {
	TerminalKey string
	Password    string
	APIURL      string
}

var Module = fx.Module("config",
	fx.Provide(Load),
	fx.Provide(NewCommissionHolder),
)

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		AppName:     getenv("APP_SERVICE", "fanstage"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),

		HTTPAddr: getenv("HTTP_ADDR", ":8080"),
		Currency: strings.ToUpper(getenv("CURRENCY", "RUB")),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "fanstage"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 10),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 50),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 3600),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 600),

		RedisAddr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
		RedisPassword: getenv("REDIS_PASSWORD", ""),

		ReceiptsDir: strings.TrimSpace(getenv("RECEIPTS_DIR", "")),

		YooKassa: YooKassaConfig{
			ShopID:    strings.TrimSpace(getenv("YOOKASSA_SHOP_ID", "")),
			SecretKey: strings.TrimSpace(getenv("YOOKASSA_SECRET_KEY", "")),
			APIURL:    getenv("YOOKASSA_API_URL", "https://api.yookassa.ru/v3"),
		},
		Tinkoff: TinkoffConfig{
			TerminalKey: strings.TrimSpace(getenv("TINKOFF_TERMINAL_KEY", "")),
			Password:    strings.TrimSpace(getenv("TINKOFF_PASSWORD", "")),
			APIURL:      getenv("TINKOFF_API_URL", "https://securepay.tinkoff.ru/v2"),
		},
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}
