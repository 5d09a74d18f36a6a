package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"dealdialer/models"

	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var (
	DB        *gorm.DB
	AppConfig Config
)

type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Address  string `json:"address"`
	Password string `json:"-"`
	DB       int    `json:"db"`
}

// VapiConfig holds the voice platform credentials. PhoneNumberID is the
// platform-side caller number used for every outbound dial.
type VapiConfig struct {
	APIKey        string `json:"-"`
	BaseURL       string `json:"base_url"`
	PhoneNumberID string `json:"phone_number_id"`
}

type OpenRouterConfig struct {
	APIKey  string `json:"-"`
	BaseURL string `json:"base_url"`
	Model   string `json:"model"`
}

// MetorialConfig describes the OAuth-scoped MCP session used for calendar
// access. SessionID is provisioned out of band when the banker connects
// their calendar.
type MetorialConfig struct {
	APIKey    string `json:"-"`
	BaseURL   string `json:"base_url"`
	SessionID string `json:"session_id"`
}

type ApolloConfig struct {
	APIKey  string `json:"-"`
	BaseURL string `json:"base_url"`
}

// GoogleConfig holds the OAuth client used for Google sign-in.
type GoogleConfig struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"-"`
	RedirectURI  string `json:"redirect_uri"`
}

type Config struct {
	Environment    string           `json:"environment"`
	ServerPort     string           `json:"server_port"`
	EncryptionKey  string           `json:"-"`
	DBHost         string           `json:"db_host"`
	DBPort         string           `json:"db_port"`
	DBUser         string           `json:"db_user"`
	DBPassword     string           `json:"-"`
	DBName         string           `json:"db_name"`
	DBSSLMode      string           `json:"db_ssl_mode"`
	DBMaxIdleConns int              `json:"db_max_idle_conns"`
	DBMaxOpenConns int              `json:"db_max_open_conns"`
	Vapi           VapiConfig       `json:"vapi"`
	OpenRouter     OpenRouterConfig `json:"openrouter"`
	Metorial       MetorialConfig   `json:"metorial"`
	Apollo         ApolloConfig     `json:"apollo"`
	Google         GoogleConfig     `json:"google"`
	Redis          RedisConfig      `json:"redis"`

	// Max outbound call starts per banker per minute.
	RateLimitStartCall int `json:"rate_limit_start_call"`
}

func init() {
	// Try to load .env file, but don't fail if it doesn't exist
	_ = godotenv.Load()
}

func LoadConfig() error {
	AppConfig = Config{
		Environment:    getEnv("ENVIRONMENT", "development"),
		ServerPort:     getEnv("SERVER_PORT", "5000"),
		EncryptionKey:  getEnv("ENCRYPTION_KEY", ""),
		DBHost:         getEnv("DB_HOST", "localhost"),
		DBPort:         getEnv("DB_PORT", "5432"),
		DBUser:         getEnv("DB_USER", "postgres"),
		DBPassword:     getEnv("DB_PASSWORD", ""),
		DBName:         getEnv("DB_NAME", "dealdialer"),
		DBSSLMode:      getEnv("DB_SSL_MODE", "disable"),
		DBMaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 10),
		DBMaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 100),

		Vapi: VapiConfig{
			APIKey:        getEnv("VAPI_API_KEY", ""),
			BaseURL:       getEnv("VAPI_BASE_URL", "https://api.vapi.ai"),
			PhoneNumberID: getEnv("VAPI_PHONE_NUMBER_ID", ""),
		},
		OpenRouter: OpenRouterConfig{
			APIKey:  getEnv("OPENROUTER_API_KEY", ""),
			BaseURL: getEnv("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1"),
			Model:   getEnv("OPENROUTER_MODEL", "openai/gpt-4o-mini"),
		},
		Metorial: MetorialConfig{
			APIKey:    getEnv("METORIAL_API_KEY", ""),
			BaseURL:   getEnv("METORIAL_BASE_URL", "https://api.metorial.com"),
			SessionID: getEnv("METORIAL_SESSION_ID", ""),
		},
		Apollo: ApolloConfig{
			APIKey:  getEnv("APOLLO_API_KEY", ""),
			BaseURL: getEnv("APOLLO_BASE_URL", "https://api.apollo.io"),
		},
		Google: GoogleConfig{
			ClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
			ClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
			RedirectURI:  getEnv("GOOGLE_REDIRECT_URI", ""),
		},
		Redis: RedisConfig{
			Enabled:  getEnv("REDIS_ENABLED", "false") == "true",
			Address:  getEnv("REDIS_ADDRESS", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},

		RateLimitStartCall: getEnvAsInt("RATE_LIMIT_START_CALL", 10),
	}

	// Validate required configurations
	if AppConfig.DBPassword == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if AppConfig.EncryptionKey == "" {
		return fmt.Errorf("ENCRYPTION_KEY is required")
	}
	if AppConfig.Environment == "production" {
		if AppConfig.Vapi.APIKey == "" || AppConfig.Vapi.PhoneNumberID == "" {
			return fmt.Errorf("Vapi credentials are required in production")
		}
		if AppConfig.OpenRouter.APIKey == "" {
			return fmt.Errorf("OPENROUTER_API_KEY is required in production")
		}
	}

	logConfig()
	return nil
}

func ConnectDB() error {
	log.Println("Attempting to connect to database...")

	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		AppConfig.DBHost,
		AppConfig.DBPort,
		AppConfig.DBUser,
		AppConfig.DBPassword,
		AppConfig.DBName,
		AppConfig.DBSSLMode,
	)
	log.Println("Using connection string:", maskPassword(dsn))

	var err error
	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get DB instance: %w", err)
	}

	sqlDB.SetMaxIdleConns(AppConfig.DBMaxIdleConns)
	sqlDB.SetMaxOpenConns(AppConfig.DBMaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Hour)
	sqlDB.SetConnMaxIdleTime(30 * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	log.Println("✅ Successfully connected to the database")
	log.Println("🔄 Starting database migration...")
	if err := MigrateDB(DB); err != nil {
		return fmt.Errorf("database migration failed: %w", err)
	}
	log.Println("✅ Database migration completed")
	return nil
}

// Helper functions
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	var value int
	_, err := fmt.Sscanf(valueStr, "%d", &value)
	if err != nil {
		return fallback
	}
	return value
}

func maskPassword(dsn string) string {
	const passwordMarker = "password="
	startIdx := strings.Index(dsn, passwordMarker)
	if startIdx == -1 {
		return dsn
	}

	startIdx += len(passwordMarker)
	endIdx := strings.IndexAny(dsn[startIdx:], " ")
	if endIdx == -1 {
		return dsn[:startIdx] + "*****"
	}
	return dsn[:startIdx] + "*****" + dsn[startIdx+endIdx:]
}

func logConfig() {
	log.Println("🔧 Loaded configuration:")
	log.Printf("Environment: %s", AppConfig.Environment)
	log.Printf("Server Port: %s", AppConfig.ServerPort)
	log.Printf("Database: %s@%s:%s/%s",
		AppConfig.DBUser,
		AppConfig.DBHost,
		AppConfig.DBPort,
		AppConfig.DBName)
	log.Printf("Integrations: Vapi(%t), OpenRouter(%t), Metorial(%t), Apollo(%t)",
		AppConfig.Vapi.APIKey != "",
		AppConfig.OpenRouter.APIKey != "",
		AppConfig.Metorial.APIKey != "",
		AppConfig.Apollo.APIKey != "")
}

// MigrateDB is exported so tests can run the same schema against a
// throwaway database.
func MigrateDB(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Banker{},
		&models.RefreshToken{},
		&models.Campaign{},
		&models.SellerCompany{},
		&models.Call{},
		&models.CallMessage{},
		&models.Action{},
		&models.Meeting{},
	)
}
