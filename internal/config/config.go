package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the Zemini API.
type Config struct {
	Environment    string
	HTTPPort       int
	DatabaseURL    string
	DataStore      string
	LogLevel       string
	LogFormat      string
	AllowedOrigins []string
	FrontendURL    string

	SessionSecret string
	SessionTTL    time.Duration
	BcryptCost    int

	GoogleClientID       string
	GoogleClientSecret   string
	GoogleRedirectURL    string
	GoogleAllowedDomains []string
	GoogleAllowedEmails  []string

	GenerationProvider string
	WorkerURL          string
	WorkerKey          string
	GenAIAPIKey        string
	GenAIModel         string
	ProviderTimeout    time.Duration
	StorageTimeout     time.Duration

	CloudinaryURL string
	MediaDir      string
}

const minSessionSecretBytes = 32

// Load reads configuration from the environment, falling back to a local .env
// file and Docker-style secret files for credentials.
func Load() (Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	databaseURL, err := getEnvOrFile("DATABASE_URL", "/run/secrets/zemini_database_url")
	if err != nil {
		return Config{}, err
	}
	sessionSecret, err := getEnvOrFile("SESSION_SECRET", "/run/secrets/zemini_session_secret")
	if err != nil {
		return Config{}, err
	}
	googleSecret, err := getEnvOrFile("AUTH_GOOGLE_CLIENT_SECRET", "/run/secrets/zemini_google_client_secret")
	if err != nil {
		return Config{}, err
	}
	workerKey, err := getEnvOrFile("GENERATION_WORKER_KEY", "/run/secrets/zemini_worker_key")
	if err != nil {
		return Config{}, err
	}
	genaiKey, err := getEnvOrFile("GENAI_API_KEY", "/run/secrets/zemini_genai_api_key")
	if err != nil {
		return Config{}, err
	}
	cloudinaryURL, err := getEnvOrFile("CLOUDINARY_URL", "/run/secrets/zemini_cloudinary_url")
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Environment:    strings.ToLower(getEnv("APP_ENV", "development")),
		DatabaseURL:    databaseURL,
		DataStore:      strings.ToLower(getEnv("DATA_STORE", "memory")),
		LogLevel:       strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat:      strings.ToLower(getEnv("LOG_FORMAT", "text")),
		AllowedOrigins: parseCSV(getEnv("ALLOWED_ORIGINS", "http://localhost:3000")),
		FrontendURL:    strings.TrimSuffix(getEnv("FRONTEND_URL", "http://localhost:3000"), "/"),

		SessionSecret: strings.TrimSpace(sessionSecret),

		GoogleClientID:       strings.TrimSpace(os.Getenv("AUTH_GOOGLE_CLIENT_ID")),
		GoogleClientSecret:   strings.TrimSpace(googleSecret),
		GoogleRedirectURL:    getEnv("AUTH_GOOGLE_REDIRECT_URL", "http://localhost:8080/api/auth/google/callback"),
		GoogleAllowedDomains: parseCSV(os.Getenv("AUTH_GOOGLE_ALLOWED_DOMAINS")),
		GoogleAllowedEmails:  parseCSV(os.Getenv("AUTH_GOOGLE_ALLOWED_EMAILS")),

		GenerationProvider: strings.ToLower(getEnv("GENERATION_PROVIDER", "worker")),
		WorkerURL:          strings.TrimSpace(os.Getenv("GENERATION_WORKER_URL")),
		WorkerKey:          strings.TrimSpace(workerKey),
		GenAIAPIKey:        strings.TrimSpace(genaiKey),
		GenAIModel:         getEnv("GENAI_MODEL", "gemini-2.5-flash-image-preview"),

		CloudinaryURL: strings.TrimSpace(cloudinaryURL),
		MediaDir:      getEnv("MEDIA_DIR", "tmp/media"),
	}

	portValue := getEnv("PORT", getEnv("HTTP_PORT", "8080"))
	port, err := strconv.Atoi(portValue)
	if err != nil {
		return Config{}, fmt.Errorf("invalid port %q: %w", portValue, err)
	}
	cfg.HTTPPort = port

	if cfg.SessionTTL, err = getDuration("SESSION_TTL", 30*24*time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.ProviderTimeout, err = getDuration("PROVIDER_TIMEOUT", 90*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.StorageTimeout, err = getDuration("STORAGE_TIMEOUT", 30*time.Second); err != nil {
		return Config{}, err
	}

	costValue := getEnv("BCRYPT_COST", "10")
	cost, err := strconv.Atoi(costValue)
	if err != nil || cost < 4 || cost > 31 {
		return Config{}, fmt.Errorf("invalid BCRYPT_COST %q", costValue)
	}
	cfg.BcryptCost = cost

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.DataStore {
	case "memory", "postgres":
	default:
		return fmt.Errorf("unsupported DATA_STORE %q", c.DataStore)
	}
	if c.DataStore == "postgres" && c.DatabaseURL == "" {
		return fmt.Errorf("DATA_STORE is postgres but DATABASE_URL is not set")
	}

	switch c.GenerationProvider {
	case "worker":
		if c.WorkerURL == "" && !c.IsDevelopment() {
			return fmt.Errorf("GENERATION_WORKER_URL is required for the worker provider")
		}
	case "gemini":
		if c.GenAIAPIKey == "" {
			return fmt.Errorf("GENAI_API_KEY is required for the gemini provider")
		}
	default:
		return fmt.Errorf("unsupported GENERATION_PROVIDER %q", c.GenerationProvider)
	}

	if (c.GoogleClientID == "") != (c.GoogleClientSecret == "") {
		return fmt.Errorf("AUTH_GOOGLE_CLIENT_ID and AUTH_GOOGLE_CLIENT_SECRET must be set together")
	}

	if c.IsDevelopment() {
		if c.SessionSecret == "" {
			c.SessionSecret = "development-only-session-secret-do-not-use"
		}
		return nil
	}

	if len(c.SessionSecret) < minSessionSecretBytes {
		return fmt.Errorf("SESSION_SECRET must be at least %d bytes outside development", minSessionSecretBytes)
	}
	if c.CloudinaryURL == "" {
		return fmt.Errorf("CLOUDINARY_URL is required outside development")
	}
	if len(c.AllowedOrigins) == 0 {
		return fmt.Errorf("ALLOWED_ORIGINS must define at least one origin outside development")
	}
	for _, origin := range c.AllowedOrigins {
		if origin == "*" {
			return fmt.Errorf("ALLOWED_ORIGINS cannot contain wildcard when credentials are enabled")
		}
	}
	return nil
}

// HTTPAddress returns the address the HTTP server should bind to.
func (c Config) HTTPAddress() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// UseInMemoryStore returns true if the in-memory repositories should be used.
func (c Config) UseInMemoryStore() bool {
	return c.DataStore == "memory"
}

// IsDevelopment reports whether the API runs with development defaults.
func (c Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// GoogleEnabled reports whether federated Google sign-in is configured.
func (c Config) GoogleEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	value, err := time.ParseDuration(raw)
	if err != nil || value <= 0 {
		return 0, fmt.Errorf("invalid %s %q", key, raw)
	}
	return value, nil
}

func parseCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func getEnvOrFile(key, defaultPath string) (string, error) {
	if value := os.Getenv(key); value != "" {
		return value, nil
	}

	fileKey := key + "_FILE"
	if path := os.Getenv(fileKey); path != "" {
		return readSecret(path, fileKey)
	}

	if defaultPath != "" {
		return readSecret(defaultPath, key)
	}

	return "", nil
}

func readSecret(path, name string) (string, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("config: reading %s (%s): %w", name, path, err)
	}

	value := strings.TrimSpace(string(contents))
	if value == "" {
		return "", fmt.Errorf("config: %s (%s) is empty", name, path)
	}
	return value, nil
}
