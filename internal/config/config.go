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

const DefaultSQLiteDSN = "file:clinic.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_time_format=sqlite"

type Config struct {
	Port string
	Env  string

	DBDriver       string
	DatabaseURL    string
	DBMaxOpenConns int
	DBMaxIdleConns int

	JWTSecret string
	JWTTTL    time.Duration

	AdminEmail    string
	AdminRole     string
	AdminPassword string

	CORSOrigins []string

	SMTP   SMTPConfig
	Clinic ClinicInfo
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Enabled reports whether an SMTP relay is configured.
func (s SMTPConfig) Enabled() bool { return s.Host != "" }

type ClinicInfo struct {
	Name    string
	Phone   string
	Address string
}

// Load reads the process environment, after merging an optional .env file.
// Variables already set in the environment win over the file.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	cfg := &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "production"),
		DBDriver:      strings.ToLower(getEnv("DB_DRIVER", "sqlite")),
		DatabaseURL:   getEnv("DATABASE_URL", DefaultSQLiteDSN),
		JWTSecret:     os.Getenv("JWT_SECRET"),
		AdminEmail:    strings.ToLower(getEnv("ADMIN_EMAIL", "admin@clinic.com")),
		AdminRole:     getEnv("ADMIN_ROLE", "admin"),
		AdminPassword: getEnv("ADMIN_PASSWORD", "admin123"),
		CORSOrigins:   splitList(getEnv("CORS_ORIGINS", "*")),
		SMTP: SMTPConfig{
			Host:     os.Getenv("SMTP_HOST"),
			Username: os.Getenv("SMTP_USERNAME"),
			Password: os.Getenv("SMTP_PASSWORD"),
			From:     os.Getenv("SMTP_FROM"),
		},
		Clinic: ClinicInfo{
			Name:    getEnv("CLINIC_NAME", "Dental Clinic"),
			Phone:   getEnv("CLINIC_PHONE", "+967 777 775 545"),
			Address: getEnv("CLINIC_ADDRESS", "Al-Maqaleh Street"),
		},
	}

	var err error
	if cfg.DBMaxOpenConns, err = getInt("DB_MAX_OPEN_CONNS", 25); err != nil {
		return nil, err
	}
	if cfg.DBMaxIdleConns, err = getInt("DB_MAX_IDLE_CONNS", 5); err != nil {
		return nil, err
	}
	if cfg.SMTP.Port, err = getInt("SMTP_PORT", 587); err != nil {
		return nil, err
	}
	ttl := getEnv("JWT_TTL", "24h")
	if cfg.JWTTTL, err = time.ParseDuration(ttl); err != nil {
		return nil, fmt.Errorf("JWT_TTL: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.DBDriver {
	case "sqlite", "postgres", "pgx":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	if c.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required")
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.DBMaxOpenConns < 1 || c.DBMaxIdleConns < 0 {
		return errors.New("database pool sizes must be positive")
	}
	if c.JWTTTL <= 0 {
		return errors.New("JWT_TTL must be positive")
	}
	if c.AdminEmail == "" || c.AdminRole == "" {
		return errors.New("ADMIN_EMAIL and ADMIN_ROLE are required")
	}
	return nil
}

func (c *Config) IsDev() bool { return c.Env == "development" }

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
