package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// AppConfig holds process-wide settings. It is loaded once at boot and handed to every
// component that needs it; nothing below main reads configuration on its own.
// Sensitive data should never have defaults inside code and must be provided via config file or the environment.
type AppConfig struct {
	AppPort string `mapstructure:"AppPort"`
	// BaseURL is used to build absolute links in outgoing mail.
	BaseURL   string `mapstructure:"BaseURL"`
	SecretKey string `mapstructure:"SecretKey"`
	// Gin framework configuration
	GinMode        string   `mapstructure:"GinMode"`
	GinPath        string   `mapstructure:"GinPath"`
	AllowedOrigins []string `mapstructure:"AllowedOrigins"`
	// Database: DatabaseURI wins when set; "sqlite:" prefix selects the SQLite driver.
	DatabaseURI string `mapstructure:"DatabaseURI"`
	DBHost      string `mapstructure:"DBHost"`
	DBPort      string `mapstructure:"DBPort"`
	DBUser      string `mapstructure:"DBUser"`
	DBPassword  string `mapstructure:"DBPassword"`
	DBName      string `mapstructure:"DBName"`
	// Redis for caching and session revocation
	RedisHost     string `mapstructure:"RedisHost"`
	RedisPort     int    `mapstructure:"RedisPort"`
	RedisDB       int    `mapstructure:"RedisDB"`
	RedisPassword string `mapstructure:"RedisPassword"`
	// SMTP for password reset mail
	SMTPHost     string `mapstructure:"SMTPHost"`
	SMTPPort     int    `mapstructure:"SMTPPort"`
	SMTPUsername string `mapstructure:"SMTPUsername"`
	SMTPPassword string `mapstructure:"SMTPPassword"`
	MailSender   string `mapstructure:"MailSender"`
	// Logging configuration
	LogLevel      string `mapstructure:"LogLevel"`
	LogPath       string `mapstructure:"LogPath"`
	LogMaxSizeMB  int    `mapstructure:"LogMaxSizeMB"`
	LogMaxBackups int    `mapstructure:"LogMaxBackups"`
	LogMaxAgeDays int    `mapstructure:"LogMaxAgeDays"`
	LogCompress   bool   `mapstructure:"LogCompress"`
	// Blog behaviour
	PostsPerPage          int           `mapstructure:"PostsPerPage"`
	ResetTokenExpiresSec  int           `mapstructure:"ResetTokenExpiresSec"`
	SessionTTL            time.Duration `mapstructure:"SessionTTL"`
	RememberTTL           time.Duration `mapstructure:"RememberTTL"`
	CookieSecure          bool          `mapstructure:"CookieSecure"`
	CacheTTL              time.Duration `mapstructure:"CacheTTL"`
	StaticDir             string        `mapstructure:"StaticDir"`
	ProfilePicsDir        string        `mapstructure:"ProfilePicsDir"`
	MaxUploadSizeMB       int           `mapstructure:"MaxUploadSizeMB"`
	RateLimitPerMinute    int           `mapstructure:"RateLimitPerMinute"`
	DefaultProfilePicture string        `mapstructure:"DefaultProfilePicture"`
}

// envBindings maps config keys to the environment variables that override them.
var envBindings = map[string]string{
	"AppPort":               "APP_PORT",
	"BaseURL":               "BASE_URL",
	"SecretKey":             "SECRET_KEY",
	"GinMode":               "GIN_MODE",
	"GinPath":               "GIN_PATH",
	"AllowedOrigins":        "CORS_ALLOWED_ORIGINS",
	"DatabaseURI":           "DATABASE_URI",
	"DBHost":                "DB_HOST",
	"DBPort":                "DB_PORT",
	"DBUser":                "DB_USER",
	"DBPassword":            "DB_PASSWORD",
	"DBName":                "DB_NAME",
	"RedisHost":             "REDIS_HOST",
	"RedisPort":             "REDIS_PORT",
	"RedisDB":               "REDIS_DB",
	"RedisPassword":         "REDIS_PASSWORD",
	"SMTPHost":              "SMTP_HOST",
	"SMTPPort":              "SMTP_PORT",
	"SMTPUsername":          "SMTP_USERNAME",
	"SMTPPassword":          "SMTP_PASSWORD",
	"MailSender":            "MAIL_SENDER",
	"LogLevel":              "LOG_LEVEL",
	"LogPath":               "LOG_PATH",
	"LogMaxSizeMB":          "LOG_MAX_SIZE_MB",
	"LogMaxBackups":         "LOG_MAX_BACKUPS",
	"LogMaxAgeDays":         "LOG_MAX_AGE_DAYS",
	"LogCompress":           "LOG_COMPRESS",
	"PostsPerPage":          "POSTS_PER_PAGE",
	"ResetTokenExpiresSec":  "RESET_TOKEN_EXPIRES_SEC",
	"SessionTTL":            "SESSION_TTL",
	"RememberTTL":           "REMEMBER_TTL",
	"CookieSecure":          "COOKIE_SECURE",
	"CacheTTL":              "CACHE_TTL",
	"StaticDir":             "STATIC_DIR",
	"ProfilePicsDir":        "PROFILE_PICS_DIR",
	"MaxUploadSizeMB":       "MAX_UPLOAD_SIZE_MB",
	"RateLimitPerMinute":    "RATE_LIMIT_PER_MINUTE",
	"DefaultProfilePicture": "DEFAULT_PROFILE_PICTURE",
}

// Load reads configuration with precedence config/config.json -> defaults -> environment.
// It should be called once during boot.
func Load() (AppConfig, error) {
	return LoadFile(filepath.Join("config", "config.json"))
}

// LoadFile is Load with an explicit config file path. A missing file is not an error.
func LoadFile(path string) (AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	if _, err := os.Stat(path); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return AppConfig{}, fmt.Errorf("read %s: %w", path, err)
		}
	}

	applyDefaults(v)
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return AppConfig{}, fmt.Errorf("bind %s: %w", env, err)
		}
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return AppConfig{}, fmt.Errorf("unable to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

// Validate ensures that required configuration values are present.
func (c AppConfig) Validate() error {
	if strings.TrimSpace(c.SecretKey) == "" {
		return errors.New("SECRET_KEY must be set in config file or environment")
	}
	if c.PostsPerPage <= 0 {
		return errors.New("PostsPerPage must be positive")
	}
	return nil
}

// ResetTokenTTL is the lifetime of password reset tokens.
func (c AppConfig) ResetTokenTTL() time.Duration {
	return time.Duration(c.ResetTokenExpiresSec) * time.Second
}

// applyDefaults sets sane defaults for values absent from file and environment.
func applyDefaults(v *viper.Viper) {
	v.SetDefault("AppPort", "5000")
	v.SetDefault("BaseURL", "http://localhost:5000")
	v.SetDefault("GinMode", "release")
	v.SetDefault("GinPath", "logs/go_gin.log")
	v.SetDefault("AllowedOrigins", []string{"*"})
	v.SetDefault("DatabaseURI", "sqlite:site.db")
	v.SetDefault("DBHost", "127.0.0.1")
	v.SetDefault("DBPort", "3306")
	v.SetDefault("DBUser", "root")
	v.SetDefault("DBName", "blog")
	v.SetDefault("RedisHost", "127.0.0.1")
	v.SetDefault("RedisPort", 6379)
	v.SetDefault("SMTPHost", "smtp.googlemail.com")
	v.SetDefault("SMTPPort", 587)
	v.SetDefault("MailSender", "noreply@demo.com")
	v.SetDefault("LogLevel", "info")
	v.SetDefault("LogPath", "logs/blog.log")
	v.SetDefault("LogMaxSizeMB", 100)
	v.SetDefault("LogMaxBackups", 3)
	v.SetDefault("LogMaxAgeDays", 7)
	v.SetDefault("PostsPerPage", 2)
	v.SetDefault("ResetTokenExpiresSec", 1800)
	v.SetDefault("SessionTTL", "24h")
	v.SetDefault("RememberTTL", "720h")
	v.SetDefault("CacheTTL", "1h")
	v.SetDefault("StaticDir", "static")
	v.SetDefault("ProfilePicsDir", filepath.Join("static", "profile_pics"))
	v.SetDefault("MaxUploadSizeMB", 8)
	v.SetDefault("RateLimitPerMinute", 60)
	v.SetDefault("DefaultProfilePicture", "default.jpg")
}
