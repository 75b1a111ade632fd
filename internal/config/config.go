package config

import (
	"flag"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Cache     CacheConfig
	Database  DatabaseConfig
	Logging   LoggingConfig
	Detection DetectionConfig
	Video     VideoConfig
}

// ServerConfig holds HTTP server and upload configuration
type ServerConfig struct {
	HTTPAddr        string
	UploadDir       string
	MaxUploadBytes  int64
	AllowedOrigins  []string
	ShutdownTimeout time.Duration
}

// CacheConfig holds cache configuration
type CacheConfig struct {
	Backend   string // "memory" or "redis"
	TTL       time.Duration
	RedisAddr string
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string // "json" or "text"
}

// DetectionConfig selects and configures the defect detection backend.
type DetectionConfig struct {
	Backend             string // "roboflow", "rekognition" or "placeholder"
	ConfidenceThreshold float64
	Timeout             time.Duration
	RequestsPerSecond   float64

	RoboflowAPIKey  string
	RoboflowProject string
	RoboflowVersion int
	RoboflowOverlap int
	RoboflowBaseURL string

	AWSRegion         string
	ProjectVersionARN string
}

// VideoConfig holds frame sampling settings.
type VideoConfig struct {
	FFprobePath      string
	FFmpegPath       string
	SamplesPerSecond float64
	MaxFrames        int
}

// Load parses flags and environment variables to build configuration
func Load() *Config {
	cfg := &Config{}

	// Define flags with defaults
	httpAddr := flag.String("http", ":8080", "HTTP server address")
	uploadDir := flag.String("upload-dir", "uploads", "Directory for uploaded media")
	cacheTTL := flag.Duration("cache-ttl", 30*time.Second, "Cache TTL for report listings")
	cacheBackend := flag.String("cache-backend", "memory", "Cache backend: memory or redis")
	redisAddr := flag.String("redis-addr", "localhost:6379", "Redis server address")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	logFormat := flag.String("log-format", "json", "Log format (json, text)")
	dbHost := flag.String("db-host", "localhost", "PostgreSQL host")
	dbPort := flag.Int("db-port", 5432, "PostgreSQL port")
	dbUser := flag.String("db-user", "postgres", "PostgreSQL user")
	dbPassword := flag.String("db-password", "postgres", "PostgreSQL password")
	dbName := flag.String("db-name", "roadwatch", "PostgreSQL database name")
	dbSSLMode := flag.String("db-sslmode", "disable", "PostgreSQL SSL mode")
	detectionBackend := flag.String("detection-backend", "roboflow", "Detection backend: roboflow, rekognition or placeholder")

	flag.Parse()

	// Apply environment variable overrides
	applyEnvOverrides(httpAddr, uploadDir, cacheTTL, cacheBackend, redisAddr, logLevel, logFormat, dbHost, dbPort, dbUser, dbPassword, dbName, dbSSLMode, detectionBackend)

	// Build config struct
	cfg.Server = loadServerConfig(*httpAddr, *uploadDir)

	cfg.Cache = CacheConfig{
		Backend:   *cacheBackend,
		TTL:       *cacheTTL,
		RedisAddr: *redisAddr,
	}

	cfg.Database = DatabaseConfig{
		Host:     *dbHost,
		Port:     *dbPort,
		User:     *dbUser,
		Password: *dbPassword,
		Database: *dbName,
		SSLMode:  *dbSSLMode,
	}

	cfg.Logging = LoggingConfig{
		Level:  *logLevel,
		Format: *logFormat,
	}

	cfg.Detection = loadDetectionConfig(*detectionBackend)
	cfg.Video = loadVideoConfig()

	return cfg
}

func loadServerConfig(httpAddr, uploadDir string) ServerConfig {
	maxUpload := int64(100 << 20)
	if v := os.Getenv("MAX_UPLOAD_BYTES"); v != "" {
		if parsed, err := strconv.ParseInt(v, 10, 64); err == nil && parsed > 0 {
			maxUpload = parsed
		}
	}

	shutdown := 30 * time.Second
	if v := os.Getenv("SHUTDOWN_TIMEOUT"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil && parsed > 0 {
			shutdown = parsed
		}
	}

	return ServerConfig{
		HTTPAddr:        httpAddr,
		UploadDir:       uploadDir,
		MaxUploadBytes:  maxUpload,
		AllowedOrigins:  splitList(getEnvOrDefault("CORS_ORIGINS", "*")),
		ShutdownTimeout: shutdown,
	}
}

func loadDetectionConfig(backend string) DetectionConfig {
	threshold := 0.40
	if v := os.Getenv("DETECTION_CONFIDENCE"); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil && parsed > 0 && parsed <= 1 {
			threshold = parsed
		}
	}

	timeout := 30 * time.Second
	if v := os.Getenv("DETECTION_TIMEOUT"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil && parsed > 0 {
			timeout = parsed
		}
	}

	rps := 5.0
	if v := os.Getenv("DETECTION_RPS"); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil && parsed >= 0 {
			rps = parsed
		}
	}

	return DetectionConfig{
		Backend:             strings.ToLower(strings.TrimSpace(backend)),
		ConfidenceThreshold: threshold,
		Timeout:             timeout,
		RequestsPerSecond:   rps,
		RoboflowAPIKey:      os.Getenv("ROBOFLOW_API_KEY"),
		RoboflowProject:     getEnvOrDefault("ROBOFLOW_PROJECT", "pothole-detection-yolov8"),
		RoboflowVersion:     getEnvIntOrDefault("ROBOFLOW_VERSION", 1),
		RoboflowOverlap:     getEnvIntOrDefault("ROBOFLOW_OVERLAP", 30),
		RoboflowBaseURL:     getEnvOrDefault("ROBOFLOW_BASE_URL", "https://detect.roboflow.com"),
		AWSRegion:           os.Getenv("AWS_REGION"),
		ProjectVersionARN:   os.Getenv("REKOGNITION_PROJECT_VERSION_ARN"),
	}
}

func loadVideoConfig() VideoConfig {
	sps := 1.0
	if v := os.Getenv("VIDEO_SAMPLES_PER_SECOND"); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil && parsed > 0 {
			sps = parsed
		}
	}

	return VideoConfig{
		FFprobePath:      getEnvOrDefault("FFPROBE_PATH", "ffprobe"),
		FFmpegPath:       getEnvOrDefault("FFMPEG_PATH", "ffmpeg"),
		SamplesPerSecond: sps,
		MaxFrames:        getEnvIntOrDefault("VIDEO_MAX_FRAMES", 60),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			return parsed
		}
	}
	return defaultValue
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func applyEnvOverrides(
	httpAddr *string,
	uploadDir *string,
	cacheTTL *time.Duration,
	cacheBackend *string,
	redisAddr *string,
	logLevel *string,
	logFormat *string,
	dbHost *string,
	dbPort *int,
	dbUser *string,
	dbPassword *string,
	dbName *string,
	dbSSLMode *string,
	detectionBackend *string,
) {
	if v := os.Getenv("HTTP_ADDR"); v != "" {
		*httpAddr = v
	}
	if v := os.Getenv("UPLOAD_DIR"); v != "" {
		*uploadDir = v
	}
	if v := os.Getenv("CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*cacheTTL = d
		}
	}
	if v := os.Getenv("CACHE_BACKEND"); v != "" {
		*cacheBackend = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		*redisAddr = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		*logLevel = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		*logFormat = v
	}
	if v := os.Getenv("DB_HOST"); v != "" {
		*dbHost = v
	}
	if v := os.Getenv("DB_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			*dbPort = p
		}
	}
	if v := os.Getenv("DB_USER"); v != "" {
		*dbUser = v
	}
	if v := os.Getenv("DB_PASSWORD"); v != "" {
		*dbPassword = v
	}
	if v := os.Getenv("DB_NAME"); v != "" {
		*dbName = v
	}
	if v := os.Getenv("DB_SSLMODE"); v != "" {
		*dbSSLMode = v
	}
	if v := os.Getenv("DETECTION_BACKEND"); v != "" {
		*detectionBackend = v
	}
}
