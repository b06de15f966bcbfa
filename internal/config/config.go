package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/streetlift/meet-engine/internal/platform/logging"
)

const (
	EnvDev   = "dev"
	EnvStage = "stage"
	EnvProd  = "prod"
)

// Config stores runtime configuration for the meet engine.
type Config struct {
	AppEnv         string
	ServiceName    string
	ServiceVersion string

	HTTPAddr     string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	LocalDBPath  string
	ArchiveDBURL string

	CORSAllowedOrigins []string

	JudgeTokenSecret string
	JudgeTokenTTL    time.Duration

	AttemptTimerDefault time.Duration

	LogLevel logging.Level

	UptraceEnabled bool
	UptraceDSN     string

	PprofEnabled bool
	PprofAddr    string

	PyroscopeEnabled           bool
	PyroscopeServerAddress     string
	PyroscopeAppName           string
	PyroscopeAuthToken         string
	PyroscopeBasicAuthUser     string
	PyroscopeBasicAuthPassword string
	PyroscopeUploadRate        time.Duration
}

func Load() (Config, error) {
	appEnv, err := parseAppEnv(getEnv("APP_ENV", EnvDev))
	if err != nil {
		return Config{}, err
	}

	readTimeout, err := time.ParseDuration(getEnv("APP_READ_TIMEOUT", "10s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse APP_READ_TIMEOUT: %w", err)
	}

	writeTimeout, err := time.ParseDuration(getEnv("APP_WRITE_TIMEOUT", "15s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse APP_WRITE_TIMEOUT: %w", err)
	}

	judgeTokenTTL, err := time.ParseDuration(getEnv("JUDGE_TOKEN_TTL", "12h"))
	if err != nil {
		return Config{}, fmt.Errorf("parse JUDGE_TOKEN_TTL: %w", err)
	}
	if judgeTokenTTL <= 0 {
		return Config{}, fmt.Errorf("JUDGE_TOKEN_TTL must be > 0")
	}

	attemptTimer, err := time.ParseDuration(getEnv("ATTEMPT_TIMER_DEFAULT", "60s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse ATTEMPT_TIMER_DEFAULT: %w", err)
	}
	if attemptTimer <= 0 {
		return Config{}, fmt.Errorf("ATTEMPT_TIMER_DEFAULT must be > 0")
	}

	uptraceEnabled, err := strconv.ParseBool(getEnv("UPTRACE_ENABLED", "false"))
	if err != nil {
		return Config{}, fmt.Errorf("parse UPTRACE_ENABLED: %w", err)
	}
	uptraceDSN := strings.TrimSpace(getEnv("UPTRACE_DSN", ""))
	if uptraceEnabled && uptraceDSN == "" {
		return Config{}, fmt.Errorf("UPTRACE_DSN is required when UPTRACE_ENABLED=true")
	}

	pprofEnabled, err := strconv.ParseBool(getEnv("PPROF_ENABLED", "false"))
	if err != nil {
		return Config{}, fmt.Errorf("parse PPROF_ENABLED: %w", err)
	}
	pprofAddr := strings.TrimSpace(getEnv("PPROF_ADDR", ":6060"))
	if pprofEnabled && pprofAddr == "" {
		return Config{}, fmt.Errorf("PPROF_ADDR is required when PPROF_ENABLED=true")
	}

	pyroscopeEnabled, err := strconv.ParseBool(getEnv("PYROSCOPE_ENABLED", "false"))
	if err != nil {
		return Config{}, fmt.Errorf("parse PYROSCOPE_ENABLED: %w", err)
	}
	pyroscopeServerAddress := strings.TrimSpace(getEnv("PYROSCOPE_SERVER_ADDRESS", ""))
	if pyroscopeEnabled && pyroscopeServerAddress == "" {
		return Config{}, fmt.Errorf("PYROSCOPE_SERVER_ADDRESS is required when PYROSCOPE_ENABLED=true")
	}
	pyroscopeUploadRate, err := time.ParseDuration(getEnv("PYROSCOPE_UPLOAD_RATE", "15s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse PYROSCOPE_UPLOAD_RATE: %w", err)
	}
	if pyroscopeUploadRate <= 0 {
		return Config{}, fmt.Errorf("PYROSCOPE_UPLOAD_RATE must be > 0")
	}

	cfg := Config{
		AppEnv:              appEnv,
		ServiceName:         getEnv("APP_SERVICE_NAME", "meet-engine"),
		ServiceVersion:      getEnv("APP_SERVICE_VERSION", "dev"),
		HTTPAddr:            getEnv("APP_HTTP_ADDR", ":8080"),
		ReadTimeout:         readTimeout,
		WriteTimeout:        writeTimeout,
		LocalDBPath:         getEnv("MEET_DB_PATH", "meet.db"),
		ArchiveDBURL:        getEnv("ARCHIVE_DB_URL", ""),
		CORSAllowedOrigins:  splitCSV(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		JudgeTokenSecret:    strings.TrimSpace(getEnv("JUDGE_TOKEN_SECRET", "")),
		JudgeTokenTTL:       judgeTokenTTL,
		AttemptTimerDefault: attemptTimer,
		LogLevel:            parseLogLevel(getEnv("APP_LOG_LEVEL", "info")),

		UptraceEnabled: uptraceEnabled,
		UptraceDSN:     uptraceDSN,

		PprofEnabled: pprofEnabled,
		PprofAddr:    pprofAddr,

		PyroscopeEnabled:           pyroscopeEnabled,
		PyroscopeServerAddress:     pyroscopeServerAddress,
		PyroscopeAuthToken:         strings.TrimSpace(getEnv("PYROSCOPE_AUTH_TOKEN", "")),
		PyroscopeBasicAuthUser:     strings.TrimSpace(getEnv("PYROSCOPE_BASIC_AUTH_USER", "")),
		PyroscopeBasicAuthPassword: strings.TrimSpace(getEnv("PYROSCOPE_BASIC_AUTH_PASSWORD", "")),
		PyroscopeUploadRate:        pyroscopeUploadRate,
	}
	cfg.PyroscopeAppName = strings.TrimSpace(getEnv("PYROSCOPE_APP_NAME", cfg.ServiceName))

	if len(cfg.CORSAllowedOrigins) == 0 {
		return Config{}, fmt.Errorf("CORS_ALLOWED_ORIGINS cannot be empty")
	}

	return cfg, nil
}

func parseAppEnv(v string) (string, error) {
	value := strings.ToLower(strings.TrimSpace(v))
	switch value {
	case EnvDev, EnvStage, EnvProd:
		return value, nil
	default:
		return "", fmt.Errorf("invalid APP_ENV %q: valid values are %s, %s, %s", v, EnvDev, EnvStage, EnvProd)
	}
}

func parseLogLevel(v string) logging.Level {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "debug":
		return logging.LevelDebug
	case "warn", "warning":
		return logging.LevelWarn
	case "error":
		return logging.LevelError
	default:
		return logging.LevelInfo
	}
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if strings.TrimSpace(value) == "" {
		return fallback
	}

	return value
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		item := strings.TrimSpace(part)
		if item == "" {
			continue
		}
		out = append(out, item)
	}

	return out
}
