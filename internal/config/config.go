package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	JWT       JWTConfig
	Chrome    ChromeConfig
	Playback  PlaybackConfig
	Recorder  RecorderConfig
	Scheduler SchedulerConfig
	Log       LogConfig
}

type ServerConfig struct {
	Port         string
	Host         string
	Mode         string
	ReadTimeout  int
	WriteTimeout int
}

type DatabaseConfig struct {
	Driver     string // memory, sqlite or mysql
	Host       string
	Port       string
	Username   string
	Password   string
	Database   string
	Charset    string
	SQLitePath string
}

type JWTConfig struct {
	Secret     string
	ExpireTime int
	Enabled    bool
}

type ChromeConfig struct {
	HeadlessMode bool
	ExecPath     string
	Device       string
	Debug        bool
}

type PlaybackConfig struct {
	ElementTimeout      time.Duration
	OptionRetryTimeout  time.Duration
	OptionRetryDelay    time.Duration
	DropdownWait        time.Duration
	NavigationSettle    time.Duration
	PollInterval        time.Duration
	SessionTTL          time.Duration
	StrictAPIValidation bool
}

type RecorderConfig struct {
	ScrollDebounce    time.Duration
	APIWindow         time.Duration
	InteractiveDepth  int
	EventPollInterval time.Duration
}

type SchedulerConfig struct {
	JanitorInterval time.Duration
}

type LogConfig struct {
	Level  string
	Format string // json or console
}

func LoadConfig() (*Config, error) {
	config := &Config{
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			Host:         getEnv("SERVER_HOST", "127.0.0.1"),
			Mode:         getEnv("SERVER_MODE", "release"),
			ReadTimeout:  getEnvAsInt("SERVER_READ_TIMEOUT", 30),
			WriteTimeout: getEnvAsInt("SERVER_WRITE_TIMEOUT", 30),
		},
		Database: DatabaseConfig{
			Driver:     getEnv("DB_DRIVER", "sqlite"),
			Host:       getEnv("DB_HOST", "127.0.0.1"),
			Port:       getEnv("DB_PORT", "3306"),
			Username:   getEnv("DB_USERNAME", "root"),
			Password:   getEnv("DB_PASSWORD", ""),
			Database:   getEnv("DB_NAME", "indiflow"),
			Charset:    getEnv("DB_CHARSET", "utf8mb4"),
			SQLitePath: getEnv("DB_SQLITE_PATH", "indiflow.db"),
		},
		JWT: JWTConfig{
			Secret:     getEnv("JWT_SECRET", ""),
			ExpireTime: getEnvAsInt("JWT_EXPIRE_TIME", 24*3600),
			Enabled:    getEnvAsBool("JWT_ENABLED", false),
		},
		Chrome: ChromeConfig{
			HeadlessMode: getEnvAsBool("CHROME_HEADLESS", true),
			ExecPath:     getEnv("CHROME_PATH", ""),
			Device:       getEnv("CHROME_DEVICE", ""),
			Debug:        getEnvAsBool("CHROME_DEBUG", false),
		},
		Playback: PlaybackConfig{
			ElementTimeout:      getEnvAsDuration("PLAYBACK_ELEMENT_TIMEOUT", 5*time.Second),
			OptionRetryTimeout:  getEnvAsDuration("PLAYBACK_OPTION_RETRY_TIMEOUT", 3*time.Second),
			OptionRetryDelay:    getEnvAsDuration("PLAYBACK_OPTION_RETRY_DELAY", 500*time.Millisecond),
			DropdownWait:        getEnvAsDuration("PLAYBACK_DROPDOWN_WAIT", 1500*time.Millisecond),
			NavigationSettle:    getEnvAsDuration("PLAYBACK_NAVIGATION_SETTLE", 2*time.Second),
			PollInterval:        getEnvAsDuration("PLAYBACK_POLL_INTERVAL", 100*time.Millisecond),
			SessionTTL:          getEnvAsDuration("PLAYBACK_SESSION_TTL", 5*time.Minute),
			StrictAPIValidation: getEnvAsBool("PLAYBACK_STRICT_API", false),
		},
		Recorder: RecorderConfig{
			ScrollDebounce:    getEnvAsDuration("RECORDER_SCROLL_DEBOUNCE", 500*time.Millisecond),
			APIWindow:         getEnvAsDuration("RECORDER_API_WINDOW", 3*time.Second),
			InteractiveDepth:  getEnvAsInt("RECORDER_INTERACTIVE_DEPTH", 5),
			EventPollInterval: getEnvAsDuration("RECORDER_EVENT_POLL", 100*time.Millisecond),
		},
		Scheduler: SchedulerConfig{
			JanitorInterval: getEnvAsDuration("JANITOR_INTERVAL", time.Minute),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "console"),
		},
	}

	if config.JWT.Enabled && config.JWT.Secret == "" {
		return nil, fmt.Errorf("JWT_ENABLED requires JWT_SECRET")
	}
	switch config.Database.Driver {
	case "memory", "sqlite", "mysql":
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", config.Database.Driver)
	}

	return config, nil
}

func (c *Config) GetDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=%s&parseTime=True&loc=Local",
		c.Database.Username,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Database,
		c.Database.Charset,
	)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvAsDuration accepts Go duration strings ("1500ms") or plain
// milliseconds.
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		if ms, err := strconv.Atoi(value); err == nil {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return defaultValue
}
