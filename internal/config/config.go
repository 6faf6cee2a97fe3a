package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DefaultSoundURL is the looping alarm sound used when SOUND_URL is unset.
const DefaultSoundURL = "https://www.soundjay.com/buttons/beep-01a.mp3"

type Config struct {
	Addr           string        // API bind address, e.g., "127.0.0.1:8080" or ":8080" (Docker)
	LogDir         string        // logs directory
	DatabaseURL    string        // postgres://..., sqlite:path or empty for in-memory
	AllowedOrigins []string      // CORS origins; empty allows all
	WriteRPM       int           // rate limit for mutating routes, per client IP
	WriteBurst     int
	Location       *time.Location // zone for naive alarm times

	// alarmd
	ControlAddr  string        // reactor control listener
	APIBase      string        // where the alarm list is polled from
	AppURL       string        // window opened/focused on notification click
	PollInterval time.Duration // gap between polling cycles
	FetchTimeout time.Duration // per-request bound on the alarm fetch
	ReloadDelay  time.Duration // restart delay after a permission grant
	SoundURL     string
	SoundBackend string // "oto", "beep" or "none"
	Permission   string // "granted", "denied", "default" or "prompt"
	SlackWebhook string
	Desktop      bool // send desktop notifications
}

// FromEnv loads an optional .env file and reads the environment.
func FromEnv() Config {
	_ = godotenv.Load()

	// Bind address (Windows-friendly default)
	addr := os.Getenv("API_ADDR")
	if addr == "" {
		addr = "127.0.0.1:8080"
	}

	// Logs
	logDir := os.Getenv("LOG_DIR")
	if logDir == "" {
		logDir = "logs"
	}

	controlAddr := os.Getenv("CONTROL_ADDR")
	if controlAddr == "" {
		controlAddr = "127.0.0.1:8090"
	}

	apiBase := strings.TrimRight(os.Getenv("API_BASE"), "/")
	if apiBase == "" {
		apiBase = "http://" + addr
	}

	appURL := os.Getenv("APP_URL")
	if appURL == "" {
		appURL = apiBase + "/"
	}

	soundURL := os.Getenv("SOUND_URL")
	if soundURL == "" {
		soundURL = DefaultSoundURL
	}

	backend := strings.ToLower(strings.TrimSpace(os.Getenv("SOUND_BACKEND")))
	if backend == "" {
		backend = "oto"
	}

	perm := strings.ToLower(strings.TrimSpace(os.Getenv("NOTIFY_PERMISSION")))
	if perm == "" {
		perm = "prompt"
	}

	loc := time.Local
	if tz := os.Getenv("ALARM_TZ"); tz != "" {
		if l, err := time.LoadLocation(tz); err == nil {
			loc = l
		}
	}

	desktop := true
	if v := os.Getenv("DESKTOP_NOTIFY"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			desktop = b
		}
	}

	return Config{
		Addr:           addr,
		LogDir:         logDir,
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		AllowedOrigins: splitList(os.Getenv("ALLOWED_ORIGINS")),
		WriteRPM:       intEnv("WRITE_RPM", 120, 0),
		WriteBurst:     intEnv("WRITE_BURST", 30, 1),
		Location:       loc,

		ControlAddr:  controlAddr,
		APIBase:      apiBase,
		AppURL:       appURL,
		PollInterval: msEnv("POLL_INTERVAL_MS", 3000*time.Millisecond),
		FetchTimeout: msEnv("FETCH_TIMEOUT_MS", 10*time.Second),
		ReloadDelay:  msEnv("RELOAD_DELAY_MS", 1000*time.Millisecond),
		SoundURL:     soundURL,
		SoundBackend: backend,
		Permission:   perm,
		SlackWebhook: os.Getenv("SLACK_WEBHOOK_URL"),
		Desktop:      desktop,
	}
}

func intEnv(key string, def, min int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= min {
			return n
		}
	}
	return def
}

func msEnv(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return def
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
