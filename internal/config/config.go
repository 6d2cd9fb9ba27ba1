package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

var logger = logrus.WithField("component", "config")

type Config struct {
	Port           int      `mapstructure:"port"`
	DataPath       string   `mapstructure:"data_path"`
	DBPath         string   `mapstructure:"db_path"`
	UploadPath     string   `mapstructure:"upload_path"`
	ExportPath     string   `mapstructure:"export_path"`
	MediaPath      string   `mapstructure:"media_path"`
	JWTSecret      string   `mapstructure:"jwt_secret"`
	AdminUsername  string   `mapstructure:"admin_username"`
	AdminPassword  string   `mapstructure:"admin_password"`
	CORSOrigins    []string `mapstructure:"cors_origins"`
	MaxUploadBytes int64    `mapstructure:"max_upload_bytes"`

	Log    LogConfig    `mapstructure:"log"`
	Speech SpeechConfig `mapstructure:"speech"`
	FFmpeg FFmpegConfig `mapstructure:"ffmpeg"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // text, json
}

type SpeechConfig struct {
	Primary      string `mapstructure:"primary"`  // whisper.cpp, openai
	Fallback     string `mapstructure:"fallback"` // optional
	WhisperURL   string `mapstructure:"whisper_url"`
	WhisperModel string `mapstructure:"whisper_model"`
	OpenAIURL    string `mapstructure:"openai_url"`
	OpenAIKey    string `mapstructure:"openai_api_key"`
	OpenAIModel  string `mapstructure:"openai_model"`
	Language     string `mapstructure:"language"`
	ChunkSeconds int    `mapstructure:"chunk_seconds"`
}

type FFmpegConfig struct {
	Bin      string `mapstructure:"bin"`
	ProbeBin string `mapstructure:"probe_bin"`
	HWAccel  bool   `mapstructure:"hwaccel"`
}

// legacyEnv maps keys to the bare environment names older deployments use.
var legacyEnv = map[string]string{
	"port":                  "PORT",
	"data_path":             "DATA_PATH",
	"db_path":               "DB_PATH",
	"media_path":            "MEDIA_PATH",
	"jwt_secret":            "JWT_SECRET",
	"admin_username":        "ADMIN_USERNAME",
	"admin_password":        "ADMIN_PASSWORD",
	"cors_origins":          "CORS_ORIGINS",
	"speech.whisper_url":    "WHISPER_URL",
	"speech.openai_api_key": "OPENAI_API_KEY",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", 8080)
	v.SetDefault("data_path", "/data")
	v.SetDefault("media_path", "/media")
	v.SetDefault("admin_username", "admin")
	v.SetDefault("admin_password", "admin")
	v.SetDefault("cors_origins", []string{"*"})
	v.SetDefault("max_upload_bytes", int64(8<<30))
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("speech.primary", "whisper.cpp")
	v.SetDefault("speech.whisper_url", "http://localhost:8178")
	v.SetDefault("speech.language", "auto")
	v.SetDefault("speech.chunk_seconds", 600)
	v.SetDefault("ffmpeg.bin", "ffmpeg")
	v.SetDefault("ffmpeg.probe_bin", "ffprobe")
	v.SetDefault("ffmpeg.hwaccel", true)
}

// Loader reads configuration from defaults, an optional YAML file and the
// environment. Environment variables use the TRANSCUT_ prefix with dots
// replaced by underscores, e.g. TRANSCUT_SPEECH_WHISPER_URL.
type Loader struct {
	v *viper.Viper

	mu  sync.Mutex
	cfg *Config
}

// NewLoader prepares a loader. An empty path searches ./transcut.yaml and
// /etc/transcut/transcut.yaml.
func NewLoader(path string) *Loader {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("TRANSCUT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range legacyEnv {
		v.BindEnv(key, "TRANSCUT_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env)
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("transcut")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/transcut")
	}
	return &Loader{v: v}
}

// Load reads and validates the configuration.
func (l *Loader) Load() (*Config, error) {
	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		logger.WithField("file", l.v.ConfigFileUsed()).Info("loaded config file")
	}

	cfg, err := l.decode()
	if err != nil {
		return nil, err
	}
	l.mu.Lock()
	l.cfg = cfg
	l.mu.Unlock()
	return cfg, nil
}

func (l *Loader) decode() (*Config, error) {
	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.CORSOrigins = splitList(cfg.CORSOrigins)
	if len(cfg.CORSOrigins) == 0 {
		cfg.CORSOrigins = []string{"*"}
	}
	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join(cfg.DataPath, "transcut.db")
	}
	if cfg.UploadPath == "" {
		cfg.UploadPath = filepath.Join(cfg.DataPath, "uploads")
	}
	if cfg.ExportPath == "" {
		cfg.ExportPath = filepath.Join(cfg.DataPath, "exports")
	}

	// JWT secret: require explicit setting or generate random
	if cfg.JWTSecret == "" {
		b := make([]byte, 32)
		if _, err := rand.Read(b); err != nil {
			return nil, fmt.Errorf("generate jwt secret: %w", err)
		}
		cfg.JWTSecret = hex.EncodeToString(b)
		logger.Warn("JWT_SECRET not set, using random secret. Sessions will not survive restarts.")
	}

	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid port %d", cfg.Port)
	}
	switch cfg.Speech.Primary {
	case "whisper.cpp", "openai":
	default:
		return nil, fmt.Errorf("unknown speech.primary %q", cfg.Speech.Primary)
	}
	return &cfg, nil
}

// Watch re-reads the config file when it changes and calls onChange with the
// new configuration. It does nothing when no file was loaded.
func (l *Loader) Watch(onChange func(*Config)) {
	if l.v.ConfigFileUsed() == "" {
		return
	}
	l.v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := l.decode()
		if err != nil {
			logger.WithError(err).Warn("ignoring invalid config change")
			return
		}
		l.mu.Lock()
		prev := l.cfg
		l.cfg = cfg
		l.mu.Unlock()
		if prev != nil && cfg.JWTSecret != prev.JWTSecret && l.v.GetString("jwt_secret") == "" {
			cfg.JWTSecret = prev.JWTSecret
		}
		logger.WithField("file", e.Name).Info("config reloaded")
		onChange(cfg)
	})
	l.v.WatchConfig()
}

// Load reads configuration from path (optional) and the environment.
func Load(path string) (*Config, error) {
	return NewLoader(path).Load()
}

// ApplyLogging configures the global logrus logger.
func ApplyLogging(c LogConfig) {
	level, err := logrus.ParseLevel(c.Level)
	if err != nil {
		logger.WithField("level", c.Level).Warn("unknown log level, using info")
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)

	if strings.EqualFold(c.Format, "json") {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}

// splitList accepts both YAML lists and a comma-separated env value.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}
