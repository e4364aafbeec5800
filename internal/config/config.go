package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/viper"

	"github.com/sisyphus-worker/pkg/logger"
)

// workerNamespace seeds the UUID5 worker identifier so a host keeps its ID across restarts.
var workerNamespace = uuid.MustParse("0067f190-fa1e-461f-9115-6193c804c883")

// Config holds all configuration for the worker.
type Config struct {
	Worker    WorkerConfig    `mapstructure:"worker"`
	Queue     QueueConfig     `mapstructure:"queue"`
	Redis     RedisConfig     `mapstructure:"redis"`
	API       APIConfig       `mapstructure:"api"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Binaries  BinariesConfig  `mapstructure:"binaries"`
	Mkvmerge  MkvmergeConfig  `mapstructure:"mkvmerge"`
	Server    ServerConfig    `mapstructure:"server"`
	Apprise   AppriseConfig   `mapstructure:"apprise"`
	Log       LogConfig       `mapstructure:"log"`
}

type WorkerConfig struct {
	HostnameOverride string        `mapstructure:"hostname_override"`
	StartupDelay     time.Duration `mapstructure:"startup_delay"`
}

type QueueConfig struct {
	// Backend: "redis" (list pop) or "http" (API long-poll)
	Backend      string        `mapstructure:"backend"`
	PollDelay    time.Duration `mapstructure:"poll_delay"`    // Sleep between poll attempts
	FailureDelay time.Duration `mapstructure:"failure_delay"` // Backoff after a transport failure
	PollTimeout  time.Duration `mapstructure:"poll_timeout"`  // Upper bound for a single poll
}

type RedisConfig struct {
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	DB        int    `mapstructure:"db"`
	QueueName string `mapstructure:"queue_name"`
}

// Addr returns host:port for the redis client.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type APIConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type TelemetryConfig struct {
	// Sink: "http" posts to the API, "redis" writes expiring keys
	Sink                string        `mapstructure:"sink"`
	HeartbeatInterval   time.Duration `mapstructure:"heartbeat_interval"`
	ProgressExpiry      time.Duration `mapstructure:"progress_expiry"`
	ProgressMinInterval time.Duration `mapstructure:"progress_min_interval"`
}

type BinariesConfig struct {
	Ffmpeg    string `mapstructure:"ffmpeg"`
	Ffprobe   string `mapstructure:"ffprobe"`
	Handbrake string `mapstructure:"handbrake"`
	Mkvmerge  string `mapstructure:"mkvmerge"`
}

type MkvmergeConfig struct {
	FontDirectory         string `mapstructure:"font_directory"`
	EnableFontAttachments bool   `mapstructure:"enable_font_attachments"`
	AllowWarnings         bool   `mapstructure:"allow_warnings"` // treat exit code 1 as success
}

type ServerConfig struct {
	Port int `mapstructure:"port"` // 0 disables the status API
}

type AppriseConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	BaseURL string `mapstructure:"base_url"` // Apprise API URL
	Key     string `mapstructure:"key"`      // Apprise config key
	Tag     string `mapstructure:"tag"`      // Tag to filter services
}

type LogConfig struct {
	Level string `mapstructure:"level"` // empty keeps the ENV-derived default
}

// Hostname returns the override if set, otherwise the OS hostname.
func (c *Config) Hostname() string {
	if c.Worker.HostnameOverride != "" {
		return c.Worker.HostnameOverride
	}
	name, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return name
}

// WorkerID derives a stable identifier from the hostname.
func (c *Config) WorkerID() string {
	return uuid.NewSHA1(workerNamespace, []byte(c.Hostname())).String()
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("worker.hostname_override", "")
	v.SetDefault("worker.startup_delay", "5s")

	v.SetDefault("queue.backend", "redis")
	v.SetDefault("queue.poll_delay", "1s")
	v.SetDefault("queue.failure_delay", "10s")
	v.SetDefault("queue.poll_timeout", "5s")

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.queue_name", "queue")

	v.SetDefault("api.url", "http://localhost:8000")
	v.SetDefault("api.timeout", "30s")

	v.SetDefault("telemetry.sink", "redis")
	v.SetDefault("telemetry.heartbeat_interval", "5s")
	v.SetDefault("telemetry.progress_expiry", "10s")
	v.SetDefault("telemetry.progress_min_interval", "1s")

	v.SetDefault("binaries.ffmpeg", "ffmpeg")
	v.SetDefault("binaries.ffprobe", "ffprobe")
	v.SetDefault("binaries.handbrake", "HandBrakeCLI")
	v.SetDefault("binaries.mkvmerge", "mkvmerge")

	v.SetDefault("mkvmerge.font_directory", "")
	v.SetDefault("mkvmerge.enable_font_attachments", false)
	v.SetDefault("mkvmerge.allow_warnings", false)

	v.SetDefault("server.port", 0)

	v.SetDefault("apprise.enabled", false)
	v.SetDefault("apprise.base_url", "")
	v.SetDefault("apprise.key", "")
	v.SetDefault("apprise.tag", "")

	v.SetDefault("log.level", "")
}

func newViper(path string) *viper.Viper {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetEnvPrefix("SISYPHUS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func read(v *viper.Viper, path string) (*Config, error) {
	if _, err := os.Stat(path); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that would otherwise fail much later at runtime.
func (c *Config) Validate() error {
	switch c.Queue.Backend {
	case "redis", "http":
	default:
		return fmt.Errorf("queue.backend must be \"redis\" or \"http\", got %q", c.Queue.Backend)
	}
	switch c.Telemetry.Sink {
	case "redis", "http":
	default:
		return fmt.Errorf("telemetry.sink must be \"redis\" or \"http\", got %q", c.Telemetry.Sink)
	}
	if c.Telemetry.HeartbeatInterval <= 0 {
		return errors.New("telemetry.heartbeat_interval must be positive")
	}
	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be debug, info, warn or error, got %q", c.Log.Level)
	}
	if c.Mkvmerge.EnableFontAttachments && c.Mkvmerge.FontDirectory == "" {
		return errors.New("mkvmerge.font_directory is required when font attachments are enabled")
	}
	return nil
}

// ChangeCallback is called when config changes.
type ChangeCallback func(old, new *Config)

// Manager handles config loading and hot-reload.
type Manager struct {
	mu        sync.RWMutex
	v         *viper.Viper
	cfg       *Config
	callbacks []ChangeCallback
	stop      chan struct{}
	stopOnce  sync.Once

	path        string
	lastModTime time.Time
}

// NewManager creates a config manager with hot-reload support via polling.
func NewManager(path string) (*Manager, error) {
	v := newViper(path)
	cfg, err := read(v, path)
	if err != nil {
		return nil, err
	}

	var lastMod time.Time
	if stat, err := os.Stat(path); err == nil {
		lastMod = stat.ModTime()
	}

	m := &Manager{
		v:           v,
		cfg:         cfg,
		stop:        make(chan struct{}),
		path:        path,
		lastModTime: lastMod,
	}

	go m.pollForChanges(10 * time.Second)

	logger.Infof("📋 Config loaded (polling every 10s for changes)")

	return m, nil
}

func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

func (m *Manager) OnChange(cb ChangeCallback) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks = append(m.callbacks, cb)
}

func (m *Manager) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
}

func (m *Manager) pollForChanges(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			stat, err := os.Stat(m.path)
			if err != nil {
				continue
			}

			m.mu.RLock()
			lastMod := m.lastModTime
			m.mu.RUnlock()

			if stat.ModTime().After(lastMod) {
				logger.Infof("🔄 Config file changed, reloading...")

				m.mu.Lock()
				m.lastModTime = stat.ModTime()
				m.mu.Unlock()

				m.reload()
			}
		}
	}
}

func (m *Manager) reload() {
	newCfg, err := read(m.v, m.path)
	if err != nil {
		logger.Errorf("❌ Failed to reload config: %v", err)
		return
	}

	m.mu.Lock()
	oldCfg := m.cfg
	m.cfg = newCfg
	callbacks := m.callbacks
	m.mu.Unlock()

	logChanges(oldCfg, newCfg, "")

	for _, cb := range callbacks {
		cb(oldCfg, newCfg)
	}
}

func logChanges(old, cur any, prefix string) {
	oldVal := reflect.ValueOf(old)
	newVal := reflect.ValueOf(cur)

	if oldVal.Kind() == reflect.Ptr {
		oldVal = oldVal.Elem()
	}
	if newVal.Kind() == reflect.Ptr {
		newVal = newVal.Elem()
	}

	if oldVal.Kind() != reflect.Struct {
		return
	}

	t := oldVal.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		oldField := oldVal.Field(i)
		newField := newVal.Field(i)

		fieldName := field.Name
		if prefix != "" {
			fieldName = prefix + "." + fieldName
		}

		if oldField.Kind() == reflect.Struct {
			logChanges(oldField.Interface(), newField.Interface(), fieldName)
			continue
		}

		if !reflect.DeepEqual(oldField.Interface(), newField.Interface()) {
			logger.Infof("  📝 %s: %v → %v", fieldName, oldField.Interface(), newField.Interface())
		}
	}
}

// Load is a convenience function for one-time loading.
func Load(path string) (*Config, error) {
	return read(newViper(path), path)
}
