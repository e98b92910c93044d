package config // package config loads application configuration from flags, env and .env

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds all runtime configuration values.  Secrets are tagged json:"-"
// so the struct can be printed at startup without leaking them.
type Config struct {
	Env      string `json:"env"`       // application environment (dev, test, prod)
	Port     string `json:"port"`      // HTTP port to listen on
	LogLevel string `json:"log_level"` // slog level name

	ClientAPIKey string `json:"-"`          // shared secret accepted in X-Client-Key
	JWTSecret    string `json:"-"`          // HS256 secret for session tokens
	UsersFile    string `json:"users_file"` // JSON credential store path

	DefaultModel   string `json:"default_model"`
	UpstreamURL    string `json:"upstream_url"`
	OpenAIKey      string `json:"-"`
	VertexModel    string `json:"vertex_model"`
	VertexLocation string `json:"vertex_location"`
	GCPProject     string `json:"gcp_project"`

	FirebaseServiceAccount string `json:"-"`                // inline service account JSON
	FirebaseEnabled        bool   `json:"firebase_enabled"` // use application default credentials

	UpstreamTimeout time.Duration `json:"upstream_timeout"`
	StreamTimeout   time.Duration `json:"stream_timeout"`
	ShutdownGrace   time.Duration `json:"shutdown_grace"`

	RoomTTL      time.Duration `json:"room_ttl"`
	RoomCapacity int           `json:"room_capacity"`

	RabbitURL string `json:"-"`

	// TrustedProxies lists CIDR ranges whose X-Forwarded-For is honoured
	// when resolving the client address.  Empty means the socket address.
	TrustedProxies []string `json:"trusted_proxies"`

	DB        DBConfig        `json:"db"`
	Redis     RedisConfig     `json:"redis"`
	RateLimit RateLimitConfig `json:"rate_limit"`
	Cache     CacheConfig     `json:"cache"`
}

// DBConfig is only used when Host is set; otherwise the file credential
// store is used.
type DBConfig struct {
	User string `json:"user"`
	Pass string `json:"-"`
	Host string `json:"host"`
	Port string `json:"port"`
	Name string `json:"name"`
}

func (c DBConfig) Enabled() bool { return c.Host != "" }

// CloudConfigured reports whether the managed-cloud backend should be used.
func (c Config) CloudConfigured() bool {
	return c.VertexModel != "" && c.GCPProject != ""
}

// FirebaseConfigured reports whether an identity verifier should be built.
func (c Config) FirebaseConfigured() bool {
	return c.FirebaseServiceAccount != "" || c.FirebaseEnabled
}

func (c Config) Validate() error {
	if c.Port == "" {
		return errors.New("port must not be empty")
	}
	if c.RoomCapacity < 1 || c.RoomCapacity > 50 {
		return fmt.Errorf("room capacity must be between 1 and 50, got %d", c.RoomCapacity)
	}
	if c.RateLimit.Max < 1 {
		return errors.New("rate limit max must be greater than 0")
	}
	if c.UpstreamTimeout <= 0 || c.StreamTimeout <= 0 {
		return errors.New("upstream and stream timeouts must be positive")
	}
	return nil
}

// configVar describes one setting.  key doubles as the flag name; env lists
// the environment variables checked in order.  Settings with flag=false are
// env-only (secrets never go on the command line).
type configVar struct {
	key   string
	env   []string
	def   any
	flag  bool
	usage string
}

var vars = []configVar{
	{key: "port", env: []string{"PORT"}, def: "3001", flag: true, usage: "HTTP port"},
	{key: "env", env: []string{"APP_ENV"}, def: "dev", flag: true, usage: "application environment"},
	{key: "log-level", env: []string{"LOG_LEVEL"}, def: "INFO", flag: true, usage: "logging level"},
	{key: "client-api-key", env: []string{"CLIENT_API_KEY"}, def: "local-dev-key"},
	{key: "jwt-secret", env: []string{"JWT_SECRET"}, def: "dev-jwt-secret"},
	{key: "users-file", env: []string{"USERS_FILE"}, def: "users.json", flag: true, usage: "credential store path"},
	{key: "default-model", env: []string{"DEFAULT_MODEL"}, def: "gpt-5-mini", flag: true, usage: "model used when a request names none"},
	{key: "upstream-url", env: []string{"UPSTREAM_URL"}, def: "https://api.openai.com/v1/responses", flag: true, usage: "direct provider endpoint"},
	{key: "openai-api-key", env: []string{"OPENAI_API_KEY"}, def: ""},
	{key: "vertex-model", env: []string{"VERTEX_MODEL"}, def: ""},
	{key: "vertex-location", env: []string{"VERTEX_LOCATION"}, def: "us-central1", flag: true, usage: "Vertex AI region"},
	{key: "gcp-project", env: []string{"GCP_PROJECT_ID", "GOOGLE_CLOUD_PROJECT"}, def: ""},
	{key: "firebase-service-account", env: []string{"FIREBASE_SERVICE_ACCOUNT"}, def: ""},
	{key: "firebase-enabled", env: []string{"FIREBASE_ENABLED"}, def: false},
	{key: "upstream-timeout", env: []string{"UPSTREAM_TIMEOUT"}, def: 60 * time.Second, flag: true, usage: "bound on non-streaming upstream calls"},
	{key: "stream-timeout", env: []string{"STREAM_TIMEOUT"}, def: 5 * time.Minute, flag: true, usage: "bound on a whole upstream stream"},
	{key: "shutdown-grace", env: []string{"SHUTDOWN_GRACE"}, def: 5 * time.Second, flag: true, usage: "drain window before exit"},
	{key: "room-ttl", env: []string{"ROOM_TTL"}, def: 24 * time.Hour},
	{key: "room-capacity", env: []string{"ROOM_CAPACITY"}, def: 10},
	{key: "rabbitmq-url", env: []string{"RABBITMQ_URL", "AMQP_URL"}, def: ""},
	{key: "trusted-proxies", env: []string{"TRUSTED_PROXIES"}, def: "", flag: true, usage: "comma-separated proxy CIDRs allowed to set X-Forwarded-For"},
	{key: "db-user", env: []string{"DB_USER"}, def: ""},
	{key: "db-pass", env: []string{"DB_PASS"}, def: ""},
	{key: "db-host", env: []string{"DB_HOST"}, def: ""},
	{key: "db-port", env: []string{"DB_PORT"}, def: "3306"},
	{key: "db-name", env: []string{"DB_NAME"}, def: ""},
	{key: "redis-addr", env: []string{"REDIS_ADDR"}, def: ""},
	{key: "redis-host", env: []string{"REDIS_HOST"}, def: ""},
	{key: "redis-port", env: []string{"REDIS_PORT"}, def: ""},
	{key: "redis-password", env: []string{"REDIS_PASSWORD"}, def: ""},
	{key: "redis-db", env: []string{"REDIS_DB"}, def: 0},
	{key: "redis-tls", env: []string{"REDIS_TLS"}, def: false},
	{key: "rate-limit-enabled", env: []string{"RATE_LIMIT_ENABLED"}, def: true},
	{key: "rate-limit-max", env: []string{"RATE_LIMIT_MAX"}, def: 30},
	{key: "rate-limit-window", env: []string{"RATE_LIMIT_WINDOW"}, def: time.Minute},
	{key: "rate-limit-prefix", env: []string{"RATE_LIMIT_PREFIX"}, def: "rl"},
	{key: "rate-limit-debug", env: []string{"RATE_LIMIT_DEBUG"}, def: false},
	{key: "cache-enabled", env: []string{"CACHE_ENABLED"}, def: true},
	{key: "cache-methods", env: []string{"CACHE_METHODS"}, def: "GET"},
	{key: "cache-ttl", env: []string{"CACHE_TTL"}, def: 5 * time.Second},
	{key: "cache-prefix", env: []string{"CACHE_PREFIX"}, def: "cache"},
	{key: "cache-max-body-bytes", env: []string{"CACHE_MAX_BODY_BYTES"}, def: 1 << 20},
}

// Load reads .env (if present), parses args as flags and merges both with the
// process environment.  Precedence: flag, env, default.
func Load(args []string) (Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug(".env not loaded", "err", err)
	}

	v := viper.New()
	fs := pflag.NewFlagSet("watchtogether", pflag.ContinueOnError)
	for _, cv := range vars {
		if cv.flag {
			registerFlag(fs, cv)
		}
	}
	if err := fs.Parse(args); err != nil {
		return Config{}, fmt.Errorf("parse flags: %w", err)
	}
	for _, cv := range vars {
		v.SetDefault(cv.key, cv.def)
		if err := v.BindEnv(append([]string{cv.key}, cv.env...)...); err != nil {
			return Config{}, fmt.Errorf("bind env %s: %w", cv.key, err)
		}
		if cv.flag {
			if err := v.BindPFlag(cv.key, fs.Lookup(cv.key)); err != nil {
				return Config{}, fmt.Errorf("bind flag %s: %w", cv.key, err)
			}
		}
	}

	cfg := Config{
		Env:                    v.GetString("env"),
		Port:                   v.GetString("port"),
		LogLevel:               v.GetString("log-level"),
		ClientAPIKey:           v.GetString("client-api-key"),
		JWTSecret:              v.GetString("jwt-secret"),
		UsersFile:              v.GetString("users-file"),
		DefaultModel:           v.GetString("default-model"),
		UpstreamURL:            v.GetString("upstream-url"),
		OpenAIKey:              v.GetString("openai-api-key"),
		VertexModel:            v.GetString("vertex-model"),
		VertexLocation:         v.GetString("vertex-location"),
		GCPProject:             v.GetString("gcp-project"),
		FirebaseServiceAccount: v.GetString("firebase-service-account"),
		FirebaseEnabled:        v.GetBool("firebase-enabled"),
		UpstreamTimeout:        v.GetDuration("upstream-timeout"),
		StreamTimeout:          v.GetDuration("stream-timeout"),
		ShutdownGrace:          v.GetDuration("shutdown-grace"),
		RoomTTL:                v.GetDuration("room-ttl"),
		RoomCapacity:           v.GetInt("room-capacity"),
		RabbitURL:              v.GetString("rabbitmq-url"),
		TrustedProxies:         splitList(v.GetString("trusted-proxies")),
		DB: DBConfig{
			User: v.GetString("db-user"),
			Pass: v.GetString("db-pass"),
			Host: v.GetString("db-host"),
			Port: v.GetString("db-port"),
			Name: v.GetString("db-name"),
		},
		Redis:     loadRedisConfig(v),
		RateLimit: loadRateLimitConfig(v),
		Cache:     loadCacheConfig(v),
	}
	return cfg, cfg.Validate()
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

func registerFlag(fs *pflag.FlagSet, cv configVar) {
	switch d := cv.def.(type) {
	case string:
		fs.String(cv.key, d, cv.usage)
	case int:
		fs.Int(cv.key, d, cv.usage)
	case bool:
		fs.Bool(cv.key, d, cv.usage)
	case time.Duration:
		fs.Duration(cv.key, d, cv.usage)
	default:
		panic(fmt.Sprintf("config: unsupported flag type %T for %s", cv.def, cv.key))
	}
}
