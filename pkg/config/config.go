package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Backends remotos soportados.
const (
	RemoteMemory   = "memory"
	RemoteFirebase = "firebase"
	RemotePostgres = "postgres"
	RemoteRedis    = "redis"
)

// Config agrupa la configuración de la aplicación (lectura vía Viper desde env y opcionalmente archivo).
type Config struct {
	App    AppConfig
	Local  LocalConfig
	Remote RemoteConfig
	DB     DBConfig
	Redis  RedisConfig
	Sync   SyncConfig
	Auth   AuthConfig
	HTTP   HTTPConfig
	Notify NotifyConfig
}

// AppConfig configuración general de la aplicación.
type AppConfig struct {
	Env      string // development, staging, production
	Name     string
	LogLevel string
}

// LocalConfig almacén local del terminal.
type LocalConfig struct {
	Path string // archivo SQLite
}

// RemoteConfig almacén remoto autoritativo.
type RemoteConfig struct {
	Backend             string        // memory | firebase | postgres | redis
	Timeout             time.Duration // límite por llamada de red
	ProbeInterval       time.Duration // cada cuánto se verifica la conectividad
	FirebaseURL         string        // https://<proyecto>.firebaseio.com
	FirebaseCredentials string        // ruta, JSON en línea o JSON en base64
}

// DBConfig configuración de PostgreSQL (backend remoto postgres).
// Si DatabaseURL no está vacío, se usa como connection string completo.
type DBConfig struct {
	DatabaseURL string
	Host        string
	Port        int
	User        string
	Password    string
	DBName      string
	SSLMode     string
}

// ConnectionString devuelve el DSN a usar: DATABASE_URL si está definido, si no el construido con DSN().
func (c DBConfig) ConnectionString() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return c.DSN()
}

// DSN connection string con URL encoding para caracteres especiales en la contraseña.
func (c DBConfig) DSN() string {
	u := &url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     "/" + c.DBName,
		RawQuery: fmt.Sprintf("sslmode=%s", c.SSLMode),
	}
	return u.String()
}

// RedisConfig backend remoto redis.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// SyncConfig parámetros del orquestador.
type SyncConfig struct {
	BatchSize    int
	MaxAttempts  int
	BaseBackoff  time.Duration
	MaxBackoff   time.Duration
	TickInterval time.Duration
}

// AuthConfig login y sesión.
type AuthConfig struct {
	AdminIdentifier string
	AdminSecret     string
	SessionTTL      time.Duration
	SigningKey      string
	Issuer          string
	PhoneRegion     string
}

// HTTPConfig configuración del servidor HTTP local.
type HTTPConfig struct {
	Host     string
	Port     int
	DocsPath string // ruta de Swagger UI; vacío la desactiva
}

// Addr devuelve la dirección de escucha (host:port).
func (c HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// NotifyConfig destino de notificaciones: "log" o "none".
type NotifyConfig struct {
	Sink string
}

// Load lee la configuración desde variables de entorno (y opcionalmente desde archivo).
// Las env vars tienen prioridad. Nombres esperados: APP_ENV, LOCAL_DB_PATH, REMOTE_BACKEND, etc.
func Load() (*Config, error) {
	return LoadFrom(viper.New())
}

// LoadFrom igual que Load sobre una instancia de viper dada (tests, flags de la CLI).
func LoadFrom(v *viper.Viper) (*Config, error) {
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // ignoramos error si no existe

	v.SetConfigName("config")
	v.AddConfigPath("./config")
	_ = v.MergeInConfig()

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	cfg := &Config{
		App: AppConfig{
			Env:      getString(v, "APP_ENV", "development"),
			Name:     getString(v, "APP_NAME", "hkd-sync"),
			LogLevel: getString(v, "LOG_LEVEL", "info"),
		},
		Local: LocalConfig{
			Path: getString(v, "LOCAL_DB_PATH", "./data/hkd.db"),
		},
		Remote: RemoteConfig{
			Backend:             strings.ToLower(getString(v, "REMOTE_BACKEND", RemoteMemory)),
			Timeout:             getDuration(v, "REMOTE_TIMEOUT", 10*time.Second),
			ProbeInterval:       getDuration(v, "REMOTE_PROBE_INTERVAL", 15*time.Second),
			FirebaseURL:         getString(v, "FIREBASE_DATABASE_URL", ""),
			FirebaseCredentials: getString(v, "FIREBASE_CREDENTIALS", ""),
		},
		DB: DBConfig{
			DatabaseURL: getString(v, "DATABASE_URL", ""),
			Host:        getString(v, "DB_HOST", "localhost"),
			Port:        getInt(v, "DB_PORT", 5432),
			User:        getString(v, "DB_USER", "postgres"),
			Password:    getString(v, "DB_PASSWORD", ""),
			DBName:      getString(v, "DB_NAME", "hkd_remote"),
			SSLMode:     getString(v, "DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getString(v, "REDIS_ADDRESS", "localhost:6379"),
			Password: getString(v, "REDIS_PASSWORD", ""),
			DB:       getInt(v, "REDIS_DB", 0),
			Prefix:   getString(v, "REDIS_PREFIX", "hkd"),
		},
		Sync: SyncConfig{
			BatchSize:    getInt(v, "SYNC_BATCH_SIZE", 50),
			MaxAttempts:  getInt(v, "SYNC_MAX_ATTEMPTS", 10),
			BaseBackoff:  getDuration(v, "SYNC_BASE_BACKOFF", 2*time.Second),
			MaxBackoff:   getDuration(v, "SYNC_MAX_BACKOFF", 5*time.Minute),
			TickInterval: getDuration(v, "SYNC_TICK_INTERVAL", 30*time.Second),
		},
		Auth: AuthConfig{
			AdminIdentifier: getString(v, "ADMIN_IDENTIFIER", "admin"),
			AdminSecret:     getString(v, "ADMIN_SECRET", "admin"),
			SessionTTL:      getDuration(v, "SESSION_TTL", 24*time.Hour),
			SigningKey:      getString(v, "SESSION_SIGNING_KEY", "hkd-sync-dev-signing-key"),
			Issuer:          getString(v, "SESSION_ISSUER", "hkd-sync"),
			PhoneRegion:     getString(v, "PHONE_REGION", "VN"),
		},
		HTTP: HTTPConfig{
			Host:     getString(v, "HTTP_HOST", "127.0.0.1"),
			Port:     getInt(v, "HTTP_PORT", 8080),
			DocsPath: strings.Trim(getString(v, "HTTP_DOCS_PATH", "docs"), "/"),
		},
		Notify: NotifyConfig{
			Sink: strings.ToLower(getString(v, "NOTIFY_SINK", "log")),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Remote.Backend {
	case RemoteMemory, RemotePostgres, RemoteRedis:
	case RemoteFirebase:
		if c.Remote.FirebaseURL == "" {
			return fmt.Errorf("config: FIREBASE_DATABASE_URL requerido para REMOTE_BACKEND=firebase")
		}
	default:
		return fmt.Errorf("config: REMOTE_BACKEND desconocido %q", c.Remote.Backend)
	}
	if c.Sync.MaxAttempts < 1 {
		return fmt.Errorf("config: SYNC_MAX_ATTEMPTS debe ser >= 1")
	}
	if c.Sync.BatchSize < 1 {
		return fmt.Errorf("config: SYNC_BATCH_SIZE debe ser >= 1")
	}
	if c.App.Env == "production" && c.Auth.SigningKey == "hkd-sync-dev-signing-key" {
		return fmt.Errorf("config: SESSION_SIGNING_KEY requerido en production")
	}
	if c.Auth.SessionTTL <= 0 {
		return fmt.Errorf("config: SESSION_TTL debe ser positivo")
	}
	return nil
}

func getString(v *viper.Viper, key, def string) string {
	if v.IsSet(key) {
		return v.GetString(key)
	}
	return def
}

func getInt(v *viper.Viper, key string, def int) int {
	if v.IsSet(key) {
		switch v.Get(key).(type) {
		case int:
			return v.GetInt(key)
		case string:
			n, err := strconv.Atoi(v.GetString(key))
			if err != nil {
				return def
			}
			return n
		default:
			return v.GetInt(key)
		}
	}
	return def
}

// getDuration acepta "30s", "5m" o un entero en segundos.
func getDuration(v *viper.Viper, key string, def time.Duration) time.Duration {
	if !v.IsSet(key) {
		return def
	}
	raw := strings.TrimSpace(v.GetString(key))
	if n, err := strconv.Atoi(raw); err == nil {
		return time.Duration(n) * time.Second
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return def
	}
	return d
}
