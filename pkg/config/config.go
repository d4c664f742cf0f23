package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config agrupa la configuración de la aplicación (lectura vía Viper desde env y opcionalmente archivo).
type Config struct {
	App    AppConfig
	DB     DBConfig
	JWT    JWTConfig
	HTTP   HTTPConfig
	SEFAZ  SEFAZConfig
	Crypto CryptoConfig
	Redis  RedisConfig
	Jobs   JobsConfig
}

// AppConfig configuración general de la aplicación.
type AppConfig struct {
	Env      string // development, staging, production
	Name     string
	LogLevel string
}

// DBConfig configuración de PostgreSQL.
// Si DatabaseURL no está vacío, se usa como connection string completo.
type DBConfig struct {
	DatabaseURL string
	Host        string
	Port        int
	User        string
	Password    string
	DBName      string
	SSLMode     string
	MaxConns    int32
	Migrate     bool // aplica las migraciones embebidas al arrancar
	ForceIPv4   bool // conecta siempre por tcp4 (contenedores sin IPv6)
}

// ConnectionString devuelve el DSN a usar: DATABASE_URL si está definido, si no el construido con DSN().
func (c DBConfig) ConnectionString() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return c.DSN()
}

// DSN devuelve el connection string para PostgreSQL con URL encoding para caracteres especiales.
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

// JWTConfig configuración de JWT.
type JWTConfig struct {
	Secret     string
	Expiration int // minutos
	Issuer     string
}

// HTTPConfig configuración del servidor HTTP.
type HTTPConfig struct {
	Host string
	Port int
}

// Addr devuelve la dirección de escucha (host:port).
func (c HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// SEFAZConfig parámetros de comunicación con los web services de la SEFAZ (Ambiente Nacional).
type SEFAZConfig struct {
	Environment     int           // 1 = producción, 2 = homologación (si la filial no define el suyo)
	Timeout         time.Duration // timeout de cada llamada SOAP
	AutoAcknowledge bool          // envía la ciencia de la operación en cada importación
	Justification   string        // justificación por defecto del evento de ciencia
	// Endpoints opcionales; vacíos = URLs oficiales del ambiente.
	DistributionURL string
	EventURL        string
}

// CryptoConfig secreto compartido para las credenciales selladas (certificado y contraseña de la filial).
type CryptoConfig struct {
	SecretKey string
}

// RedisConfig conexión usada por el lock por filial y por la cola asynq.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// JobsConfig programación de las importaciones periódicas.
type JobsConfig struct {
	ImportCron        string        // expresión cron del barrido; vacío = sin programación
	LockTTL           time.Duration // vida del lock de una filial entre renovaciones
	BranchConcurrency int           // filiales procesadas en paralelo por barrido
}

// Load lee la configuración desde variables de entorno (y opcionalmente desde archivo).
// Las env vars tienen prioridad. Nombres esperados: APP_ENV, DB_HOST, SEFAZ_TIMEOUT, CRYPTO_SECRET_KEY, etc.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // ignoramos error si no existe

	v.SetConfigName("config")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	_ = v.ReadInConfig()

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	return FromViper(v)
}

// FromViper construye la configuración desde una instancia ya poblada (útil en tests).
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		App: AppConfig{
			Env:      getString(v, "APP_ENV", "development"),
			Name:     getString(v, "APP_NAME", "notas-destinadas"),
			LogLevel: getString(v, "LOG_LEVEL", "info"),
		},
		DB: DBConfig{
			DatabaseURL: getString(v, "DATABASE_URL", ""),
			Host:        getString(v, "DB_HOST", "localhost"),
			Port:        getInt(v, "DB_PORT", 5432),
			User:        getString(v, "DB_USER", "postgres"),
			Password:    getString(v, "DB_PASSWORD", ""),
			DBName:      getString(v, "DB_NAME", "notas_destinadas"),
			SSLMode:     getString(v, "DB_SSLMODE", "disable"),
			MaxConns:    int32(getInt(v, "DB_MAX_CONNS", 10)),
			Migrate:     getBool(v, "DB_MIGRATE", true),
			ForceIPv4:   getBool(v, "DB_FORCE_IPV4", false),
		},
		JWT: JWTConfig{
			Secret:     getString(v, "JWT_SECRET", ""),
			Expiration: getInt(v, "JWT_EXPIRATION_MINUTES", 60),
			Issuer:     getString(v, "JWT_ISSUER", "notas-destinadas"),
		},
		HTTP: HTTPConfig{
			Host: getString(v, "HTTP_HOST", "0.0.0.0"),
			Port: getInt(v, "HTTP_PORT", 8080),
		},
		SEFAZ: SEFAZConfig{
			Environment:     getInt(v, "SEFAZ_ENVIRONMENT", 2),
			Timeout:         getDuration(v, "SEFAZ_TIMEOUT", 60*time.Second),
			AutoAcknowledge: getBool(v, "SEFAZ_AUTO_ACKNOWLEDGE", true),
			Justification:   getString(v, "SEFAZ_JUSTIFICATION", "Entrada registrada automaticamente"),
			DistributionURL: getString(v, "SEFAZ_DISTRIBUTION_URL", ""),
			EventURL:        getString(v, "SEFAZ_EVENT_URL", ""),
		},
		Crypto: CryptoConfig{
			SecretKey: getString(v, "CRYPTO_SECRET_KEY", ""),
		},
		Redis: RedisConfig{
			Addr:     getString(v, "REDIS_ADDR", "localhost:6379"),
			Password: getString(v, "REDIS_PASSWORD", ""),
			DB:       getInt(v, "REDIS_DB", 0),
		},
		Jobs: JobsConfig{
			ImportCron:        getString(v, "JOBS_IMPORT_CRON", "*/30 * * * *"),
			LockTTL:           getDuration(v, "JOBS_LOCK_TTL", 10*time.Minute),
			BranchConcurrency: getInt(v, "JOBS_BRANCH_CONCURRENCY", 4),
		},
	}

	if cfg.SEFAZ.Environment != 1 && cfg.SEFAZ.Environment != 2 {
		return nil, fmt.Errorf("config: SEFAZ_ENVIRONMENT debe ser 1 o 2, se recibió %d", cfg.SEFAZ.Environment)
	}
	if cfg.Jobs.BranchConcurrency < 1 {
		cfg.Jobs.BranchConcurrency = 1
	}
	return cfg, nil
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
			n, err := strconv.Atoi(strings.TrimSpace(v.GetString(key)))
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

func getBool(v *viper.Viper, key string, def bool) bool {
	if v.IsSet(key) {
		return v.GetBool(key)
	}
	return def
}

// getDuration acepta "45s", "2m" o un número entero de segundos.
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
