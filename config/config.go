package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const (
	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"

	// DefaultSecret is what JWT_SECRET and KEY fall back to. Fine for local
	// runs, refused in prod.
	DefaultSecret = "secret"
)

var ErrWeakSecret = errors.New("default or empty secret")

type Config struct {
	Env      string         `yaml:"env" env:"APP_ENV" env-default:"local"`
	HTTP     HTTPConfig     `yaml:"http"`
	Postgres PostgresConfig `yaml:"postgres"`
	Redis    RedisConfig    `yaml:"redis"`
	Auth     AuthConfig     `yaml:"auth"`
	CORS     CORSConfig     `yaml:"cors"`
}

type HTTPConfig struct {
	Address  string `yaml:"address" env:"HTTP_ADDRESS" env-default:":8080"`
	UseHTTPS bool   `yaml:"use_https" env:"USE_HTTPS" env-default:"false"`
	CertFile string `yaml:"cert_file" env:"HTTPS_CERT_FILE"`
	KeyFile  string `yaml:"key_file" env:"HTTPS_KEY_FILE"`
}

type PostgresConfig struct {
	Host     string `yaml:"host" env:"POSTGRES_HOST" env-default:"localhost"`
	Port     string `yaml:"port" env:"POSTGRES_PORT" env-default:"5432"`
	User     string `yaml:"user" env:"POSTGRES_USER" env-default:"postgres"`
	Password string `yaml:"password" env:"POSTGRES_PASSWORD"`
	Database string `yaml:"database" env:"POSTGRES_DATABASE" env-default:"preparty"`
	SSLMode  string `yaml:"sslmode" env:"POSTGRES_SSLMODE" env-default:"disable"`
	Verbose  bool   `yaml:"verbose" env:"VERBOSE_POSTGRES" env-default:"false"`
	Migrate  bool   `yaml:"migrate" env:"MIGRATE_POSTGRES" env-default:"false"`
}

type RedisConfig struct {
	URL string `yaml:"url" env:"REDIS_URL" env-default:"localhost:6379"`
	DB  int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

type AuthConfig struct {
	JWTSecret  string        `yaml:"jwt_secret" env:"JWT_SECRET" env-default:"secret"`
	SessionKey string        `yaml:"session_key" env:"KEY" env-default:"secret"`
	TokenTTL   time.Duration `yaml:"token_ttl" env:"TOKEN_TTL" env-default:"72h"`
}

type CORSConfig struct {
	Origins []string `yaml:"origins" env:"CORS_ORIGINS" env-separator:","`
}

// MustLoad reads the config file named by -config or CONFIG_PATH. A missing
// file is not fatal: everything can come from the environment.
func MustLoad() *Config {
	cfg, err := Load(fetchConfigPath())
	if err != nil {
		panic("cannot read config: " + err.Error())
	}
	return cfg
}

func Load(configPath string) (*Config, error) {
	var cfg Config

	if _, err := os.Stat(configPath); err == nil {
		if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
			return nil, err
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, err
	}

	cfg.setDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func fetchConfigPath() string {
	var res string

	flag.StringVar(&res, "config", "", "path to config file")
	flag.Parse()

	if res == "" {
		res = os.Getenv("CONFIG_PATH")
	}

	if res == "" {
		res = "config/local.yaml"
	}

	return res
}

func (c *Config) setDefaults() {
	if c.HTTP.Address == "" {
		c.HTTP.Address = ":8080"
	}
	if len(c.CORS.Origins) == 0 {
		c.CORS.Origins = []string{"*"}
	}
	if c.Auth.TokenTTL <= 0 {
		c.Auth.TokenTTL = 72 * time.Hour
	}
}

func (c *Config) validate() error {
	if c.Env != EnvProd {
		return nil
	}
	for name, secret := range map[string]string{"JWT_SECRET": c.Auth.JWTSecret, "KEY": c.Auth.SessionKey} {
		if secret == "" || secret == DefaultSecret {
			return fmt.Errorf("%s: %w in %s", name, ErrWeakSecret, EnvProd)
		}
	}
	return nil
}
