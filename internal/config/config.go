package config

import (
	"fmt"
	"os"
	"strings"
	"time"
	"unicode"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
)

const (
	EnvPrefix   = "PRINTPOS_"
	DefaultFile = "printpos.yaml"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	HTTP     HTTP     `koanf:"http" yaml:"http"`
	Log      Log      `koanf:"log" yaml:"log"`
	Database Database `koanf:"database" yaml:"database"`
	Redis    Redis    `koanf:"redis" yaml:"redis"`
	Auth     Auth     `koanf:"auth" yaml:"auth"`
	Advisor  Advisor  `koanf:"advisor" yaml:"advisor"`
}

type HTTP struct {
	Port              int           `koanf:"port" yaml:"port"`
	AllowedOrigin     string        `koanf:"allowedOrigin" yaml:"allowedOrigin"`
	MaxBodyBytes      int64         `koanf:"maxBodyBytes" yaml:"maxBodyBytes"`
	ReadHeaderTimeout time.Duration `koanf:"readHeaderTimeout" yaml:"readHeaderTimeout"`
	WriteTimeout      time.Duration `koanf:"writeTimeout" yaml:"writeTimeout"`
	IdleTimeout       time.Duration `koanf:"idleTimeout" yaml:"idleTimeout"`
}

type Log struct {
	Pretty bool   `koanf:"pretty" yaml:"pretty"`
	Level  string `koanf:"level" yaml:"level"`
}

type Database struct {
	// Driver is one of sqlite, postgres or memory.
	Driver  string `koanf:"driver" yaml:"driver"`
	DSN     string `koanf:"dsn" yaml:"dsn"`
	Seed    bool   `koanf:"seed" yaml:"seed"`
	Migrate bool   `koanf:"migrate" yaml:"migrate"`
}

type Redis struct {
	Addr     string `koanf:"addr" yaml:"addr"`
	Password string `koanf:"password" yaml:"password"`
	DB       int    `koanf:"db" yaml:"db"`
}

type Auth struct {
	Secret       string        `koanf:"secret" yaml:"secret"`
	Passcode     string        `koanf:"passcode" yaml:"passcode"`
	PasscodeHash string        `koanf:"passcodeHash" yaml:"passcodeHash"`
	TokenTTL     time.Duration `koanf:"tokenTTL" yaml:"tokenTTL"`
}

type Advisor struct {
	APIKey   string        `koanf:"apiKey" yaml:"apiKey"`
	Model    string        `koanf:"model" yaml:"model"`
	ShopName string        `koanf:"shopName" yaml:"shopName"`
	CacheTTL time.Duration `koanf:"cacheTTL" yaml:"cacheTTL"`
	Timeout  time.Duration `koanf:"timeout" yaml:"timeout"`
}

// defaults never carry a signing secret; the server refuses to start without
// one.
var defaults = map[string]any{
	"http.port":              8080,
	"http.allowedOrigin":     "http://127.0.0.1:5173",
	"http.maxBodyBytes":      int64(1 << 20),
	"http.readHeaderTimeout": "5s",
	"http.writeTimeout":      "45s",
	"http.idleTimeout":       "60s",
	"log.pretty":             false,
	"log.level":              "info",
	"database.driver":        DriverSQLite,
	"database.dsn":           "printpos.db",
	"database.seed":          true,
	"database.migrate":       true,
	"redis.addr":             "",
	"redis.password":         "",
	"redis.db":               0,
	"auth.secret":            "",
	"auth.passcode":          "1234",
	"auth.passcodeHash":      "",
	"auth.tokenTTL":          "8h",
	"advisor.apiKey":         "",
	"advisor.model":          "gemini-3-flash-preview",
	"advisor.shopName":       "AR Printers",
	"advisor.cacheTTL":       "10m",
	"advisor.timeout":        "20s",
}

// Load layers defaults, then the first YAML file found among paths (or
// printpos.yaml in the working directory when no path is given), then
// PRINTPOS_* environment variables.
func Load(paths ...string) (Config, error) {
	k := koanf.New(".")
	for key, val := range defaults {
		if err := k.Set(key, val); err != nil {
			return Config{}, errors.Wrapf(err, "set default %s", key)
		}
	}

	configFile, err := findConfigFile(paths)
	if err != nil {
		return Config{}, err
	}
	if configFile != "" {
		if err := k.Load(file.Provider(configFile), yaml.Parser()); err != nil {
			return Config{}, errors.Wrapf(err, "read config %s", configFile)
		}
	}

	existing := k.Raw()
	if err := k.Load(env.Provider(".", env.Opt{
		Prefix: EnvPrefix,
		TransformFunc: func(key, value string) (string, any) {
			return canonicalizeEnvKey(strings.TrimPrefix(key, EnvPrefix), existing), value
		},
	}), nil); err != nil {
		return Config{}, errors.Wrap(err, "load env variables")
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           &cfg,
			WeaklyTypedInput: true,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
			),
			MatchName: func(mapKey, fieldName string) bool {
				return normalizeToken(mapKey) == normalizeToken(fieldName)
			},
		},
	}); err != nil {
		return Config{}, errors.Wrap(err, "unmarshal config")
	}

	cfg.Auth.Secret = strings.TrimSpace(cfg.Auth.Secret)
	cfg.Auth.Passcode = strings.TrimSpace(cfg.Auth.Passcode)
	cfg.Auth.PasscodeHash = strings.TrimSpace(cfg.Auth.PasscodeHash)
	cfg.Database.Driver = strings.ToLower(strings.TrimSpace(cfg.Database.Driver))

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.Database.Driver {
	case DriverSQLite, DriverPostgres:
		if strings.TrimSpace(c.Database.DSN) == "" {
			return errors.Errorf("database.dsn is required for driver %s", c.Database.Driver)
		}
	case DriverMemory:
	default:
		return errors.Errorf("unsupported database.driver %q", c.Database.Driver)
	}

	if c.HTTP.Port < 1 || c.HTTP.Port > 65535 {
		return errors.Errorf("http.port %d out of range", c.HTTP.Port)
	}
	if c.Auth.TokenTTL <= 0 {
		return errors.New("auth.tokenTTL must be positive")
	}
	return nil
}

func (c Config) Address() string {
	return fmt.Sprintf(":%d", c.HTTP.Port)
}

func findConfigFile(paths []string) (string, error) {
	if len(paths) == 0 {
		if _, err := os.Stat(DefaultFile); err == nil {
			return DefaultFile, nil
		}
		return "", nil
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", errors.Errorf("config file not found in %s", strings.Join(paths, ", "))
}

// canonicalizeEnvKey maps DATABASE_DSN to database.dsn and AUTH_PASSCODE_HASH
// to auth.passcodeHash: the first underscore separates the section, the rest is
// matched against existing keys ignoring case and underscores.
func canonicalizeEnvKey(rawKey string, existing map[string]any) string {
	section, field, found := strings.Cut(strings.ToLower(rawKey), "_")
	if !found || section == "" || field == "" {
		return ""
	}

	sectionKey, children, ok := findExistingSegment(existing, section)
	if !ok {
		return section + "." + field
	}
	fieldKey, _, ok := findExistingSegment(children, field)
	if !ok {
		fieldKey = field
	}
	return sectionKey + "." + fieldKey
}

func findExistingSegment(current map[string]any, segment string) (matched string, next map[string]any, ok bool) {
	if len(current) == 0 {
		return "", nil, false
	}

	needle := normalizeToken(segment)
	for key, value := range current {
		if normalizeToken(key) != needle {
			continue
		}
		child, _ := value.(map[string]any)
		return key, child, true
	}
	return "", nil, false
}

func normalizeToken(s string) string {
	var normalized strings.Builder
	normalized.Grow(len(s))
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			continue
		}
		normalized.WriteRune(unicode.ToLower(r))
	}
	return normalized.String()
}
