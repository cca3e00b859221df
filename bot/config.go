package bot

import (
	"bytes"
	_ "embed"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// DefaultConfig is written to the configuration path when there is no file yet.
//
//go:embed application.yml
var DefaultConfig []byte

// OverridePrefix marks environment and dotenv keys that override the configuration file.
const OverridePrefix = "oopbot."

const (
	StorageMySQL      = "mysql"
	StorageSQLite     = "sqlite"
	StoragePostgreSQL = "postgresql"

	DefaultTablePrefix = "tt_"
	DefaultPoolSize    = 4
)

// ErrDefaultConfigCreated is returned by LoadFile after it wrote the default configuration.
var ErrDefaultConfigCreated = errors.New("default configuration created")

// Config keeps bot configuration
type Config struct {
	BotInfo     BotInfo     `yaml:"bot-info"`
	Console     Console     `yaml:"console"`
	DataStorage DataStorage `yaml:"data-storage"`
	Metrics     Metrics     `yaml:"metrics"`
	Telegram    Telegram    `yaml:"telegram"`
}

type BotInfo struct {
	Username string `yaml:"username"`
	Token    string `yaml:"token"`
}

type Console struct {
	Enabled bool `yaml:"enabled"`
}

type Metrics struct {
	Enabled       bool   `yaml:"enabled"`
	ListenAddress string `yaml:"listen-address"`
}

type Telegram struct {
	Workers       int           `yaml:"workers"`
	RetryAttempts int           `yaml:"retry-attempts"`
	RetryDelay    time.Duration `yaml:"retry-delay"`
	TimeZone      string        `yaml:"time-zone"`

	location *time.Location
}

// Location is the time zone dates are shown in.
func (t Telegram) Location() *time.Location {
	if t.location == nil {
		return time.Local
	}
	return t.location
}

// SQLServer configures a networked database.
type SQLServer struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	Database    string `yaml:"database"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	TablePrefix string `yaml:"table-prefix"`
	PoolSize    int    `yaml:"pool-size"`
}

type SQLite struct {
	DatabaseFilePath string `yaml:"database-file-path"`
	TablePrefix      string `yaml:"table-prefix"`
	PoolSize         int    `yaml:"pool-size"`
}

// DataStorage holds the section of the selected type only; the others are not decoded.
type DataStorage struct {
	Type       string
	MySQL      *SQLServer
	SQLite     *SQLite
	PostgreSQL *SQLServer
}

func (d *DataStorage) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		Type       string    `yaml:"type"`
		MySQL      yaml.Node `yaml:"mysql"`
		SQLite     yaml.Node `yaml:"sqlite"`
		PostgreSQL yaml.Node `yaml:"postgresql"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}

	d.Type = strings.ToLower(strings.TrimSpace(raw.Type))
	switch d.Type {
	case StorageMySQL:
		d.MySQL = &SQLServer{Port: 3306, TablePrefix: DefaultTablePrefix, PoolSize: DefaultPoolSize}
		return decodeSection(&raw.MySQL, d.MySQL)
	case StorageSQLite:
		d.SQLite = &SQLite{TablePrefix: DefaultTablePrefix, PoolSize: DefaultPoolSize}
		return decodeSection(&raw.SQLite, d.SQLite)
	case StoragePostgreSQL:
		d.PostgreSQL = &SQLServer{Port: 5432, TablePrefix: DefaultTablePrefix, PoolSize: DefaultPoolSize}
		return decodeSection(&raw.PostgreSQL, d.PostgreSQL)
	}
	return nil
}

// decodeSection leaves the defaults in place when the section is missing.
func decodeSection(node *yaml.Node, v any) error {
	if node.Kind == 0 {
		return nil
	}
	return node.Decode(v)
}

func defaultConfig() Config {
	return Config{
		Metrics: Metrics{ListenAddress: ":9090"},
		Telegram: Telegram{
			Workers:       8,
			RetryAttempts: 3,
			RetryDelay:    time.Second,
			TimeZone:      "Local",
		},
	}
}

// Load reads the configuration, applies overrides (dotted keys without the prefix) and validates it.
func Load(r io.Reader, overrides map[string]string) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "failed reading configuration")
	}

	if len(overrides) > 0 {
		if data, err = applyOverrides(data, overrides); err != nil {
			return nil, err
		}
	}

	cfg := defaultConfig()
	if len(bytes.TrimSpace(data)) > 0 {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, errors.Wrap(err, "failed parsing configuration")
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFile loads the configuration from path. When the file does not exist, the default configuration
// is written there and ErrDefaultConfigCreated is returned.
func LoadFile(path string, overrides map[string]string) (*Config, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		if err := WriteDefault(path); err != nil {
			return nil, err
		}
		return nil, ErrDefaultConfigCreated
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed opening %s", path)
	}
	defer f.Close()

	cfg, err := Load(f, overrides)
	return cfg, errors.Wrap(err, path)
}

func WriteDefault(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "failed creating %s", dir)
		}
	}
	return errors.Wrapf(os.WriteFile(path, DefaultConfig, 0o600), "failed writing %s", path)
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.BotInfo.Username) == "" {
		return errors.New("bot-info.username cannot be blank")
	}
	if strings.TrimSpace(c.BotInfo.Token) == "" {
		return errors.New("bot-info.token cannot be blank")
	}
	if err := c.DataStorage.Validate("data-storage."); err != nil {
		return err
	}
	if c.Metrics.Enabled && strings.TrimSpace(c.Metrics.ListenAddress) == "" {
		return errors.New("metrics.listen-address cannot be blank")
	}
	return c.Telegram.validate("telegram.")
}

func (d *DataStorage) Validate(prefix string) error {
	switch d.Type {
	case StorageMySQL:
		return d.MySQL.validate(prefix + StorageMySQL + ".")
	case StorageSQLite:
		return d.SQLite.validate(prefix + StorageSQLite + ".")
	case StoragePostgreSQL:
		return d.PostgreSQL.validate(prefix + StoragePostgreSQL + ".")
	}
	return errors.Errorf("%stype must be one of %s, %s, %s", prefix, StorageMySQL, StorageSQLite, StoragePostgreSQL)
}

func (s *SQLServer) validate(prefix string) error {
	switch {
	case strings.TrimSpace(s.Host) == "":
		return errors.New(prefix + "host cannot be blank")
	case s.Port < 1 || s.Port > 65535:
		return errors.New(prefix + "port must be between 1 and 65535")
	case strings.TrimSpace(s.Database) == "":
		return errors.New(prefix + "database cannot be blank")
	case strings.TrimSpace(s.Username) == "":
		return errors.New(prefix + "username cannot be blank")
	case strings.TrimSpace(s.Password) == "":
		return errors.New(prefix + "password cannot be blank")
	case s.PoolSize <= 0:
		return errors.New(prefix + "pool-size must be greater than 0")
	}
	return nil
}

func (s *SQLite) validate(prefix string) error {
	switch {
	case strings.TrimSpace(s.DatabaseFilePath) == "":
		return errors.New(prefix + "database-file-path cannot be blank")
	case s.PoolSize <= 0:
		return errors.New(prefix + "pool-size must be greater than 0")
	}
	return nil
}

func (t *Telegram) validate(prefix string) error {
	switch {
	case t.Workers <= 0:
		return errors.New(prefix + "workers must be greater than 0")
	case t.RetryAttempts <= 0:
		return errors.New(prefix + "retry-attempts must be greater than 0")
	case t.RetryDelay < 0:
		return errors.New(prefix + "retry-delay cannot be negative")
	}

	loc, err := time.LoadLocation(t.TimeZone)
	if err != nil {
		return errors.Wrap(err, prefix+"time-zone is invalid")
	}
	t.location = loc
	return nil
}

// Overrides collects keys starting with OverridePrefix from the sources and strips the prefix.
// Later sources win.
func Overrides(sources ...map[string]string) map[string]string {
	out := make(map[string]string)
	for _, src := range sources {
		for k, v := range src {
			if key, ok := strings.CutPrefix(k, OverridePrefix); ok && key != "" {
				out[key] = v
			}
		}
	}
	return out
}

// EnvironMap turns os.Environ output into a map.
func EnvironMap(environ []string) map[string]string {
	out := make(map[string]string, len(environ))
	for _, kv := range environ {
		if k, v, ok := strings.Cut(kv, "="); ok {
			out[k] = v
		}
	}
	return out
}

// ParseSetFlags parses key=value pairs. The prefix is optional for them.
func ParseSetFlags(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, kv := range pairs {
		k, v, ok := strings.Cut(kv, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, errors.Errorf("invalid override %q, expected key=value", kv)
		}
		out[OverridePrefix+strings.TrimPrefix(k, OverridePrefix)] = v
	}
	return out, nil
}

func applyOverrides(data []byte, overrides map[string]string) ([]byte, error) {
	tree := map[string]any{}
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return nil, errors.Wrap(err, "failed parsing configuration")
	}
	if tree == nil {
		tree = map[string]any{}
	}

	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if err := setPath(tree, strings.Split(key, "."), scalar(overrides[key])); err != nil {
			return nil, errors.Wrapf(err, "failed applying override %s", key)
		}
	}

	out, err := yaml.Marshal(tree)
	return out, errors.Wrap(err, "failed encoding configuration")
}

// scalar keeps canonical integers and booleans typed, so a port override still decodes into an int.
func scalar(s string) any {
	switch s {
	case "true":
		return true
	case "false":
		return false
	}
	if n, err := strconv.Atoi(s); err == nil && strconv.Itoa(n) == s {
		return n
	}
	return s
}

func setPath(tree map[string]any, path []string, value any) error {
	for i, part := range path {
		if part == "" {
			return errors.New("empty key segment")
		}
		if i == len(path)-1 {
			tree[part] = value
			return nil
		}

		next, ok := tree[part].(map[string]any)
		if !ok {
			if _, exists := tree[part]; exists && tree[part] != nil {
				return errors.Errorf("%s is not a section", strings.Join(path[:i+1], "."))
			}
			next = map[string]any{}
			tree[part] = next
		}
		tree = next
	}
	return nil
}
