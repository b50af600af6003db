package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Version is the supported configuration file format version.
const Version = "0.1.0"

const (
	DBDriverPostgres = "postgres"
	DBDriverMemory   = "memory"

	CacheDriverRedis  = "redis"
	CacheDriverMemory = "memory"
	CacheDriverNone   = "none"
)

// Env variables that override secrets in the config file.
const (
	EnvDBPassword    = "CATALOGSRV_DB_PASSWORD"
	EnvRedisPassword = "CATALOGSRV_REDIS_PASSWORD"
)

// LogConfig holds logging configuration
type LogConfig struct {
	Level   string `toml:"level"`   // zerolog level name
	Console bool   `toml:"console"` // human readable output instead of JSON
}

// DBConfig holds database configuration
type DBConfig struct {
	Driver           string `toml:"driver"`            // postgres or memory
	Host             string `toml:"host"`              // Database host
	Port             int    `toml:"port"`              // Database port
	DBName           string `toml:"dbname"`            // Database name
	User             string `toml:"user"`              // Database user
	Password         string `toml:"password"`          // Database password
	SSLMode          string `toml:"sslmode"`           // SSL mode for database connection
	MaxOpenConns     int    `toml:"max_open_conns"`    // Pool size
	MaxIdleConns     int    `toml:"max_idle_conns"`    // Idle connections kept in the pool
	StatementTimeout string `toml:"statement_timeout"` // Postgres statement_timeout
	LockTimeout      string `toml:"lock_timeout"`      // Postgres lock_timeout
	ConnectAttempts  uint   `toml:"connect_attempts"`  // Ping attempts at startup
}

// CacheConfig holds read cache configuration
type CacheConfig struct {
	Driver   string `toml:"driver"`    // redis, memory or none
	Addr     string `toml:"addr"`      // Redis address host:port
	Password string `toml:"password"`  // Redis password
	DB       int    `toml:"db"`        // Redis database number
	ListTTL  string `toml:"list_ttl"`  // TTL for list pages
	EntryTTL string `toml:"entry_ttl"` // TTL for single entries
	StatsTTL string `toml:"stats_ttl"` // TTL for the stats payload
}

// NotifyConfig holds notification dispatcher configuration
type NotifyConfig struct {
	WebhookURL  string `toml:"webhook_url"`  // POST target; empty disables webhooks
	QueueSize   int    `toml:"queue_size"`   // Pending notifications before new ones are dropped
	MaxAttempts uint   `toml:"max_attempts"` // Delivery attempts per notification
	Timeout     string `toml:"timeout"`      // Per attempt HTTP timeout
}

// EventsConfig holds event forwarding configuration
type EventsConfig struct {
	KafkaBrokers []string `toml:"kafka_brokers"` // empty disables forwarding
	KafkaTopic   string   `toml:"kafka_topic"`
}

// SettingsConfig holds the location of the tenant settings document
type SettingsConfig struct {
	File           string `toml:"file"`            // YAML or JSON document
	ReloadInterval string `toml:"reload_interval"` // How long a parsed document is reused
}

// ConfigParam holds all configuration parameters for the catalog service
type ConfigParam struct {
	// Configuration version
	FormatVersion string `toml:"format_version"` // Version of this configuration file format

	// Server configuration
	ServerHostName     string `toml:"server_hostname"`       // Hostname for the server
	ServerPort         string `toml:"server_port"`           // Port for the main server
	HandleCORS         bool   `toml:"handle_cors"`           // Whether to handle CORS
	MaxRequestBodySize int64  `toml:"max_request_body_size"` // Maximum size of request body in bytes
	RequestTimeout     string `toml:"request_timeout"`       // Per request deadline

	// Single tenant mode serves every request as default_tenant_id when no
	// X-Tenant-ID header is present.
	SingleTenantMode bool   `toml:"single_tenant_mode"`
	DefaultTenantID  string `toml:"default_tenant_id"`

	Log      LogConfig      `toml:"log"`
	DB       DBConfig       `toml:"db"`
	Cache    CacheConfig    `toml:"cache"`
	Notify   NotifyConfig   `toml:"notify"`
	Events   EventsConfig   `toml:"events"`
	Settings SettingsConfig `toml:"settings"`
}

var cfg *ConfigParam

// Config returns the current configuration
func Config() *ConfigParam {
	return cfg
}

// SetConfig replaces the current configuration.
func SetConfig(c *ConfigParam) {
	cfg = c
}

// DSN returns the database connection string
func (c *ConfigParam) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host, c.DB.Port, c.DB.User, c.DB.Password, c.DB.DBName, c.DB.SSLMode)
}

// GetRequestTimeout returns the request deadline, zero when unset.
func (c *ConfigParam) GetRequestTimeout() time.Duration {
	d, _ := ParseDuration(c.RequestTimeout)
	return d
}

// TTLs returns the list, entry and stats TTLs.
func (c *CacheConfig) TTLs() (list, entry, stats time.Duration) {
	list, _ = ParseDuration(c.ListTTL)
	entry, _ = ParseDuration(c.EntryTTL)
	stats, _ = ParseDuration(c.StatsTTL)
	return
}

// GetTimeout returns the per attempt webhook timeout.
func (n *NotifyConfig) GetTimeout() time.Duration {
	d, _ := ParseDuration(n.Timeout)
	return d
}

// GetReloadInterval returns how long a parsed settings document is reused.
func (s *SettingsConfig) GetReloadInterval() time.Duration {
	d, _ := ParseDuration(s.ReloadInterval)
	return d
}

// ParseDuration parses a duration string in the format "<number><unit>" where unit can be:
// - y: years
// - d: days
// - h: hours
// - m: minutes
// - s: seconds
// An empty string is a zero duration.
func ParseDuration(input string) (time.Duration, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return 0, nil
	}
	if len(input) < 2 {
		return 0, fmt.Errorf("invalid input format")
	}

	unit := input[len(input)-1:]
	valueStr := input[:len(input)-1]
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return 0, fmt.Errorf("invalid number: %s", err)
	}
	if value < 0 {
		return 0, fmt.Errorf("negative duration: %s", input)
	}

	var duration time.Duration
	switch unit {
	case "d":
		duration = time.Duration(value) * 24 * time.Hour
	case "h":
		duration = time.Duration(value) * time.Hour
	case "m":
		duration = time.Duration(value) * time.Minute
	case "s":
		duration = time.Duration(value) * time.Second
	case "y":
		// Assuming 1 year = 365 days for simplicity
		duration = time.Duration(value) * 365 * 24 * time.Hour
	default:
		return 0, fmt.Errorf("unknown time unit: %s", unit)
	}

	return duration, nil
}

// ApplyDefaults fills in values that were left empty in the config file.
func ApplyDefaults(cfg *ConfigParam) {
	if cfg.FormatVersion == "" {
		cfg.FormatVersion = Version
	}
	if cfg.MaxRequestBodySize == 0 {
		cfg.MaxRequestBodySize = 1 << 20
	}
	if cfg.RequestTimeout == "" {
		cfg.RequestTimeout = "30s"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.DB.Driver == "" {
		cfg.DB.Driver = DBDriverPostgres
	}
	if cfg.DB.SSLMode == "" {
		cfg.DB.SSLMode = "disable"
	}
	if cfg.DB.MaxOpenConns == 0 {
		cfg.DB.MaxOpenConns = 50
	}
	if cfg.DB.MaxIdleConns == 0 {
		cfg.DB.MaxIdleConns = 10
	}
	if cfg.DB.StatementTimeout == "" {
		cfg.DB.StatementTimeout = "30s"
	}
	if cfg.DB.LockTimeout == "" {
		cfg.DB.LockTimeout = "10s"
	}
	if cfg.DB.ConnectAttempts == 0 {
		cfg.DB.ConnectAttempts = 5
	}
	if cfg.Cache.Driver == "" {
		cfg.Cache.Driver = CacheDriverMemory
	}
	if cfg.Cache.ListTTL == "" {
		cfg.Cache.ListTTL = "60s"
	}
	if cfg.Cache.EntryTTL == "" {
		cfg.Cache.EntryTTL = "300s"
	}
	if cfg.Cache.StatsTTL == "" {
		cfg.Cache.StatsTTL = "300s"
	}
	if cfg.Notify.QueueSize == 0 {
		cfg.Notify.QueueSize = 256
	}
	if cfg.Notify.MaxAttempts == 0 {
		cfg.Notify.MaxAttempts = 3
	}
	if cfg.Notify.Timeout == "" {
		cfg.Notify.Timeout = "5s"
	}
	if cfg.Events.KafkaTopic == "" {
		cfg.Events.KafkaTopic = "catalog.services"
	}
	if cfg.Settings.ReloadInterval == "" {
		cfg.Settings.ReloadInterval = "60s"
	}
}

func applyEnvOverrides(cfg *ConfigParam) {
	if v, ok := os.LookupEnv(EnvDBPassword); ok {
		cfg.DB.Password = v
	}
	if v, ok := os.LookupEnv(EnvRedisPassword); ok {
		cfg.Cache.Password = v
	}
}

// ValidateConfig checks if all required configuration values are present and valid
func ValidateConfig(cfg *ConfigParam) error {
	if err := validateConfigFormatVersion(cfg); err != nil {
		return err
	}
	if err := validateServerConfig(cfg); err != nil {
		return err
	}
	if err := validateSingleTenantConfig(cfg); err != nil {
		return err
	}
	if err := validateDBConfig(cfg); err != nil {
		return err
	}
	if err := validateCacheConfig(cfg); err != nil {
		return err
	}
	if err := validateNotifyConfig(cfg); err != nil {
		return err
	}
	if err := validateSettingsConfig(cfg); err != nil {
		return err
	}
	return nil
}

func validateConfigFormatVersion(cfg *ConfigParam) error {
	if cfg.FormatVersion != Version {
		return fmt.Errorf("unsupported config file format version: %s", cfg.FormatVersion)
	}
	return nil
}

func validateServerConfig(cfg *ConfigParam) error {
	if cfg.ServerPort == "" {
		return fmt.Errorf("server_port is required")
	}
	if cfg.MaxRequestBodySize < 0 {
		return fmt.Errorf("max_request_body_size must not be negative")
	}
	if _, err := ParseDuration(cfg.RequestTimeout); err != nil {
		return fmt.Errorf("invalid request_timeout: %v", err)
	}
	return nil
}

func validateSingleTenantConfig(cfg *ConfigParam) error {
	if cfg.SingleTenantMode && cfg.DefaultTenantID == "" {
		return fmt.Errorf("default_tenant_id is required in single tenant mode")
	}
	return nil
}

func validateDBConfig(cfg *ConfigParam) error {
	switch cfg.DB.Driver {
	case DBDriverMemory:
		return nil
	case DBDriverPostgres:
	default:
		return fmt.Errorf("unsupported db.driver: %s", cfg.DB.Driver)
	}
	if cfg.DB.Host == "" {
		return fmt.Errorf("db.host is required")
	}
	if cfg.DB.Port <= 0 {
		return fmt.Errorf("db.port must be positive")
	}
	if cfg.DB.DBName == "" {
		return fmt.Errorf("db.dbname is required")
	}
	if cfg.DB.User == "" {
		return fmt.Errorf("db.user is required")
	}
	if cfg.DB.Password == "" {
		return fmt.Errorf("db.password is required")
	}
	if _, err := ParseDuration(cfg.DB.StatementTimeout); err != nil {
		return fmt.Errorf("invalid db.statement_timeout: %v", err)
	}
	if _, err := ParseDuration(cfg.DB.LockTimeout); err != nil {
		return fmt.Errorf("invalid db.lock_timeout: %v", err)
	}
	return nil
}

func validateCacheConfig(cfg *ConfigParam) error {
	switch cfg.Cache.Driver {
	case CacheDriverRedis:
		if cfg.Cache.Addr == "" {
			return fmt.Errorf("cache.addr is required for the redis driver")
		}
	case CacheDriverMemory, CacheDriverNone:
	default:
		return fmt.Errorf("unsupported cache.driver: %s", cfg.Cache.Driver)
	}
	for name, v := range map[string]string{
		"cache.list_ttl":  cfg.Cache.ListTTL,
		"cache.entry_ttl": cfg.Cache.EntryTTL,
		"cache.stats_ttl": cfg.Cache.StatsTTL,
	} {
		if _, err := ParseDuration(v); err != nil {
			return fmt.Errorf("invalid %s: %v", name, err)
		}
	}
	return nil
}

func validateNotifyConfig(cfg *ConfigParam) error {
	if cfg.Notify.QueueSize < 0 {
		return fmt.Errorf("notify.queue_size must not be negative")
	}
	if cfg.Notify.WebhookURL != "" &&
		!strings.HasPrefix(cfg.Notify.WebhookURL, "http://") &&
		!strings.HasPrefix(cfg.Notify.WebhookURL, "https://") {
		return fmt.Errorf("notify.webhook_url must be an http(s) URL")
	}
	if _, err := ParseDuration(cfg.Notify.Timeout); err != nil {
		return fmt.Errorf("invalid notify.timeout: %v", err)
	}
	return nil
}

func validateSettingsConfig(cfg *ConfigParam) error {
	if _, err := ParseDuration(cfg.Settings.ReloadInterval); err != nil {
		return fmt.Errorf("invalid settings.reload_interval: %v", err)
	}
	return nil
}

// ParseConfig decodes, completes and validates a TOML document.
func ParseConfig(content string) (*ConfigParam, error) {
	c := &ConfigParam{}
	if _, err := toml.Decode(content, c); err != nil {
		return nil, fmt.Errorf("error parsing config file: %v", err)
	}
	ApplyDefaults(c)
	applyEnvOverrides(c)
	if err := ValidateConfig(c); err != nil {
		return nil, fmt.Errorf("invalid configuration: %v", err)
	}
	return c, nil
}

// LoadConfig loads configuration from a file
func LoadConfig(filename string) error {
	if filename == "" {
		return fmt.Errorf("config filename is required")
	}

	content, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}

	c, err := ParseConfig(string(content))
	if err != nil {
		return err
	}
	cfg = c
	return nil
}

var isTest = false

func IsTest() bool {
	return isTest
}

func SetTestMode(test bool) {
	isTest = test
}

// TestInit loads catalogsrv.conf from the project root and switches the
// store and cache to their in-memory drivers.
func TestInit() {
	isTest = true
	wd, err := os.Getwd()
	if err != nil {
		panic(err)
	}

	projectRoot := wd
	for {
		if _, err := os.Stat(filepath.Join(projectRoot, "go.mod")); err == nil {
			break
		}
		parent := filepath.Dir(projectRoot)
		if parent == projectRoot {
			panic("could not find project root (go.mod)")
		}
		projectRoot = parent
	}
	if err := LoadConfig(filepath.Join(projectRoot, "catalogsrv.conf")); err != nil {
		panic(fmt.Errorf("error loading config: %v", err))
	}
	cfg.DB.Driver = DBDriverMemory
	cfg.Cache.Driver = CacheDriverMemory
	cfg.Notify.WebhookURL = ""
	cfg.Events.KafkaBrokers = nil
}
