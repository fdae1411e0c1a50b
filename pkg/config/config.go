package config

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultConfigPath = "/etc/vpncore"
	ConfigFileName    = "vpncore.yml"
)

// Config holds all vpncore settings.
type Config struct {
	// BindAddress is the address the API server listens on.
	BindAddress string `yaml:"bind_address" json:"bind_address"`

	// Port is the API server port.
	Port int `yaml:"port" json:"port"`

	// HealthPort is the port for the unauthenticated health endpoint.
	HealthPort int `yaml:"health_port" json:"health_port"`

	// SweepIntervalSeconds is the pause between expiry sweep passes.
	SweepIntervalSeconds int `yaml:"sweep_interval_seconds" json:"sweep_interval_seconds"`

	// WarningLeadHours is how long before expiry subscriptions are warned.
	WarningLeadHours int `yaml:"warning_lead_hours" json:"warning_lead_hours"`

	// NodeTimeoutSeconds bounds each individual node call.
	NodeTimeoutSeconds int `yaml:"node_timeout_seconds" json:"node_timeout_seconds"`

	// StaleAfterSeconds is the age at which reconciliation treats
	// in-flight operations as crashed.
	StaleAfterSeconds int `yaml:"stale_after_seconds" json:"stale_after_seconds"`

	// RetryAttempts is how often API handlers retry on write conflicts.
	RetryAttempts int `yaml:"retry_attempts" json:"retry_attempts"`

	// SweepBatchSize bounds how many rows one sweep pass processes.
	SweepBatchSize int `yaml:"sweep_batch_size" json:"sweep_batch_size"`

	// NodeInventoryPath is the YAML file describing the node fleet.
	NodeInventoryPath string `yaml:"node_inventory_path" json:"node_inventory_path"`

	// TokenTTLMinutes is the lifetime of issued API tokens.
	TokenTTLMinutes int `yaml:"token_ttl_minutes" json:"token_ttl_minutes"`

	// TrustedProxies is a list of CIDR ranges for trusted proxies.
	TrustedProxies []string `yaml:"trusted_proxies" json:"trusted_proxies"`

	// sources tracks where each value came from
	sources map[string]string

	// configFilePath is the path to the config file
	configFilePath string
}

// Attribute represents a configuration attribute with its value and source
type Attribute struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Source string `json:"source"`
}

// Global singleton config
var (
	globalConfig *Config
	configMu     sync.RWMutex
)

// Get returns the global configuration, loading it if necessary
func Get() *Config {
	configMu.RLock()
	if globalConfig != nil {
		configMu.RUnlock()
		return globalConfig
	}
	configMu.RUnlock()

	configMu.Lock()
	defer configMu.Unlock()

	if globalConfig == nil {
		cfg, err := Load()
		if err != nil {
			// Return defaults on error
			globalConfig = newDefault()
		} else {
			globalConfig = cfg
		}
	}
	return globalConfig
}

// Reload reloads the configuration from file and environment
func Reload() error {
	cfg, err := Load()
	if err != nil {
		return err
	}

	configMu.Lock()
	globalConfig = cfg
	configMu.Unlock()
	return nil
}

// newDefault returns a config with default values
func newDefault() *Config {
	return &Config{
		BindAddress:          "0.0.0.0",
		Port:                 8000,
		HealthPort:           8080,
		SweepIntervalSeconds: 300,
		WarningLeadHours:     72,
		NodeTimeoutSeconds:   15,
		StaleAfterSeconds:    300,
		RetryAttempts:        3,
		SweepBatchSize:       100,
		NodeInventoryPath:    "/etc/vpncore/nodes.yml",
		TokenTTLMinutes:      60,
		TrustedProxies:       []string{},
		sources:              make(map[string]string),
	}
}

// Load loads configuration from file and environment variables.
// Environment variables take precedence over file values.
func Load() (*Config, error) {
	config := newDefault()

	for _, name := range attributeNames() {
		config.sources[name] = "default"
	}

	configPath := os.Getenv("VPNCORE_CONFIG_PATH")
	if configPath == "" {
		configPath = DefaultConfigPath
	}
	config.configFilePath = filepath.Join(configPath, ConfigFileName)

	if data, err := os.ReadFile(config.configFilePath); err == nil {
		var fileConfig Config
		if err := yaml.Unmarshal(data, &fileConfig); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", config.configFilePath, err)
		}
		config.applyFileConfig(&fileConfig)
	}

	config.applyEnvConfig()

	return config, nil
}

func attributeNames() []string {
	return []string{
		"bind_address", "port", "health_port", "sweep_interval_seconds",
		"warning_lead_hours", "node_timeout_seconds", "stale_after_seconds",
		"retry_attempts", "sweep_batch_size", "node_inventory_path",
		"token_ttl_minutes", "trusted_proxies",
	}
}

func (c *Config) applyFileConfig(file *Config) {
	if file.BindAddress != "" {
		c.BindAddress = file.BindAddress
		c.sources["bind_address"] = "file"
	}
	if file.Port != 0 {
		c.Port = file.Port
		c.sources["port"] = "file"
	}
	if file.HealthPort != 0 {
		c.HealthPort = file.HealthPort
		c.sources["health_port"] = "file"
	}
	if file.SweepIntervalSeconds != 0 {
		c.SweepIntervalSeconds = file.SweepIntervalSeconds
		c.sources["sweep_interval_seconds"] = "file"
	}
	if file.WarningLeadHours != 0 {
		c.WarningLeadHours = file.WarningLeadHours
		c.sources["warning_lead_hours"] = "file"
	}
	if file.NodeTimeoutSeconds != 0 {
		c.NodeTimeoutSeconds = file.NodeTimeoutSeconds
		c.sources["node_timeout_seconds"] = "file"
	}
	if file.StaleAfterSeconds != 0 {
		c.StaleAfterSeconds = file.StaleAfterSeconds
		c.sources["stale_after_seconds"] = "file"
	}
	if file.RetryAttempts != 0 {
		c.RetryAttempts = file.RetryAttempts
		c.sources["retry_attempts"] = "file"
	}
	if file.SweepBatchSize != 0 {
		c.SweepBatchSize = file.SweepBatchSize
		c.sources["sweep_batch_size"] = "file"
	}
	if file.NodeInventoryPath != "" {
		c.NodeInventoryPath = file.NodeInventoryPath
		c.sources["node_inventory_path"] = "file"
	}
	if file.TokenTTLMinutes != 0 {
		c.TokenTTLMinutes = file.TokenTTLMinutes
		c.sources["token_ttl_minutes"] = "file"
	}
	if len(file.TrustedProxies) > 0 {
		c.TrustedProxies = file.TrustedProxies
		c.sources["trusted_proxies"] = "file"
	}
}

func (c *Config) applyEnvConfig() {
	if val := os.Getenv("VPNCORE_BIND_ADDRESS"); val != "" {
		c.BindAddress = val
		c.sources["bind_address"] = "environment"
	}
	if val := os.Getenv("VPNCORE_PORT"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			c.Port = i
			c.sources["port"] = "environment"
		}
	}
	if val := os.Getenv("VPNCORE_HEALTH_PORT"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			c.HealthPort = i
			c.sources["health_port"] = "environment"
		}
	}
	if val := os.Getenv("VPNCORE_SWEEP_INTERVAL_SECONDS"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			c.SweepIntervalSeconds = i
			c.sources["sweep_interval_seconds"] = "environment"
		}
	}
	if val := os.Getenv("VPNCORE_WARNING_LEAD_HOURS"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			c.WarningLeadHours = i
			c.sources["warning_lead_hours"] = "environment"
		}
	}
	if val := os.Getenv("VPNCORE_NODE_TIMEOUT_SECONDS"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			c.NodeTimeoutSeconds = i
			c.sources["node_timeout_seconds"] = "environment"
		}
	}
	if val := os.Getenv("VPNCORE_STALE_AFTER_SECONDS"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			c.StaleAfterSeconds = i
			c.sources["stale_after_seconds"] = "environment"
		}
	}
	if val := os.Getenv("VPNCORE_RETRY_ATTEMPTS"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			c.RetryAttempts = i
			c.sources["retry_attempts"] = "environment"
		}
	}
	if val := os.Getenv("VPNCORE_SWEEP_BATCH_SIZE"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			c.SweepBatchSize = i
			c.sources["sweep_batch_size"] = "environment"
		}
	}
	if val := os.Getenv("VPNCORE_NODE_INVENTORY"); val != "" {
		c.NodeInventoryPath = val
		c.sources["node_inventory_path"] = "environment"
	}
	if val := os.Getenv("VPNCORE_TOKEN_TTL_MINUTES"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			c.TokenTTLMinutes = i
			c.sources["token_ttl_minutes"] = "environment"
		}
	}
	if val := os.Getenv("VPNCORE_TRUSTED_PROXIES"); val != "" {
		c.TrustedProxies = splitAndTrim(val)
		c.sources["trusted_proxies"] = "environment"
	}
}

// ConfigFilePath returns the path to the config file
func (c *Config) ConfigFilePath() string {
	return c.configFilePath
}

// Source returns the source of a configuration attribute
func (c *Config) Source(name string) string {
	if c.sources == nil {
		return "default"
	}
	if s, ok := c.sources[name]; ok {
		return s
	}
	return "default"
}

// ListenAddr returns the API server bind address as host:port.
func (c *Config) ListenAddr() string {
	return net.JoinHostPort(c.BindAddress, strconv.Itoa(c.Port))
}

// HealthAddr returns the health server bind address as host:port.
func (c *Config) HealthAddr() string {
	return net.JoinHostPort(c.BindAddress, strconv.Itoa(c.HealthPort))
}

// SweepInterval returns the sweep interval as a duration
func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalSeconds) * time.Second
}

// WarningLead returns the expiry warning lead as a duration
func (c *Config) WarningLead() time.Duration {
	return time.Duration(c.WarningLeadHours) * time.Hour
}

// NodeTimeout returns the node call timeout as a duration
func (c *Config) NodeTimeout() time.Duration {
	return time.Duration(c.NodeTimeoutSeconds) * time.Second
}

// StaleAfter returns the stale operation cutoff as a duration
func (c *Config) StaleAfter() time.Duration {
	return time.Duration(c.StaleAfterSeconds) * time.Second
}

// TokenTTL returns the API token lifetime as a duration
func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.TokenTTLMinutes) * time.Minute
}

// IsTrustedProxy checks if an IP is from a trusted proxy
func (c *Config) IsTrustedProxy(ip string) bool {
	if len(c.TrustedProxies) == 0 {
		return false
	}

	parsedIP := net.ParseIP(ip)
	if parsedIP == nil {
		return false
	}

	for _, cidr := range c.TrustedProxies {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			// Try as plain IP
			if net.ParseIP(cidr) != nil && cidr == ip {
				return true
			}
			continue
		}
		if network.Contains(parsedIP) {
			return true
		}
	}
	return false
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if c.HealthPort < 1 || c.HealthPort > 65535 {
		return fmt.Errorf("invalid health_port: %d", c.HealthPort)
	}
	if c.HealthPort == c.Port {
		return fmt.Errorf("health_port must differ from port, both are %d", c.Port)
	}
	if c.SweepIntervalSeconds < 1 {
		return fmt.Errorf("sweep_interval_seconds must be positive, got %d", c.SweepIntervalSeconds)
	}
	if c.NodeTimeoutSeconds < 1 {
		return fmt.Errorf("node_timeout_seconds must be positive, got %d", c.NodeTimeoutSeconds)
	}
	if c.StaleAfterSeconds < c.NodeTimeoutSeconds {
		return fmt.Errorf("stale_after_seconds (%d) must not be shorter than node_timeout_seconds (%d)",
			c.StaleAfterSeconds, c.NodeTimeoutSeconds)
	}

	for _, cidr := range c.TrustedProxies {
		if _, _, err := net.ParseCIDR(cidr); err != nil {
			if net.ParseIP(cidr) == nil {
				return fmt.Errorf("invalid trusted_proxies value: %s", cidr)
			}
		}
	}
	return nil
}

// Attributes returns all configuration attributes with their values and sources
func (c *Config) Attributes() []Attribute {
	return []Attribute{
		{Name: "bind_address", Value: c.BindAddress, Source: c.Source("bind_address")},
		{Name: "port", Value: strconv.Itoa(c.Port), Source: c.Source("port")},
		{Name: "health_port", Value: strconv.Itoa(c.HealthPort), Source: c.Source("health_port")},
		{Name: "sweep_interval_seconds", Value: strconv.Itoa(c.SweepIntervalSeconds), Source: c.Source("sweep_interval_seconds")},
		{Name: "warning_lead_hours", Value: strconv.Itoa(c.WarningLeadHours), Source: c.Source("warning_lead_hours")},
		{Name: "node_timeout_seconds", Value: strconv.Itoa(c.NodeTimeoutSeconds), Source: c.Source("node_timeout_seconds")},
		{Name: "stale_after_seconds", Value: strconv.Itoa(c.StaleAfterSeconds), Source: c.Source("stale_after_seconds")},
		{Name: "retry_attempts", Value: strconv.Itoa(c.RetryAttempts), Source: c.Source("retry_attempts")},
		{Name: "sweep_batch_size", Value: strconv.Itoa(c.SweepBatchSize), Source: c.Source("sweep_batch_size")},
		{Name: "node_inventory_path", Value: c.NodeInventoryPath, Source: c.Source("node_inventory_path")},
		{Name: "token_ttl_minutes", Value: strconv.Itoa(c.TokenTTLMinutes), Source: c.Source("token_ttl_minutes")},
		{Name: "trusted_proxies", Value: strings.Join(c.TrustedProxies, ","), Source: c.Source("trusted_proxies")},
	}
}

// FormatText returns a text representation of the configuration
func (c *Config) FormatText() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Config file: %s\n\n", c.configFilePath))
	sb.WriteString(fmt.Sprintf("%-30s %-30s %s\n", "NAME", "VALUE", "SOURCE"))
	sb.WriteString(fmt.Sprintf("%-30s %-30s %s\n", "----", "-----", "------"))

	for _, attr := range c.Attributes() {
		value := attr.Value
		if value == "" {
			value = "(not set)"
		}
		sb.WriteString(fmt.Sprintf("%-30s %-30s %s\n", attr.Name, value, attr.Source))
	}
	return sb.String()
}

// FormatJSON returns a JSON representation of the configuration
func (c *Config) FormatJSON() (string, error) {
	result := map[string]interface{}{
		"config_file": c.configFilePath,
		"attributes":  c.Attributes(),
	}
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
