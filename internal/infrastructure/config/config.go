package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config carries server wiring plus the startup seed. The seed replaces the
// operator typing in products by hand: everything under `seed:` is loaded
// through the same operator-only catalog and registry operations.
type Config struct {
	ServiceName string `yaml:"service_name"`
	Env         string `yaml:"env"`
	ListenAddr  string `yaml:"listen_addr"`
	MetricsAddr string `yaml:"metrics_addr"`

	Operator OperatorConfig `yaml:"operator"`
	Seed     SeedConfig     `yaml:"seed"`
}

type OperatorConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

type SeedConfig struct {
	Products  []SeedProduct  `yaml:"products"`
	Customers []SeedCustomer `yaml:"customers"`
}

type SeedProduct struct {
	ID    string `yaml:"id"`
	Name  string `yaml:"name"`
	Price string `yaml:"price"`
	Stock int    `yaml:"stock"`
}

type SeedCustomer struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// Default returns the built-in configuration, including the sample catalog
// the server has always started with (one item deliberately out of stock).
func Default() *Config {
	return &Config{
		ServiceName: "shopserver",
		Env:         "dev",
		ListenAddr:  ":3000",
		MetricsAddr: ":9090",
		Operator: OperatorConfig{
			ID:   "MNG001",
			Name: "Mr. Server",
		},
		Seed: SeedConfig{
			Products: []SeedProduct{
				{ID: "P001", Name: "Laptop", Price: "1200.00", Stock: 10},
				{ID: "P002", Name: "Mouse", Price: "25.00", Stock: 50},
				{ID: "P003", Name: "Keyboard", Price: "75.00", Stock: 30},
				{ID: "P004", Name: "Webcam", Price: "45.00", Stock: 0},
			},
			Customers: []SeedCustomer{
				{ID: "C101", Name: "Alice"},
				{ID: "C102", Name: "Bob"},
			},
		},
	}
}

// Load builds the configuration from the optional YAML file named by path
// (skipped when empty), then applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.ServiceName = getenvDefault("SERVICE_NAME", c.ServiceName)
	c.Env = getenvDefault("ENV", c.Env)
	c.ListenAddr = getenvDefault("LISTEN_ADDR", c.ListenAddr)
	c.MetricsAddr = getenvDefault("METRICS_ADDR", c.MetricsAddr)
}

func (c *Config) validate() error {
	if c.Operator.ID == "" {
		return fmt.Errorf("config: operator id is required")
	}
	if c.ListenAddr == "" {
		return fmt.Errorf("config: listen_addr is required")
	}
	for _, p := range c.Seed.Products {
		if p.ID == "" {
			return fmt.Errorf("config: seed product without id")
		}
	}
	return nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
