// Package config provides YAML-based configuration loading for Schemacraft.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level Schemacraft configuration, loaded from config.yaml.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	DB        DBConfig        `yaml:"db"`
	Admission AdmissionConfig `yaml:"admission"`
	Batch     BatchConfig     `yaml:"batch"`
	Workflows WorkflowsConfig `yaml:"workflows"`
	Uploads   UploadsConfig   `yaml:"uploads"`
	Classes   []ClassConfig   `yaml:"classes"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// DBConfig holds connection settings for the MySQL server.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// AdmissionConfig bounds concurrent evaluation workflows.
type AdmissionConfig struct {
	MaxConcurrent int    `yaml:"max_concurrent"`
	LeaseSeconds  int    `yaml:"lease_seconds"`
	PollMillis    int    `yaml:"poll_ms"`
	SweepCron     string `yaml:"sweep_cron"` // 5-field cron expression
}

// Lease returns the ticket lease duration.
func (a AdmissionConfig) Lease() time.Duration {
	return time.Duration(a.LeaseSeconds) * time.Second
}

// PollInterval returns how often blocked acquires re-check the pool.
func (a AdmissionConfig) PollInterval() time.Duration {
	return time.Duration(a.PollMillis) * time.Millisecond
}

// BatchConfig controls batch task execution.
type BatchConfig struct {
	AcquireTimeoutSeconds int `yaml:"acquire_timeout_seconds"`
}

// AcquireTimeout bounds how long a task waits for an admission slot.
func (b BatchConfig) AcquireTimeout() time.Duration {
	return time.Duration(b.AcquireTimeoutSeconds) * time.Second
}

// WorkflowsConfig locates the external generation/evaluation workflow
// service.
type WorkflowsConfig struct {
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Timeout bounds one workflow round-trip.
func (w WorkflowsConfig) Timeout() time.Duration {
	return time.Duration(w.TimeoutSeconds) * time.Second
}

// UploadsConfig controls accepted artifact uploads.
type UploadsConfig struct {
	AllowedExtensions []string `yaml:"allowed_extensions"`
}

// ClassConfig seeds the roster for one class.
type ClassConfig struct {
	Code   string          `yaml:"code"`
	Roster []RosterSeedRow `yaml:"roster"`
}

// RosterSeedRow is one student entry under a class.
type RosterSeedRow struct {
	StudentCode string `yaml:"student_code"`
	Active      *bool  `yaml:"active"` // nil means active
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.DB.Host == "" {
		c.DB.Host = "127.0.0.1"
	}
	if c.DB.Port == 0 {
		c.DB.Port = 3306
	}
	if c.DB.User == "" {
		c.DB.User = "root"
	}
	if c.DB.Database == "" {
		c.DB.Database = "schemacraft"
	}
	if c.Admission.MaxConcurrent == 0 {
		c.Admission.MaxConcurrent = 4
	}
	if c.Admission.LeaseSeconds == 0 {
		c.Admission.LeaseSeconds = 300
	}
	if c.Admission.PollMillis == 0 {
		c.Admission.PollMillis = 250
	}
	if c.Admission.SweepCron == "" {
		c.Admission.SweepCron = "* * * * *"
	}
	if c.Batch.AcquireTimeoutSeconds == 0 {
		c.Batch.AcquireTimeoutSeconds = 600
	}
	if c.Workflows.BaseURL == "" {
		c.Workflows.BaseURL = "http://127.0.0.1:8090"
	}
	if c.Workflows.TimeoutSeconds == 0 {
		c.Workflows.TimeoutSeconds = 120
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	if c.Admission.MaxConcurrent < 1 {
		errs = append(errs, "admission.max_concurrent must be at least 1")
	}
	if c.Admission.LeaseSeconds < 1 {
		errs = append(errs, "admission.lease_seconds must be at least 1")
	}
	for i, cl := range c.Classes {
		if cl.Code == "" {
			errs = append(errs, fmt.Sprintf("classes[%d].code is required", i))
		}
		for j, r := range cl.Roster {
			if r.StudentCode == "" {
				errs = append(errs, fmt.Sprintf("classes[%d].roster[%d].student_code is required", i, j))
			}
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
