// internal/config/database.go
package config

import (
	"fmt"
	"time"
)

func (d *DatabaseConfig) DSN() string {
	if d.Driver == "sqlite" {
		return d.SQLitePath
	}
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
		d.Host, d.Port, d.User, d.Password, d.Database, d.SSLMode,
	)
}

// GeoMode resolves "auto" against the configured driver: only postgres
// ships the trigonometric functions the precise formula needs.
func (c *Config) GeoMode() string {
	if c.Search.GeoDistanceMode != "auto" {
		return c.Search.GeoDistanceMode
	}
	if c.Database.Driver == "postgres" {
		return "precise"
	}
	return "approximate"
}

func (p *PaymentConfig) Timeout() time.Duration {
	if p.TimeoutSeconds <= 0 {
		return 15 * time.Second
	}
	return time.Duration(p.TimeoutSeconds) * time.Second
}
