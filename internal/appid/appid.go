// Package appid holds the static identity of the coinbridge binary.
package appid

import (
	"context"
	"strings"
)

// Identity describes how the binary names itself on disk, in the environment
// and in telemetry.
type Identity struct {
	BinaryName  string
	ConfigName  string
	EnvPrefix   string
	Description string
	Namespace   string
}

var current = Identity{
	BinaryName:  "coinbridge",
	ConfigName:  "coinbridge",
	EnvPrefix:   "COINBRIDGE_",
	Description: "Crypto market data over MCP and REST",
	Namespace:   "coinbridge",
}

// Get returns the process identity.
func Get(ctx context.Context) (*Identity, error) {
	id := current
	return &id, nil
}

// TelemetryNamespace returns the metric and log namespace.
func (i *Identity) TelemetryNamespace() string {
	if i == nil {
		return ""
	}
	if strings.TrimSpace(i.Namespace) != "" {
		return i.Namespace
	}
	return i.BinaryName
}

// EnvKey returns the prefixed environment variable name for suffix.
func (i *Identity) EnvKey(suffix string) string {
	prefix := "COINBRIDGE_"
	if i != nil && i.EnvPrefix != "" {
		prefix = i.EnvPrefix
	}
	if !strings.HasSuffix(prefix, "_") {
		prefix += "_"
	}
	return prefix + suffix
}

// ViperPrefix returns the env prefix in the form viper expects (no trailing underscore).
func (i *Identity) ViperPrefix() string {
	return strings.TrimSuffix(i.EnvKey(""), "_")
}
