// Package config loads the gateway's process-wide settings: the upstream
// manifest service, the path prefix it proxies under, the header value
// sent to the upstream, and the listen address. Flags always win over an
// optional JSON config file, following the teacher's own Load/Default
// layering.
package config

import (
	"encoding/json"
	"errors"
	"os"
)

// Config is the full set of settings the gateway needs to start.
type Config struct {
	// Upstream is the base URL of the manifest service. Required.
	Upstream string `json:"upstream"`

	// StripPrefix is removed from an inbound request path before the
	// remainder is appended to Upstream.
	StripPrefix string `json:"strip_prefix"`

	// HeaderValue is sent as the X-Via-Zip-Stream header's value on the
	// outgoing upstream request.
	HeaderValue string `json:"header_value"`

	// Listen is the IP:port the gateway's HTTP server binds to.
	Listen string `json:"listen"`
}

// Default returns the settings used when neither a config file nor a flag
// overrides them.
func Default() Config {
	return Config{
		StripPrefix: "",
		HeaderValue: "true",
		Listen:      "127.0.0.1:3000",
	}
}

// Load reads a JSON config file at path, layering it over Default(). An
// empty path returns Default() unchanged; a missing or malformed file is
// an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := json.Unmarshal(b, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks that the settings are complete enough to start serving.
func (c Config) Validate() error {
	if c.Upstream == "" {
		return errors.New("upstream required")
	}
	if c.Listen == "" {
		return errors.New("listen required")
	}
	return nil
}
