// Package clientconfig renders the runtime configuration object the browser
// client loads before it starts.
package clientconfig

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/kelseyhightower/envconfig"
)

// Config is the public, non-secret configuration exposed to the browser.
type Config struct {
	APIBaseURL     string `envconfig:"CLIENT_API_BASE_URL" default:"/v1" json:"apiBaseUrl"`
	StreamURL      string `envconfig:"CLIENT_STREAM_URL" json:"streamUrl,omitempty"`
	MediaBaseURL   string `envconfig:"S3_PUBLIC_URL" json:"mediaBaseUrl,omitempty"`
	MaxVideoMB     int64  `envconfig:"MAX_VIDEO_MB" default:"100" json:"maxVideoMb"`
	MaxResourceMB  int64  `envconfig:"MAX_RESOURCE_MB" default:"25" json:"maxResourceMb"`
	TimerMinutes   int    `envconfig:"CLIENT_TIMER_MINUTES" default:"30" json:"timerMinutes"`
	EnvironmentTag string `envconfig:"ENV" default:"development" json:"environment"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if cfg.StreamURL == "" {
		cfg.StreamURL = cfg.APIBaseURL + "/programs/stream"
	}
	return &cfg, nil
}

// Render writes a script assigning cfg to window.appConfig.
func Render(w io.Writer, cfg *Config) error {
	body, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode client config: %w", err)
	}
	_, err = fmt.Fprintf(w, "// Auto-generated file - do not edit manually\nwindow.appConfig = %s;\n", body)
	return err
}
