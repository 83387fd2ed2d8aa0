// Copyright ModelGate Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

// Package modelconfig holds the model binding configuration loaded from the
// models file. It is shared by the registry, the adapters and the
// translators, and is decoupled from all of them to avoid circular
// dependencies.
package modelconfig

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/modelgate/modelgate/internal/json"
)

// Adapter kinds a binding can select.
const (
	AdapterOpenAICompat = "openai_compat"
	AdapterCustomHTTP   = "custom_http"
	AdapterProcess      = "process"
	AdapterWebsocket    = "websocket"
)

// Default timeouts in seconds, applied when a binding leaves timeout unset.
const (
	DefaultTimeoutSeconds        = 60
	DefaultProcessTimeoutSeconds = 120
)

// File is the top-level document of the models file.
type File struct {
	Models []Binding `json:"models"`
	Debug  bool      `json:"debug,omitempty"`
}

// Binding declares one exposed model and how to reach its backend.
type Binding struct {
	// ID is the model name clients send; it is what /v1/models lists.
	ID string `json:"id"`
	// Adapter selects the dispatch family, one of the Adapter* constants.
	Adapter string `json:"adapter"`
	// Enabled defaults to true when omitted.
	Enabled *bool `json:"enabled,omitempty"`

	BaseURL  string `json:"base_url,omitempty"`
	Endpoint string `json:"endpoint,omitempty"`
	// Model is the upstream model name; defaults to ID.
	Model string `json:"model,omitempty"`
	// APIKey may reference the environment as "ENV:NAME"; see ResolveEnv.
	APIKey string `json:"api_key,omitempty"`
	// Timeout is the per-request budget in seconds.
	Timeout float64 `json:"timeout,omitempty"`
	// RequestFormat names the wire dialect for custom_http bindings.
	RequestFormat string `json:"request_format,omitempty"`

	Config VendorConfig `json:"config,omitempty"`
	Retry  *RetryPolicy `json:"retry,omitempty"`

	// Fields below apply to process bindings only.
	Command      string            `json:"command,omitempty"`
	Args         []string          `json:"args,omitempty"`
	WorkingDir   string            `json:"working_dir,omitempty"`
	Env          map[string]string `json:"env,omitempty"`
	InputFormat  string            `json:"input_format,omitempty"`
	OutputFormat string            `json:"output_format,omitempty"`
}

// VendorConfig carries vendor-specific credentials and tuning. Credential
// fields may reference the environment as "ENV:NAME".
type VendorConfig struct {
	AppID      string `json:"app_id,omitempty"`
	SecretID   string `json:"secret_id,omitempty"`
	SecretKey  string `json:"secret_key,omitempty"`
	APISecret  string `json:"api_secret,omitempty"`
	Region     string `json:"region,omitempty"`
	Domain     string `json:"domain,omitempty"`
	APIVersion string `json:"api_version,omitempty"`
	Plugin     string `json:"plugin,omitempty"`
}

// RetryPolicy tunes the retry engine for one binding. Delays are seconds.
type RetryPolicy struct {
	// Enabled defaults to true when omitted.
	Enabled         *bool   `json:"enabled,omitempty"`
	MaxRetries      int     `json:"max_retries,omitempty"`
	InitialDelay    float64 `json:"initial_delay,omitempty"`
	MaxDelay        float64 `json:"max_delay,omitempty"`
	ExponentialBase float64 `json:"exponential_base,omitempty"`
	// Jitter defaults to true when omitted.
	Jitter *bool `json:"jitter,omitempty"`
}

// IsEnabled reports whether the binding should be registered.
func (b *Binding) IsEnabled() bool {
	return b.Enabled == nil || *b.Enabled
}

// TimeoutDuration returns the per-request budget as a duration.
func (b *Binding) TimeoutDuration() time.Duration {
	return time.Duration(b.Timeout * float64(time.Second))
}

// IsEnabled reports whether retries run at all for the binding.
func (p *RetryPolicy) IsEnabled() bool {
	return p.Enabled == nil || *p.Enabled
}

// HasJitter reports whether backoff delays are randomised.
func (p *RetryPolicy) HasJitter() bool {
	return p.Jitter == nil || *p.Jitter
}

// InitialInterval returns the first backoff delay as a duration.
func (p *RetryPolicy) InitialInterval() time.Duration {
	return time.Duration(p.InitialDelay * float64(time.Second))
}

// MaxInterval returns the backoff delay ceiling as a duration.
func (p *RetryPolicy) MaxInterval() time.Duration {
	return time.Duration(p.MaxDelay * float64(time.Second))
}

// applyDefaults fills the documented fallbacks in place.
func (b *Binding) applyDefaults() {
	if b.Model == "" {
		b.Model = b.ID
	}
	if b.Timeout <= 0 {
		if b.Adapter == AdapterProcess {
			b.Timeout = DefaultProcessTimeoutSeconds
		} else {
			b.Timeout = DefaultTimeoutSeconds
		}
	}
	if b.Retry == nil {
		b.Retry = &RetryPolicy{}
	}
	b.Retry.applyDefaults()
}

func (p *RetryPolicy) applyDefaults() {
	if p.MaxRetries <= 0 {
		p.MaxRetries = 3
	}
	if p.InitialDelay <= 0 {
		p.InitialDelay = 1
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = 60
	}
	if p.ExponentialBase <= 0 {
		p.ExponentialBase = 2.0
	}
}

// Unmarshal parses a models file document and fills per-binding defaults.
func Unmarshal(raw []byte) (*File, error) {
	var f File
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("failed to unmarshal model config: %w", err)
	}
	for i := range f.Models {
		f.Models[i].applyDefaults()
	}
	return &f, nil
}

// UnmarshalConfigFile reads and parses the models file at the given path.
func UnmarshalConfigFile(path string) (*File, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model config %q: %w", path, err)
	}
	return Unmarshal(raw)
}

const envPrefix = "ENV:"

// ResolveEnv expands an "ENV:NAME" reference to the value of the named
// environment variable. Any other value passes through unchanged, so an
// unset variable resolves to the empty string and the binding reads as
// missing its credential.
func ResolveEnv(v string) string {
	if name, ok := strings.CutPrefix(v, envPrefix); ok {
		return os.Getenv(name)
	}
	return v
}

// Default returns the starter configuration written next to the binary the
// first time the gateway runs without a models file.
func Default() *File {
	return &File{
		Models: []Binding{
			{
				ID:      "gpt-3.5-turbo",
				Adapter: AdapterOpenAICompat,
				BaseURL: "https://api.openai.com/v1",
				APIKey:  "ENV:OPENAI_API_KEY",
			},
			{
				ID:      "deepseek-chat",
				Adapter: AdapterOpenAICompat,
				BaseURL: "https://api.deepseek.com/v1",
				APIKey:  "ENV:DEEPSEEK_API_KEY",
			},
		},
	}
}
