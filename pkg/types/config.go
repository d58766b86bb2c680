// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "paper-digest/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// ProxyConfig describes the outbound proxy used on the first retrieval
// attempt. It is read from the environment once at startup.
type ProxyConfig struct {
	// Disabled turns proxy use off regardless of the other fields.
	Disabled bool `json:"disabled" yaml:"disabled"`

	HTTPProxy  string `json:"http_proxy,omitempty" yaml:"http_proxy,omitempty"`
	HTTPSProxy string `json:"https_proxy,omitempty" yaml:"https_proxy,omitempty"`
	NoProxy    string `json:"no_proxy,omitempty" yaml:"no_proxy,omitempty"`
}

// Enabled reports whether any proxy should be consulted.
func (p ProxyConfig) Enabled() bool {
	return !p.Disabled && (p.HTTPProxy != "" || p.HTTPSProxy != "")
}

// RetrievalConfig holds settings for the retrieval stage.
type RetrievalConfig struct {
	HTTPConfig `yaml:",inline"`
	Proxy      ProxyConfig `json:"proxy" yaml:"proxy"`

	// MaxAttempts bounds download attempts per paper (default 3).
	MaxAttempts int `json:"max_attempts" yaml:"max_attempts"`

	// InitialTimeout is the timeout of the first attempt (default 30s).
	// Each timed-out attempt multiplies it by 1.5 for the next one.
	InitialTimeout time.Duration `json:"initial_timeout" yaml:"initial_timeout"`

	// PapersDir is the base directory for papers (contains raw/, metadata/, images_*).
	PapersDir string `json:"papers_dir" yaml:"papers_dir"`
}

// ConversionBackend identifies the OCR/conversion service.
type ConversionBackend string

const (
	BackendDoc2x      ConversionBackend = "doc2x"
	BackendMistralOCR ConversionBackend = "mistral_ocr"
	BackendMarkitdown ConversionBackend = "markitdown"
)

// ConversionConfig holds settings for the conversion stage.
type ConversionConfig struct {
	// Backend selects the conversion service: doc2x, mistral_ocr, or markitdown.
	Backend ConversionBackend `json:"backend" yaml:"backend"`

	// APIKey authenticates against the selected remote service.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// BaseURL overrides the service endpoint.
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`

	// Model is the OCR model name (mistral_ocr only).
	Model string `json:"model,omitempty" yaml:"model,omitempty"`

	// PollInterval is the delay between status polls (doc2x only, default 3s).
	PollInterval time.Duration `json:"poll_interval" yaml:"poll_interval"`

	// MaxPolls bounds status polls before giving up (doc2x only, default 1000).
	MaxPolls int `json:"max_polls" yaml:"max_polls"`

	// Timeout is the HTTP timeout for each conversion request.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// Image is the markitdown container image (default "markitdown:latest").
	Image string `json:"image,omitempty" yaml:"image,omitempty"`

	// ContainerRuntime pins docker or podman for markitdown; empty detects.
	ContainerRuntime string `json:"container_runtime,omitempty" yaml:"container_runtime,omitempty"`
}

// ImageHostConfig holds settings for the remote image host.
type ImageHostConfig struct {
	// APIKey is the sm.ms API token.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// BaseURL overrides the sm.ms API base (default https://sm.ms/api/v2).
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`

	// Timeout is the HTTP timeout for a single upload.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
}

// LLMProvider selects the chat-completion implementation.
type LLMProvider string

const (
	ProviderOpenAI LLMProvider = "openai"
	ProviderOllama LLMProvider = "ollama"
)

// AIConfig holds shared settings for stages that call a Generative AI API.
type AIConfig struct {
	// Provider selects openai (any OpenAI-compatible endpoint) or ollama.
	Provider LLMProvider `json:"provider" yaml:"provider"`

	// Model is the AI model identifier (e.g. "deepseek-chat").
	Model string `json:"model" yaml:"model"`

	// APIKey is the authentication key for the AI API.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// BaseURL is the API base (default https://api.deepseek.com).
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`

	// Temperature is the sampling temperature (default 0.7).
	Temperature float64 `json:"temperature" yaml:"temperature"`

	// MaxRetries bounds HTTP 429 retries per call (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries"`
}

// DiscoveryConfig holds settings for the listing scraper.
type DiscoveryConfig struct {
	HTTPConfig `yaml:",inline"`

	// BaseURL is the listing page (e.g. "https://paperswithcode.com/latest").
	BaseURL string `json:"base_url" yaml:"base_url"`

	// TargetCount stops scraping once this many papers are collected (default 100).
	TargetCount int `json:"target_count" yaml:"target_count"`

	// MaxPages bounds pagination (default 100).
	MaxPages int `json:"max_pages" yaml:"max_pages"`

	// PageDelay is the delay between consecutive pages (default 2s).
	PageDelay time.Duration `json:"page_delay" yaml:"page_delay"`
}

// SelectionConfig controls how many papers are picked per run.
type SelectionConfig struct {
	// CandidatePool is the number of unread papers offered to the ranker (default 20).
	CandidatePool int `json:"candidate_pool" yaml:"candidate_pool"`

	// Limit is the number of papers processed when new papers were found (default 3).
	Limit int `json:"limit" yaml:"limit"`

	// FallbackLimit is used when no new papers were found (default 1).
	FallbackLimit int `json:"fallback_limit" yaml:"fallback_limit"`
}

// MetricsConfig holds Prometheus push settings.
type MetricsConfig struct {
	// PushgatewayURL enables pushing run metrics when set.
	PushgatewayURL string `json:"pushgateway_url,omitempty" yaml:"pushgateway_url,omitempty"`

	// Job is the Pushgateway job label (default "paper_digest").
	Job string `json:"job" yaml:"job"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `json:"level" yaml:"level"`

	// Pretty enables human-readable console output.
	Pretty bool `json:"pretty" yaml:"pretty"`
}

// Config groups all stage configurations. It is built once at process
// start and passed to every component.
type Config struct {
	Retrieval  RetrievalConfig  `json:"retrieval" yaml:"retrieval"`
	Conversion ConversionConfig `json:"conversion" yaml:"conversion"`
	ImageHost  ImageHostConfig  `json:"image_host" yaml:"image_host"`
	Summary    AIConfig         `json:"summary" yaml:"summary"`
	Ranking    AIConfig         `json:"ranking" yaml:"ranking"`
	Discovery  DiscoveryConfig  `json:"discovery" yaml:"discovery"`
	Selection  SelectionConfig  `json:"selection" yaml:"selection"`
	Metrics    MetricsConfig    `json:"metrics" yaml:"metrics"`
	Log        LogConfig        `json:"log" yaml:"log"`

	// CatalogPath is the SQLite database file (default "papers.db").
	CatalogPath string `json:"catalog_path" yaml:"catalog_path"`

	// SummariesDir receives summary and digest files (default ".").
	SummariesDir string `json:"summaries_dir" yaml:"summaries_dir"`
}
