// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"time"

	"github.com/spf13/viper"

	"github.com/pdiddy/paper-digest/internal/httputil"
	"github.com/pdiddy/paper-digest/pkg/types"
)

const (
	browserUserAgent   = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	defaultLLMBaseURL  = "https://api.deepseek.com"
	defaultLLMModel    = "deepseek-chat"
	defaultListingURL  = "https://paperswithcode.com/latest"
	defaultPapersDir   = "papers"
	defaultCatalogPath = "papers.db"
)

// setDefaults registers every configuration key with its default so that
// environment variables are picked up for keys absent from the config file.
func setDefaults(v *viper.Viper) {
	v.SetDefault("papers_dir", defaultPapersDir)
	v.SetDefault("catalog_path", defaultCatalogPath)
	v.SetDefault("summaries_dir", ".")

	v.SetDefault("retrieval.max_attempts", 3)
	v.SetDefault("retrieval.initial_timeout", 30*time.Second)
	v.SetDefault("retrieval.user_agent", browserUserAgent)

	v.SetDefault("conversion.backend", string(types.BackendDoc2x))
	v.SetDefault("conversion.api_key", "")
	v.SetDefault("conversion.base_url", "")
	v.SetDefault("conversion.model", "")
	v.SetDefault("conversion.poll_interval", 3*time.Second)
	v.SetDefault("conversion.max_polls", 1000)
	v.SetDefault("conversion.timeout", 2*time.Minute)
	v.SetDefault("conversion.image", "markitdown:latest")
	v.SetDefault("conversion.container_runtime", "")

	v.SetDefault("image_host.api_key", "")
	v.SetDefault("image_host.base_url", "")
	v.SetDefault("image_host.timeout", time.Minute)

	for _, k := range []string{"summary", "ranking"} {
		v.SetDefault(k+".provider", string(types.ProviderOpenAI))
		v.SetDefault(k+".model", defaultLLMModel)
		v.SetDefault(k+".api_key", "")
		v.SetDefault(k+".base_url", defaultLLMBaseURL)
		v.SetDefault(k+".temperature", 0.7)
		v.SetDefault(k+".max_retries", 3)
	}

	v.SetDefault("discovery.base_url", defaultListingURL)
	v.SetDefault("discovery.target_count", 100)
	v.SetDefault("discovery.max_pages", 100)
	v.SetDefault("discovery.page_delay", 2*time.Second)
	v.SetDefault("discovery.timeout", 30*time.Second)
	v.SetDefault("discovery.user_agent", browserUserAgent)

	v.SetDefault("selection.candidate_pool", 20)
	v.SetDefault("selection.limit", 3)
	v.SetDefault("selection.fallback_limit", 1)

	v.SetDefault("metrics.pushgateway_url", "")
	v.SetDefault("metrics.job", "paper_digest")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
}

// loadConfig flattens v into an explicit Config. Proxy settings come from
// the process environment.
func loadConfig(v *viper.Viper) types.Config {
	ai := func(k string) types.AIConfig {
		return types.AIConfig{
			Provider:    types.LLMProvider(v.GetString(k + ".provider")),
			Model:       v.GetString(k + ".model"),
			APIKey:      v.GetString(k + ".api_key"),
			BaseURL:     v.GetString(k + ".base_url"),
			Temperature: v.GetFloat64(k + ".temperature"),
			MaxRetries:  v.GetInt(k + ".max_retries"),
		}
	}

	return types.Config{
		Retrieval: types.RetrievalConfig{
			HTTPConfig: types.HTTPConfig{
				UserAgent: v.GetString("retrieval.user_agent"),
			},
			Proxy:          httputil.ProxyFromEnvironment(),
			MaxAttempts:    v.GetInt("retrieval.max_attempts"),
			InitialTimeout: v.GetDuration("retrieval.initial_timeout"),
			PapersDir:      v.GetString("papers_dir"),
		},
		Conversion: types.ConversionConfig{
			Backend:      types.ConversionBackend(v.GetString("conversion.backend")),
			APIKey:       v.GetString("conversion.api_key"),
			BaseURL:      v.GetString("conversion.base_url"),
			Model:        v.GetString("conversion.model"),
			PollInterval: v.GetDuration("conversion.poll_interval"),
			MaxPolls:     v.GetInt("conversion.max_polls"),
			Timeout:      v.GetDuration("conversion.timeout"),

			Image:            v.GetString("conversion.image"),
			ContainerRuntime: v.GetString("conversion.container_runtime"),
		},
		ImageHost: types.ImageHostConfig{
			APIKey:  v.GetString("image_host.api_key"),
			BaseURL: v.GetString("image_host.base_url"),
			Timeout: v.GetDuration("image_host.timeout"),
		},
		Summary: ai("summary"),
		Ranking: ai("ranking"),
		Discovery: types.DiscoveryConfig{
			HTTPConfig: types.HTTPConfig{
				Timeout:   v.GetDuration("discovery.timeout"),
				UserAgent: v.GetString("discovery.user_agent"),
			},
			BaseURL:     v.GetString("discovery.base_url"),
			TargetCount: v.GetInt("discovery.target_count"),
			MaxPages:    v.GetInt("discovery.max_pages"),
			PageDelay:   v.GetDuration("discovery.page_delay"),
		},
		Selection: types.SelectionConfig{
			CandidatePool: v.GetInt("selection.candidate_pool"),
			Limit:         v.GetInt("selection.limit"),
			FallbackLimit: v.GetInt("selection.fallback_limit"),
		},
		Metrics: types.MetricsConfig{
			PushgatewayURL: v.GetString("metrics.pushgateway_url"),
			Job:            v.GetString("metrics.job"),
		},
		Log: types.LogConfig{
			Level:  v.GetString("log.level"),
			Pretty: v.GetBool("log.pretty"),
		},
		CatalogPath:  v.GetString("catalog_path"),
		SummariesDir: v.GetString("summaries_dir"),
	}
}
