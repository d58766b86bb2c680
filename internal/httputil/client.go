// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httputil

import (
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/http/httpproxy"

	"github.com/pdiddy/paper-digest/pkg/types"
)

// DisableProxyEnv is the environment variable that opts out of proxy use.
const DisableProxyEnv = "PAPER_DIGEST_DISABLE_PROXY"

// ProxyFromEnvironment reads proxy settings from the process environment.
// HTTPS_PROXY, HTTP_PROXY and NO_PROXY are honored in either case; a truthy
// PAPER_DIGEST_DISABLE_PROXY disables proxies regardless of the others.
func ProxyFromEnvironment() types.ProxyConfig {
	return proxyFromGetenv(os.Getenv)
}

func proxyFromGetenv(getenv func(string) string) types.ProxyConfig {
	if disabled, err := strconv.ParseBool(strings.TrimSpace(getenv(DisableProxyEnv))); err == nil && disabled {
		return types.ProxyConfig{Disabled: true}
	}
	first := func(keys ...string) string {
		for _, k := range keys {
			if v := getenv(k); v != "" {
				return v
			}
		}
		return ""
	}
	return types.ProxyConfig{
		HTTPProxy:  first("HTTP_PROXY", "http_proxy"),
		HTTPSProxy: first("HTTPS_PROXY", "https_proxy"),
		NoProxy:    first("NO_PROXY", "no_proxy"),
	}
}

// ProxyFunc returns a proxy selector for an http.Transport, or nil when
// proxying is disabled or unconfigured. Requests to loopback hosts are
// never proxied.
func ProxyFunc(cfg types.ProxyConfig) func(*http.Request) (*url.URL, error) {
	if !cfg.Enabled() {
		return nil
	}
	pc := &httpproxy.Config{
		HTTPProxy:  cfg.HTTPProxy,
		HTTPSProxy: cfg.HTTPSProxy,
		NoProxy:    cfg.NoProxy,
	}
	fn := pc.ProxyFunc()
	return func(req *http.Request) (*url.URL, error) {
		return fn(req.URL)
	}
}

// NewClient builds an HTTP client with the given timeout. When useProxy is
// false, or the proxy config is disabled, the client connects directly.
func NewClient(timeout time.Duration, proxy types.ProxyConfig, useProxy bool) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = nil
	if useProxy {
		transport.Proxy = ProxyFunc(proxy)
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}
