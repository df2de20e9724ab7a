// Package upstream hands requests that passed the gate to the UI that
// renders them.
package upstream

import (
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"

	"go.uber.org/zap"
)

// Handler proxies to the configured UI, or answers with a plain placeholder
// when none is configured.
type Handler struct {
	Profile string
	Log     *zap.Logger
	proxy   *httputil.ReverseProxy
}

// NewHandler parses rawURL. An empty rawURL selects the placeholder.
func NewHandler(rawURL, profile string, logger *zap.Logger) (*Handler, error) {
	h := &Handler{Profile: profile, Log: logger}
	if rawURL == "" {
		return h, nil
	}
	target, err := url.Parse(rawURL)
	if err != nil || target.Scheme == "" || target.Host == "" {
		return nil, fmt.Errorf("upstream_url %q must be an absolute URL", rawURL)
	}
	h.proxy = &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.SetXForwarded()
			// The UI builds absolute links from the public host.
			pr.Out.Host = pr.In.Host
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			logger.Error("upstream request failed",
				zap.String("path", r.URL.Path), zap.Error(err))
			http.Error(w, "Bad Gateway", http.StatusBadGateway)
		},
	}
	return h, nil
}

// ServeHTTP forwards the request unchanged.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.proxy != nil {
		h.proxy.ServeHTTP(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	fmt.Fprintf(w, "airodental %s: %s\n", h.Profile, r.URL.Path)
}
