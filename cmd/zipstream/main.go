// Command zipstream runs the ZIP-synthesizing HTTP gateway: it proxies a
// manifest service and, for responses marked X-Zip-Stream, serves a ZIP
// archive built on the fly from the manifest's entries with full
// byte-range support.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/gaby/zipstream/internal/config"
	"github.com/gaby/zipstream/internal/gatewaymetrics"
	"github.com/gaby/zipstream/internal/upstream"
)

func main() {
	var cfgPath, saveConfigPath string
	var upstreamURL, stripPrefix, headerValue, listen string

	flag.StringVar(&cfgPath, "config", "", "optional path to a JSON config file; flags override its values")
	flag.StringVar(&saveConfigPath, "save-config", "", "write the resolved configuration to this path and exit, without starting the server")
	flag.StringVar(&upstreamURL, "upstream", "", "upstream server that provides zip file manifests (required)")
	flag.StringVar(&stripPrefix, "strip-prefix", "", "remove a prefix from the URL path before proxying to the upstream server")
	flag.StringVar(&headerValue, "header-value", "", "value passed in the X-Via-Zip-Stream header on the request to the upstream server")
	flag.StringVar(&listen, "listen", "", "IP:port to listen for HTTP connections")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config load: %v", err)
	}
	if upstreamURL != "" {
		cfg.Upstream = upstreamURL
	}
	if stripPrefix != "" {
		cfg.StripPrefix = stripPrefix
	}
	if headerValue != "" {
		cfg.HeaderValue = headerValue
	}
	if listen != "" {
		cfg.Listen = listen
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config validate: %v", err)
	}

	if saveConfigPath != "" {
		if err := config.Save(saveConfigPath, cfg); err != nil {
			log.Fatalf("config save: %v", err)
		}
		log.Printf("zipstream: wrote resolved config to %s", saveConfigPath)
		return
	}

	ctx := context.Background()
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		log.Fatalf("aws config: %v", err)
	}
	s3Client := s3.NewFromConfig(awsCfg)

	proxy := upstream.NewProxy(
		upstream.Config{Upstream: cfg.Upstream, StripPrefix: cfg.StripPrefix, HeaderValue: cfg.HeaderValue},
		&http.Client{Timeout: 30 * time.Second},
		s3Client,
	)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", handleHealthz)
	mux.Handle("/", proxy)

	log.Printf("zipstream: listening on %s, upstream=%s strip_prefix=%q", cfg.Listen, cfg.Upstream, cfg.StripPrefix)
	if err := http.ListenAndServe(cfg.Listen, mux); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

var startedAt = time.Now()

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	metrics := gatewaymetrics.Get()
	_ = json.NewEncoder(w).Encode(map[string]any{
		"ok":              true,
		"time":            time.Now().UTC().Format(time.RFC3339),
		"uptime_seconds":  int64(time.Since(startedAt).Seconds()),
		"active_requests": metrics.ActiveRequests,
		"bytes_served":    metrics.BytesServed,
		"request_errors":  metrics.RequestErrors,
	})
}
