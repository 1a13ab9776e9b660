// Package main provides the container healthcheck for the portfolio server.
// It probes a readiness URL and exits 0 on a 2xx response, 1 otherwise.
//
// Usage: healthcheck [-timeout 5s] [url]
//
// The URL defaults to $PORTFOLIO_HEALTHCHECK_URL, then to
// http://localhost:8080/readyz.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"
)

const defaultURL = "http://localhost:8080/readyz"

func main() {
	timeout := flag.Duration("timeout", 5*time.Second, "Request timeout")
	flag.Parse()

	url := flag.Arg(0)
	if url == "" {
		url = os.Getenv("PORTFOLIO_HEALTHCHECK_URL")
	}
	if url == "" {
		url = defaultURL
	}

	if err := probe(context.Background(), url, *timeout); err != nil {
		fmt.Fprintf(os.Stderr, "healthcheck failed: %v\n", err)
		os.Exit(1)
	}
}

func probe(ctx context.Context, url string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return nil
}
