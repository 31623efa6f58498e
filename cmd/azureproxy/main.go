// Copyright Azure OpenAI Proxy Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"

	"github.com/proxyapi/azure-openai-proxy/internal/metrics"
	"github.com/proxyapi/azure-openai-proxy/internal/proxy"
	"github.com/proxyapi/azure-openai-proxy/internal/upstream"
	"github.com/proxyapi/azure-openai-proxy/internal/version"
)

type (
	cmd struct {
		Version struct{} `cmd:"" help:"Show version."`
		Run     cmdRun   `cmd:"" default:"withargs" help:"Run the proxy server."`
	}
	cmdRun struct {
		UpstreamBaseURL        string `env:"UPSTREAM_BASE_URL" required:"" help:"Base URL of the upstream API."`
		UpstreamAPIKey         string `env:"UPSTREAM_API_KEY" required:"" help:"Credential sent to the upstream as the api-key header."`
		ListenAddr             string `env:"LISTEN_ADDR" default:":7000" help:"Address to listen on."`
		RegionTag              string `env:"REGION_TAG" default:"East US" help:"Value of the x-ms-region response header."`
		TotalTimeoutBufferedMS int    `env:"TOTAL_TIMEOUT_BUFFERED_MS" default:"30000" help:"Total deadline for buffered exchanges, in milliseconds."`
		TotalTimeoutStreamMS   int    `env:"TOTAL_TIMEOUT_STREAM_MS" default:"600000" help:"Total deadline for streaming exchanges, in milliseconds."`
		IdleTimeoutMS          int    `env:"IDLE_TIMEOUT_MS" default:"60000" help:"Maximum gap between two received stream bytes, in milliseconds."`
		MaxBodyBytes           int64  `env:"MAX_BODY_BYTES" default:"10485760" help:"Maximum incoming request body size in bytes."`
		SystemFingerprint      string `env:"SYSTEM_FINGERPRINT" default:"fp_custom_proxy" help:"Fallback system_fingerprint value."`
	}
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	doMain(ctx, os.Stdout, os.Stderr, os.Args[1:])
}

func doMain(ctx context.Context, stdout, stderr io.Writer, args []string) {
	var c cmd
	parser, err := kong.New(&c,
		kong.Name("azureproxy"),
		kong.Description("Azure OpenAI API compatibility proxy"),
		kong.Writers(stdout, stderr),
	)
	if err != nil {
		log.Fatalf("Error creating parser: %v", err)
	}
	kctx, err := parser.Parse(args)
	parser.FatalIfErrorf(err)
	switch kctx.Command() {
	case "version":
		_, _ = fmt.Fprintf(stdout, "azureproxy: %s\n", version.Version)
	case "run":
		logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{}))
		if err := run(ctx, c.Run, logger); err != nil {
			log.Fatalf("Error running proxy: %v", err)
		}
	default:
		panic("unreachable")
	}
}

func run(ctx context.Context, c cmdRun, logger *slog.Logger) error {
	upstreamClient := upstream.NewClient(upstream.Config{
		BaseURL:           c.UpstreamBaseURL,
		APIKey:            c.UpstreamAPIKey,
		StreamIdleTimeout: time.Duration(c.IdleTimeoutMS) * time.Millisecond,
	})
	server := proxy.NewServer(proxy.Config{
		Region:            c.RegionTag,
		SystemFingerprint: c.SystemFingerprint,
		MaxBodyBytes:      c.MaxBodyBytes,
		BufferedTimeout:   time.Duration(c.TotalTimeoutBufferedMS) * time.Millisecond,
		StreamTimeout:     time.Duration(c.TotalTimeoutStreamMS) * time.Millisecond,
	}, upstreamClient, metrics.New(), logger)

	httpServer := &http.Server{
		Addr:              c.ListenAddr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting proxy",
			slog.String("addr", c.ListenAddr),
			slog.String("upstream", c.UpstreamBaseURL),
			slog.String("version", version.Version),
		)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}
