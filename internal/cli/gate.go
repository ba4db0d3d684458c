package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/existflow/quizdesk/internal/api"
	"github.com/existflow/quizdesk/internal/auth"
	"github.com/existflow/quizdesk/internal/logger"
	"github.com/existflow/quizdesk/server"
)

var gateCmd = &cobra.Command{
	Use:   "gate",
	Short: "Run or probe the routing gate",
}

var gateServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the routing gate in front of the web frontend",
	RunE:  runGateServe,
}

var gateProbeCmd = &cobra.Command{
	Use:   "probe [path]",
	Short: "Request a page through the gate with the stored cookies",
	Long: `Request a page through the gate using the cookie mirror of the stored
session, and show whether the gate lets it through.

Example:
  quizdesk gate probe /dashboard --gate http://localhost:8080`,
	Args: cobra.MaximumNArgs(1),
	RunE: runGateProbe,
}

var (
	gateAddr     string
	gateUpstream string
	gateURL      string
)

func init() {
	gateCmd.AddCommand(gateServeCmd)
	gateCmd.AddCommand(gateProbeCmd)

	gateServeCmd.Flags().StringVar(&gateAddr, "addr", "", "Listen address (default from config)")
	gateServeCmd.Flags().StringVar(&gateUpstream, "upstream", "", "Frontend URL to proxy to (default from config)")
	gateProbeCmd.Flags().StringVar(&gateURL, "gate", "", "Gate base URL (default http://localhost<gate.addr>)")
}

func runGateServe(cmd *cobra.Command, args []string) error {
	addr, upstream := cfg.Gate.Addr, cfg.Gate.Upstream
	if gateAddr != "" {
		addr = gateAddr
	}
	if gateUpstream != "" {
		upstream = gateUpstream
	}
	return ServeGate(cmd.Context(), addr, upstream, cfg.API.BaseURL, cfg.API.Timeout)
}

// ServeGate runs the gate until ctx is cancelled or an interrupt arrives
func ServeGate(ctx context.Context, addr, upstream, apiBase string, timeout time.Duration) error {
	validator := auth.NewValidator(api.NewClient(apiBase, timeout))
	srv, err := server.New(upstream, validator)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("Gate shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func runGateProbe(cmd *cobra.Command, args []string) error {
	path := "/dashboard"
	if len(args) == 1 {
		path = args[0]
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	base := gateURL
	if base == "" {
		base = "http://localhost" + cfg.Gate.Addr
	}

	return withApp(cmd, func(ctx context.Context, a *app) error {
		client := &http.Client{
			Jar:     a.store.Jar(),
			Timeout: cfg.API.Timeout,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(base, "/")+path, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err != nil {
			return fmt.Errorf("cannot reach gate at %s: %w", base, err)
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode >= 300 && resp.StatusCode < 400:
			fmt.Printf("↪ %s redirects to %s\n", path, resp.Header.Get("Location"))
		case resp.StatusCode < 300:
			fmt.Printf("✅ %s allowed (%s)\n", path, resp.Status)
		default:
			fmt.Printf("⚠️  %s returned %s\n", path, resp.Status)
		}
		return nil
	})
}
