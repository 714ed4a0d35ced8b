package docs

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/exec"
	"runtime"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/fsnotify/fsnotify"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Preview serves the built site locally and rebuilds it whenever the
// documentation source changes.
type Preview struct {
	builder *Builder
	port    int

	registry      *prometheus.Registry
	rebuilds      *prometheus.CounterVec
	requestsTotal prometheus.Counter
}

// NewPreview creates a Preview around an existing Builder.
func NewPreview(builder *Builder, port int) *Preview {
	registry := prometheus.NewRegistry()
	p := &Preview{
		builder:  builder,
		port:     port,
		registry: registry,
		rebuilds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "projops",
			Name:      "docs_rebuilds_total",
			Help:      "Documentation rebuilds by outcome",
		}, []string{"result"}),
		requestsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "projops",
			Name:      "docs_requests_total",
			Help:      "Requests served by the docs preview server",
		}),
	}
	registry.MustRegister(p.rebuilds, p.requestsTotal)
	return p
}

// Serve builds the site, then serves it on the configured port until ctx is
// cancelled. Source changes trigger a rebuild. When openBrowser is set, the
// operator's browser is pointed at the site once the server answers.
func (p *Preview) Serve(ctx context.Context, openBrowser bool) error {
	site, err := p.builder.Build()
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(p.builder.cfg.DocsSourcePath()); err != nil {
		return fmt.Errorf("watching %s: %w", p.builder.cfg.DocsSourcePath(), err)
	}
	go p.watch(ctx, watcher)

	mux := http.NewServeMux()
	fileServer := http.FileServer(http.Dir(site.Dir))
	mux.Handle("/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p.requestsTotal.Inc()
		fileServer.ServeHTTP(w, r)
	}))
	mux.Handle("/metrics", promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{}))

	addr := fmt.Sprintf("127.0.0.1:%d", p.port)
	server := &http.Server{Addr: addr, Handler: mux}
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	url := "http://" + addr + "/"
	slog.Info("docs preview serving", "url", url, "dir", site.Dir)
	if openBrowser {
		go func() {
			if err := waitReady(ctx, addr); err == nil {
				LaunchBrowser(url)
			}
		}()
	}

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		return fmt.Errorf("preview server: %w", err)
	}
}

// watch rebuilds the site on write/create/remove events, debounced so a
// burst of editor saves triggers a single rebuild.
func (p *Preview) watch(ctx context.Context, watcher *fsnotify.Watcher) {
	var timer *time.Timer
	rebuild := func() {
		if _, err := p.builder.Build(); err != nil {
			p.rebuilds.WithLabelValues("failure").Inc()
			slog.Error("docs rebuild failed", "error", err)
			return
		}
		p.rebuilds.WithLabelValues("success").Inc()
	}
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(200*time.Millisecond, rebuild)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("docs watcher error", "error", err)
		}
	}
}

// waitReady polls the listener with exponential backoff until it accepts
// connections, so the browser never opens against a dead port.
func waitReady(ctx context.Context, addr string) error {
	policy := backoff.WithContext(backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(50*time.Millisecond),
		backoff.WithMaxElapsedTime(5*time.Second),
	), ctx)
	return backoff.Retry(func() error {
		conn, err := net.DialTimeout("tcp", addr, time.Second)
		if err != nil {
			return err
		}
		return conn.Close()
	}, policy)
}

// LaunchBrowser opens url with the platform's default opener. Failures are
// logged, never fatal.
func LaunchBrowser(url string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	if err := cmd.Start(); err != nil {
		slog.Warn("could not open browser", "url", url, "error", err)
	}
}
