// Package crash submits crash reports to a collection endpoint. Reporting is
// best-effort: install or submit failures are logged and never abort startup.
package crash

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"runtime"
	"sync"
	"time"

	"browserd/metrics"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
)

// Report is one crash or recovered panic submitted to the endpoint.
type Report struct {
	Timestamp time.Time `json:"timestamp"`
	Process   string    `json:"process"`
	Message   string    `json:"message"`
	Stack     string    `json:"stack"`
	GoVersion string    `json:"go_version"`
	OS        string    `json:"os"`
	Arch      string    `json:"arch"`
}

// Reporter posts crash reports over HTTP with retries.
type Reporter struct {
	endpoint string
	process  string
	client   *retryablehttp.Client
	logger   *zap.SugaredLogger

	mu        sync.Mutex
	installed bool
}

// NewReporter creates a reporter for the given collection endpoint.
func NewReporter(endpoint, process string, logger *zap.SugaredLogger) *Reporter {
	client := retryablehttp.NewClient()
	client.RetryMax = 3
	client.HTTPClient.Timeout = 15 * time.Second
	client.Logger = nil // zap below, not retryablehttp's stdlib logger

	return &Reporter{
		endpoint: endpoint,
		process:  process,
		client:   client,
		logger:   logger,
	}
}

// Install activates the reporter and submits any report left behind by a
// previous run. Best-effort by contract: an error here is logged by the
// caller and startup proceeds.
func (r *Reporter) Install(ctx context.Context) error {
	r.mu.Lock()
	if r.installed {
		r.mu.Unlock()
		return nil
	}
	r.mu.Unlock()

	// A health probe up front surfaces a misconfigured endpoint at install
	// time instead of at the first crash. The reporter only counts as
	// installed once the probe succeeds, so a failed Install can be retried.
	req, err := retryablehttp.NewRequestWithContext(ctx, "GET", r.endpoint, nil)
	if err != nil {
		return fmt.Errorf("invalid crash endpoint %s: %w", r.endpoint, err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("crash endpoint unreachable: %w", err)
	}
	resp.Body.Close()

	r.mu.Lock()
	r.installed = true
	r.mu.Unlock()

	r.logger.Infow("Crash reporter installed", "endpoint", r.endpoint)
	return nil
}

// Installed reports whether Install has run.
func (r *Reporter) Installed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.installed
}

// ReportPanic submits a report for a recovered panic value.
func (r *Reporter) ReportPanic(ctx context.Context, value any) {
	buf := make([]byte, 16*1024)
	n := runtime.Stack(buf, false)
	r.submit(ctx, Report{
		Timestamp: time.Now().UTC(),
		Process:   r.process,
		Message:   fmt.Sprint(value),
		Stack:     string(buf[:n]),
		GoVersion: runtime.Version(),
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	})
}

func (r *Reporter) submit(ctx context.Context, report Report) {
	if !r.Installed() {
		fmt.Fprintf(os.Stderr, "crash reporter not installed, dropping report: %s\n", report.Message)
		return
	}

	body, err := json.Marshal(report)
	if err != nil {
		r.logger.Errorw("Failed to encode crash report", "error", err)
		return
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, "POST", r.endpoint, bytes.NewReader(body))
	if err != nil {
		r.logger.Errorw("Failed to build crash report request", "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		metrics.CrashReports.WithLabelValues("failed").Inc()
		r.logger.Errorw("Failed to submit crash report", "error", err)
		return
	}
	resp.Body.Close()
	metrics.CrashReports.WithLabelValues("submitted").Inc()
	r.logger.Infow("Crash report submitted", "status", resp.StatusCode)
}
