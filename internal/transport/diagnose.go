package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"runtime"
	"strings"
	"time"

	probing "github.com/prometheus-community/pro-bing"
	"go.uber.org/zap"

	"github.com/HerbHall/textlens/pkg/llm"
)

// OllamaDiagnoser checks why an Ollama endpoint could not be reached: it
// pings the host over ICMP, then probes the native Ollama API root and
// model list.
type OllamaDiagnoser struct {
	httpClient  *http.Client
	pingCount   int
	pingTimeout time.Duration
	logger      *zap.Logger

	// ping is swapped out in tests; ICMP needs privileges on most CI hosts.
	ping func(ctx context.Context, host string) (alive bool, rtt time.Duration)
}

// NewOllamaDiagnoser creates an OllamaDiagnoser with short probe timeouts.
func NewOllamaDiagnoser(logger *zap.Logger) *OllamaDiagnoser {
	d := &OllamaDiagnoser{
		httpClient:  &http.Client{Timeout: 2 * time.Second},
		pingCount:   2,
		pingTimeout: 2 * time.Second,
		logger:      logger,
	}
	d.ping = d.icmpPing
	return d
}

// Diagnose returns a short findings list for target, or "" when the base
// URL cannot be parsed.
func (d *OllamaDiagnoser) Diagnose(ctx context.Context, target llm.Target) string {
	u, err := url.Parse(target.BaseURL)
	if err != nil || u.Hostname() == "" {
		return ""
	}
	host := u.Hostname()

	var findings []string
	if alive, rtt := d.ping(ctx, host); alive {
		findings = append(findings, fmt.Sprintf("Host %s answers ping (%s).", host, rtt.Round(time.Millisecond)))
	} else {
		findings = append(findings, fmt.Sprintf("Host %s does not answer ping.", host))
	}

	root := u.Scheme + "://" + u.Host
	if err := d.heartbeat(ctx, root); err != nil {
		findings = append(findings, fmt.Sprintf("Ollama API at %s is not responding: %v", root, err))
	} else {
		models, err := d.listModels(ctx, root)
		switch {
		case err != nil:
			findings = append(findings, fmt.Sprintf("Ollama API at %s is up but listing models failed: %v", root, err))
		case len(models) == 0:
			findings = append(findings, fmt.Sprintf("Ollama API at %s is up but no models are installed.", root))
		default:
			findings = append(findings, fmt.Sprintf("Ollama API at %s is up with %d model(s): %s.",
				root, len(models), strings.Join(models, ", ")))
		}
	}

	d.logger.Debug("ollama diagnostics", zap.String("host", host), zap.Strings("findings", findings))
	return "Diagnostics:\n- " + strings.Join(findings, "\n- ")
}

func (d *OllamaDiagnoser) icmpPing(ctx context.Context, host string) (bool, time.Duration) {
	pinger, err := probing.NewPinger(host)
	if err != nil {
		d.logger.Debug("failed to create pinger", zap.String("host", host), zap.Error(err))
		return false, 0
	}
	pinger.Count = d.pingCount
	pinger.Timeout = d.pingTimeout
	pinger.SetPrivileged(runtime.GOOS == "windows")

	done := make(chan struct{})
	go func() {
		defer close(done)
		if runErr := pinger.Run(); runErr != nil {
			d.logger.Debug("ping failed", zap.String("host", host), zap.Error(runErr))
		}
	}()

	select {
	case <-done:
	case <-ctx.Done():
		pinger.Stop()
		<-done
		return false, 0
	}

	stats := pinger.Statistics()
	if stats.PacketsRecv > 0 {
		return true, stats.AvgRtt
	}
	return false, 0
}

func (d *OllamaDiagnoser) heartbeat(ctx context.Context, root string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, root+"/", http.NoBody)
	if err != nil {
		return err
	}
	resp, err := d.httpClient.Do(req)
	if err != nil {
		return unwrapURLError(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return nil
}

func (d *OllamaDiagnoser) listModels(ctx context.Context, root string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, root+"/api/tags", http.NoBody)
	if err != nil {
		return nil, err
	}
	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, unwrapURLError(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var result struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode list response: %w", err)
	}
	names := make([]string, len(result.Models))
	for i := range result.Models {
		names[i] = result.Models[i].Name
	}
	return names, nil
}
