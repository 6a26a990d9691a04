package transport

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/HerbHall/textlens/pkg/llm"
)

// ollamaChecklist is appended to every Ollama connection failure.
const ollamaChecklist = "Please check:\n" +
	"1. The Ollama service is running\n" +
	"2. The IP address and port are correct\n" +
	"3. The network is reachable\n" +
	"4. The firewall allows the connection"

// mapError translates a failed http.Client.Do into the llm error taxonomy.
// Cancellation by the caller is returned unchanged so it never becomes an
// Error state.
func (c *Client) mapError(ctx context.Context, target llm.Target, err error) error {
	if ctxErr := ctx.Err(); errors.Is(ctxErr, context.Canceled) {
		return ctxErr
	}

	ne := &llm.NetworkError{Kind: target.Kind, Err: unwrapURLError(err)}
	if target.Kind == llm.KindOllama {
		ne.Hint = ollamaChecklist
		if c.diagnoser != nil {
			dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.DiagnoseTimeout)
			if found := c.diagnoser.Diagnose(dctx, target); found != "" {
				ne.Hint += "\n\n" + found
			}
			cancel()
		}
	}

	c.logger.Warn("request failed",
		zap.String("kind", target.Kind.String()),
		zap.String("url", target.URL()),
		zap.Error(ne.Err),
	)
	return ne
}

// unwrapURLError drops the "Post \"url\":" wrapper net/http adds; the
// URL is already known to the caller.
func unwrapURLError(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) && ue.Err != nil {
		return ue.Err
	}
	return err
}

// statusError reads a bounded slice of the error body and classifies it.
func (c *Client) statusError(resp *http.Response) error {
	limit := c.cfg.MaxErrorBody
	if limit <= 0 {
		limit = 1 << 16
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, limit))
	body := strings.TrimSpace(strings.ToValidUTF8(string(raw), string(utf8.RuneError)))

	apiErr := llm.NewAPIError(resp.StatusCode, body)
	c.logger.Warn("provider returned error status",
		zap.Int("status", resp.StatusCode),
		zap.String("code", apiErr.Code),
		zap.Int("body_bytes", len(raw)),
	)
	return apiErr
}
