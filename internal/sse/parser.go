// Package sse decodes chat-completions server-sent-event streams into a
// lazy sequence of text fragments.
package sse

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/HerbHall/textlens/pkg/llm"
)

const (
	dataPrefix  = "data: "
	doneMarker  = "[DONE]"
	initialBuf  = 64 << 10
	maxLogBytes = 256
	peekBytes   = 64
)

var malformedLines = prometheus.NewCounter(prometheus.CounterOpts{
	Name: "textlens_sse_malformed_lines_total",
	Help: "SSE data lines skipped because the payload did not decode.",
})

func init() {
	prometheus.MustRegister(malformedLines)
}

// Compile-time interface guard.
var _ llm.FragmentSource = (*Parser)(nil)

// Parser turns an SSE response body into text fragments.
type Parser struct {
	cfg    Config
	logger *zap.Logger
}

// NewParser creates a Parser. A zero MaxLineBytes uses the default.
func NewParser(cfg Config, logger *zap.Logger) *Parser {
	if cfg.MaxLineBytes <= 0 {
		cfg.MaxLineBytes = DefaultConfig().MaxLineBytes
	}
	return &Parser{cfg: cfg, logger: logger}
}

// Fragments reads body line by line and yields choices[0].delta.content of
// each decodable "data: " line. Blank lines, comments and other SSE fields
// are ignored. "data: [DONE]" ends the sequence; so does EOF. A malformed
// payload is logged and skipped.
//
// The sequence is single-pass. ctx is checked before each line; when it is
// done the sequence yields ctx.Err() and stops. A read failure is yielded
// once as the final element. The caller owns body and must close it.
func (p *Parser) Fragments(ctx context.Context, body io.Reader) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		sc := bufio.NewScanner(body)
		sc.Buffer(make([]byte, 0, min(initialBuf, p.cfg.MaxLineBytes)), p.cfg.MaxLineBytes)

		line := 0
		for sc.Scan() {
			line++
			if err := ctx.Err(); err != nil {
				yield("", err)
				return
			}

			payload, ok := strings.CutPrefix(sc.Text(), dataPrefix)
			if !ok {
				continue
			}
			if strings.TrimSpace(payload) == doneMarker {
				return
			}

			frag, err := decodeChunk(payload)
			if err != nil {
				malformedLines.Inc()
				p.logger.Debug("skipping malformed sse line",
					zap.Error(&llm.ParseError{Line: line, Payload: clip(payload), Err: err}),
				)
				continue
			}
			if frag == "" {
				continue
			}
			if !yield(frag, nil) {
				return
			}
		}

		if err := sc.Err(); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				err = ctxErr
			}
			yield("", fmt.Errorf("read event stream: %w", err))
		}
	}
}

func decodeChunk(payload string) (string, error) {
	var chunk llm.ChatStreamChunk
	if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
		return "", err
	}
	return chunk.Content(), nil
}

// DecodeCompletion reads a non-streaming chat-completions body and yields
// choices[0].message.content as a single fragment. Some servers ignore
// "stream": false and answer with an event stream anyway; when the body
// starts like SSE it is handed to Fragments instead.
func (p *Parser) DecodeCompletion(ctx context.Context, body io.Reader) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		br := bufio.NewReader(body)
		head, _ := br.Peek(peekBytes)
		if looksLikeSSE(head) {
			for frag, err := range p.Fragments(ctx, br) {
				if !yield(frag, err) {
					return
				}
			}
			return
		}

		var resp llm.ChatCompletion
		if err := json.NewDecoder(br).Decode(&resp); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				err = ctxErr
			}
			yield("", fmt.Errorf("decode completion: %w", err))
			return
		}
		if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
			return
		}
		yield(resp.Choices[0].Message.Content, nil)
	}
}

func looksLikeSSE(head []byte) bool {
	head = bytes.TrimLeft(head, " \t\r\n")
	return bytes.HasPrefix(head, []byte("data:")) ||
		bytes.HasPrefix(head, []byte(":")) ||
		bytes.HasPrefix(head, []byte("event:"))
}

func clip(s string) string {
	if len(s) <= maxLogBytes {
		return s
	}
	return s[:maxLogBytes] + "..."
}
