package sse

import (
	"context"
	"errors"
	"io"
	"reflect"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func newTestParser() *Parser {
	return NewParser(DefaultConfig(), zap.NewNop())
}

func collect(t *testing.T, p *Parser, input string) ([]string, error) {
	t.Helper()
	var out []string
	for frag, err := range p.Fragments(context.Background(), strings.NewReader(input)) {
		if err != nil {
			return out, err
		}
		out = append(out, frag)
	}
	return out, nil
}

func TestFragments(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name: "basic with done",
			input: "data: {\"choices\":[{\"delta\":{\"content\":\"Hel\"}}]}\n" +
				"data: {\"choices\":[{\"delta\":{\"content\":\"lo\"}}]}\n" +
				"data: [DONE]\n",
			want: []string{"Hel", "lo"},
		},
		{
			name: "malformed line skipped",
			input: "data: {\"choices\":[{\"delta\":{\"content\":\"a\"}}]}\n" +
				"data: {not json\n" +
				"data: {\"choices\":[{\"delta\":{\"content\":\"b\"}}]}\n" +
				"data: [DONE]\n",
			want: []string{"a", "b"},
		},
		{
			name: "eof without done",
			input: "data: {\"choices\":[{\"delta\":{\"content\":\"x\"}}]}\n\n" +
				"data: {\"choices\":[{\"delta\":{\"content\":\"y\"}}]}",
			want: []string{"x", "y"},
		},
		{
			name: "ignores comments, fields and blanks",
			input: ": keep-alive\n\n" +
				"event: message\n" +
				"id: 1\n" +
				"retry: 1000\n" +
				"data: {\"choices\":[{\"delta\":{\"content\":\"ok\"}}]}\n\n" +
				"data: [DONE]\n",
			want: []string{"ok"},
		},
		{
			name: "role only and empty content emit nothing",
			input: "data: {\"choices\":[{\"delta\":{\"role\":\"assistant\"}}]}\n" +
				"data: {\"choices\":[{\"delta\":{\"content\":\"\"}}]}\n" +
				"data: {\"choices\":[]}\n" +
				"data: {\"choices\":[{\"delta\":{\"content\":\"z\"},\"finish_reason\":\"stop\"}]}\n" +
				"data: [DONE]\n",
			want: []string{"z"},
		},
		{
			name: "stops at done",
			input: "data: {\"choices\":[{\"delta\":{\"content\":\"1\"}}]}\n" +
				"data: [DONE]\n" +
				"data: {\"choices\":[{\"delta\":{\"content\":\"2\"}}]}\n",
			want: []string{"1"},
		},
		{
			name: "crlf line endings",
			input: "data: {\"choices\":[{\"delta\":{\"content\":\"w\"}}]}\r\n\r\n" +
				"data: [DONE]\r\n",
			want: []string{"w"},
		},
		{
			name:  "created as string",
			input: "data: {\"created\":\"1700000000\",\"choices\":[{\"delta\":{\"content\":\"A\"}}]}\n",
			want:  []string{"A"},
		},
		{
			name:  "created as float",
			input: "data: {\"created\":1.7e9,\"choices\":[{\"delta\":{\"content\":\"B\"}}]}\n",
			want:  []string{"B"},
		},
		{
			name:  "numeric id and null index",
			input: "data: {\"id\":123,\"model\":null,\"choices\":[{\"index\":null,\"delta\":{\"content\":\"C\"},\"finish_reason\":0}]}\n",
			want:  []string{"C"},
		},
		{
			name:  "prefix without space ignored",
			input: "data:{\"choices\":[{\"delta\":{\"content\":\"no\"}}]}\n",
			want:  nil,
		},
		{
			name:  "empty body",
			input: "",
			want:  nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := collect(t, newTestParser(), tt.input)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("fragments = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFragments_StopsReadingAfterDone(t *testing.T) {
	r := io.MultiReader(
		strings.NewReader("data: {\"choices\":[{\"delta\":{\"content\":\"a\"}}]}\ndata: [DONE]\n"),
		errReader{errors.New("read past terminator")},
	)
	for _, err := range newTestParser().Fragments(context.Background(), r) {
		if err != nil {
			t.Fatalf("parser read past [DONE]: %v", err)
		}
	}
}

func TestFragments_ConsumerBreak(t *testing.T) {
	input := "data: {\"choices\":[{\"delta\":{\"content\":\"a\"}}]}\n" +
		"data: {\"choices\":[{\"delta\":{\"content\":\"b\"}}]}\n"
	var got []string
	for frag, err := range newTestParser().Fragments(context.Background(), strings.NewReader(input)) {
		if err != nil {
			t.Fatal(err)
		}
		got = append(got, frag)
		break
	}
	if !reflect.DeepEqual(got, []string{"a"}) {
		t.Errorf("got %q", got)
	}
}

func TestFragments_Cancellation(t *testing.T) {
	pr, pw := io.Pipe()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		io.WriteString(pw, "data: {\"choices\":[{\"delta\":{\"content\":\"first\"}}]}\n") //nolint:errcheck
		<-ctx.Done()
		io.WriteString(pw, "data: {\"choices\":[{\"delta\":{\"content\":\"late\"}}]}\n") //nolint:errcheck
		pw.Close()
	}()

	var got []string
	var gotErr error
	for frag, err := range newTestParser().Fragments(ctx, pr) {
		if err != nil {
			gotErr = err
			break
		}
		got = append(got, frag)
		cancel()
	}

	if !reflect.DeepEqual(got, []string{"first"}) {
		t.Errorf("fragments = %q, want [first]", got)
	}
	if !errors.Is(gotErr, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", gotErr)
	}
}

func TestFragments_LineTooLong(t *testing.T) {
	p := NewParser(Config{MaxLineBytes: 32}, zap.NewNop())
	input := "data: {\"choices\":[{\"delta\":{\"content\":\"" + strings.Repeat("x", 64) + "\"}}]}\n"
	_, err := collect(t, p, input)
	if err == nil {
		t.Fatal("expected error for oversized line")
	}
}

func TestFragments_ReadError(t *testing.T) {
	r := io.MultiReader(
		strings.NewReader("data: {\"choices\":[{\"delta\":{\"content\":\"a\"}}]}\n"),
		errReader{errors.New("connection reset")},
	)
	var got []string
	var gotErr error
	for frag, err := range newTestParser().Fragments(context.Background(), r) {
		if err != nil {
			gotErr = err
			continue
		}
		got = append(got, frag)
	}
	if !reflect.DeepEqual(got, []string{"a"}) {
		t.Errorf("fragments = %q", got)
	}
	if gotErr == nil || !strings.Contains(gotErr.Error(), "connection reset") {
		t.Errorf("err = %v", gotErr)
	}
}

func TestDecodeCompletion(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "json body",
			input: `{"id":"c1","choices":[{"index":0,"message":{"role":"assistant","content":"Hello there"},"finish_reason":"stop"}]}`,
			want:  []string{"Hello there"},
		},
		{
			name:  "off-type metadata",
			input: `{"id":7,"created":"1700000000","usage":null,"choices":[{"index":"0","message":{"role":"assistant","content":"kept"}}]}`,
			want:  []string{"kept"},
		},
		{
			name:  "empty content",
			input: `{"choices":[{"message":{"role":"assistant","content":""}}]}`,
			want:  nil,
		},
		{
			name: "server streamed anyway",
			input: "data: {\"choices\":[{\"delta\":{\"content\":\"s1\"}}]}\n\n" +
				"data: {\"choices\":[{\"delta\":{\"content\":\"s2\"}}]}\n\ndata: [DONE]\n",
			want: []string{"s1", "s2"},
		},
		{
			name:  "leading newline before sse",
			input: "\n\ndata: {\"choices\":[{\"delta\":{\"content\":\"n\"}}]}\n",
			want:  []string{"n"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			for frag, err := range newTestParser().DecodeCompletion(context.Background(), strings.NewReader(tt.input)) {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				got = append(got, frag)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("fragments = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDecodeCompletion_InvalidJSON(t *testing.T) {
	var gotErr error
	for _, err := range newTestParser().DecodeCompletion(context.Background(), strings.NewReader("<html>oops</html>")) {
		gotErr = err
	}
	if gotErr == nil {
		t.Fatal("expected decode error")
	}
}

type errReader struct{ err error }

func (e errReader) Read([]byte) (int, error) { return 0, e.err }
