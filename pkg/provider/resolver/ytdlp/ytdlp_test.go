package ytdlp

import (
	"context"
	"errors"
	"io"
	"slices"
	"strings"
	"testing"

	"github.com/MrWong99/songbot/pkg/provider/resolver"
)

type fakeDecoder struct{}

func (fakeDecoder) Open(context.Context, string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader("")), nil
}

// newTestProvider returns a Provider whose command runner returns out/err
// and records the arguments it was called with.
func newTestProvider(out string, err error) (*Provider, *[]string) {
	var got []string
	p := New(WithPath("/opt/yt-dlp"), WithDecoder(fakeDecoder{}))
	p.run = func(_ context.Context, name string, args ...string) ([]byte, error) {
		got = append([]string{name}, args...)
		return []byte(out), err
	}
	return p, &got
}

func TestResolve(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		out        string
		wantTitle  string
		wantURL    string
		wantStream string
	}{
		{
			name:       "top-level url",
			out:        `{"id":"abc","title":"Never Gonna","webpage_url":"https://www.youtube.com/watch?v=abc","url":"https://cdn.example/abc"}`,
			wantTitle:  "Never Gonna",
			wantURL:    "https://www.youtube.com/watch?v=abc",
			wantStream: "https://cdn.example/abc",
		},
		{
			name:       "falls back to first audio format",
			out:        `{"title":"T","webpage_url":"https://w","formats":[{"url":"https://video","acodec":"none"},{"url":"https://audio","acodec":"opus"}]}`,
			wantTitle:  "T",
			wantURL:    "https://w",
			wantStream: "https://audio",
		},
		{
			name:       "missing metadata",
			out:        `{"url":"https://cdn.example/x"}`,
			wantStream: "https://cdn.example/x",
		},
		{
			name:       "multiple search results",
			out:        "{\"title\":\"first\",\"url\":\"https://1\"}\n{\"title\":\"second\",\"url\":\"https://2\"}\n",
			wantTitle:  "first",
			wantStream: "https://1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p, _ := newTestProvider(tt.out, nil)
			src, err := p.Resolve(t.Context(), "ytsearch:q")
			if err != nil {
				t.Fatalf("Resolve: %v", err)
			}
			tr := src.Track()
			if tr.Title != tt.wantTitle {
				t.Errorf("Title = %q, want %q", tr.Title, tt.wantTitle)
			}
			if tr.SourceURL != tt.wantURL {
				t.Errorf("SourceURL = %q, want %q", tr.SourceURL, tt.wantURL)
			}
			ss, ok := src.(*resolver.StreamSource)
			if !ok {
				t.Fatalf("source type %T, want *resolver.StreamSource", src)
			}
			if ss.StreamURL() != tt.wantStream {
				t.Errorf("StreamURL = %q, want %q", ss.StreamURL(), tt.wantStream)
			}
		})
	}
}

func TestResolve_Arguments(t *testing.T) {
	t.Parallel()

	p, got := newTestProvider(`{"url":"u"}`, nil)
	if _, err := p.Resolve(t.Context(), "-rf /"); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	args := *got
	if args[0] != "/opt/yt-dlp" {
		t.Errorf("binary = %q, want /opt/yt-dlp", args[0])
	}
	// The query must come after "--" so it is never parsed as a flag.
	i := slices.Index(args, "--")
	if i < 0 || args[i+1] != "-rf /" {
		t.Errorf("query not passed positionally: %v", args)
	}
}

func TestResolve_Errors(t *testing.T) {
	t.Parallel()

	runErr := errors.New("exit status 1")
	tests := []struct {
		name    string
		out     string
		err     error
		wantErr error
	}{
		{name: "empty output", out: "  \n", wantErr: resolver.ErrNoResults},
		{name: "command failure", err: runErr, wantErr: runErr},
		{name: "bad json", out: "{not json"},
		{name: "no stream", out: `{"title":"x","formats":[{"url":"v","acodec":"none"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p, _ := newTestProvider(tt.out, tt.err)
			_, err := p.Resolve(t.Context(), "q")
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
