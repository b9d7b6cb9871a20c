// Package ffmpeg decodes remote media into the PCM format songbot plays:
// interleaved signed 16-bit little-endian samples at [audio.SampleRate] Hz with
// [audio.Channels] channels. Decoding runs in an external ffmpeg process whose
// stdout is handed back to the caller as a stream.
package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"sync"

	"github.com/MrWong99/songbot/pkg/audio"
)

// DefaultPath is the ffmpeg binary looked up on $PATH when none is configured.
const DefaultPath = "ffmpeg"

// Transcoder starts ffmpeg processes that turn a media URL into PCM.
// The zero value uses [DefaultPath].
//
// Transcoder is safe for concurrent use.
type Transcoder struct {
	// Path is the ffmpeg executable. Empty means [DefaultPath].
	Path string
}

// New returns a Transcoder that runs the ffmpeg binary at path.
func New(path string) *Transcoder {
	return &Transcoder{Path: path}
}

// Args returns the ffmpeg arguments used to decode input. Network inputs are
// reconnected on transient failures.
func (t *Transcoder) Args(input string) []string {
	return []string{
		"-reconnect", "1",
		"-reconnect_streamed", "1",
		"-reconnect_delay_max", "5",
		"-i", input,
		"-vn",
		"-f", "s16le",
		"-ar", strconv.Itoa(audio.SampleRate),
		"-ac", strconv.Itoa(audio.Channels),
		"-loglevel", "warning",
		"pipe:1",
	}
}

// Open starts decoding input and returns the PCM stream. Closing the stream,
// or cancelling ctx, terminates the ffmpeg process.
func (t *Transcoder) Open(ctx context.Context, input string) (io.ReadCloser, error) {
	path := t.Path
	if path == "" {
		path = DefaultPath
	}

	cmd := exec.CommandContext(ctx, path, t.Args(input)...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg: stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("ffmpeg: start %q: %w", path, err)
	}
	return &stream{ctx: ctx, cmd: cmd, stdout: stdout}, nil
}

// stream is the stdout of a running ffmpeg process.
type stream struct {
	ctx    context.Context
	cmd    *exec.Cmd
	stdout io.ReadCloser

	closeOnce sync.Once
	closeErr  error
}

func (s *stream) Read(p []byte) (int, error) {
	return s.stdout.Read(p)
}

// Close kills the process if it is still running and reaps it. A process
// killed by Close or by context cancellation is not reported as an error.
func (s *stream) Close() error {
	s.closeOnce.Do(func() {
		if s.cmd.Process != nil {
			_ = s.cmd.Process.Kill()
		}
		err := s.cmd.Wait()
		var exitErr *exec.ExitError
		if err != nil && !errors.As(err, &exitErr) && s.ctx.Err() == nil {
			s.closeErr = fmt.Errorf("ffmpeg: wait: %w", err)
		}
	})
	return s.closeErr
}
