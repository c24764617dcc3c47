// Package audio acquires voice recordings for the chat speech endpoint.
package audio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/hpungsan/juris/internal/errors"
)

// DefaultMaxBytes caps a single recording.
const DefaultMaxBytes int64 = 10 << 20

// Clip is a finished recording ready to upload.
type Clip struct {
	Name        string
	ContentType string
	Data        []byte
}

// Source hands out an exclusive capture stream. The stream must be closed
// to release the device (or file, or recorder process).
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
	// Name is the upload file name, e.g. "recording.wav".
	Name() string
}

// Record captures one clip from src. The stream is closed before Record
// returns, whether or not reading succeeded.
func Record(ctx context.Context, src Source, maxBytes int64) (clip *Clip, err error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}

	stream, err := src.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("open audio source: %w", err)
	}
	defer func() {
		if cerr := stream.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("release audio source: %w", cerr)
			clip = nil
		}
	}()

	data, err := io.ReadAll(io.LimitReader(stream, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}
	if int64(len(data)) > maxBytes {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("recording exceeds %d bytes", maxBytes))
	}
	if len(data) == 0 {
		return nil, errors.NewInvalidRequest("recording is empty")
	}

	name := src.Name()
	return &Clip{Name: name, ContentType: ContentType(name), Data: data}, nil
}

// ContentType guesses the MIME type from a file name.
func ContentType(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".webm":
		return "audio/webm"
	case ".ogg", ".oga", ".opus":
		return "audio/ogg"
	case ".mp3":
		return "audio/mpeg"
	case ".m4a", ".mp4":
		return "audio/mp4"
	case ".flac":
		return "audio/flac"
	default:
		return "audio/wav"
	}
}

// FileSource replays a recording from disk.
type FileSource struct {
	Path string
}

func (s FileSource) Open(context.Context) (io.ReadCloser, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewNotFound("audio file", s.Path)
		}
		return nil, err
	}
	return f, nil
}

func (s FileSource) Name() string {
	return filepath.Base(s.Path)
}

// BytesSource serves an in-memory recording (uploaded through the web UI).
type BytesSource struct {
	FileName string
	Data     []byte
}

func (s BytesSource) Open(context.Context) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(s.Data)), nil
}

func (s BytesSource) Name() string {
	if s.FileName == "" {
		return "recording.webm"
	}
	return s.FileName
}

// CommandSource records by running an external program that writes audio to
// stdout and exits when recording stops, e.g.
// ["arecord", "-q", "-d", "5", "-f", "cd", "-t", "wav", "-"].
type CommandSource struct {
	Argv   []string
	Format string // file extension of the output, default "wav"
}

func (s CommandSource) Name() string {
	format := strings.TrimPrefix(s.Format, ".")
	if format == "" {
		format = "wav"
	}
	return "recording." + format
}

func (s CommandSource) Open(ctx context.Context) (io.ReadCloser, error) {
	if len(s.Argv) == 0 {
		return nil, errors.NewInvalidRequest("voice_command is not configured")
	}
	cmd := exec.CommandContext(ctx, s.Argv[0], s.Argv[1:]...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start recorder %s: %w", s.Argv[0], err)
	}
	return &commandStream{cmd: cmd, out: out, stderr: &stderr}, nil
}

// commandStream owns a running recorder. Close stops it if it is still
// running and reaps it.
type commandStream struct {
	cmd    *exec.Cmd
	out    io.ReadCloser
	stderr *bytes.Buffer

	once sync.Once
	err  error
}

func (c *commandStream) Read(p []byte) (int, error) {
	return c.out.Read(p)
}

func (c *commandStream) Close() error {
	c.once.Do(func() {
		// Closing the pipe first makes a recorder blocked on write exit.
		_ = c.out.Close()
		werr := c.cmd.Wait()
		if werr == nil {
			return
		}
		if c.cmd.ProcessState != nil && !c.cmd.ProcessState.Exited() {
			// Killed by us (context or broken pipe); not a recording error.
			return
		}
		msg := strings.TrimSpace(c.stderr.String())
		if msg != "" {
			c.err = fmt.Errorf("recorder failed: %w: %s", werr, msg)
		} else {
			c.err = fmt.Errorf("recorder failed: %w", werr)
		}
	})
	return c.err
}
