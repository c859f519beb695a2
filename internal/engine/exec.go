package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"sync"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/mattn/go-shellwords"

	"github.com/murmurlabs/murmur-core/internal/config"
)

// execEngine shells out to an external recognizer. The command receives a
// temporary WAV file and prints a JSON result on stdout:
//
//	{"segments": [{"text": "...", "start": 150, "end": 300}]}
//
// with start/end in centiseconds.
type execEngine struct {
	cmd []string
	cfg config.EngineConfig
	mu  sync.Mutex
}

type execResult struct {
	Text     string        `json:"text"`
	Segments []execSegment `json:"segments"`
}

type execSegment struct {
	Text  string `json:"text"`
	Start int64  `json:"start"`
	End   int64  `json:"end"`
}

func newExecEngine(cfg config.EngineConfig) (Engine, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(cfg.Command)
	if err != nil {
		return nil, fmt.Errorf("parse engine command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("engine command is empty")
	}
	return &execEngine{cmd: args, cfg: cfg}, nil
}

func (e *execEngine) Transcribe(ctx context.Context, samples []float32, opts Options) ([]Segment, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(samples) == 0 {
		return nil, nil
	}

	file, err := os.CreateTemp(os.TempDir(), "murmur_chunk_*.wav")
	if err != nil {
		return nil, fmt.Errorf("%w: temp file: %v", ErrInference, err)
	}
	defer os.Remove(file.Name())
	defer file.Close()

	if err := writeMonoWAV(file, samples, 16000); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInference, err)
	}

	cmdArgs := append([]string{}, e.cmd[1:]...)
	cmdArgs = append(cmdArgs, "--audio", file.Name())
	if lang := pick(opts.Language, e.cfg.Language); lang != "" {
		cmdArgs = append(cmdArgs, "--language", lang)
	}
	if opts.UseContext {
		cmdArgs = append(cmdArgs, "--context")
	}

	command := exec.CommandContext(ctx, e.cmd[0], cmdArgs...)
	var stdout, stderr bytes.Buffer
	command.Stdout = &stdout
	command.Stderr = &stderr
	if err := command.Run(); err != nil {
		return nil, fmt.Errorf("%w: command failed: %v: %s", ErrInference, err, stderr.String())
	}

	var resp execResult
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrInference, err)
	}
	if len(resp.Segments) == 0 && resp.Text != "" {
		return []Segment{{Text: resp.Text}}, nil
	}
	segments := make([]Segment, 0, len(resp.Segments))
	for _, s := range resp.Segments {
		segments = append(segments, Segment{Text: s.Text, Start: s.Start, End: s.End})
	}
	return segments, nil
}

func (e *execEngine) Close() error { return nil }

func writeMonoWAV(file *os.File, samples []float32, sampleRate int) error {
	buffer := &audio.IntBuffer{
		Format: &audio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:   make([]int, len(samples)),
	}
	for i, s := range samples {
		if s > 1.0 {
			s = 1.0
		} else if s < -1.0 {
			s = -1.0
		}
		buffer.Data[i] = int(s * 32767)
	}

	enc := wav.NewEncoder(file, sampleRate, 16, 1, 1)
	if err := enc.Write(buffer); err != nil {
		return fmt.Errorf("write wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("close wav encoder: %w", err)
	}
	return nil
}

func pick(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
