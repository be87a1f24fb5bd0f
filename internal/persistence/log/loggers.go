package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"agentville.ai/internal/sim/engine"
)

// Step logs live under <engineDir>/steps, one zstd-compressed JSONL segment
// per UTC hour of wall-clock time: steps-2006-01-02-15.jsonl.zst. Segment
// names sort in write order.
const (
	stepDirName   = "steps"
	segmentPrefix = "steps-"
	segmentSuffix = ".jsonl.zst"
	segmentLayout = "2006-01-02-15"
)

func StepDir(engineDir string) string { return filepath.Join(engineDir, stepDirName) }

func segmentName(at time.Time) string {
	return segmentPrefix + at.UTC().Format(segmentLayout) + segmentSuffix
}

func isSegment(name string) bool {
	return strings.HasPrefix(name, segmentPrefix) && strings.HasSuffix(name, segmentSuffix)
}

// StepLogger appends one entry per engine step. Every entry is flushed
// through the encoder before WriteStep returns, so a crash loses at most the
// step being written.
type StepLogger struct {
	dir string

	// now picks the segment; tests pin it.
	now func() time.Time

	mu      sync.Mutex
	segment string
	f       *os.File
	enc     *zstd.Encoder
	buf     *bufio.Writer
}

func NewStepLogger(engineDir string) *StepLogger {
	return &StepLogger{dir: StepDir(engineDir), now: time.Now}
}

func (l *StepLogger) WriteStep(e engine.StepLogEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if name := segmentName(l.now()); name != l.segment {
		if err := l.openSegment(name); err != nil {
			return fmt.Errorf("step log %s: %w", name, err)
		}
	}
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	b = append(b, '\n')
	if _, err := l.buf.Write(b); err != nil {
		return err
	}
	if err := l.buf.Flush(); err != nil {
		return err
	}
	return l.enc.Flush()
}

func (l *StepLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closeSegment()
}

// openSegment finishes the current segment and appends to name. Reopening a
// segment adds a new zstd frame, which readers decode as one stream.
func (l *StepLogger) openSegment(name string) error {
	if err := l.closeSegment(); err != nil {
		return err
	}
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(filepath.Join(l.dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	l.f, l.enc, l.segment = f, enc, name
	l.buf = bufio.NewWriterSize(enc, 64*1024)
	return nil
}

func (l *StepLogger) closeSegment() error {
	if l.f == nil {
		return nil
	}
	var err error
	if ferr := l.buf.Flush(); ferr != nil {
		err = ferr
	}
	if cerr := l.enc.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if cerr := l.f.Close(); cerr != nil && err == nil {
		err = cerr
	}
	l.f, l.enc, l.buf, l.segment = nil, nil, nil, ""
	return err
}

// ReadSteps decodes every segment under dir, oldest first, keeping entries
// with Step >= since.
func ReadSteps(dir string, since uint64) ([]engine.StepLogEntry, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range ents {
		if !e.IsDir() && isSegment(e.Name()) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var out []engine.StepLogEntry
	for _, name := range names {
		got, err := readSegment(filepath.Join(dir, name), since)
		if err != nil {
			return nil, err
		}
		out = append(out, got...)
	}
	return out, nil
}

func readSegment(path string, since uint64) ([]engine.StepLogEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	var out []engine.StepLogEntry
	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)
	for sc.Scan() {
		var e engine.StepLogEntry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			return nil, fmt.Errorf("%s: unmarshal: %w", filepath.Base(path), err)
		}
		if e.Step >= since {
			out = append(out, e)
		}
	}
	return out, sc.Err()
}
