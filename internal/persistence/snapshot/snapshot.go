package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"agentville.ai/internal/sim/world/kernel/model"
)

const Version = 1

type Header struct {
	Version  int    `json:"version"`
	WorldID  string `json:"world_id"`
	EngineID string `json:"engine_id,omitempty"`
	Time     int64  `json:"time"`
	Step     uint64 `json:"step"`
}

// SnapshotV1 is a full copy of one world's live state.
type SnapshotV1 struct {
	Header Header `json:"header"`

	Seed           int64 `json:"seed"`
	NextID         int64 `json:"next_id"`
	LastViewed     int64 `json:"last_viewed"`
	TickDurationMs int64 `json:"tick_duration_ms"`

	Timings   model.ConversationTimings `json:"timings"`
	LifeCycle model.LifeCycle           `json:"life_cycle"`

	Players       []model.Player       `json:"players"`
	Agents        []model.Agent        `json:"agents"`
	Conversations []model.Conversation `json:"conversations"`
	Descriptions  []DescriptionV1      `json:"descriptions,omitempty"`
}

type DescriptionV1 struct {
	PlayerID    string `json:"player_id"`
	Name        string `json:"name"`
	Character   string `json:"character"`
	Description string `json:"description"`
	IsAgent     bool   `json:"is_agent"`
}

// WriteSnapshot writes a JSON header line followed by the gob-encoded snapshot, zstd compressed.
func WriteSnapshot(path string, snap SnapshotV1) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = f.Close()
			_ = os.Remove(tmp)
		}
	}()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(enc, 256*1024)

	if snap.Header.Version == 0 {
		snap.Header.Version = Version
	}
	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}
	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		return fmt.Errorf("gob encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func ReadSnapshot(path string) (SnapshotV1, error) {
	var snap SnapshotV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)

	// The header line is for tooling; gob carries it too.
	if _, err := br.ReadBytes('\n'); err != nil {
		return snap, fmt.Errorf("read header: %w", err)
	}
	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	if snap.Header.Version != Version {
		return snap, fmt.Errorf("unsupported snapshot version %d", snap.Header.Version)
	}
	return snap, nil
}

// ReadHeader decodes only the leading header line.
func ReadHeader(path string) (Header, error) {
	var h Header
	f, err := os.Open(path)
	if err != nil {
		return h, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return h, err
	}
	defer dec.Close()

	line, err := bufio.NewReader(dec).ReadBytes('\n')
	if err != nil {
		return h, fmt.Errorf("read header: %w", err)
	}
	if err := json.Unmarshal(line, &h); err != nil {
		return h, fmt.Errorf("decode header: %w", err)
	}
	return h, nil
}

// PathFor names snapshot files so they sort by step.
func PathFor(dir string, step uint64) string {
	return filepath.Join(dir, fmt.Sprintf("%012d.snap.zst", step))
}
