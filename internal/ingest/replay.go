package ingest

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"
)

// RecordedBlock is one block's transactions as replayed from a file-backed
// data source (config.DataSourceConfig{Type: "file"}), newline-delimited
// JSON — the in-scope counterpart to the out-of-scope live gRPC transaction
// stream (spec.md §1).
type RecordedBlock struct {
	BlockNumber  uint64        `json:"block_number"`
	Transactions []Transaction `json:"transactions"`
}

// FileReplaySource reads newline-delimited RecordedBlock JSON from a file
// and paces delivery by ReplaySpeed. The recorded format carries no
// per-transaction wall-clock timestamp, so pacing is a fixed per-block delay
// derived from ReplaySpeed rather than the original timestamp-accurate
// replay; this is the one dependency-free way to drive the pipeline end to
// end without the indexer SDK the gRPC path would require.
type FileReplaySource struct {
	path        string
	replaySpeed float64
	log         *slog.Logger
}

// NewFileReplaySource builds a FileReplaySource. replaySpeed <= 0 defaults
// to 1 block/second.
func NewFileReplaySource(path string, replaySpeed float64, log *slog.Logger) *FileReplaySource {
	if replaySpeed <= 0 {
		replaySpeed = 1
	}
	if log == nil {
		log = slog.Default()
	}
	return &FileReplaySource{path: path, replaySpeed: replaySpeed, log: log.With("component", "file-replay-source")}
}

// Blocks streams the file's RecordedBlocks in order, one at a time, paced by
// the configured replay speed. The returned channel closes when the file is
// exhausted or ctx is cancelled; a fatal open/read error is sent on errc
// before both channels close.
func (s *FileReplaySource) Blocks(ctx context.Context) (<-chan RecordedBlock, <-chan error) {
	out := make(chan RecordedBlock)
	errc := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errc)

		f, err := os.Open(s.path)
		if err != nil {
			errc <- fmt.Errorf("open replay file: %w", err)
			return
		}
		defer f.Close()

		delay := time.Duration(float64(time.Second) / s.replaySpeed)

		scanner := bufio.NewScanner(f)
		scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
		for scanner.Scan() {
			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue
			}
			var block RecordedBlock
			if err := json.Unmarshal(line, &block); err != nil {
				s.log.Warn("skipping malformed replay line", "error", err)
				continue
			}

			select {
			case out <- block:
			case <-ctx.Done():
				return
			}

			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			errc <- fmt.Errorf("read replay file: %w", err)
		}
	}()

	return out, errc
}
