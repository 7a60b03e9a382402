// This file provides the JSONL export format with one snapshot per line.
package sqlite

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"github.com/mesh-intelligence/stockpile/pkg/types"
)

// zstdMagic prefixes every zstd frame.
var zstdMagic = []byte{0x28, 0xB5, 0x2F, 0xFD}

// maxLine bounds a single JSONL record; snapshots of large containers can
// exceed bufio's default token size.
const maxLine = 64 << 20

// WriteSnapshots writes snaps to path, one JSON object per line. When
// compression is CompressionZstd the whole file is a zstd stream.
func WriteSnapshots(path string, snaps []types.Snapshot, compression string) error {
	records := make([]json.RawMessage, 0, len(snaps))
	for _, snap := range snaps {
		data, err := json.Marshal(snap)
		if err != nil {
			return fmt.Errorf("encoding snapshot %q: %w", snap.Name, err)
		}
		records = append(records, data)
	}
	return writeJSONL(path, records, compression == types.CompressionZstd)
}

// ReadSnapshots reads a file written by WriteSnapshots. Compression is
// detected from the zstd magic bytes. Malformed and invalid lines are
// skipped.
func ReadSnapshots(path string) ([]types.Snapshot, error) {
	records, err := readJSONL(path)
	if err != nil {
		return nil, err
	}
	snaps := make([]types.Snapshot, 0, len(records))
	for _, rec := range records {
		var snap types.Snapshot
		if err := json.Unmarshal(rec, &snap); err != nil {
			continue
		}
		if err := snap.Validate(); err != nil {
			continue
		}
		snaps = append(snaps, snap)
	}
	return snaps, nil
}

// readJSONL reads a JSONL file and returns each non-empty, parseable line as
// a json.RawMessage. Malformed lines are skipped.
func readJSONL(path string) ([]json.RawMessage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	br := bufio.NewReader(f)
	var src io.Reader = br
	if head, _ := br.Peek(len(zstdMagic)); bytes.Equal(head, zstdMagic) {
		zr, err := zstd.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("opening zstd stream %s: %w", path, err)
		}
		defer zr.Close()
		src = zr
	}

	var records []json.RawMessage
	scanner := bufio.NewScanner(src)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLine)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if !json.Valid(line) {
			continue
		}
		cp := make([]byte, len(line))
		copy(cp, line)
		records = append(records, json.RawMessage(cp))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning %s: %w", path, err)
	}
	return records, nil
}

// writeJSONL atomically writes records to a JSONL file using the temp-file,
// fsync, rename pattern.
func writeJSONL(path string, records []json.RawMessage, compress bool) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".jsonl-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	fail := func(format string, err error) error {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf(format, err)
	}

	var (
		out io.Writer = tmp
		zw  *zstd.Encoder
	)
	if compress {
		zw, err = zstd.NewWriter(tmp, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return fail("creating zstd writer: %w", err)
		}
		out = zw
	}

	w := bufio.NewWriter(out)
	for _, rec := range records {
		if _, err := w.Write(rec); err != nil {
			return fail("writing record: %w", err)
		}
		if err := w.WriteByte('\n'); err != nil {
			return fail("writing newline: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fail("flushing buffer: %w", err)
	}
	if zw != nil {
		if err := zw.Close(); err != nil {
			return fail("closing zstd writer: %w", err)
		}
	}
	if err := tmp.Sync(); err != nil {
		return fail("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
