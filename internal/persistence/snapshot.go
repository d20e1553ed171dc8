package persistence

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"github.com/talgya/lifesim/internal/sim"
)

// snapshotHeader is the uncompressed-readable first line of a snapshot
// file, enough to identify a save without decoding the body.
type snapshotHeader struct {
	Version int    `json:"version"`
	Day     int    `json:"day"`
	Minutes int    `json:"minutes"`
	Season  string `json:"season"`
}

// WriteSnapshot writes a zstd-compressed snapshot file: one JSON header
// line, then the JSON-encoded world state.
func WriteSnapshot(path string, data sim.SaveData) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	defer enc.Close()

	bw := bufio.NewWriterSize(enc, 256*1024)
	defer bw.Flush()

	hb, _ := json.Marshal(snapshotHeader{
		Version: data.Version,
		Day:     data.Clock.Day,
		Minutes: data.Clock.Minutes,
		Season:  data.Clock.Season,
	})
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}

	if err := json.NewEncoder(bw).Encode(&data); err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return nil
}

// ReadSnapshot reads a snapshot file written by WriteSnapshot.
func ReadSnapshot(path string) (sim.SaveData, error) {
	var data sim.SaveData
	f, err := os.Open(path)
	if err != nil {
		return data, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return data, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)

	line, err := br.ReadBytes('\n')
	if err != nil {
		return data, fmt.Errorf("read header: %w", err)
	}
	var header snapshotHeader
	if err := json.Unmarshal(line, &header); err != nil {
		return data, fmt.Errorf("decode header: %w", err)
	}
	if header.Version > sim.SaveVersion {
		return data, fmt.Errorf("snapshot version %d newer than supported %d", header.Version, sim.SaveVersion)
	}

	if err := json.NewDecoder(br).Decode(&data); err != nil {
		return data, fmt.Errorf("decode snapshot: %w", err)
	}
	return data, nil
}
