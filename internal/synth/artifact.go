package synth

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// line is the wire form of a Reading.
type line struct {
	Timestamp string  `json:"timestamp"`
	Reading   float64 `json:"reading"`
}

// WriteFile writes one JSON object per reading, newline terminated.
// Data goes to path+".tmp" and is renamed over path only after a full flush,
// so path is either complete or absent.
func WriteFile(path string, readings []Reading) error {
	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", tmpPath, err)
	}

	w := bufio.NewWriterSize(f, 64*1024)
	enc := json.NewEncoder(w)
	for _, r := range readings {
		if err := enc.Encode(line{Timestamp: r.Timestamp.Format(TimestampLayout), Reading: r.Value}); err != nil {
			f.Close()
			os.Remove(tmpPath)
			return fmt.Errorf("encode reading: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("flush %s: %w", tmpPath, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename %s: %w", tmpPath, err)
	}
	return nil
}

// ReadFile streams an artifact back into readings.
func ReadFile(path string) ([]Reading, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var readings []Reading
	dec := json.NewDecoder(bufio.NewReader(f))
	for dec.More() {
		var l line
		if err := dec.Decode(&l); err != nil {
			return nil, fmt.Errorf("decode %s record %d: %w", path, len(readings)+1, err)
		}
		ts, err := time.Parse(TimestampLayout, l.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("parse timestamp %q: %w", l.Timestamp, err)
		}
		readings = append(readings, Reading{Timestamp: ts, Value: l.Reading})
	}
	return readings, nil
}
