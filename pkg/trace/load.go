package trace

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/salahayoub/hotviz/pkg/types"
)

// ErrEmptyTrace is returned when a trace file holds no rounds.
var ErrEmptyTrace = errors.New("trace has no rounds")

// LoadFile reads a trace from path. Files ending in .json are decoded as
// JSON, anything else as YAML.
func LoadFile(path string) (*types.Trace, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read trace: %w", err)
	}
	format := "yaml"
	if strings.EqualFold(filepath.Ext(path), ".json") {
		format = "json"
	}
	t, err := Decode(bytes.NewReader(data), format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// Decode reads a trace in the given format ("json" or "yaml").
func Decode(r io.Reader, format string) (*types.Trace, error) {
	var t types.Trace
	switch format {
	case "json":
		if err := json.NewDecoder(r).Decode(&t); err != nil {
			return nil, fmt.Errorf("failed to decode trace: %w", err)
		}
	case "yaml", "yml":
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		if err := dec.Decode(&t); err != nil {
			return nil, fmt.Errorf("failed to decode trace: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown trace format %q", format)
	}
	if len(t.Rounds) == 0 {
		return nil, ErrEmptyTrace
	}
	return &t, nil
}

// Encode writes t as YAML.
func Encode(w io.Writer, t *types.Trace) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(t); err != nil {
		return fmt.Errorf("failed to encode trace: %w", err)
	}
	return enc.Close()
}
