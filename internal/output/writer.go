package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/whisper-batch/worker/internal/events"
	"github.com/whisper-batch/worker/internal/manifest"
	"github.com/whisper-batch/worker/internal/whisper"
)

// Write stores the requested artifacts for one transcribed file under
// root/relativePath and returns the written paths. Parent directories are
// created as needed; existing files are overwritten.
func Write(root, relativePath string, result *whisper.Result, formats manifest.Formats) (events.OutputPaths, error) {
	base := filepath.Join(root, relativePath)
	var paths events.OutputPaths

	if formats.Txt {
		txtPath := base + ".txt"
		if err := os.MkdirAll(filepath.Dir(txtPath), 0755); err != nil {
			return paths, fmt.Errorf("create output directory: %w", err)
		}
		if err := os.WriteFile(txtPath, []byte(result.Text), 0644); err != nil {
			return paths, fmt.Errorf("write txt output: %w", err)
		}
		paths.Txt = txtPath
	}

	if formats.JSON {
		jsonPath := base + ".json"
		if err := os.MkdirAll(filepath.Dir(jsonPath), 0755); err != nil {
			return paths, fmt.Errorf("create output directory: %w", err)
		}

		// Stable field order comes from the Result struct; keep non-ASCII
		// text readable instead of \u-escaping it.
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return paths, fmt.Errorf("encode json output: %w", err)
		}
		if err := os.WriteFile(jsonPath, buf.Bytes(), 0644); err != nil {
			return paths, fmt.Errorf("write json output: %w", err)
		}
		paths.JSON = jsonPath
	}

	return paths, nil
}
