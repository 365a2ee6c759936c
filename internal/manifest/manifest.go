package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Manifest describes one batch: session metadata, output settings, and the
// ordered list of files to transcribe.
type Manifest struct {
	SessionID string
	Provider  string
	Model     string
	Formats   Formats
	Files     []FileEntry
}

// FileEntry is one unit of work from the manifest.
type FileEntry struct {
	Path         string
	RelativePath string
}

// Formats is the set of output artifacts the manifest requested.
type Formats struct {
	Txt  bool
	JSON bool
}

// manifestJSON accepts both snake_case and camelCase key variants.
type manifestJSON struct {
	SessionID      string             `json:"session_id"`
	SessionIDCamel string             `json:"sessionId"`
	Provider       string             `json:"provider"`
	Model          string             `json:"model"`
	Settings       *settingsJSON      `json:"settings"`
	Files          *[]json.RawMessage `json:"files"`
}

type settingsJSON struct {
	OutputFormat      string `json:"output_format"`
	OutputFormatCamel string `json:"outputFormat"`
}

type fileEntryJSON struct {
	Path               string `json:"path"`
	RelativePath       string `json:"relative_path"`
	RelativePathCamel  string `json:"relativePath"`
	RelativePathLegacy string `json:"relative"`
}

// Load reads and validates a manifest file. The root must be a JSON object
// with a files array; non-object file entries are dropped silently.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return Parse(data)
}

// Parse validates manifest bytes. See Load.
func Parse(data []byte) (*Manifest, error) {
	var raw manifestJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("manifest root must be a JSON object: %w", err)
	}
	if raw.Files == nil {
		return nil, fmt.Errorf("manifest is missing a files array")
	}

	m := &Manifest{
		SessionID: firstString(raw.SessionID, raw.SessionIDCamel),
		Provider:  firstString(raw.Provider),
		Model:     firstString(raw.Model),
		Formats:   parseFormats(raw.Settings),
	}

	for _, rawEntry := range *raw.Files {
		// Non-object entries are dropped, not errored.
		trimmed := bytes.TrimSpace(rawEntry)
		if len(trimmed) == 0 || trimmed[0] != '{' {
			continue
		}
		var entry fileEntryJSON
		if err := json.Unmarshal(trimmed, &entry); err != nil {
			continue
		}
		m.Files = append(m.Files, FileEntry{
			Path:         strings.TrimSpace(entry.Path),
			RelativePath: firstString(entry.RelativePath, entry.RelativePathCamel, entry.RelativePathLegacy),
		})
	}

	return m, nil
}

func parseFormats(settings *settingsJSON) Formats {
	both := Formats{Txt: true, JSON: true}
	if settings == nil {
		return both
	}

	switch strings.ToLower(firstString(settings.OutputFormat, settings.OutputFormatCamel)) {
	case "txt", "text":
		return Formats{Txt: true}
	case "json":
		return Formats{JSON: true}
	default:
		return both
	}
}

// Relative returns the sanitized logical output path for the entry, falling
// back to the source file's base name.
func (e FileEntry) Relative() string {
	if e.RelativePath == "" {
		return filepath.Base(e.Path)
	}
	return SafeRelativePath(e.RelativePath, e.Path)
}

// SafeRelativePath sanitizes a caller-supplied relative path: absolute paths
// collapse to their final component, and empty, "." and ".." segments are
// stripped. When nothing survives, the source file's base name is used.
func SafeRelativePath(raw, sourcePath string) string {
	candidate := strings.TrimSpace(raw)
	if candidate == "" {
		return filepath.Base(sourcePath)
	}

	if filepath.IsAbs(candidate) {
		return filepath.Base(candidate)
	}

	var parts []string
	for _, part := range strings.Split(filepath.ToSlash(candidate), "/") {
		if part == "" || part == "." || part == ".." {
			continue
		}
		parts = append(parts, part)
	}
	if len(parts) == 0 {
		return filepath.Base(sourcePath)
	}

	return filepath.Join(parts...)
}

func firstString(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
