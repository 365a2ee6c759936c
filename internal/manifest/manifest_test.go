package manifest

import (
	"strings"
	"testing"
)

func TestParseAcceptsBothKeyVariants(t *testing.T) {
	snake := `{
		"session_id": "abc",
		"provider": "faster-whisper",
		"model": "small",
		"settings": {"output_format": "txt"},
		"files": [{"path": "/audio/a.wav", "relative_path": "meetings/a.wav"}]
	}`
	camel := `{
		"sessionId": "abc",
		"provider": "faster-whisper",
		"model": "small",
		"settings": {"outputFormat": "txt"},
		"files": [{"path": "/audio/a.wav", "relativePath": "meetings/a.wav"}]
	}`

	for _, doc := range []string{snake, camel} {
		m, err := Parse([]byte(doc))
		if err != nil {
			t.Fatalf("Parse: %v", err)
		}
		if m.SessionID != "abc" {
			t.Fatalf("session id = %q, want abc", m.SessionID)
		}
		if !m.Formats.Txt || m.Formats.JSON {
			t.Fatalf("formats = %+v, want txt only", m.Formats)
		}
		if len(m.Files) != 1 || m.Files[0].Relative() != "meetings/a.wav" {
			t.Fatalf("files = %+v", m.Files)
		}
	}
}

func TestParseDropsNonObjectEntries(t *testing.T) {
	doc := `{"files": [{"path": "/a.wav"}, "junk", 42, null, [1], {"path": "/b.wav"}]}`

	m, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(m.Files) != 2 {
		t.Fatalf("kept %d entries, want 2: %+v", len(m.Files), m.Files)
	}
	if m.Files[0].Path != "/a.wav" || m.Files[1].Path != "/b.wav" {
		t.Fatalf("unexpected entries: %+v", m.Files)
	}
}

func TestParseRejectsBadRoots(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"array root", `[1, 2]`},
		{"scalar root", `"hello"`},
		{"missing files", `{"session_id": "abc"}`},
		{"files not a sequence", `{"files": {"path": "/a.wav"}}`},
		{"invalid json", `{`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.doc)); err == nil {
				t.Fatal("Parse succeeded, want error")
			}
		})
	}
}

func TestParseOutputFormats(t *testing.T) {
	tests := []struct {
		format string
		want   Formats
	}{
		{"txt", Formats{Txt: true}},
		{"text", Formats{Txt: true}},
		{"JSON", Formats{JSON: true}},
		{"srt", Formats{Txt: true, JSON: true}},
		{"", Formats{Txt: true, JSON: true}},
	}

	for _, tt := range tests {
		doc := `{"settings": {"output_format": "` + tt.format + `"}, "files": []}`
		m, err := Parse([]byte(doc))
		if err != nil {
			t.Fatalf("Parse(%q): %v", tt.format, err)
		}
		if m.Formats != tt.want {
			t.Fatalf("formats for %q = %+v, want %+v", tt.format, m.Formats, tt.want)
		}
	}
}

func TestSafeRelativePath(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		source string
		want   string
	}{
		{"plain relative", "meetings/a.wav", "/audio/a.wav", "meetings/a.wav"},
		{"absolute collapses to base", "/etc/passwd", "/audio/a.wav", "passwd"},
		{"parent segments stripped", "../../escape/a.wav", "/audio/a.wav", "escape/a.wav"},
		{"dot segments stripped", "./x/./y.wav", "/audio/a.wav", "x/y.wav"},
		{"empty segments stripped", "x//y.wav", "/audio/a.wav", "x/y.wav"},
		{"nothing survives", "../..", "/audio/a.wav", "a.wav"},
		{"blank input", "   ", "/audio/a.wav", "a.wav"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SafeRelativePath(tt.raw, tt.source)
			if got != tt.want {
				t.Fatalf("SafeRelativePath(%q) = %q, want %q", tt.raw, got, tt.want)
			}
			if strings.Contains(got, "..") {
				t.Fatalf("sanitized path %q still contains ..", got)
			}
		})
	}
}

func TestRelativeFallsBackToBaseName(t *testing.T) {
	entry := FileEntry{Path: "/audio/talk.mp3"}
	if got := entry.Relative(); got != "talk.mp3" {
		t.Fatalf("relative = %q, want talk.mp3", got)
	}
}
