package security

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"tungsten-2856K", "tungsten-2856K"},
		{"", "unknown"},
		{"../../etc/passwd", "etc_passwd"},
		{"neon lamp (cal)", "neon_lamp_cal"},
		{"a\"b;c", "a_b_c"},
		{"...", "unknown"},
		{"snake__case", "snake__case"},
	}
	for _, tt := range tests {
		if got := SanitizeFilename(tt.in); got != tt.want {
			t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}

	long := SanitizeFilename(strings.Repeat("x", 500))
	if len(long) != maxFilenameLen {
		t.Errorf("long name length = %d, want %d", len(long), maxFilenameLen)
	}
}

func TestAttachmentDisposition(t *testing.T) {
	got := AttachmentDisposition(`sample "A"`, ".csv")
	want := `attachment; filename="sample_A.csv"`
	if got != want {
		t.Errorf("AttachmentDisposition() = %q, want %q", got, want)
	}
}

func TestValidatePathWithinDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	safeDir := filepath.Join(tmpDir, "frames")
	outside := filepath.Join(tmpDir, "outside")
	for _, d := range []string{safeDir, outside} {
		if err := os.MkdirAll(d, 0755); err != nil {
			t.Fatalf("Failed to create %s: %v", d, err)
		}
	}
	target := filepath.Join(outside, "frame.png")
	if err := os.WriteFile(target, []byte("png"), 0644); err != nil {
		t.Fatalf("Failed to write target: %v", err)
	}
	link := filepath.Join(safeDir, "link.png")
	if err := os.Symlink(target, link); err != nil {
		t.Fatalf("Failed to create symlink: %v", err)
	}

	tests := []struct {
		name      string
		path      string
		wantError bool
	}{
		{"file inside", filepath.Join(safeDir, "0001.png"), false},
		{"nested inside", filepath.Join(safeDir, "sub", "0001.png"), false},
		{"dot dot escape", filepath.Join(safeDir, "..", "outside", "frame.png"), true},
		{"absolute outside", "/etc/passwd", true},
		{"symlink escape", link, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePathWithinDirectory(tt.path, safeDir)
			if (err != nil) != tt.wantError {
				t.Errorf("ValidatePathWithinDirectory(%q) error = %v, wantError %v", tt.path, err, tt.wantError)
			}
		})
	}
}
