package version

import (
	"bytes"
	"strings"
	"testing"
)

func TestPrint(t *testing.T) {
	var buf bytes.Buffer
	Print(&buf)
	got := buf.String()
	if !strings.HasPrefix(got, "spectrometer "+Version) {
		t.Errorf("Print() = %q, want prefix %q", got, "spectrometer "+Version)
	}
	if !strings.HasSuffix(got, "\n") {
		t.Errorf("Print() = %q, want trailing newline", got)
	}
}
