package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestWriteTextfile(t *testing.T) {
	before := testutil.ToFloat64(SourceRowsTotal.WithLabelValues("facilities"))
	SourceRowsTotal.WithLabelValues("facilities").Add(3)
	if got := testutil.ToFloat64(SourceRowsTotal.WithLabelValues("facilities")) - before; got != 3 {
		t.Fatalf("SourceRowsTotal delta: want=3 got=%v", got)
	}

	path := filepath.Join(t.TempDir(), "afc.prom")
	if err := WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read textfile: %v", err)
	}
	if !strings.Contains(string(b), `afc_source_rows_total{source="facilities"}`) {
		t.Fatalf("textfile missing counter: %s", b)
	}
}

func TestWriteTextfileEmptyPath(t *testing.T) {
	if err := WriteTextfile(""); err != nil {
		t.Fatalf("empty path should be a no-op, got=%v", err)
	}
}
