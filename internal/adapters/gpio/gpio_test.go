package gpio

import (
	"bytes"
	"errors"
	"go/format"
	"os"
	"path/filepath"
	"testing"
)

func TestSimDriverTracksLevels(t *testing.T) {
	d := NewSimDriver()

	var seen []LevelChange
	d.OnSet(func(c LevelChange) { seen = append(seen, c) })

	if err := d.SetLevel(2, true); err != nil {
		t.Fatalf("open: %v", err)
	}
	if !d.Level(2) {
		t.Fatalf("expected channel 2 to be flowing")
	}
	if err := d.SetLevel(2, false); err != nil {
		t.Fatalf("close: %v", err)
	}
	if d.Level(2) {
		t.Fatalf("expected channel 2 to be closed")
	}
	if len(d.History()) != 2 || len(seen) != 2 {
		t.Fatalf("expected two recorded commands, got %d/%d", len(d.History()), len(seen))
	}
	if err := d.SetLevel(8, true); err == nil {
		t.Fatalf("expected out of range error")
	}
}

func TestSimDriverFailOpenStillAllowsClose(t *testing.T) {
	d := NewSimDriver()
	boom := errors.New("boom")
	d.FailOpen(5, boom)

	if err := d.SetLevel(5, true); !errors.Is(err, boom) {
		t.Fatalf("expected injected fault, got %v", err)
	}
	if err := d.SetLevel(5, false); err != nil {
		t.Fatalf("close must still work: %v", err)
	}

	d.FailOpen(5, nil)
	if err := d.SetLevel(5, true); err != nil {
		t.Fatalf("fault should be cleared: %v", err)
	}
}

func TestConfigDefaultsAndValidate(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default pins invalid: %v", err)
	}
	if cfg.Pins[0] != "GPIO27" {
		t.Fatalf("expected channel 0 on GPIO27, got %s", cfg.Pins[0])
	}

	cfg.Pins[1] = cfg.Pins[0]
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected duplicate pin error")
	}

	short := Config{Pins: []string{"GPIO2"}}
	if err := short.Validate(); err == nil {
		t.Fatalf("expected pin count error")
	}
}

func TestSourcesAreFormatted(t *testing.T) {
	files, err := filepath.Glob("*.go")
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range files {
		src, err := os.ReadFile(name)
		if err != nil {
			t.Fatal(err)
		}
		want, err := format.Source(src)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if !bytes.Equal(src, want) {
			t.Errorf("%s is not gofmt formatted", name)
		}
	}
}
