package pipeline

import (
	"testing"

	"github.com/zsiec/transmux/transmux"
)

func TestDefaultProbeTable_PrecedenceOrder(t *testing.T) {
	t.Parallel()
	table := DefaultProbeTable()

	wantOrder := []string{"fmp4", "ts", "aac", "mp3"}
	if len(table) != len(wantOrder) {
		t.Fatalf("len(table) = %d, want %d", len(table), len(wantOrder))
	}
	for i, name := range wantOrder {
		if table[i].Name != name {
			t.Errorf("table[%d].Name = %q, want %q", i, table[i].Name, name)
		}
		if table[i].Probe == nil {
			t.Errorf("table[%d] (%s) has a nil Probe", i, name)
		}
		if table[i].NewDemuxer == nil {
			t.Errorf("table[%d] (%s) has a nil NewDemuxer", i, name)
		}
		if table[i].NewRemuxer == nil {
			t.Errorf("table[%d] (%s) has a nil NewRemuxer", i, name)
		}
	}
}

func TestDefaultFallback_AlwaysMatches(t *testing.T) {
	t.Parallel()
	fb := DefaultFallback()
	if fb.Name != "passthrough" {
		t.Errorf("Name = %q, want passthrough", fb.Name)
	}
	if !fb.Probe([]byte{0x01, 0x02, 0x03}) {
		t.Error("the fallback entry's Probe should always report a match")
	}
}

func TestNew_BuildsATransmuxer(t *testing.T) {
	t.Parallel()
	tm := New(transmux.Options{}, nil, nil, nil)
	if tm == nil {
		t.Fatal("New returned nil")
	}
	if err := tm.Configure(transmux.TransmuxConfig{}); err != nil {
		t.Fatalf("Configure: %v", err)
	}
}
