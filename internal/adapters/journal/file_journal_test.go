package journal

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ghalamif/PourFlow/internal/domain"
	"github.com/ghalamif/PourFlow/internal/ports"
)

func collect(t *testing.T, j *FileJournal, from ports.JournalEntryID) []ports.JournalEntryID {
	t.Helper()
	var ids []ports.JournalEntryID
	if err := j.Iterate(from, func(id ports.JournalEntryID, r *domain.DispenseRecord) error {
		ids = append(ids, id)
		return nil
	}); err != nil {
		t.Fatalf("iterate: %v", err)
	}
	return ids
}

func TestFileJournalAppendIterateAndReplay(t *testing.T) {
	dir := t.TempDir()

	j, err := NewFileJournal(dir)
	if err != nil {
		t.Fatalf("new journal: %v", err)
	}

	r1 := &domain.DispenseRecord{DispenseID: "d1", Kind: domain.KindMix, Name: "VESPER", Channel: 1, Ingredient: "Gin", Volume: 60}
	r2 := &domain.DispenseRecord{DispenseID: "d1", Kind: domain.KindMix, Name: "VESPER", Channel: 2, Ingredient: "Vodka", Volume: 15}

	id1, err := j.Append(r1)
	if err != nil || id1 == 0 {
		t.Fatalf("append record 1: %v id=%d", err, id1)
	}
	id2, err := j.Append(r2)
	if err != nil || id2 == 0 {
		t.Fatalf("append record 2: %v id=%d", err, id2)
	}

	var ingredients []string
	if err := j.Iterate(1, func(id ports.JournalEntryID, r *domain.DispenseRecord) error {
		ingredients = append(ingredients, r.Ingredient)
		return nil
	}); err != nil {
		t.Fatalf("iterate: %v", err)
	}
	if len(ingredients) != 2 || ingredients[0] != "Gin" || ingredients[1] != "Vodka" {
		t.Fatalf("unexpected records: %v", ingredients)
	}

	if err := j.Commit(id1); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if err := j.Close(); err != nil {
		t.Fatalf("close journal: %v", err)
	}

	// Reopen and ensure committed metadata was persisted.
	j2, err := NewFileJournal(dir)
	if err != nil {
		t.Fatalf("reopen journal: %v", err)
	}

	stats := j2.Stats()
	if stats.LatestAppended != id2 {
		t.Fatalf("expected latest appended %d, got %d", id2, stats.LatestAppended)
	}
	if stats.OldestUncommitted != id2 {
		t.Fatalf("expected oldest uncommitted %d, got %d", id2, stats.OldestUncommitted)
	}
	if ids := collect(t, j2, stats.OldestUncommitted); len(ids) != 1 || ids[0] != id2 {
		t.Fatalf("expected only %d to replay, got %v", id2, ids)
	}

	if err := j2.Close(); err != nil {
		t.Fatalf("close journal2: %v", err)
	}

	// A torn tail is cut off on open.
	if err := appendGarbage(filepath.Join(dir, logName)); err != nil {
		t.Fatalf("append garbage: %v", err)
	}
	j3, err := NewFileJournal(dir)
	if err != nil {
		t.Fatalf("reopen after garbage: %v", err)
	}
	defer j3.Close()
	if got := j3.Stats().SizeBytes; got != stats.SizeBytes {
		t.Fatalf("expected size %d after repair, got %d", stats.SizeBytes, got)
	}
	id3, err := j3.Append(r1)
	if err != nil || id3 != id2+1 {
		t.Fatalf("append after repair: %v id=%d", err, id3)
	}
}

func TestFileJournalTruncateCommitted(t *testing.T) {
	j, err := NewFileJournal(t.TempDir())
	if err != nil {
		t.Fatalf("new journal: %v", err)
	}
	defer j.Close()

	var last ports.JournalEntryID
	for ch := 0; ch < 5; ch++ {
		last, err = j.Append(&domain.DispenseRecord{Channel: ch, Kind: domain.KindFlush})
		if err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	before := j.Stats().SizeBytes

	if err := j.Commit(3); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if err := j.TruncateCommitted(); err != nil {
		t.Fatalf("truncate: %v", err)
	}

	stats := j.Stats()
	if stats.SizeBytes >= before {
		t.Fatalf("expected journal to shrink from %d, got %d", before, stats.SizeBytes)
	}
	if ids := collect(t, j, 0); len(ids) != 2 || ids[0] != 4 || ids[1] != last {
		t.Fatalf("unexpected ids after truncate: %v", ids)
	}

	next, err := j.Append(&domain.DispenseRecord{Channel: 7})
	if err != nil || next != last+1 {
		t.Fatalf("append after truncate: %v id=%d", err, next)
	}
}

func TestFileJournalCommitIsMonotonic(t *testing.T) {
	j, err := NewFileJournal(t.TempDir())
	if err != nil {
		t.Fatalf("new journal: %v", err)
	}
	defer j.Close()

	for i := 0; i < 3; i++ {
		if _, err := j.Append(&domain.DispenseRecord{}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	if err := j.Commit(2); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if err := j.Commit(1); err != nil {
		t.Fatalf("commit backwards: %v", err)
	}
	if got := j.Stats().OldestUncommitted; got != 3 {
		t.Fatalf("expected watermark to stay at 3, got %d", got)
	}
	if err := j.Commit(99); err != nil {
		t.Fatalf("commit ahead: %v", err)
	}
	if got := j.Stats().OldestUncommitted; got != 4 {
		t.Fatalf("commit must clamp to latest appended, got %d", got)
	}
}

func appendGarbage(path string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Write([]byte{0xFF, 0xAA, 0x01})
	return err
}
