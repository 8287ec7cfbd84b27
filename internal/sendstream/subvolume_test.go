package sendstream

import (
	"errors"
	"testing"
	"time"

	"github.com/avogabo/sendreplay/internal/mixedstring"
)

func path(s string) mixedstring.MixedString { return mixedstring.FromString(s) }

func TestAddFileOverwritesPriorEntry(t *testing.T) {
	s := newSubvolumeState(SubvolumeSource{}, true)
	s.addFile(path("a"), FileTypeRegular, 0o600)
	s.addFile(path("a"), FileTypeDirectory, 0o755)
	info, err := s.getFile(path("a"))
	if err != nil {
		t.Fatalf("getFile: %v", err)
	}
	if info.FileType != FileTypeDirectory || info.Permissions != 0o755 {
		t.Fatalf("expected the second add_file to win, got %+v", info)
	}
}

func TestAddFileDefaultsTimestampsToEpoch(t *testing.T) {
	s := newSubvolumeState(SubvolumeSource{}, true)
	s.addFile(path("a"), FileTypeRegular, 0)
	info, err := s.getFile(path("a"))
	if err != nil {
		t.Fatalf("getFile: %v", err)
	}
	want := time.Unix(0, 0).UTC()
	if !info.Modified.Equal(want) || !info.Accessed.Equal(want) || !info.Created.Equal(want) {
		t.Fatalf("expected epoch timestamps, got Modified=%v Accessed=%v Created=%v", info.Modified, info.Accessed, info.Created)
	}
}

func TestDelFileOverwriteModeRemovesKey(t *testing.T) {
	s := newSubvolumeState(SubvolumeSource{}, true)
	s.addFile(path("a"), FileTypeRegular, 0)
	if err := s.delFile(path("a")); err != nil {
		t.Fatalf("delFile: %v", err)
	}
	if _, err := s.getFile(path("a")); err == nil {
		t.Fatalf("expected a to be entirely gone in overwrite mode")
	}
	if err := s.delFile(path("a")); err == nil {
		t.Fatalf("expected deleting an already-absent key to fail")
	}
}

func TestDelFileNonOverwriteModeTombstones(t *testing.T) {
	s := newSubvolumeState(SubvolumeSource{}, false)
	s.addFile(path("a"), FileTypeRegular, 0)
	if err := s.delFile(path("a")); err != nil {
		t.Fatalf("delFile: %v", err)
	}
	snap := s.snapshot()
	entry, ok := snap.Files[path("a").Key()]
	if !ok || !entry.Deleted {
		t.Fatalf("expected a tombstone at a, got %+v, present=%v", entry, ok)
	}
	if err := s.delFile(path("a")); err == nil {
		t.Fatalf("expected deleting an already-tombstoned path to fail")
	}
}

func TestRenameChainLeavesOnlyFinalEntry(t *testing.T) {
	s := newSubvolumeState(SubvolumeSource{}, true)
	s.addFile(path("a"), FileTypeRegular, 0)
	if err := s.renameFile(path("a"), path("b")); err != nil {
		t.Fatalf("rename a->b: %v", err)
	}
	if err := s.renameFile(path("b"), path("c")); err != nil {
		t.Fatalf("rename b->c: %v", err)
	}
	for _, p := range []string{"a", "b"} {
		if _, err := s.getFile(path(p)); err == nil {
			t.Fatalf("expected nothing left at %q", p)
		}
	}
	info, err := s.getFile(path("c"))
	if err != nil {
		t.Fatalf("getFile(c): %v", err)
	}
	if !info.Filename.Equal(path("c")) {
		t.Fatalf("Filename = %v, want c", info.Filename)
	}
}

func TestCopyFilePreservesSourceAndClonesTombstone(t *testing.T) {
	s := newSubvolumeState(SubvolumeSource{}, false)
	s.addFile(path("a"), FileTypeRegular, 0)
	_ = s.delFile(path("a")) // a is now a tombstone

	if err := s.copyFile(path("a"), path("b")); err != nil {
		t.Fatalf("copyFile: %v", err)
	}
	snap := s.snapshot()
	entry, ok := snap.Files[path("b").Key()]
	if !ok || !entry.Deleted {
		t.Fatalf("expected the clone at b to also be a tombstone, got %+v present=%v", entry, ok)
	}
	if _, ok := snap.Files[path("a").Key()]; !ok {
		t.Fatalf("expected the source tombstone at a to remain")
	}
}

func TestModifyFailsOnTombstone(t *testing.T) {
	s := newSubvolumeState(SubvolumeSource{}, false)
	s.addFile(path("a"), FileTypeRegular, 0)
	_ = s.delFile(path("a"))
	err := s.modify(path("a"), func(fi *FileInfo) { fi.Permissions = 1 })
	if err == nil {
		t.Fatalf("expected modify on a tombstone to fail")
	}
}

func TestLoadFileFailsCleanlyWithoutPriorSnapshotProvider(t *testing.T) {
	s := newSubvolumeState(SubvolumeSource{}, false)
	_, err := s.getFile(path("never-seen"))
	if err == nil {
		t.Fatalf("expected getFile on an unseen path in non-overwrite mode to fail")
	}
	var ide *InvalidDataError
	if !errors.As(err, &ide) {
		t.Fatalf("expected *InvalidDataError, got %T: %v", err, err)
	}
}
