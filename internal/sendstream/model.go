package sendstream

import (
	"time"

	"github.com/avogabo/sendreplay/internal/mixedstring"
)

// FileType is the tagged kind of a filesystem entry, with a stable numeric
// encoding matching the send-stream's own notion of file types.
type FileType uint8

const (
	FileTypeRegular FileType = iota
	FileTypeDirectory
	FileTypeSymlink
	FileTypeBlockDevice
	FileTypeCharDevice
	FileTypeFifo
	FileTypeSocket
	FileTypeUnknown
)

func (t FileType) String() string {
	switch t {
	case FileTypeRegular:
		return "file"
	case FileTypeDirectory:
		return "directory"
	case FileTypeSymlink:
		return "symlink"
	case FileTypeBlockDevice:
		return "block-device"
	case FileTypeCharDevice:
		return "char-device"
	case FileTypeFifo:
		return "fifo"
	case FileTypeSocket:
		return "socket"
	default:
		return "unknown"
	}
}

// FileInfo describes one entry in a subvolume's file inventory.
type FileInfo struct {
	Filename    mixedstring.MixedString
	Permissions uint64
	Modified    time.Time
	Accessed    time.Time
	Created     time.Time
	Length      uint64
	UserID      uint64
	GroupID     uint64
	FileType    FileType
}

// Clone returns a deep-enough copy of f suitable for an independent slot
// (MixedString is itself immutable, so only the struct needs copying).
func (f FileInfo) Clone() FileInfo { return f }

// SubvolumeSourceKind tags where a SubvolumeState's contents came from.
type SubvolumeSourceKind uint8

const (
	SourceStream SubvolumeSourceKind = iota
	SourceWalk
)

// SubvolumeSource identifies the origin of a SubvolumeState: a send-stream
// subvolume (by UUID) or a live filesystem walk (by root path). Only the
// Stream arm is ever constructed by this package's parser; Walk exists so
// the data model matches the alternate, out-of-scope ingestion path.
type SubvolumeSource struct {
	Kind SubvolumeSourceKind
	UUID [16]byte                // valid when Kind == SourceStream
	Path mixedstring.MixedString // valid when Kind == SourceWalk
}

// entrySlot holds either a present FileInfo or a tombstone. Tombstones only
// ever exist when the owning SubvolumeState is in incremental (non-overwrite)
// mode.
type entrySlot struct {
	info    FileInfo
	present bool // false == tombstone
}

// SubvolumeState holds the current, in-progress file inventory for one
// subvolume as a send-stream is replayed.
type SubvolumeState struct {
	Source    SubvolumeSource
	Overwrite bool

	paths map[string]mixedstring.MixedString // key -> canonical path, for iteration/lookup by original value
	files map[string]entrySlot
}

func newSubvolumeState(source SubvolumeSource, overwrite bool) *SubvolumeState {
	return &SubvolumeState{
		Source:    source,
		Overwrite: overwrite,
		paths:     make(map[string]mixedstring.MixedString),
		files:     make(map[string]entrySlot),
	}
}

// SubvolumeSnapshot is an immutable, finalized SubvolumeState handed off
// when a stream's End marker closes it out.
type SubvolumeSnapshot struct {
	Source    SubvolumeSource
	Overwrite bool
	Files     map[string]FileEntry
}

// FileEntry is one path's resolved state in a finished snapshot: either a
// live FileInfo, or a tombstone recording that the path was explicitly
// deleted relative to the incremental base.
type FileEntry struct {
	Path    mixedstring.MixedString
	Info    FileInfo // zero value when Deleted
	Deleted bool
}

// snapshot finalizes s into an immutable SubvolumeSnapshot.
func (s *SubvolumeState) snapshot() SubvolumeSnapshot {
	files := make(map[string]FileEntry, len(s.files))
	for key, slot := range s.files {
		files[key] = FileEntry{
			Path:    s.paths[key],
			Info:    slot.info,
			Deleted: !slot.present,
		}
	}
	return SubvolumeSnapshot{
		Source:    s.Source,
		Overwrite: s.Overwrite,
		Files:     files,
	}
}
