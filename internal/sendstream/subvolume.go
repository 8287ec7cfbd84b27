package sendstream

import (
	"time"

	"github.com/avogabo/sendreplay/internal/mixedstring"
)

// epoch is the default timestamp a freshly-created entry carries until a
// later Utimes command overwrites it, matching the source's
// NaiveDateTime::from_timestamp(0, 0).
var epoch = time.Unix(0, 0).UTC()

// addFile inserts or overwrites path with a freshly-created, empty entry
// (epoch timestamps, zero length, zero uid/gid). Commands that create
// something (MkFile, MkDir, MkNod, Symlink, ...) call this before filling in
// attributes via later commands (Chmod, Chown, Utimes, ...) or TLVs carried
// on the same frame.
func (s *SubvolumeState) addFile(path mixedstring.MixedString, typ FileType, mode uint64) {
	key := path.Key()
	s.paths[key] = path
	s.files[key] = entrySlot{
		info: FileInfo{
			Filename:    path,
			Permissions: mode,
			Modified:    epoch,
			Accessed:    epoch,
			Created:     epoch,
			FileType:    typ,
		},
		present: true,
	}
}

// renameFile pops from and re-inserts its slot under to, leaving nothing
// behind at from. A tombstone renames to a tombstone; this mirrors the
// source exactly rather than being a meaningful real-world case.
func (s *SubvolumeState) renameFile(from, to mixedstring.MixedString) error {
	slot, err := s.popFile(from)
	if err != nil {
		return err
	}
	if slot.present {
		slot.info.Filename = to
	}
	key := to.Key()
	s.paths[key] = to
	s.files[key] = slot
	return nil
}

// delFile removes path. In overwrite mode this drops the key entirely; in
// incremental mode the path becomes a tombstone instead, recording that it
// was explicitly deleted relative to the base snapshot. It fails if the
// path isn't present (or is already a tombstone).
func (s *SubvolumeState) delFile(path mixedstring.MixedString) error {
	key := path.Key()
	slot, ok := s.files[key]
	if !ok || !slot.present {
		return invalidDataf("delete of unknown path %q", path.String())
	}
	if s.Overwrite {
		delete(s.files, key)
		delete(s.paths, key)
		return nil
	}
	s.files[key] = entrySlot{present: false}
	return nil
}

// loadFile ensures path is resolvable before a get/pop/modify. In overwrite
// mode, or when the path is already present, this is a no-op: everything
// needed lives in this stream's own state. In incremental mode, a path
// that was never touched by this stream would need to be faulted in from
// the snapshot it's incremental against — a prior-snapshot provider this
// package does not implement, so that case fails cleanly instead of
// resolving silently or panicking.
func (s *SubvolumeState) loadFile(path mixedstring.MixedString) error {
	if s.Overwrite {
		return nil
	}
	if _, ok := s.files[path.Key()]; ok {
		return nil
	}
	return invalidDataf("cannot load %q: no prior-snapshot source configured", path.String())
}

// getFile resolves path to its current FileInfo, faulting it in via
// loadFile first. It fails if the path is absent or a tombstone.
func (s *SubvolumeState) getFile(path mixedstring.MixedString) (FileInfo, error) {
	if err := s.loadFile(path); err != nil {
		return FileInfo{}, err
	}
	slot, ok := s.files[path.Key()]
	if !ok || !slot.present {
		return FileInfo{}, invalidDataf("unknown path %q", path.String())
	}
	return slot.info, nil
}

// popFile loads path, then unconditionally removes and returns its slot —
// unlike delFile, it never leaves a tombstone behind, in either mode: the
// path's identity is being transferred (by Rename), not deleted. It fails
// only if the key is entirely absent; a tombstone counts as present and
// pops cleanly (rename of an already-deleted path is legal, if unusual).
func (s *SubvolumeState) popFile(path mixedstring.MixedString) (entrySlot, error) {
	if err := s.loadFile(path); err != nil {
		return entrySlot{}, err
	}
	key := path.Key()
	slot, ok := s.files[key]
	if !ok {
		return entrySlot{}, invalidDataf("unknown path %q", path.String())
	}
	delete(s.files, key)
	delete(s.paths, key)
	return slot, nil
}

// copyFile resolves src via loadFile, clones its slot — including its
// tombstone-ness — and inserts the clone under dst, renaming the filename
// field only if the slot is present. The source remains under src. Used by
// Link and Clone, which copy without removing the source.
func (s *SubvolumeState) copyFile(src, dst mixedstring.MixedString) error {
	if err := s.loadFile(src); err != nil {
		return err
	}
	slot, ok := s.files[src.Key()]
	if !ok {
		return invalidDataf("copy of unknown path %q", src.String())
	}
	info := slot.info
	if slot.present {
		info.Filename = dst
	}
	key := dst.Key()
	s.paths[key] = dst
	s.files[key] = entrySlot{info: info, present: slot.present}
	return nil
}

// modify loads path, fails if it's absent or a tombstone, and otherwise
// applies mutate to a copy of its FileInfo before storing the result back.
// Chmod, Chown, and Utimes are all modify calls with a different mutator.
func (s *SubvolumeState) modify(path mixedstring.MixedString, mutate func(*FileInfo)) error {
	if err := s.loadFile(path); err != nil {
		return err
	}
	key := path.Key()
	slot, ok := s.files[key]
	if !ok {
		return invalidDataf("modify of unknown path %q", path.String())
	}
	if !slot.present {
		return invalidDataf("modify of deleted path %q", path.String())
	}
	info := slot.info
	mutate(&info)
	s.files[key] = entrySlot{info: info, present: true}
	return nil
}
