// Package mountfs exposes a parsed SubvolumeSnapshot as a read-only FUSE
// filesystem: one directory node per path segment, built once at mount
// time from the snapshot's flat path -> entry map. It serves metadata only
// — the core never captures file content, only inventory — so every file
// reads back empty.
package mountfs

import (
	"context"
	"os"
	"sort"
	"strings"

	"bazil.org/fuse"
	"bazil.org/fuse/fs"

	"github.com/avogabo/sendreplay/internal/sendstream"
)

// FS wraps one snapshot for mounting.
type FS struct {
	root *treeNode
}

// New builds a browsable tree from snap. Tombstoned paths are omitted: a
// deleted entry has nothing left to show.
func New(snap sendstream.SubvolumeSnapshot) *FS {
	root := &treeNode{children: map[string]*treeNode{}}
	for _, entry := range snap.Files {
		if entry.Deleted {
			continue
		}
		insert(root, entry)
	}
	return &FS{root: root}
}

func (f *FS) Root() (fs.Node, error) { return &dirNode{n: f.root}, nil }

type treeNode struct {
	entry    *sendstream.FileEntry // nil for a directory implied only by being an ancestor
	children map[string]*treeNode
}

func insert(root *treeNode, entry sendstream.FileEntry) {
	parts := splitPath(entry.Path.ToBytes())
	cur := root
	for i, part := range parts {
		if part == "" {
			continue
		}
		child, ok := cur.children[part]
		if !ok {
			child = &treeNode{children: map[string]*treeNode{}}
			cur.children[part] = child
		}
		if i == len(parts)-1 {
			e := entry
			child.entry = &e
		}
		cur = child
	}
}

func splitPath(b []byte) []string {
	return strings.Split(strings.Trim(string(b), "/"), "/")
}

func (n *treeNode) isDir() bool {
	return n.entry == nil || n.entry.Info.FileType == sendstream.FileTypeDirectory
}

type dirNode struct{ n *treeNode }

func (d *dirNode) Attr(ctx context.Context, a *fuse.Attr) error {
	a.Mode = os.ModeDir | 0o555
	return nil
}

func (d *dirNode) Lookup(ctx context.Context, name string) (fs.Node, error) {
	child, ok := d.n.children[name]
	if !ok {
		return nil, fuse.ENOENT
	}
	if child.isDir() {
		return &dirNode{n: child}, nil
	}
	return &fileNode{n: child}, nil
}

func (d *dirNode) ReadDirAll(ctx context.Context) ([]fuse.Dirent, error) {
	out := make([]fuse.Dirent, 0, len(d.n.children))
	for name, child := range d.n.children {
		typ := fuse.DT_File
		if child.isDir() {
			typ = fuse.DT_Dir
		}
		out = append(out, fuse.Dirent{Name: name, Type: typ})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

type fileNode struct{ n *treeNode }

func (f *fileNode) Attr(ctx context.Context, a *fuse.Attr) error {
	info := f.n.entry.Info
	a.Mode = 0o444
	a.Size = info.Length
	a.Uid = uint32(info.UserID)
	a.Gid = uint32(info.GroupID)
	a.Mtime = info.Modified
	return nil
}

func (f *fileNode) ReadAll(ctx context.Context) ([]byte, error) { return nil, nil }

var _ fs.FS = (*FS)(nil)
var _ fs.Node = (*dirNode)(nil)
var _ fs.NodeStringLookuper = (*dirNode)(nil)
var _ fs.HandleReadDirAller = (*dirNode)(nil)
var _ fs.Node = (*fileNode)(nil)
var _ fs.HandleReader = (*fileNode)(nil)
