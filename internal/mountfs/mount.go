package mountfs

import (
	"context"
	"os"
	"os/exec"
	"time"

	gofuse "bazil.org/fuse"
	"bazil.org/fuse/fs"

	"golang.org/x/sys/unix"
)

// Mount is a running FUSE session; Close closes its FUSE connection without
// unmounting. A mount left behind is detached by the next Serve on the same
// mount point.
type Mount struct {
	conn *gofuse.Conn
}

func (m *Mount) Close() error {
	if m.conn != nil {
		return m.conn.Close()
	}
	return nil
}

// Serve mounts filesystem at mountpoint and serves it until ctx is canceled.
// Any stale mount left over from a previous run is detached first.
func Serve(ctx context.Context, mountpoint string, filesystem *FS) (*Mount, error) {
	detachStale(mountpoint)
	if err := os.MkdirAll(mountpoint, 0o755); err != nil {
		return nil, err
	}
	conn, err := gofuse.Mount(mountpoint,
		gofuse.ReadOnly(),
		gofuse.FSName("sendreplay"),
		gofuse.Subtype("sendreplay"),
	)
	if err != nil {
		return nil, err
	}
	m := &Mount{conn: conn}
	go func() { _ = fs.Serve(conn, filesystem) }()
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()
	return m, nil
}

func detachStale(mountpoint string) {
	if mountpoint == "" {
		return
	}
	for i := 0; i < 3; i++ {
		_ = unix.Unmount(mountpoint, unix.MNT_DETACH)
		_, _ = exec.Command("fusermount3", "-uz", mountpoint).CombinedOutput()
		_, _ = exec.Command("umount", "-l", mountpoint).CombinedOutput()
		time.Sleep(150 * time.Millisecond)
	}
}
