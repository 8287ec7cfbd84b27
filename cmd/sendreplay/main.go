package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"golang.org/x/sys/unix"

	"github.com/avogabo/sendreplay/internal/config"
	"github.com/avogabo/sendreplay/internal/index"
	"github.com/avogabo/sendreplay/internal/mountfs"
	"github.com/avogabo/sendreplay/internal/sendstream"
)

func main() {
	var cfgPath, streamPath string
	var enableMount, verify bool
	flag.StringVar(&cfgPath, "config", "/config/config.json", "path to config file (json)")
	flag.StringVar(&streamPath, "stream", "", "replay a single stream file instead of scanning paths.stream_dir")
	flag.BoolVar(&enableMount, "mount", true, "mount the browsable view at paths.mount_point after indexing")
	flag.BoolVar(&verify, "verify", false, "verify command checksums and that each stream file's path still names the opened file")
	flag.Parse()

	if err := config.EnsureConfigFile(cfgPath); err != nil {
		log.Fatalf("config bootstrap: %v", err)
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config load: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config validate: %v", err)
	}

	logger := newLogger()

	paths, err := streamFiles(cfg, streamPath)
	if err != nil {
		log.Fatalf("list stream files: %v", err)
	}
	if len(paths) == 0 {
		log.Fatalf("no stream files found under %s", cfg.Paths.StreamDir)
	}

	store, err := index.Open(cfg.Paths.IndexDB)
	if err != nil {
		log.Fatalf("open index: %v", err)
	}
	defer store.Close()

	settings := sendstream.ParserSettings{
		BypassErrors:   cfg.Parser.BypassErrors,
		VerifyChecksum: cfg.Parser.VerifyChecksum || verify,
	}

	ctx := context.Background()
	var totalBytes uint64
	var lastSnap sendstream.SubvolumeSnapshot
	haveSnap := false

	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			log.Fatalf("open %s: %v", path, err)
		}
		if verify {
			if err := checkNotSwapped(path, f); err != nil {
				f.Close()
				log.Fatalf("%v", err)
			}
		}
		info, err := f.Stat()
		if err != nil {
			f.Close()
			log.Fatalf("stat %s: %v", path, err)
		}
		totalBytes += uint64(info.Size())

		parser := sendstream.NewParser(settings, sendstream.StdSink{Logger: logger})

		snaps, err := parser.Parse(f)
		f.Close()
		if err != nil {
			log.Fatalf("parse %s: %v", path, err)
		}

		for _, snap := range snaps {
			id, err := store.Index(ctx, snap)
			if err != nil {
				log.Fatalf("index snapshot from %s: %v", path, err)
			}
			logger.Printf("indexed subvolume %s (%d files) from %s", id, len(snap.Files), filepath.Base(path))
			lastSnap, haveSnap = snap, true
		}
	}

	logger.Printf("replayed %s across %d stream file(s)", humanize.Bytes(totalBytes), len(paths))

	if !enableMount || !cfg.Mount.Enabled || !haveSnap {
		return
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fsys := mountfs.New(lastSnap)
	m, err := mountfs.Serve(sigCtx, cfg.Paths.MountPoint, fsys)
	if err != nil {
		log.Fatalf("mount: %v", err)
	}
	defer m.Close()

	logger.Printf("mounted at %s, press Ctrl-C to exit", cfg.Paths.MountPoint)
	<-sigCtx.Done()
}

func newLogger() *log.Logger {
	flags := log.LstdFlags
	if isatty.IsTerminal(os.Stderr.Fd()) {
		flags = log.LstdFlags | log.Lmsgprefix
	}
	return log.New(os.Stderr, "sendreplay: ", flags)
}

func streamFiles(cfg config.Config, override string) ([]string, error) {
	if override != "" {
		return []string{override}, nil
	}
	entries, err := os.ReadDir(cfg.Paths.StreamDir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".stream") {
			continue
		}
		out = append(out, filepath.Join(cfg.Paths.StreamDir, e.Name()))
	}
	return out, nil
}

// checkNotSwapped compares the path's current on-disk identity (device and
// inode) against the already-open file descriptor's identity, so it catches
// the path being replaced after the file was opened. A replacement made
// before the open is not detected: the open then already names the new file.
func checkNotSwapped(path string, f *os.File) error {
	var pre unix.Stat_t
	if err := unix.Stat(path, &pre); err != nil {
		return err
	}
	var cur unix.Stat_t
	if err := unix.Fstat(int(f.Fd()), &cur); err != nil {
		return err
	}
	if pre.Dev != cur.Dev || pre.Ino != cur.Ino {
		return fmt.Errorf("stream file %s changed underfoot (dev/ino mismatch)", path)
	}
	return nil
}
