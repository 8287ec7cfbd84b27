package config

import (
	"encoding/json"
	"errors"
	"os"
)

// Paths controls where a replayed stream's inputs and outputs live.
type Paths struct {
	StreamDir  string `json:"stream_dir"`  // directory scanned for *.stream files
	IndexDB    string `json:"index_db"`    // sqlite database path for the search index
	MountPoint string `json:"mount_point"` // FUSE mount point for the browsable view
}

// Parser mirrors sendstream.ParserSettings as config-file fields.
type Parser struct {
	BypassErrors   bool `json:"bypass_errors"`
	VerifyChecksum bool `json:"verify_checksum"`
}

// Mount controls whether the FUSE browser is started after indexing.
type Mount struct {
	Enabled  bool `json:"enabled"`
	ReadOnly bool `json:"read_only"`
}

type Config struct {
	Paths  Paths  `json:"paths"`
	Parser Parser `json:"parser"`
	Mount  Mount  `json:"mount"`
}

func Default() Config {
	return Config{
		Paths: Paths{
			StreamDir:  "/data/streams",
			IndexDB:    "/data/index.db",
			MountPoint: "/data/mount",
		},
		Parser: Parser{BypassErrors: true},
		Mount:  Mount{Enabled: true, ReadOnly: true},
	}
}

// Load reads a JSON config file over top of Default. An empty path returns
// the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := json.Unmarshal(b, &cfg); err != nil {
		return cfg, err
	}
	if !cfg.Mount.ReadOnly {
		// The browser has no write path; config asking for read-write is
		// downgraded rather than rejected.
		cfg.Mount.ReadOnly = true
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.Paths.StreamDir == "" {
		return errors.New("paths.stream_dir required")
	}
	if c.Paths.IndexDB == "" {
		return errors.New("paths.index_db required")
	}
	if c.Mount.Enabled && c.Paths.MountPoint == "" {
		return errors.New("paths.mount_point required when mount.enabled")
	}
	return nil
}
