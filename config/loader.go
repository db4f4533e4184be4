package config

import (
	"bytes"
	stderrors "errors"
	"io"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"gopkg.in/yaml.v3"

	"github.com/sergcen/npm-package-diff/errors"
)

// Load reads and validates the configuration at path on filesystem.
func Load(filesystem billy.Filesystem, path string, opts LoadOptions) (*Config, error) {
	data, err := util.ReadFile(filesystem, path)
	if err != nil {
		if opts.Optional && stderrors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, errors.WrapWithContext(
			err,
			errors.CodeNotFound,
			"failed to read configuration",
			map[string]interface{}{
				"path": path,
			},
		)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, errors.WrapWithContext(
			err,
			errors.CodeInvalidConfig,
			"failed to decode configuration",
			map[string]interface{}{
				"path": path,
			},
		)
	}

	if !opts.SkipValidation {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// Parse decodes YAML configuration. Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !stderrors.Is(err, io.EOF) {
		return nil, err
	}
	return cfg, nil
}

// UserFile is the per-user configuration file below the XDG config home.
var UserFile = filepath.Join("pkgdiff", "config.yaml")

// Locate returns the configuration file for workDir: DefaultFile in workDir
// when present on filesystem, otherwise UserFile from the XDG config
// directories. It returns "" when neither exists.
func Locate(filesystem billy.Filesystem, workDir string) string {
	local := filepath.Join(workDir, DefaultFile)
	if _, err := filesystem.Stat(local); err == nil {
		return local
	}
	if p, err := xdg.SearchConfigFile(UserFile); err == nil {
		return p
	}
	return ""
}
