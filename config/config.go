// Package config loads pkgdiff settings from a YAML file.
//
// The file is optional. When present it supplies defaults that command-line
// flags override.
//
// # Basic Usage
//
//	fs := osfs.New(".")
//	cfg, err := config.Load(fs, config.DefaultFile, config.LoadOptions{Optional: true})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	client := pkgdiff.New(pkgdiff.WithConcurrency(cfg.Concurrency))
//
// An example file:
//
//	registry: https://registry.npmjs.org
//	preferOffline: true
//	exclude:
//	  - "*.md"
//	  - "/\\.map$/"
//	concurrency: 8
//	s3:
//	  region: eu-west-1
package config

// DefaultFile is the file looked up in the working directory.
const DefaultFile = ".pkgdiff.yaml"

// Config holds file settings.
type Config struct {
	// Registry is the registry URL: http(s)://, oci://, oci+http:// or s3://.
	Registry string `yaml:"registry"`

	// PreferOffline lets the registry backend use its cache first.
	PreferOffline bool `yaml:"preferOffline"`

	// Exclude lists glob or /regex/ patterns removed from both packages.
	Exclude []string `yaml:"exclude"`

	// FastCheck selects fast mode.
	FastCheck bool `yaml:"fastCheck"`

	// Concurrency bounds full mode diffs. Zero selects the default.
	Concurrency int `yaml:"concurrency"`

	// TempDir is the session base directory.
	TempDir string `yaml:"tempDir"`

	// Cleanup removes the session when the comparison ends.
	Cleanup bool `yaml:"cleanup"`

	// Retries is the number of npm pack retries. Nil keeps the default.
	Retries *int `yaml:"retries"`

	S3  S3Config  `yaml:"s3"`
	OCI OCIConfig `yaml:"oci"`
}

// S3Config configures the s3:// registry backend.
type S3Config struct {
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint"`
}

// OCIConfig configures the oci:// registry backend.
type OCIConfig struct {
	// PlainHTTP talks HTTP to every OCI registry.
	PlainHTTP bool `yaml:"plainHTTP"`
}

// LoadOptions configures Load.
type LoadOptions struct {
	// Optional makes a missing file yield an empty Config.
	Optional bool

	// SkipValidation disables validation after decoding.
	SkipValidation bool
}
