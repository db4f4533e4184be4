package config

import (
	"fmt"
	"strings"

	"github.com/sergcen/npm-package-diff/errors"
	"github.com/sergcen/npm-package-diff/manifest"
	"github.com/sergcen/npm-package-diff/registry"
)

// Validate checks field values. All problems are reported in one error.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New(errors.CodeInvalidInput, "configuration is nil")
	}

	var validationErrors []string

	if _, err := registry.KindOf(c.Registry); err != nil {
		validationErrors = append(validationErrors, fmt.Sprintf("registry: %v", err))
	}
	if _, err := manifest.NewMatcher(c.Exclude...); err != nil {
		validationErrors = append(validationErrors, fmt.Sprintf("exclude: %v", err))
	}
	if c.Concurrency < 0 {
		validationErrors = append(validationErrors, fmt.Sprintf("concurrency: must not be negative, got %d", c.Concurrency))
	}
	if c.Retries != nil && *c.Retries < 0 {
		validationErrors = append(validationErrors, fmt.Sprintf("retries: must not be negative, got %d", *c.Retries))
	}
	if c.S3.Endpoint != "" && !strings.Contains(c.S3.Endpoint, "://") {
		validationErrors = append(validationErrors, fmt.Sprintf("s3.endpoint: %q is not a URL", c.S3.Endpoint))
	}

	if len(validationErrors) > 0 {
		return errors.New(
			errors.CodeInvalidConfig,
			fmt.Sprintf("configuration validation failed: %s", strings.Join(validationErrors, "; ")),
		)
	}
	return nil
}
