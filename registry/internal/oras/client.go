// Package oras provides ORAS wrapper functionality.
// This isolates the ORAS dependency in an internal package.
package oras

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/opencontainers/go-digest"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"oras.land/oras-go/v2"
	"oras.land/oras-go/v2/registry"
	"oras.land/oras-go/v2/registry/remote"
	"oras.land/oras-go/v2/registry/remote/auth"
	"oras.land/oras-go/v2/registry/remote/credentials"
	"oras.land/oras-go/v2/registry/remote/retry"
)

// AuthOptions configures authentication and transport for ORAS operations.
type AuthOptions struct {
	// StaticRegistry, StaticUsername and StaticPassword override the Docker
	// credential chain for one registry host.
	StaticRegistry string
	StaticUsername string
	StaticPassword string

	// PlainHTTP talks to the registry over HTTP instead of HTTPS.
	PlainHTTP bool
}

// PullDescriptor describes the content pulled from an OCI registry.
type PullDescriptor struct {
	MediaType string
	Digest    digest.Digest
	Size      int64
	Data      io.ReadCloser
}

// Client performs tag listing and pulls against remote repositories.
type Client struct {
	Auth *AuthOptions
}

// Tags lists every tag of repository (e.g. "ghcr.io/org/pkg").
func (c *Client) Tags(ctx context.Context, repository string) ([]string, error) {
	repo, err := NewRepository(ctx, repository, c.Auth)
	if err != nil {
		return nil, mapORASError("tags", repository, err)
	}
	tags, err := registry.Tags(ctx, repo)
	if err != nil {
		return nil, mapORASError("tags", repository, err)
	}
	return tags, nil
}

// Pull fetches the artifact at reference (repository:tag or repository@digest).
func (c *Client) Pull(ctx context.Context, reference string) (*PullDescriptor, error) {
	repo, err := NewRepository(ctx, reference, c.Auth)
	if err != nil {
		return nil, mapORASError("pull", reference, err)
	}
	_, refPart, _ := splitReference(reference)
	if refPart == "" {
		return nil, mapORASError("pull", reference, fmt.Errorf("reference must include a tag or digest"))
	}
	desc, err := PullLayer(ctx, repo, refPart)
	if err != nil {
		return nil, mapORASError("pull", reference, err)
	}
	return desc, nil
}

// NewRepository creates a remote repository for reference with credentials
// taken from the Docker credential chain unless a static override applies.
func NewRepository(_ context.Context, reference string, opts *AuthOptions) (*remote.Repository, error) {
	repoPath, _, _ := splitReference(reference)
	if repoPath == "" {
		return nil, fmt.Errorf("invalid reference: %s", reference)
	}

	repo, err := remote.NewRepository(repoPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create repository: %w", err)
	}

	client := &auth.Client{
		Client: retry.DefaultClient,
		Cache:  auth.NewCache(),
	}

	switch {
	case opts != nil && opts.StaticRegistry != "" && opts.StaticUsername != "":
		client.Credential = auth.StaticCredential(opts.StaticRegistry, auth.Credential{
			Username: opts.StaticUsername,
			Password: opts.StaticPassword,
		})
	default:
		// Anonymous access when no Docker config is available.
		if store, storeErr := credentials.NewStoreFromDocker(credentials.StoreOptions{}); storeErr == nil {
			client.Credential = credentials.Credential(store)
		}
	}

	repo.Client = client
	if opts != nil && opts.PlainHTTP {
		repo.PlainHTTP = true
	}
	return repo, nil
}

// PullLayer resolves ref on target and returns a reader over the artifact
// payload. Image manifests are followed to their first layer.
func PullLayer(ctx context.Context, target oras.ReadOnlyTarget, ref string) (*PullDescriptor, error) {
	desc, reader, err := oras.Fetch(ctx, target, ref, oras.DefaultFetchOptions)
	if err != nil {
		return nil, err
	}

	if desc.MediaType != ocispec.MediaTypeImageManifest {
		return &PullDescriptor{MediaType: desc.MediaType, Digest: desc.Digest, Size: desc.Size, Data: reader}, nil
	}

	manifestBytes, err := io.ReadAll(reader)
	_ = reader.Close()
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var imgMan ocispec.Manifest
	if err := json.Unmarshal(manifestBytes, &imgMan); err != nil {
		return nil, fmt.Errorf("unrecognized manifest format: %w", err)
	}
	if len(imgMan.Layers) == 0 {
		return nil, fmt.Errorf("no layers in image manifest")
	}

	layerDesc := imgMan.Layers[0]
	layerReader, err := target.Fetch(ctx, layerDesc)
	if err != nil {
		return nil, fmt.Errorf("fetch layer: %w", err)
	}
	return &PullDescriptor{
		MediaType: layerDesc.MediaType,
		Digest:    layerDesc.Digest,
		Size:      layerDesc.Size,
		Data:      layerReader,
	}, nil
}

// splitReference splits a full OCI reference into repository path and reference part (tag or digest).
// Examples:
//
//	localhost:5000/myrepo:latest -> ("localhost:5000/myrepo", "latest", false)
//	ghcr.io/org/name@sha256:abcd -> ("ghcr.io/org/name", "sha256:abcd", true)
func splitReference(full string) (repoPath, refPart string, isDigest bool) {
	if full == "" {
		return "", "", false
	}
	lastSlash := strings.LastIndex(full, "/")
	if lastSlash == -1 {
		return full, "", false
	}
	head := full[:lastSlash]
	tail := full[lastSlash+1:]

	if at := strings.LastIndex(tail, "@"); at != -1 {
		return head + "/" + tail[:at], tail[at+1:], true
	}
	if colon := strings.LastIndex(tail, ":"); colon != -1 {
		// Only the tail is searched so a registry port is never taken for a tag.
		return head + "/" + tail[:colon], tail[colon+1:], false
	}
	return full, "", false
}

// mapORASError maps ORAS errors to messages carrying the operation and reference.
func mapORASError(op, ref string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, auth.ErrBasicCredentialNotFound) {
		return fmt.Errorf("authentication failed: %w", err)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("registry unreachable: %w", err)
	}
	return fmt.Errorf("%s %s: %w", op, ref, err)
}
