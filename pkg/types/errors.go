// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "errors"

// Error taxonomy shared by pipeline stages. Stages wrap these with context
// using fmt.Errorf("...: %w", err); callers classify with errors.Is.
var (
	// ErrTransientNetwork marks a request failure that may succeed on retry.
	ErrTransientNetwork = errors.New("transient network failure")

	// ErrDownloadExhausted is returned when every retrieval attempt failed.
	ErrDownloadExhausted = errors.New("download attempts exhausted")

	// ErrNoLink is returned when no document link could be found on a page.
	ErrNoLink = errors.New("no document link found")

	// ErrAssetMissing is returned when an image's source file does not exist.
	ErrAssetMissing = errors.New("image source missing")

	// ErrSchemaMismatch is returned when a conversion response does not have
	// the expected shape.
	ErrSchemaMismatch = errors.New("conversion response schema mismatch")

	// ErrRemoteService is returned when a remote collaborator reports failure.
	ErrRemoteService = errors.New("remote service error")

	// ErrMissingCredential is returned when a required credential is not configured.
	ErrMissingCredential = errors.New("missing credential")
)
