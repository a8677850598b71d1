// Package id generates prefixed, URL-safe identifiers.
package id

import (
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// PrefixJob prefixes chapter job identifiers.
const PrefixJob = "job"

// Generate returns prefix-<nanoid>, e.g. "job-V1StGXR8_Z5jdHi6B-myT".
func Generate(prefix string) (string, error) {
	nid, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("generate nanoid: %w", err)
	}
	return prefix + "-" + nid, nil
}

// NewJobID returns an identifier for a persisted chapter job.
func NewJobID() (string, error) {
	return Generate(PrefixJob)
}
