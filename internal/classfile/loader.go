package classfile

import (
	"bytes"
	"io"
	"iter"
	"sync/atomic"
)

// Artifact is one compiled-class byte stream with a stable identity
// (a file path, or "archive.jar!/entry.class")
type Artifact struct {
	Name string
	Open func() (io.ReadCloser, error)
}

// BytesArtifact wraps an in-memory class file
func BytesArtifact(name string, data []byte) Artifact {
	return Artifact{
		Name: name,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

// LoadArtifact opens and parses a single artifact
func LoadArtifact(a Artifact) (*ClassDescriptor, error) {
	rc, err := a.Open()
	if err != nil {
		return nil, &FormatError{Artifact: a.Name, Reason: "open failed", Err: err}
	}
	defer rc.Close()
	return Read(a.Name, rc)
}

// Load returns a lazy, single-pass sequence of descriptors. A malformed
// artifact yields (nil, *FormatError) and the sequence moves on to the next.
// Artifacts are consumed as they are reached; ranging over the sequence a
// second time yields nothing.
func Load(artifacts []Artifact) iter.Seq2[*ClassDescriptor, error] {
	var consumed atomic.Bool
	return func(yield func(*ClassDescriptor, error) bool) {
		if consumed.Swap(true) {
			return
		}
		for _, a := range artifacts {
			cd, err := LoadArtifact(a)
			if !yield(cd, err) {
				return
			}
		}
	}
}
