package classfile

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"
)

// archive prefixes holding the module's own classes in boot/web archives
var classRootPrefixes = []string{"BOOT-INF/classes/", "WEB-INF/classes/"}

// archive prefixes holding bundled dependencies, which are not analyzed
var libraryPrefixes = []string{"BOOT-INF/lib/", "WEB-INF/lib/", "META-INF/"}

// ArtifactSet is the result of discovery. Archives stay open until Close.
type ArtifactSet struct {
	Artifacts []Artifact
	closers   []io.Closer
}

// Close releases every archive opened during discovery
func (s *ArtifactSet) Close() error {
	var errs []error
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

// IsArtifactPath reports whether a path names something Discover consumes
func IsArtifactPath(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".class", ".jar", ".war":
		return true
	}
	return false
}

// NewMatcher compiles gitignore-style exclude patterns; nil when there are none
func NewMatcher(excludes []string) *ignore.GitIgnore {
	if len(excludes) == 0 {
		return nil
	}
	return ignore.CompileIgnoreLines(excludes...)
}

// Discover enumerates class files under the given roots. A root may be a
// directory (walked recursively), a .class file, or a .jar/.war archive.
// The result is sorted by artifact name.
func Discover(roots []string, excludes []string) (*ArtifactSet, error) {
	matcher := NewMatcher(excludes)
	set := &ArtifactSet{}

	for _, root := range roots {
		info, err := os.Stat(root)
		if err != nil {
			set.Close()
			return nil, fmt.Errorf("stat %s: %w", root, err)
		}
		switch {
		case info.IsDir():
			err = set.walkDir(root, matcher)
		case isArchive(root):
			err = set.addArchive(root, matcher)
		default:
			set.Artifacts = append(set.Artifacts, fileArtifact(root))
		}
		if err != nil {
			set.Close()
			return nil, err
		}
	}

	sort.Slice(set.Artifacts, func(i, j int) bool {
		return set.Artifacts[i].Name < set.Artifacts[j].Name
	})
	return set, nil
}

func (s *ArtifactSet) walkDir(root string, matcher *ignore.GitIgnore) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			rel = path
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			if rel != "." && matcher != nil && matcher.MatchesPath(rel+"/") {
				return filepath.SkipDir
			}
			return nil
		}
		if matcher != nil && matcher.MatchesPath(rel) {
			return nil
		}
		switch {
		case strings.HasSuffix(path, ".class"):
			s.Artifacts = append(s.Artifacts, fileArtifact(path))
		case isArchive(path):
			return s.addArchive(path, matcher)
		}
		return nil
	})
}

func (s *ArtifactSet) addArchive(path string, matcher *ignore.GitIgnore) error {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return fmt.Errorf("open archive %s: %w", path, err)
	}
	s.closers = append(s.closers, zr)

	for _, f := range zr.File {
		if f.FileInfo().IsDir() || !strings.HasSuffix(f.Name, ".class") {
			continue
		}
		entry, ok := classEntryName(f.Name)
		if !ok {
			continue
		}
		if matcher != nil && matcher.MatchesPath(entry) {
			continue
		}
		s.Artifacts = append(s.Artifacts, Artifact{
			Name: path + "!/" + f.Name,
			Open: f.Open,
		})
	}
	return nil
}

// classEntryName strips boot/web class prefixes and rejects bundled libraries
func classEntryName(name string) (string, bool) {
	for _, p := range classRootPrefixes {
		if strings.HasPrefix(name, p) {
			return strings.TrimPrefix(name, p), true
		}
	}
	for _, p := range libraryPrefixes {
		if strings.HasPrefix(name, p) {
			return "", false
		}
	}
	return name, true
}

func isArchive(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".jar" || ext == ".war"
}

func fileArtifact(path string) Artifact {
	return Artifact{
		Name: path,
		Open: func() (io.ReadCloser, error) {
			return os.Open(path)
		},
	}
}
