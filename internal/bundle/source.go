package bundle

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FileMeta describes one file found by a Source, before its bytes have
// necessarily been read.
type FileMeta struct {
	RelPath string
	Size    int64
	ModTime int64 // unix millis; stable across platforms, unlike raw mtime precision
}

// Source lists and reads the files that make up one bundle.
type Source interface {
	ListFiles() ([]FileMeta, error)
	ReadFile(relPath string) ([]byte, error)
}

// Fetcher materializes a git ref into destDir, for the git source kind. A
// concrete git client (shelling to `git`, or a pure-Go implementation) is a
// named out-of-core driver, so AetherFlow itself only defines the seam.
type Fetcher interface {
	Fetch(location, destDir string) error
}

// localSource reads files directly from a directory on the local
// filesystem, used for source.type == "local".
type localSource struct {
	root string
}

func newLocalSource(root string) *localSource {
	return &localSource{root: root}
}

func (s *localSource) ListFiles() ([]FileMeta, error) {
	var out []FileMeta
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		out = append(out, FileMeta{
			RelPath: filepath.ToSlash(rel),
			Size:    info.Size(),
			ModTime: info.ModTime().UnixMilli(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("bundle: list local source %s: %w", s.root, err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RelPath < out[j].RelPath })
	return out, nil
}

func (s *localSource) ReadFile(relPath string) ([]byte, error) {
	return os.ReadFile(filepath.Join(s.root, filepath.FromSlash(relPath)))
}

// archiveSource reads files out of a zip archive, used for
// source.type == "archive". The zip reader is opened once and kept for the
// lifetime of a sync, since archive/zip requires random access to read
// entries by name.
type archiveSource struct {
	reader *zip.ReadCloser
	files  map[string]*zip.File
}

func newArchiveSource(path string) (*archiveSource, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("bundle: open archive %s: %w", path, err)
	}
	files := make(map[string]*zip.File, len(r.File))
	for _, f := range r.File {
		if strings.HasSuffix(f.Name, "/") {
			continue
		}
		files[filepath.ToSlash(f.Name)] = f
	}
	return &archiveSource{reader: r, files: files}, nil
}

func (s *archiveSource) Close() error {
	return s.reader.Close()
}

func (s *archiveSource) ListFiles() ([]FileMeta, error) {
	out := make([]FileMeta, 0, len(s.files))
	for rel, f := range s.files {
		out = append(out, FileMeta{
			RelPath: rel,
			Size:    int64(f.UncompressedSize64),
			ModTime: f.Modified.UnixMilli(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RelPath < out[j].RelPath })
	return out, nil
}

func (s *archiveSource) ReadFile(relPath string) ([]byte, error) {
	f, ok := s.files[relPath]
	if !ok {
		return nil, fmt.Errorf("bundle: %s not found in archive", relPath)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// gitSource delegates materialization to a Fetcher, then reads the
// resulting checkout the same way localSource does.
type gitSource struct {
	*localSource
}

func newGitSource(fetcher Fetcher, location, checkoutDir string) (*gitSource, error) {
	if fetcher == nil {
		return nil, ErrNoFetcher
	}
	if err := fetcher.Fetch(location, checkoutDir); err != nil {
		return nil, fmt.Errorf("bundle: git fetch %s: %w", location, err)
	}
	return &gitSource{localSource: newLocalSource(checkoutDir)}, nil
}
