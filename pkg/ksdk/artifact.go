package ksdk

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

var ErrArtifactReleased = errors.New("artifact has been released")

// Artifact is a read-only handle on a locally cached video. The JobClient
// that resolved it owns the file and deletes it on release.
type Artifact struct {
	ID          string
	JobID       string
	Size        int64
	ContentType string

	path     string
	released atomic.Bool
}

// URL is a file:// locator for the cached copy.
func (a *Artifact) URL() string {
	return "file://" + filepath.ToSlash(a.path)
}

func (a *Artifact) Path() string {
	return a.path
}

// Open returns a reader over the cached bytes.
func (a *Artifact) Open() (*os.File, error) {
	if a.Released() {
		return nil, ErrArtifactReleased
	}
	return os.Open(a.path)
}

func (a *Artifact) Released() bool {
	return a == nil || a.released.Load()
}

// artifactCache hands out artifact files under one directory and counts them.
type artifactCache struct {
	mu      sync.Mutex
	root    string
	dir     string
	ownsDir bool
	closed  bool

	created  int
	released int
	live     int
	maxLive  int
}

func newArtifactCache(root string) *artifactCache {
	return &artifactCache{root: root}
}

// ensureDir returns the cache directory, creating it on first use. The
// caller holds mu.
func (c *artifactCache) ensureDir() (string, error) {
	if c.closed {
		return "", ErrClientClosed
	}
	if c.dir != "" {
		return c.dir, nil
	}
	root := c.root
	if root != "" {
		if err := os.MkdirAll(root, 0o755); err != nil {
			return "", fmt.Errorf("creating cache root: %w", err)
		}
	}
	dir, err := os.MkdirTemp(root, "kino-artifacts-")
	if err != nil {
		return "", fmt.Errorf("creating artifact cache: %w", err)
	}
	c.dir = dir
	c.ownsDir = true
	return dir, nil
}

// stagedArtifact is a downloaded file that is not yet a live handle.
type stagedArtifact struct {
	jobID       string
	tmpPath     string
	ext         string
	size        int64
	contentType string
}

// stage copies the stream into a hidden temp file in the cache directory.
// Staged files do not count as live artifacts.
func (c *artifactCache) stage(jobID, ref string, s *ArtifactStream) (*stagedArtifact, error) {
	c.mu.Lock()
	dir, err := c.ensureDir()
	if err != nil {
		c.mu.Unlock()
		return nil, err
	}
	tmp, err := os.CreateTemp(dir, ".partial-*")
	c.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("creating artifact file: %w", err)
	}
	n, err := io.Copy(tmp, s.Body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp.Name())
		return nil, err
	}

	ext := artifactExt(ref, s.ContentType)
	ct := s.ContentType
	if ct == "" {
		ct = mime.TypeByExtension(ext)
	}
	return &stagedArtifact{jobID: jobID, tmpPath: tmp.Name(), ext: ext, size: n, contentType: ct}, nil
}

// commit turns a staged file into a live artifact.
func (c *artifactCache) commit(st *stagedArtifact) (*Artifact, error) {
	id := uuid.NewString()
	final := filepath.Join(filepath.Dir(st.tmpPath), id+st.ext)
	if err := os.Rename(st.tmpPath, final); err != nil {
		os.Remove(st.tmpPath)
		return nil, fmt.Errorf("finalizing artifact file: %w", err)
	}

	c.mu.Lock()
	c.created++
	c.live++
	if c.live > c.maxLive {
		c.maxLive = c.live
	}
	c.mu.Unlock()

	return &Artifact{ID: id, JobID: st.jobID, Size: st.size, ContentType: st.contentType, path: final}, nil
}

func (c *artifactCache) discard(st *stagedArtifact) {
	if st != nil {
		os.Remove(st.tmpPath)
	}
}

// release deletes the artifact file. Releasing twice is a no-op.
func (c *artifactCache) release(a *Artifact) {
	if a == nil || !a.released.CompareAndSwap(false, true) {
		return
	}
	os.Remove(a.path)
	c.mu.Lock()
	c.released++
	c.live--
	c.mu.Unlock()
}

type cacheStats struct {
	Created, Released, Live, MaxLive int
}

func (c *artifactCache) stats() cacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return cacheStats{c.created, c.released, c.live, c.maxLive}
}

// close removes the cache directory if this cache created it. Later stages
// fail with ErrClientClosed.
func (c *artifactCache) close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	if !c.ownsDir || c.dir == "" {
		return nil
	}
	err := os.RemoveAll(c.dir)
	c.dir = ""
	c.ownsDir = false
	return err
}

func artifactExt(ref, contentType string) string {
	if u := strings.SplitN(ref, "?", 2)[0]; path.Ext(u) != "" {
		return path.Ext(u)
	}
	if contentType != "" {
		if mt, _, err := mime.ParseMediaType(contentType); err == nil {
			switch mt {
			case "video/mp4":
				return ".mp4"
			case "video/webm":
				return ".webm"
			case "image/gif":
				return ".gif"
			}
			if exts, _ := mime.ExtensionsByType(mt); len(exts) > 0 {
				return exts[0]
			}
		}
	}
	return ".bin"
}
