package resolve

import (
	"os"
	"path/filepath"
	"strings"

	"sheetmill/internal/config"
)

// Resolver turns stored file references into concrete filesystem locations.
// References recorded by the enqueueing application may be absolute, relative
// to the repository, relative to the upload directory, or point into a legacy
// container layout; the resolver probes every plausible root in a fixed order.
type Resolver struct {
	workDir     string
	baseDir     string
	repoRoot    string
	dataDir     string
	uploadDir   string
	legacyRoots []string
}

// Option customizes resolver construction.
type Option func(*Resolver)

// WithWorkDir overrides the process working directory used for candidate
// construction.
func WithWorkDir(dir string) Option {
	return func(r *Resolver) {
		r.workDir = dir
	}
}

// WithBaseDir overrides the executable directory used for candidate
// construction.
func WithBaseDir(dir string) Option {
	return func(r *Resolver) {
		r.baseDir = dir
	}
}

// New builds a resolver from the configured layout roots.
func New(cfg *config.Config, opts ...Option) *Resolver {
	r := &Resolver{
		repoRoot:    cfg.Paths.RepoRoot,
		dataDir:     cfg.Paths.DataDir,
		uploadDir:   cfg.Paths.UploadDir,
		legacyRoots: append([]string(nil), cfg.Resolver.LegacyRoots...),
	}
	if wd, err := os.Getwd(); err == nil {
		r.workDir = wd
	}
	if exe, err := os.Executable(); err == nil {
		r.baseDir = filepath.Dir(exe)
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Candidates returns the ordered, de-duplicated absolute locations that may
// hold the referenced file. The list is computed fresh per call and never
// touches the filesystem.
func (r *Resolver) Candidates(ref string) []string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil
	}
	cleaned := strings.TrimLeft(ref, "./")

	set := newCandidateSet()
	if filepath.IsAbs(ref) {
		set.add(ref)
	} else {
		set.add(filepath.Join(r.workDir, ref))
		set.add(filepath.Join(r.workDir, cleaned))
		set.add(filepath.Join(r.baseDir, ref))
		set.add(filepath.Join(r.baseDir, cleaned))
		set.add(filepath.Join(r.repoRoot, ref))
		set.add(filepath.Join(r.repoRoot, cleaned))
		set.add(filepath.Join(r.repoRoot, "apps", "api", ref))
		set.add(filepath.Join(r.repoRoot, "apps", "api", cleaned))
		for _, root := range r.legacyRoots {
			set.add(filepath.Join(root, ref))
		}
		if r.dataDir != "" {
			set.add(filepath.Join(r.dataDir, ref))
			set.add(filepath.Join(r.dataDir, cleaned))
		}
	}

	// Basename fallbacks rescue references whose directory part describes a
	// layout that no longer exists, including legacy absolute paths.
	base := filepath.Base(cleaned)
	if base != "" && base != "." && base != string(filepath.Separator) {
		if r.dataDir != "" {
			set.add(filepath.Join(r.dataDir, "uploads", base))
		}
		if r.uploadDir != "" {
			set.add(filepath.Join(r.uploadDir, base))
		}
	}
	return set.list
}

// Resolve returns the first existing candidate for ref. When no candidate
// exists it returns an empty path together with the full ordered list so the
// caller can report every location tried; that outcome is a normal signal,
// not an error.
func (r *Resolver) Resolve(ref string) (string, []string) {
	candidates := r.Candidates(ref)
	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			return candidate, candidates
		}
	}
	return "", candidates
}

type candidateSet struct {
	seen map[string]struct{}
	list []string
}

func newCandidateSet() *candidateSet {
	return &candidateSet{seen: make(map[string]struct{})}
}

func (c *candidateSet) add(path string) {
	if strings.TrimSpace(path) == "" {
		return
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = filepath.Clean(path)
	}
	if _, ok := c.seen[abs]; ok {
		return
	}
	c.seen[abs] = struct{}{}
	c.list = append(c.list, abs)
}
