// Package resolver finds #include content on a billy filesystem.
package resolver

import (
	"bytes"
	"io"
	"os"
	"path/filepath"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"github.com/gobwas/glob"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var (
	ErrNotAllowed = errors.New("include path not allowed")
	ErrNotFound   = errors.New("cannot resolve include")
)

type Options struct {
	// Dirs are searched in order for relative include paths. Empty means ".".
	Dirs []string
	// Allow restricts include paths to those matching one of the globs.
	Allow []string
	// CacheSize is the number of file contents kept in memory. Zero disables
	// caching.
	CacheSize int
	Log       logrus.FieldLogger
}

type Resolver struct {
	fs    billy.Filesystem
	dirs  []string
	allow []glob.Glob
	cache *lru.Cache[string, []byte]
	log   logrus.FieldLogger
}

func New(fsys billy.Filesystem, opts Options) (*Resolver, error) {
	r := &Resolver{
		fs:   fsys,
		dirs: opts.Dirs,
		log:  opts.Log,
	}
	if len(r.dirs) == 0 {
		r.dirs = []string{"."}
	}
	if r.log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		r.log = l
	}
	for _, pattern := range opts.Allow {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, errors.Wrapf(err, "bad include pattern %q", pattern)
		}
		r.allow = append(r.allow, g)
	}
	if opts.CacheSize > 0 {
		cache, err := lru.New[string, []byte](opts.CacheSize)
		if err != nil {
			return nil, errors.Wrap(err, "include cache")
		}
		r.cache = cache
	}
	return r, nil
}

// Content is the text of a resolved include.
type Content struct {
	*bytes.Reader
	name string
}

// Name is the path the content was read from, so that includes nested in it
// are looked up next to it.
func (c *Content) Name() string { return c.name }

// FindContent implements preprocessor.Includes.
func (r *Resolver) FindContent(path string) (io.Reader, error) {
	return r.FindContentFrom("", path)
}

// FindContentFrom implements preprocessor.RelativeIncludes. A relative path
// is tried in the directory of from before Dirs.
func (r *Resolver) FindContentFrom(from, path string) (io.Reader, error) {
	if path == "" {
		return nil, errors.Wrap(ErrNotFound, "empty include path")
	}
	if !r.allowed(path) {
		return nil, errors.WithStack(ErrNotAllowed)
	}
	resolved, err := r.resolve(from, path)
	if err != nil {
		return nil, err
	}

	if r.cache != nil {
		if bs, ok := r.cache.Get(resolved); ok {
			r.log.WithField("path", resolved).Debug("include cache hit")
			return &Content{Reader: bytes.NewReader(bs), name: resolved}, nil
		}
	}
	bs, err := util.ReadFile(r.fs, resolved)
	if err != nil {
		return nil, errors.Wrap(err, "read include")
	}
	if r.cache != nil {
		r.cache.Add(resolved, bs)
	}
	r.log.WithFields(logrus.Fields{"include": path, "path": resolved}).Debug("include resolved")
	return &Content{Reader: bytes.NewReader(bs), name: resolved}, nil
}

// Invalidate drops all cached contents.
func (r *Resolver) Invalidate() {
	if r.cache != nil {
		r.cache.Purge()
	}
}

func (r *Resolver) allowed(path string) bool {
	if len(r.allow) == 0 {
		return true
	}
	slashed := filepath.ToSlash(path)
	for _, g := range r.allow {
		if g.Match(slashed) {
			return true
		}
	}
	return false
}

func (r *Resolver) resolve(from, path string) (string, error) {
	if filepath.IsAbs(path) {
		if r.isFile(path) {
			return filepath.Clean(path), nil
		}
		return "", errors.WithStack(ErrNotFound)
	}
	if from != "" {
		cand := r.fs.Join(filepath.Dir(from), path)
		if r.isFile(cand) {
			return cand, nil
		}
	}
	for _, dir := range r.dirs {
		cand := r.fs.Join(dir, path)
		if r.isFile(cand) {
			return cand, nil
		}
	}
	return "", errors.WithStack(ErrNotFound)
}

func (r *Resolver) isFile(p string) bool {
	st, err := r.fs.Stat(p)
	if err != nil {
		if !os.IsNotExist(err) {
			r.log.WithError(err).WithField("path", p).Debug("stat include candidate")
		}
		return false
	}
	return !st.IsDir()
}
