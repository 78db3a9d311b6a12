package middleware

import (
	"io/fs"
	"net/http"
	"path"
	"strings"

	"github.com/ezotic/devcamper-api/internal/pipeline"
)

// Static serves files from a public directory. A GET or HEAD whose path
// names a regular file (or a directory holding index.html) is answered and
// the chain halts; anything else passes through. Dotfiles are never served.
type Static struct {
	Dir  string
	root http.FileSystem
}

// NewStatic serves files below dir.
func NewStatic(dir string) *Static {
	return &Static{Dir: dir, root: http.Dir(dir)}
}

func (s *Static) Name() string { return "static" }

func (s *Static) Process(c *pipeline.Context) pipeline.Result {
	r := c.Request
	if s.Dir == "" || (r.Method != http.MethodGet && r.Method != http.MethodHead) {
		return pipeline.Continue()
	}

	name := path.Clean("/" + r.URL.Path)
	if hasDotSegment(name) {
		return pipeline.Continue()
	}

	f, stat, ok := s.open(name)
	if !ok {
		return pipeline.Continue()
	}
	defer f.Close()

	http.ServeContent(c.Response, r, stat.Name(), stat.ModTime(), f)
	return pipeline.Halt()
}

func (s *Static) open(name string) (http.File, fs.FileInfo, bool) {
	f, err := s.root.Open(name)
	if err != nil {
		return nil, nil, false
	}
	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, false
	}

	if stat.IsDir() {
		f.Close()
		index := path.Join(name, "index.html")
		if f, err = s.root.Open(index); err != nil {
			return nil, nil, false
		}
		if stat, err = f.Stat(); err != nil {
			f.Close()
			return nil, nil, false
		}
	}

	if !stat.Mode().IsRegular() {
		f.Close()
		return nil, nil, false
	}
	return f, stat, true
}

func hasDotSegment(name string) bool {
	for _, seg := range strings.Split(name, "/") {
		if strings.HasPrefix(seg, ".") {
			return true
		}
	}
	return false
}
