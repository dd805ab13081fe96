package vagrant

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrPathViolation means a requested directory resolves outside the
	// configured projects root. Rejected before any subprocess is spawned.
	ErrPathViolation = errors.New("directory escapes the projects root")
	// ErrDirNotFound means the resolved directory does not exist.
	ErrDirNotFound = errors.New("directory does not exist")
	// ErrNoVagrantfile means the resolved directory holds no Vagrantfile.
	ErrNoVagrantfile = errors.New("no Vagrantfile found")
)

// DirResolver confines per-request directory parameters to the projects root.
type DirResolver struct {
	root string
}

// NewDirResolver normalizes root to an absolute clean path. The root does not
// have to exist yet; existence is checked per request.
func NewDirResolver(root string) (*DirResolver, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("projects root must not be empty")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve projects root %q: %w", root, err)
	}
	return &DirResolver{root: filepath.Clean(abs)}, nil
}

// Root returns the absolute projects root.
func (r *DirResolver) Root() string {
	return r.root
}

// Resolve maps a requested directory ("" means the root itself) onto an
// absolute path inside the root. Relative paths are joined to the root;
// absolute paths must already lie inside it. Any escape, including via ".."
// segments, fails with ErrPathViolation; a missing directory fails with
// ErrDirNotFound.
func (r *DirResolver) Resolve(requested string) (string, error) {
	dir := r.root
	if requested != "" {
		if filepath.IsAbs(requested) {
			dir = filepath.Clean(requested)
		} else {
			dir = filepath.Join(r.root, requested)
		}
		if !r.contains(dir) {
			return "", fmt.Errorf("%w: %q", ErrPathViolation, requested)
		}
	}

	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return "", fmt.Errorf("%w: %s", ErrDirNotFound, dir)
	}
	return dir, nil
}

// RequireVagrantfile checks that dir contains a Vagrantfile. Commands other
// than global-status are pointless without one, and failing here gives a
// clearer message than vagrant's own error.
func (r *DirResolver) RequireVagrantfile(dir string) error {
	if _, err := os.Stat(filepath.Join(dir, "Vagrantfile")); err != nil {
		return fmt.Errorf("%w in %s", ErrNoVagrantfile, dir)
	}
	return nil
}

func (r *DirResolver) contains(dir string) bool {
	return dir == r.root || strings.HasPrefix(dir, r.root+string(filepath.Separator))
}
