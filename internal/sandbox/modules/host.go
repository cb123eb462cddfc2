package modules

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/dop251/goja"
)

// requireHost serves every non-relative specifier: registered host modules
// first, then absolute paths, then the node_modules directory. None of these
// are confined to the sandbox bases.
func (l *Loader) requireHost(specifier string) (goja.Value, error) {
	if !l.r.cfg.HostModulesEnabled {
		return nil, fmt.Errorf("%w: cannot load %q", ErrHostModulesDisabled, specifier)
	}

	name := strings.TrimPrefix(specifier, "node:")
	if native, ok := l.r.natives[name]; ok {
		v, err := native(l.vm)
		l.r.observe(KindHost, err)
		return v, err
	}

	if filepath.IsAbs(specifier) {
		if found, ok := probe(specifier); ok {
			return l.loadFile(found)
		}
		err := &NotFoundError{Specifier: specifier, Tried: []string{specifier}}
		l.r.observe(KindHost, err)
		return nil, err
	}

	path, err := l.r.resolvePackage(specifier)
	if err != nil {
		l.r.observe(KindHost, err)
		return nil, err
	}
	return l.loadFile(path)
}

type packageManifest struct {
	Main string `json:"main"`
}

// resolvePackage looks specifier up under the node_modules directory,
// honouring a package.json "main" entry when present.
func (r *Resolver) resolvePackage(specifier string) (string, error) {
	if r.cfg.NodeModulesDir == "" {
		return "", &NotFoundError{Specifier: specifier}
	}

	pkgDir := filepath.Join(r.cfg.NodeModulesDir, filepath.FromSlash(specifier))
	tried := []string{pkgDir}

	if raw, err := os.ReadFile(filepath.Join(pkgDir, "package.json")); err == nil {
		var manifest packageManifest
		if err := sonic.Unmarshal(raw, &manifest); err == nil && manifest.Main != "" {
			main := filepath.Join(pkgDir, filepath.FromSlash(manifest.Main))
			tried = append(tried, main)
			if found, ok := probe(main); ok {
				return found, nil
			}
		}
	}

	if found, ok := probe(pkgDir); ok {
		return found, nil
	}
	return "", &NotFoundError{Specifier: specifier, Tried: tried}
}
