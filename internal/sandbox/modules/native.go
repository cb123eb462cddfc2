package modules

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charlievieth/fastwalk"
	"github.com/dop251/goja"
	"github.com/gabriel-vasile/mimetype"
	"github.com/goccy/go-yaml"
	"github.com/google/uuid"
	"github.com/pelletier/go-toml/v2"
	"github.com/saintfish/chardet"
	"golang.org/x/crypto/bcrypt"
)

// NativeModule builds the exports object of a host module for one runtime.
// It is called on every require so no state is shared between runtimes.
type NativeModule func(vm *goja.Runtime) (goja.Value, error)

// DefaultNatives returns the built-in host modules.
func DefaultNatives() map[string]NativeModule {
	return map[string]NativeModule{
		"path":   pathModule,
		"os":     osModule,
		"fs":     fsModule,
		"yaml":   yamlModule,
		"toml":   tomlModule,
		"crypto": cryptoModule,
		"stats":  statsModule,
		"html":   htmlModule,
	}
}

// NativeNames lists the registered host module names in sorted order.
func (r *Resolver) NativeNames() []string {
	names := make([]string, 0, len(r.natives))
	for name := range r.natives {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func pathModule(vm *goja.Runtime) (goja.Value, error) {
	return vm.ToValue(map[string]interface{}{
		"sep":        string(filepath.Separator),
		"join":       func(parts ...string) string { return filepath.Join(parts...) },
		"dirname":    filepath.Dir,
		"extname":    filepath.Ext,
		"isAbsolute": filepath.IsAbs,
		"normalize":  filepath.Clean,
		"basename": func(p string, ext ...string) string {
			base := filepath.Base(p)
			if len(ext) > 0 {
				base = strings.TrimSuffix(base, ext[0])
			}
			return base
		},
		"resolve": func(parts ...string) (string, error) {
			return filepath.Abs(filepath.Join(parts...))
		},
	}), nil
}

func osModule(vm *goja.Runtime) (goja.Value, error) {
	return vm.ToValue(map[string]interface{}{
		"EOL":      "\n",
		"platform": func() string { return runtime.GOOS },
		"arch":     func() string { return runtime.GOARCH },
		"cpus":     func() int { return runtime.NumCPU() },
		"hostname": os.Hostname,
		"homedir":  os.UserHomeDir,
		"tmpdir":   os.TempDir,
		"getenv":   os.Getenv,
	}), nil
}

func fsModule(vm *goja.Runtime) (goja.Value, error) {
	return vm.ToValue(map[string]interface{}{
		"readFileSync": func(path string) (string, error) {
			b, err := os.ReadFile(path)
			return string(b), err
		},
		"writeFileSync": func(path, data string) error {
			return os.WriteFile(path, []byte(data), 0o644)
		},
		"existsSync": func(path string) bool {
			_, err := os.Stat(path)
			return err == nil
		},
		"readdirSync": func(path string) ([]string, error) {
			entries, err := os.ReadDir(path)
			if err != nil {
				return nil, err
			}
			names := make([]string, 0, len(entries))
			for _, e := range entries {
				names = append(names, e.Name())
			}
			return names, nil
		},
		"statSync": func(path string) (map[string]interface{}, error) {
			fi, err := os.Stat(path)
			if err != nil {
				return nil, err
			}
			return map[string]interface{}{
				"size":        fi.Size(),
				"mode":        fi.Mode().String(),
				"mtimeMs":     fi.ModTime().UnixMilli(),
				"isFile":      fi.Mode().IsRegular(),
				"isDirectory": fi.IsDir(),
			}, nil
		},
		"glob": func(pattern string) ([]string, error) {
			return doublestar.FilepathGlob(pattern)
		},
		"walk":           walkFiles,
		"mimeType":       detectMIME,
		"detectEncoding": detectEncoding,
	}), nil
}

// walkFiles lists every regular file under root, relative to root.
func walkFiles(root string) ([]string, error) {
	var (
		mu    sync.Mutex
		files []string
	)
	conf := fastwalk.Config{Follow: false}
	err := fastwalk.Walk(&conf, root, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		rel, rerr := filepath.Rel(root, p)
		if rerr != nil {
			return nil
		}
		mu.Lock()
		files = append(files, filepath.ToSlash(rel))
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	sort.Strings(files)
	return files, nil
}

func detectMIME(path string) (string, error) {
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return "", err
	}
	return mtype.String(), nil
}

// detectEncoding guesses the text encoding of a file, lower-cased
// (e.g. "utf-8", "iso-8859-1").
func detectEncoding(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	res, err := chardet.NewTextDetector().DetectBest(b)
	if err != nil || res == nil {
		return "utf-8", nil
	}
	return strings.ToLower(res.Charset), nil
}

func yamlModule(vm *goja.Runtime) (goja.Value, error) {
	return vm.ToValue(map[string]interface{}{
		"parse": func(src string) (interface{}, error) {
			var out interface{}
			if err := yaml.Unmarshal([]byte(src), &out); err != nil {
				return nil, fmt.Errorf("YAML parse error: %w", err)
			}
			return out, nil
		},
		"stringify": func(v interface{}) (string, error) {
			b, err := yaml.Marshal(v)
			if err != nil {
				return "", fmt.Errorf("YAML encoding error: %w", err)
			}
			return string(b), nil
		},
	}), nil
}

func tomlModule(vm *goja.Runtime) (goja.Value, error) {
	return vm.ToValue(map[string]interface{}{
		"parse": func(src string) (map[string]interface{}, error) {
			out := map[string]interface{}{}
			if err := toml.Unmarshal([]byte(src), &out); err != nil {
				return nil, fmt.Errorf("TOML parse error: %w", err)
			}
			return out, nil
		},
		"stringify": func(v map[string]interface{}) (string, error) {
			b, err := toml.Marshal(v)
			if err != nil {
				return "", fmt.Errorf("TOML encoding error: %w", err)
			}
			return string(b), nil
		},
	}), nil
}

func cryptoModule(vm *goja.Runtime) (goja.Value, error) {
	return vm.ToValue(map[string]interface{}{
		"sha256": func(data string) string {
			sum := sha256.Sum256([]byte(data))
			return hex.EncodeToString(sum[:])
		},
		"hashPassword": func(password string) (string, error) {
			hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
			return string(hash), err
		},
		"randomUUID": uuid.NewString,
		"comparePassword": func(hash, password string) bool {
			return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
		},
	}), nil
}
