// Package info reports build and runtime information: version, compiled
// features, the worker pool size and the name the host-side module is
// registered under.
package info

import (
	"errors"
	"runtime/debug"
	"sync"
)

// Version is the relayframe release.
const Version = "0.1.0"

// DefaultPackageName is the module name scripts require when none was set.
const DefaultPackageName = "relayframe"

// ErrPackageNameSet is returned when the package name is set twice.
var ErrPackageNameSet = errors.New("package name has already been set")

var (
	pkgMu   sync.Mutex
	pkgName string
)

// SetPackageName sets the name the host module is exposed as. It may be
// called once per process.
func SetPackageName(name string) error {
	if name == "" {
		return errors.New("package name must not be empty")
	}
	pkgMu.Lock()
	defer pkgMu.Unlock()
	if pkgName != "" {
		return ErrPackageNameSet
	}
	pkgName = name
	return nil
}

// PackageName returns the name set by SetPackageName, or DefaultPackageName.
func PackageName() string {
	pkgMu.Lock()
	defer pkgMu.Unlock()
	if pkgName == "" {
		return DefaultPackageName
	}
	return pkgName
}

// trackedDeps are the libraries whose versions Collect reports.
var trackedDeps = []string{
	"github.com/dop251/goja",
	"github.com/expr-lang/expr",
	"github.com/panjf2000/ants/v2",
}

// Sizer is anything with a worker count, typically *engine.Pool.
type Sizer interface {
	Size() int
}

// Report is a snapshot of Collect.
type Report struct {
	Version        string            `json:"version"`
	GoVersion      string            `json:"goVersion"`
	Features       FeatureSet        `json:"features"`
	ThreadPoolSize int               `json:"threadPoolSize"`
	PackageName    string            `json:"packageName"`
	Dependencies   map[string]string `json:"dependencies,omitempty"`
}

// Collect gathers a Report. pool may be nil, in which case the thread pool
// size is zero.
func Collect(pool Sizer) Report {
	r := Report{
		Version:     Version,
		Features:    Features(),
		PackageName: PackageName(),
	}
	if pool != nil {
		r.ThreadPoolSize = pool.Size()
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		r.GoVersion = bi.GoVersion
		for _, dep := range bi.Deps {
			for _, want := range trackedDeps {
				if dep.Path == want {
					if r.Dependencies == nil {
						r.Dependencies = make(map[string]string)
					}
					r.Dependencies[dep.Path] = dep.Version
				}
			}
		}
	}
	return r
}
