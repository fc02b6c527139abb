// Package catalog holds the process-wide registry of available component
// specs. It is populated once at startup, from a directory of contract
// files, and only read afterwards; the compiler never mutates it.
package catalog

import (
	"context"
	"path/filepath"
	"sort"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/askiada/pipefitter/pkg/pipeline/spec"
)

// Catalog is a read-only registry of component specs by name.
type Catalog struct {
	specs map[string]*spec.ComponentSpec
}

// Load parses every contract file (*.yaml, *.yml) in dir concurrently and
// indexes the resulting specs by component name.
func Load(ctx context.Context, dir string, logger zerolog.Logger) (*Catalog, error) {
	paths, err := contractFiles(dir)
	if err != nil {
		return nil, err
	}

	specs := make([]*spec.ComponentSpec, len(paths))

	grp, _ := errgroup.WithContext(ctx)
	for i, path := range paths {
		i, path := i, path

		grp.Go(func() error {
			sp, err := spec.Load(path)
			if err != nil {
				return err
			}

			specs[i] = sp

			return nil
		})
	}

	if err := grp.Wait(); err != nil {
		return nil, err
	}

	catalog := &Catalog{specs: make(map[string]*spec.ComponentSpec, len(specs))}

	for i, sp := range specs {
		if _, ok := catalog.specs[sp.Name]; ok {
			return nil, errors.Errorf("duplicate component %s in %s", sp.Name, paths[i])
		}

		catalog.specs[sp.Name] = sp
		logger.Debug().Str("component", sp.Name).Str("path", paths[i]).Msg("loaded component spec")
	}

	return catalog, nil
}

func contractFiles(dir string) ([]string, error) {
	paths := []string{}

	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, errors.Wrapf(err, "unable to list component specs in %s", dir)
		}

		paths = append(paths, matches...)
	}

	if len(paths) == 0 {
		return nil, errors.Errorf("no component specs found in %s", dir)
	}

	sort.Strings(paths)

	return paths, nil
}

// Get resolves a component name. Its signature matches
// pipeline.SpecResolver so a catalog can back FromDocument directly.
func (c *Catalog) Get(name string) (*spec.ComponentSpec, error) {
	sp, ok := c.specs[name]
	if !ok {
		return nil, errors.Errorf("component %s is not in the catalog", name)
	}

	return sp, nil
}

// Names lists the registered component names, sorted.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.specs))
	for name := range c.specs {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
	defaultErr     error
)

// Init populates the process-wide default catalog exactly once;
// subsequent calls return the first result.
func Init(ctx context.Context, dir string, logger zerolog.Logger) (*Catalog, error) {
	defaultOnce.Do(func() {
		defaultCatalog, defaultErr = Load(ctx, dir, logger)
	})

	return defaultCatalog, defaultErr
}

// Default returns the process-wide catalog, if Init has succeeded.
func Default() (*Catalog, bool) {
	if defaultCatalog == nil {
		return nil, false
	}

	return defaultCatalog, true
}
