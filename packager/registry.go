package packager

import (
	"fmt"
	"sort"
	"sync"

	"webtoondl/models"
)

// Factory builds a document builder for the given options
type Factory func(opts Options) Builder

var (
	buildersMu sync.RWMutex
	builders   = make(map[models.Format]Factory)
)

// Register makes a document format available to New
func Register(format models.Format, factory Factory) {
	buildersMu.Lock()
	defer buildersMu.Unlock()
	builders[format] = factory
}

// New returns the builder for format. Direct formats have no builder.
func New(format models.Format, opts Options) (Builder, error) {
	buildersMu.RLock()
	factory, ok := builders[format]
	buildersMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unsupported document format: %s", format)
	}
	return factory(opts.withDefaults()), nil
}

// Supported reports whether format can be served, either as a document or directly
func Supported(format models.Format) bool {
	if format.IsDirect() {
		return true
	}
	buildersMu.RLock()
	defer buildersMu.RUnlock()
	_, ok := builders[format]
	return ok
}

// Formats lists every supported format, sorted
func Formats() []string {
	buildersMu.RLock()
	names := []string{string(models.FormatImages)}
	for format := range builders {
		names = append(names, string(format))
	}
	buildersMu.RUnlock()

	sort.Strings(names)
	return names
}

func init() {
	Register(models.FormatPDF, func(opts Options) Builder { return NewPDFBuilder(opts) })
	Register(models.FormatEPUB, func(opts Options) Builder { return NewEPUBBuilder(opts) })
}
