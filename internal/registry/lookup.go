// Package registry verifies businesses against national company registries.
package registry

//go:generate mockgen -source=lookup.go -destination=mocks/mock_lookup.go -package=mocks

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Meltveit/qrydex/internal/domain"
)

// ErrNotFound is returned when a source has no entity for the identifier.
var ErrNotFound = errors.New("registry: not found")

// Lookup is one registry source for one jurisdiction.
type Lookup interface {
	// Name identifies the source in audit entries and metrics.
	Name() string
	// Lookup returns the normalized entity or ErrNotFound. Other errors are
	// transport or decoding failures.
	Lookup(ctx context.Context, id string) (*domain.RegistryData, error)
}

// chain tries its sources in order and returns the first success.
type chain struct {
	sources []Lookup
}

// Chain combines sources; the first successful lookup wins and sources are
// never merged.
func Chain(sources ...Lookup) Lookup {
	flat := make([]Lookup, 0, len(sources))
	for _, s := range sources {
		if s != nil {
			flat = append(flat, s)
		}
	}
	return &chain{sources: flat}
}

func (c *chain) Name() string {
	names := make([]string, 0, len(c.sources))
	for _, s := range c.sources {
		names = append(names, s.Name())
	}
	return strings.Join(names, ">")
}

func (c *chain) Lookup(ctx context.Context, id string) (*domain.RegistryData, error) {
	var errs []error
	for _, s := range c.sources {
		data, err := s.Lookup(ctx, id)
		if err == nil && data != nil {
			return data, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if err != nil && !errors.Is(err, ErrNotFound) {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: %w", ErrNotFound, errors.Join(errs...))
	}
	return nil, ErrNotFound
}
