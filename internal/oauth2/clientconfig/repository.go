package clientconfig

import (
	"fmt"
	"sort"

	"github.com/dropDatabas3/oauth2client/internal/oauth2/core"
)

// Repository resolves client configurations by identifier.
type Repository interface {
	// FindByID returns core.ErrUnknownConfiguration when id is not registered.
	FindByID(id string) (Configuration, error)
	// IDs lists the registered identifiers in sorted order.
	IDs() []string
}

// InMemoryRepository is a read-only map of configurations.
type InMemoryRepository struct {
	byID map[string]Configuration
	ids  []string
}

// NewInMemoryRepository fails when no configuration is supplied or when two
// share an identifier. Absence of configurations is a startup fault.
func NewInMemoryRepository(cfgs ...Configuration) (*InMemoryRepository, error) {
	if len(cfgs) == 0 {
		return nil, ErrNoConfigurations
	}
	r := &InMemoryRepository{byID: make(map[string]Configuration, len(cfgs))}
	for _, c := range cfgs {
		if err := c.Validate(); err != nil {
			return nil, err
		}
		if _, dup := r.byID[c.ID]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateConfiguration, c.ID)
		}
		r.byID[c.ID] = c
		r.ids = append(r.ids, c.ID)
	}
	sort.Strings(r.ids)
	return r, nil
}

func (r *InMemoryRepository) FindByID(id string) (Configuration, error) {
	c, ok := r.byID[id]
	if !ok {
		return Configuration{}, fmt.Errorf("%w: %q", core.ErrUnknownConfiguration, id)
	}
	return c, nil
}

func (r *InMemoryRepository) IDs() []string {
	return append([]string{}, r.ids...)
}

// RedirectPaths returns the distinct callback paths of every registration.
func (r *InMemoryRepository) RedirectPaths() []string {
	seen := map[string]struct{}{}
	var out []string
	for _, id := range r.ids {
		p := r.byID[id].RedirectPath()
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}
