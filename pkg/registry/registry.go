// Package registry holds registered content generator descriptors. The
// collection is small (at most ~30 entries), so a simple ordered slice plus
// an id index is sufficient — no need for sharded or indexed structures.
package registry

import (
	"fmt"
	"sync"

	"github.com/flapboard/contentcore/pkg/model"
)

// Registry holds ordered generator registrations.
type Registry struct {
	mu    sync.RWMutex
	order []string
	byID  map[string]*model.GeneratorRegistration
}

// New builds an empty Registry.
func New() *Registry {
	return &Registry{byID: make(map[string]*model.GeneratorRegistration)}
}

// Register validates the generator and adds it to the registry. An invalid
// generator is not registered and the validation error is returned.
func (r *Registry) Register(reg *model.GeneratorRegistration) error {
	if reg == nil || reg.Generator == nil {
		return fmt.Errorf("registry: registration and generator must be non-nil")
	}
	if err := reg.Generator.Validate(); err != nil {
		return fmt.Errorf("registry: generator %q failed validation: %w", reg.ID, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[reg.ID]; exists {
		return fmt.Errorf("registry: generator id %q already registered", reg.ID)
	}
	r.byID[reg.ID] = reg
	r.order = append(r.order, reg.ID)
	return nil
}

// Unregister removes a generator by id.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[id]; !ok {
		return
	}
	delete(r.byID, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// List returns all registrations in registration order.
func (r *Registry) List() []*model.GeneratorRegistration {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*model.GeneratorRegistration, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

// GetByID looks up a registration by id.
func (r *Registry) GetByID(id string) (*model.GeneratorRegistration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.byID[id]
	return reg, ok
}

// ByPriority returns registrations matching priority, in registration order.
func (r *Registry) ByPriority(p model.Priority) []*model.GeneratorRegistration {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*model.GeneratorRegistration
	for _, id := range r.order {
		if reg := r.byID[id]; reg.Priority == p {
			out = append(out, reg)
		}
	}
	return out
}
