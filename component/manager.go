package component

import (
	"sort"

	"github.com/rotisserie/eris"

	"github.com/tessera-engine/tessera/types"
)

var ErrComponentNotRegistered = eris.New("component not registered")

// Manager is the process-wide component registry. It assigns ComponentIDs and
// owns the metadata records for every registered component type.
type Manager struct {
	registeredComponents map[string]types.ComponentMetadata
	componentsByID       map[types.ComponentID]types.ComponentMetadata
	nextComponentID      types.ComponentID
}

// NewManager creates a new component manager.
func NewManager() *Manager {
	return &Manager{
		registeredComponents: make(map[string]types.ComponentMetadata),
		componentsByID:       make(map[types.ComponentID]types.ComponentMetadata),
		nextComponentID:      0,
	}
}

// RegisterComponent registers a component with the component manager.
// There can only be one component with a given name, which is declared by the user by implementing the Name() method.
// If there is a duplicate component name, an error will be returned and the component will not be registered.
func (m *Manager) RegisterComponent(compMetadata types.ComponentMetadata) error {
	if err := m.isComponentNameUnique(compMetadata); err != nil {
		return err
	}
	if int(m.nextComponentID) >= types.MaxComponentTypes {
		return eris.Errorf("cannot register more than %d component types", types.MaxComponentTypes)
	}

	if err := compMetadata.SetID(m.nextComponentID); err != nil {
		return err
	}
	m.registeredComponents[compMetadata.Name()] = compMetadata
	m.componentsByID[compMetadata.ID()] = compMetadata
	m.nextComponentID++

	return nil
}

// GetComponents returns a list of all registered components sorted by ID.
func (m *Manager) GetComponents() []types.ComponentMetadata {
	comps := make([]types.ComponentMetadata, 0, len(m.registeredComponents))
	for _, comp := range m.registeredComponents {
		comps = append(comps, comp)
	}
	sort.Slice(comps, func(i, j int) bool { return comps[i].ID() < comps[j].ID() })
	return comps
}

// GetComponentByName returns the component metadata for the given component name.
func (m *Manager) GetComponentByName(name string) (types.ComponentMetadata, error) {
	c, ok := m.registeredComponents[name]
	if !ok {
		return nil, eris.Wrap(ErrComponentNotRegistered, name)
	}
	return c, nil
}

// GetComponentByID returns the component metadata for the given component ID.
func (m *Manager) GetComponentByID(id types.ComponentID) (types.ComponentMetadata, error) {
	c, ok := m.componentsByID[id]
	if !ok {
		return nil, eris.Wrapf(ErrComponentNotRegistered, "id %d", id)
	}
	return c, nil
}

func (m *Manager) isComponentNameUnique(compMetadata types.ComponentMetadata) error {
	if _, ok := m.registeredComponents[compMetadata.Name()]; ok {
		return eris.Errorf("component %q is already registered", compMetadata.Name())
	}
	return nil
}
