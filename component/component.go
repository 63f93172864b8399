package component

import (
	"reflect"

	"github.com/rotisserie/eris"

	"github.com/tessera-engine/tessera/codec"
	"github.com/tessera-engine/tessera/types"
)

// NewComponentMetadata creates the metadata record for a user-defined
// component type. The record is immutable once registered and shared by every
// archetype column holding this component.
func NewComponentMetadata[T types.Component](opts ...Option[T]) (types.ComponentMetadata, error) {
	var t T
	comp := newComponentMetadata(t, t.Name())
	for _, opt := range opts {
		opt(comp)
	}
	if comp.exclusive && !comp.isRelation {
		return nil, eris.Errorf("component %q is not a relation and cannot be exclusive", comp.name)
	}
	return comp, nil
}

// MustNewComponentMetadata is like NewComponentMetadata but panics on a
// malformed declaration. Component declarations happen once at startup.
func MustNewComponentMetadata[T types.Component](opts ...Option[T]) types.ComponentMetadata {
	c, err := NewComponentMetadata[T](opts...)
	if err != nil {
		panic(err)
	}
	return c
}

var relationType = reflect.TypeOf((*types.Relation)(nil)).Elem()

type componentMetadata[T types.Component] struct {
	isIDSet    bool
	id         types.ComponentID
	typ        reflect.Type
	name       string
	defaultVal any
	schema     []byte

	isRelation bool
	exclusive  bool
}

func newComponentMetadata[T types.Component](t T, name string) *componentMetadata[T] {
	typ := reflect.TypeOf(t)
	schema, err := types.SerializeComponentSchema(t)
	if err != nil {
		schema = nil
	}
	return &componentMetadata[T]{
		typ:        typ,
		name:       name,
		schema:     schema,
		isRelation: typ.Implements(relationType) || reflect.PointerTo(typ).Implements(relationType),
	}
}

// SetID sets this component's ID. It must be unique across the world object.
func (c *componentMetadata[T]) SetID(id types.ComponentID) error {
	if c.isIDSet {
		// Re-registering the same component across worlds is allowed in tests
		// as long as the ID does not change.
		if id == c.id {
			return nil
		}
		return eris.Errorf("id for component %q is already set to %v, cannot change to %v", c.name, c.id, id)
	}
	c.id = id
	c.isIDSet = true
	return nil
}

func (c *componentMetadata[T]) ID() types.ComponentID {
	return c.id
}

func (c *componentMetadata[T]) Name() string {
	return c.name
}

// String returns the component type name.
func (c *componentMetadata[T]) String() string {
	return c.name
}

func (c *componentMetadata[T]) New() ([]byte, error) {
	var comp T
	if c.defaultVal != nil {
		var ok bool
		comp, ok = c.defaultVal.(T)
		if !ok {
			return nil, eris.Errorf("could not convert %T to %T", c.defaultVal, new(T))
		}
	}
	return codec.Encode(comp)
}

func (c *componentMetadata[T]) Encode(v any) ([]byte, error) {
	return codec.Encode(v)
}

func (c *componentMetadata[T]) Decode(bz []byte) (any, error) {
	return codec.Decode[T](bz)
}

func (c *componentMetadata[T]) GetSchema() []byte {
	return c.schema
}

func (c *componentMetadata[T]) IsRelation() bool {
	return c.isRelation
}

func (c *componentMetadata[T]) IsExclusive() bool {
	return c.exclusive
}

func (c *componentMetadata[T]) Target(value any) (types.EntityID, bool) {
	rel, ok := value.(types.Relation)
	if !ok {
		return types.EntityID{}, false
	}
	return rel.Target(), true
}

// Option modifies a component metadata record at declaration time.
type Option[T types.Component] func(c *componentMetadata[T])

// WithDefault sets the default value of the component when it is added to an
// entity without an explicit value.
func WithDefault[T types.Component](defaultVal T) Option[T] {
	return func(c *componentMetadata[T]) {
		c.defaultVal = defaultVal
	}
}

// Exclusive marks a relation component as exclusive: an entity may hold at
// most one edge of this relation at a time, and setting a new target
// atomically replaces the old one.
func Exclusive[T types.Component]() Option[T] {
	return func(c *componentMetadata[T]) {
		c.exclusive = true
	}
}
