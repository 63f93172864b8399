package types

import (
	"github.com/invopop/jsonschema"
	"github.com/rotisserie/eris"
	"github.com/wI2L/jsondiff"
)

// Component is the interface that the user needs to implement to create a new component type.
type Component interface {
	// Name returns the name of the component.
	Name() string
}

// Relation is a component that encodes a directed edge to another entity. The
// target is stored in the component value, never as an owning reference.
type Relation interface {
	Component
	// Target returns the entity this edge points at.
	Target() EntityID
}

// ComponentMetadata wraps the user-defined Component struct and provides the
// type-erased capability record used internally by the engine: identity,
// default construction, codec, schema, and relation introspection.
type ComponentMetadata interface { //revive:disable-line:exported
	// SetID sets the ComponentID of this component. It must only be set once.
	SetID(ComponentID) error
	// ID returns the ComponentID of the component.
	ID() ComponentID
	// New returns the marshaled bytes of the default value for the component struct.
	New() ([]byte, error)
	Encode(any) ([]byte, error)
	Decode([]byte) (any, error)
	GetSchema() []byte

	// IsRelation reports whether values of this component carry an edge target.
	IsRelation() bool
	// IsExclusive reports whether setting a new edge replaces the old one.
	// Only meaningful for relations.
	IsExclusive() bool
	// Target extracts the edge target from a component value. ok is false if
	// the value is not a relation value.
	Target(value any) (target EntityID, ok bool)

	Component
}

var ErrComponentSchemaMismatch = eris.New("component schema does not match target schema")

// SerializeComponentSchema reflects the component's JSON schema. Types the
// reflector cannot represent (channels, funcs) make it panic; that is
// recovered here and reported as an error so components without a schema can
// still be registered.
func SerializeComponentSchema(component Component) (schema []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			schema = nil
			err = eris.Errorf("component is not schema-reflectable: %v", r)
		}
	}()
	componentSchema := jsonschema.Reflect(component)
	schema, err = componentSchema.MarshalJSON()
	if err != nil {
		return nil, eris.Wrap(err, "component must be json serializable")
	}
	return schema, nil
}

func IsSchemaValid(jsonSchemaBytes1 []byte, jsonSchemaBytes2 []byte) (bool, error) {
	patch, err := jsondiff.CompareJSON(jsonSchemaBytes1, jsonSchemaBytes2)
	if err != nil {
		return false, eris.Wrap(err, "")
	}
	return patch.String() == "", nil
}

// ConvertComponentMetadatasToComponents casts an array of ComponentMetadata into an array of Component.
func ConvertComponentMetadatasToComponents(comps []ComponentMetadata) []Component {
	ret := make([]Component, len(comps))
	for i, comp := range comps {
		ret[i] = comp
	}
	return ret
}
