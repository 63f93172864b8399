package log

import (
	"github.com/rs/zerolog"

	"github.com/tessera-engine/tessera/types"
)

func loadComponentIntoArrayLogger(component types.ComponentMetadata, arrayLogger *zerolog.Array) *zerolog.Array {
	dictLogger := zerolog.Dict()
	dictLogger = dictLogger.Int("component_id", int(component.ID()))
	dictLogger = dictLogger.Str("component_name", component.Name())
	return arrayLogger.Dict(dictLogger)
}

// Entity logs a single entity with its archetype and components.
func Entity(
	logger *zerolog.Logger, level zerolog.Level, id types.EntityID,
	archID types.ArchetypeID, components []types.ComponentMetadata,
) {
	event := logger.WithLevel(level)
	arrayLogger := zerolog.Arr()
	for _, comp := range components {
		arrayLogger = loadComponentIntoArrayLogger(comp, arrayLogger)
	}
	event.Array("components", arrayLogger)
	event.Str("entity_id", id.String())
	event.Int("archetype_id", int(archID))
	event.Send()
}

// Components logs all registered components.
func Components(logger *zerolog.Logger, level zerolog.Level, components []types.ComponentMetadata) {
	event := logger.WithLevel(level)
	event.Int("total_components", len(components))
	arrayLogger := zerolog.Arr()
	for _, comp := range components {
		arrayLogger = loadComponentIntoArrayLogger(comp, arrayLogger)
	}
	event.Array("components", arrayLogger)
	event.Send()
}
