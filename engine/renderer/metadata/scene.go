package metadata

import (
	"github.com/go-gl/mathgl/mgl32"
)

/**
 * @brief What the forward renderer reads from the scene every frame.
 */
type Scene interface {
	/** @brief Projection matrix for the current viewport. */
	Projection() mgl32.Mat4
	/** @brief Entities drawn with the given mesh, in a stable order. */
	EntitiesByMesh(meshID string) []Entity
}
