package metadata

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/anima-forward/engine/renderer/driver"
)

/**
 * @brief A mesh as the renderer sees it: GPU buffers already uploaded by
 * the asset collaborator plus the texture sampled when drawing it.
 */
type Mesh struct {
	/** @brief Stable identifier, used as the key of the scene lookup. */
	ID string
	/** @brief Interleaved vertex data (position, texture coordinates). */
	VertexBuffer driver.Buffer
	/** @brief 32-bit indices. */
	IndexBuffer driver.Buffer
	/** @brief Number of indices to draw. */
	IndexCount uint32
	/** @brief The texture sampled by the fragment stage. */
	TextureID TextureID
}

/** @brief An instance of a mesh placed in the world. */
type Entity struct {
	ID     string
	MeshID string
	/** @brief Model matrix, pushed as a 64-byte push constant. */
	Transform mgl32.Mat4
}
