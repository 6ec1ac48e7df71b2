package metadata

import (
	"github.com/spaghettifunk/anima-forward/engine/core"
)

const (
	/** @brief The default texture name. */
	DEFAULT_TEXTURE_NAME string = "default"
)

/**
 * @brief Identifies a texture owned by the texture system. The generation
 * changes every time a slot is reused, so a stale id never aliases a newer
 * texture.
 */
type TextureID = core.Identifier

/** @brief The id that never refers to a texture. */
var InvalidTextureID = core.InvalidIdentifier
