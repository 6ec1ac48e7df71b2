package metadata

type ResourceType int

/** @brief Pre-defined resource types. */
const (
	/** @brief Not something the engine loads. */
	ResourceTypeNone ResourceType = iota
	/** @brief Image decoded into an RGBA8 texture. */
	ResourceTypeImage
	/** @brief Compiled SPIR-V shader stage. */
	ResourceTypeShader
)

func (t ResourceType) String() string {
	switch t {
	case ResourceTypeImage:
		return "image"
	case ResourceTypeShader:
		return "shader"
	default:
		return "none"
	}
}

/**
 * @brief A generic structure for a resource. All resource loaders
 * load data into these.
 */
type Resource struct {
	/** @brief The name of the resource. */
	Name string
	/** @brief The full file path of the resource. */
	FullPath string
	/** @brief The size of the resource data in bytes. */
	DataSize uint64
	/** @brief The resource data. *ImageResourceData or []uint32. */
	Data interface{}
}
