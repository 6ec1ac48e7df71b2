package assets

import "github.com/spaghettifunk/anima-forward/engine/renderer/metadata"

type Loader interface {
	// Load reads path from disk. params is loader specific and may be nil.
	Load(path string, params interface{}) (*metadata.Resource, error)
}
