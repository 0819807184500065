package assets

import "github.com/spaghettifunk/vkframe/engine/assets/loaders"

type Loader interface {
	// Load reads the asset stored at path. params is loader specific.
	Load(name, path string, params interface{}) (*loaders.Resource, error)
	Unload(*loaders.Resource) error
}
