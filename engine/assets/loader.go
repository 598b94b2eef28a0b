package assets

import "github.com/spaghettifunk/subsurface/engine/renderer/metadata"

// Loader reads one kind of asset from disk. The returned Resource owns its
// Data until Unload is called.
type Loader interface {
	Load(path string, assetType metadata.ResourceType, params interface{}) (*metadata.Resource, error)
	Unload(*metadata.Resource) error
}
