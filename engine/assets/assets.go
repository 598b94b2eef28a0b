package assets

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/spaghettifunk/subsurface/engine/assets/loaders"
	"github.com/spaghettifunk/subsurface/engine/core"
	"github.com/spaghettifunk/subsurface/engine/renderer"
	"github.com/spaghettifunk/subsurface/engine/renderer/metadata"
)

var _ renderer.ShaderSource = (*AssetManager)(nil)

type AssetInfo struct {
	Path       string
	Type       metadata.ResourceType
	LastLoaded time.Time
}

// AssetManager indexes the asset directory, loads shaders for the renderer
// and watches the config file so shading parameters can change at runtime.
type AssetManager struct {
	root    string
	assets  map[string]AssetInfo
	loaders map[metadata.ResourceType]Loader

	mutex sync.RWMutex

	done     chan struct{}
	stopped  chan struct{}
	fsnotify *fsnotify.Watcher
	started  bool
	isClosed bool

	configPath string
	shading    chan core.ShadingConfig
}

func NewAssetManager() (*AssetManager, error) {
	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &AssetManager{
		assets:   make(map[string]AssetInfo),
		loaders:  make(map[metadata.ResourceType]Loader),
		fsnotify: fsWatch,
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
		shading:  make(chan core.ShadingConfig, 1),
	}, nil
}

func (am *AssetManager) Initialize(assetsDir string) error {
	root, err := filepath.Abs(assetsDir)
	if err != nil {
		return err
	}
	am.root = root

	// Register loaders
	am.registerLoader(metadata.ResourceTypeShader, &loaders.ShaderLoader{})
	am.registerLoader(metadata.ResourceTypeConfig, &loaders.BinaryLoader{})

	if err := am.addRecursive(root); err != nil {
		return err
	}
	am.started = true
	go am.start()

	core.LogDebug("Asset manager watching `%s` (%d assets indexed).", root, am.count())
	return nil
}

// WatchConfig reloads the [shading] table of path whenever the file is
// written. Parsed values are delivered on ShadingUpdates.
func (am *AssetManager) WatchConfig(path string) error {
	if am.isClosed {
		return errors.New("asset manager already closed")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	am.mutex.Lock()
	am.configPath = abs
	am.mutex.Unlock()

	// Editors replace files on save, so the directory is watched, not the file.
	if err := am.fsnotify.Add(filepath.Dir(abs)); err != nil {
		err := fmt.Errorf("failed to watch config `%s`: %w", abs, err)
		core.LogError(err.Error())
		return err
	}
	am.handleFileEvent(abs)
	return nil
}

// ShadingUpdates carries the latest valid [shading] table. Only the most
// recent value is kept when the reader falls behind.
func (am *AssetManager) ShadingUpdates() <-chan core.ShadingConfig {
	return am.shading
}

// LoadShader resolves a shader name such as "sss.frag" to the compiled
// module under shaders/.
func (am *AssetManager) LoadShader(name string) ([]uint32, error) {
	path := filepath.Join(am.root, "shaders", name+".spv")
	res, err := am.LoadAsset(path, metadata.ResourceTypeShader, nil)
	if err != nil {
		return nil, err
	}
	defer am.UnloadAsset(res)
	words, ok := res.Data.([]uint32)
	if !ok {
		return nil, fmt.Errorf("shader `%s` loaded as %T", name, res.Data)
	}
	return words, nil
}

// Register loaders for each asset type
func (am *AssetManager) registerLoader(assetType metadata.ResourceType, loader Loader) {
	am.loaders[assetType] = loader
}

// LoadAsset loads an indexed asset with the loader registered for its type.
func (am *AssetManager) LoadAsset(path string, resourceType metadata.ResourceType, params interface{}) (*metadata.Resource, error) {
	path = filepath.Clean(path)
	am.mutex.Lock()
	asset, exists := am.assets[path]
	if exists {
		asset.LastLoaded = time.Now()
		am.assets[path] = asset
	}
	am.mutex.Unlock()
	if !exists {
		return nil, fmt.Errorf("asset not found: %s", path)
	}
	if asset.Type != resourceType {
		return nil, fmt.Errorf("asset `%s` has type %d, requested %d", path, asset.Type, resourceType)
	}

	loader, loaderExists := am.loaders[asset.Type]
	if !loaderExists {
		return nil, fmt.Errorf("no loader registered for asset type: %d", asset.Type)
	}
	return loader.Load(path, resourceType, params)
}

func (am *AssetManager) UnloadAsset(asset *metadata.Resource) error {
	if asset == nil {
		return nil
	}
	loader, ok := am.loaders[determineAssetType(asset.FullPath)]
	if !ok {
		return fmt.Errorf("no loader registered for `%s`", asset.FullPath)
	}
	return loader.Unload(asset)
}

// Shutdown stops the watcher. It is safe to call more than once.
func (am *AssetManager) Shutdown() error {
	am.mutex.Lock()
	if am.isClosed {
		am.mutex.Unlock()
		return nil
	}
	am.isClosed = true
	am.mutex.Unlock()

	close(am.done)
	if !am.started {
		return am.fsnotify.Close()
	}
	<-am.stopped
	return nil
}

func (am *AssetManager) start() {
	defer close(am.stopped)
	for {
		select {
		case e, ok := <-am.fsnotify.Events:
			if !ok {
				return
			}
			s, err := os.Stat(e.Name)
			if err == nil && s != nil && s.IsDir() {
				if e.Op&fsnotify.Create != 0 {
					if err := am.watchRecursive(e.Name, false); err != nil {
						core.LogWarn("failed to watch `%s`: %s", e.Name, err)
					}
				}
				continue
			}
			// Handle create or modify events
			if e.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				am.handleFileEvent(e.Name)
				if am.isConfig(e.Name) {
					am.reloadConfig(e.Name)
				}
			}
			if e.Op&fsnotify.Remove != 0 {
				am.removeAsset(e.Name)
			}

		case err, ok := <-am.fsnotify.Errors:
			if !ok {
				return
			}
			core.LogError(err.Error())

		case <-am.done:
			am.fsnotify.Close()
			return
		}
	}
}

func (am *AssetManager) isConfig(path string) bool {
	am.mutex.RLock()
	defer am.mutex.RUnlock()
	return am.configPath != "" && filepath.Clean(path) == am.configPath
}

// reloadConfig keeps the previous parameters when the new document is
// invalid.
func (am *AssetManager) reloadConfig(path string) {
	res, err := am.LoadAsset(path, metadata.ResourceTypeConfig, nil)
	if err != nil {
		core.LogWarn("config reload skipped: %s", err)
		return
	}
	data, _ := res.Data.([]byte)
	am.UnloadAsset(res)
	if len(data) == 0 {
		// truncated mid-save, the write that follows carries the content
		return
	}
	shading, err := core.ParseShading(data)
	if err != nil {
		core.LogWarn("config reload rejected, keeping current shading: %s", err)
		return
	}
	// drop a pending value the reader has not consumed yet
	select {
	case <-am.shading:
	default:
	}
	am.shading <- shading
	core.LogInfo("Shading parameters reloaded from `%s`.", path)
}

// AddRecursive starts watching the named directory and all sub-directories.
func (am *AssetManager) addRecursive(name string) error {
	if am.isClosed {
		return errors.New("asset manager already closed")
	}
	return am.watchRecursive(name, false)
}

// watchRecursive adds all directories under the given one to the watch list
// and indexes the files it finds.
func (am *AssetManager) watchRecursive(path string, unWatch bool) error {
	return filepath.Walk(path, func(walkPath string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if fi.IsDir() {
			if unWatch {
				return am.fsnotify.Remove(walkPath)
			}
			return am.fsnotify.Add(walkPath)
		}
		am.handleFileEvent(walkPath)
		return nil
	})
}

// Handle the creation or modification of a file
func (am *AssetManager) handleFileEvent(path string) {
	assetType := determineAssetType(path)
	if assetType == metadata.ResourceTypeNone {
		return
	}
	am.mutex.Lock()
	defer am.mutex.Unlock()
	path = filepath.Clean(path)
	info := am.assets[path]
	info.Path = path
	info.Type = assetType
	am.assets[path] = info
}

// Remove the asset from the index if it was deleted
func (am *AssetManager) removeAsset(path string) {
	am.mutex.Lock()
	defer am.mutex.Unlock()

	delete(am.assets, filepath.Clean(path))
}

func (am *AssetManager) count() int {
	am.mutex.RLock()
	defer am.mutex.RUnlock()
	return len(am.assets)
}

func determineAssetType(path string) metadata.ResourceType {
	switch filepath.Ext(path) {
	case ".spv":
		return metadata.ResourceTypeShader
	case ".toml":
		return metadata.ResourceTypeConfig
	default:
		return metadata.ResourceTypeNone
	}
}
