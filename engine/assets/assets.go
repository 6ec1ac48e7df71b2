package assets

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/errgroup"

	"github.com/spaghettifunk/anima-forward/engine/assets/loaders"
	"github.com/spaghettifunk/anima-forward/engine/core"
	"github.com/spaghettifunk/anima-forward/engine/renderer/metadata"
)

type AssetInfo struct {
	Path       string
	Type       metadata.ResourceType
	LastLoaded time.Time
}

// AssetChange reports a known asset that was created or rewritten on disk.
type AssetChange struct {
	Path string
	Type metadata.ResourceType
}

// AssetManager indexes an asset directory, loads files through the loader
// registered for their type and reports files changing on disk.
type AssetManager struct {
	assets  map[string]AssetInfo
	loaders map[metadata.ResourceType]Loader

	mutex sync.RWMutex

	done     chan struct{}
	fsnotify *fsnotify.Watcher
	isClosed bool
	started  bool
	changes  chan AssetChange
}

func NewAssetManager() (*AssetManager, error) {
	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	am := &AssetManager{
		assets:   make(map[string]AssetInfo),
		loaders:  make(map[metadata.ResourceType]Loader),
		fsnotify: fsWatch,
		changes:  make(chan AssetChange, 16),
		done:     make(chan struct{}),
	}
	// Register loaders
	am.registerLoader(metadata.ResourceTypeShader, &loaders.ShaderLoader{})
	am.registerLoader(metadata.ResourceTypeImage, &loaders.TextureLoader{})
	return am, nil
}

// Initialize indexes every asset under assetsDir and starts watching it.
func (am *AssetManager) Initialize(assetsDir string) error {
	if err := am.addRecursive(assetsDir); err != nil {
		return err
	}
	am.started = true
	go am.start()
	core.LogInfo("indexed %d assets under `%s`", am.Len(), assetsDir)
	return nil
}

// AddRecursive starts watching the named directory and all sub-directories.
func (am *AssetManager) addRecursive(name string) error {
	if am.isClosed {
		return errors.New("asset watcher already closed")
	}
	return am.watchRecursive(name)
}

// Register loaders for each asset type
func (am *AssetManager) registerLoader(assetType metadata.ResourceType, loader Loader) {
	am.loaders[assetType] = loader
}

// LoadAsset loads an indexed asset using the loader of its type.
func (am *AssetManager) LoadAsset(path string, params interface{}) (*metadata.Resource, error) {
	path = filepath.Clean(path)

	am.mutex.Lock()
	asset, exists := am.assets[path]
	if exists {
		asset.LastLoaded = time.Now()
		am.assets[path] = asset
	}
	am.mutex.Unlock()
	if !exists {
		return nil, errors.Newf("asset not found: %s", path)
	}

	loader, loaderExists := am.loaders[asset.Type]
	if !loaderExists {
		return nil, errors.Newf("no loader registered for asset type: %s", asset.Type)
	}
	return loader.Load(path, params)
}

// LoadTextures decodes images in parallel. The result keeps the order of
// paths; the first failure cancels the remaining decodes.
func (am *AssetManager) LoadTextures(ctx context.Context, paths []string, params *metadata.ImageResourceParams) ([]*metadata.ImageResourceData, error) {
	out := make([]*metadata.ImageResourceData, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, p := range paths {
		i, p := i, p
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := am.LoadAsset(p, params)
			if err != nil {
				return err
			}
			data, ok := res.Data.(*metadata.ImageResourceData)
			if !ok {
				return errors.Wrapf(core.ErrTextureLoad, "`%s` is not an image", p)
			}
			out[i] = data
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Assets lists the indexed paths of the given type, sorted.
func (am *AssetManager) Assets(t metadata.ResourceType) []string {
	am.mutex.RLock()
	defer am.mutex.RUnlock()
	var out []string
	for p, a := range am.assets {
		if a.Type == t {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}

func (am *AssetManager) Len() int {
	am.mutex.RLock()
	defer am.mutex.RUnlock()
	return len(am.assets)
}

// Changes delivers assets written after Initialize. It is closed by Close.
func (am *AssetManager) Changes() <-chan AssetChange {
	return am.changes
}

func (am *AssetManager) Close() error {
	if am.isClosed {
		return nil
	}
	am.isClosed = true
	close(am.done)
	if !am.started {
		close(am.changes)
		return am.fsnotify.Close()
	}
	return nil
}

func (am *AssetManager) start() {
	for {
		select {

		case e, ok := <-am.fsnotify.Events:
			if !ok {
				return
			}
			s, err := os.Stat(e.Name)
			if err == nil && s != nil && s.IsDir() {
				if e.Op&fsnotify.Create != 0 {
					am.watchRecursive(e.Name)
				}
				continue
			}
			// Handle create or modify events
			if e.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				if t := am.handleFileEvent(e.Name); t != metadata.ResourceTypeNone {
					select {
					case am.changes <- AssetChange{Path: filepath.Clean(e.Name), Type: t}:
					case <-am.done:
					}
				}
			}
			// Can't stat a deleted path, so try both.
			if e.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				am.removeAsset(e.Name)
				am.fsnotify.Remove(e.Name)
			}

		case e, ok := <-am.fsnotify.Errors:
			if !ok {
				return
			}
			core.LogError(e.Error())

		case <-am.done:
			am.fsnotify.Close()
			close(am.changes)
			return
		}
	}
}

// watchRecursive adds all directories under the given one to the watch list
// and indexes the files found on the way.
func (am *AssetManager) watchRecursive(path string) error {
	return filepath.Walk(path, func(walkPath string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if fi.IsDir() {
			return am.fsnotify.Add(walkPath)
		}
		am.handleFileEvent(walkPath)
		return nil
	})
}

// Handle the creation or modification of a file
func (am *AssetManager) handleFileEvent(path string) metadata.ResourceType {
	assetType := determineAssetType(path)
	if assetType == metadata.ResourceTypeNone {
		return assetType
	}

	am.mutex.Lock()
	defer am.mutex.Unlock()
	path = filepath.Clean(path)
	am.assets[path] = AssetInfo{
		Path:       path,
		Type:       assetType,
		LastLoaded: am.assets[path].LastLoaded,
	}
	return assetType
}

// Remove the asset from the index if it was deleted
func (am *AssetManager) removeAsset(path string) {
	am.mutex.Lock()
	defer am.mutex.Unlock()

	delete(am.assets, filepath.Clean(path))
}

func determineAssetType(path string) metadata.ResourceType {
	switch filepath.Ext(path) {
	case ".spv":
		return metadata.ResourceTypeShader
	case ".png", ".jpg", ".jpeg", ".bmp", ".tif", ".tiff", ".webp":
		return metadata.ResourceTypeImage
	default:
		return metadata.ResourceTypeNone
	}
}
