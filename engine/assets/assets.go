// Package assets indexes the files under the assets directory, loads them
// on request and watches them for changes so shaders and textures can be
// reloaded while the engine runs.
package assets

import (
	"image"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"

	"github.com/spaghettifunk/vkframe/engine/assets/loaders"
	"github.com/spaghettifunk/vkframe/engine/core"
)

// maxPendingChanges bounds the change notifications buffered between two
// polls.
const maxPendingChanges = 64

var (
	ErrAssetNotFound = errors.New("asset not found")
	ErrClosed        = errors.New("asset manager closed")
)

type AssetInfo struct {
	// Path relative to the assets root, slash separated.
	Path       string
	Type       loaders.ResourceType
	LastLoaded time.Time
}

type AssetManager struct {
	root    string
	assets  map[string]AssetInfo
	loaders map[loaders.ResourceType]Loader

	mutex sync.RWMutex

	fsnotify *fsnotify.Watcher
	changes  chan string
	done     chan struct{}
	wg       sync.WaitGroup
	isClosed bool
}

func NewAssetManager() (*AssetManager, error) {
	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "create asset watcher")
	}

	return &AssetManager{
		assets:   make(map[string]AssetInfo),
		loaders:  make(map[loaders.ResourceType]Loader),
		fsnotify: fsWatch,
		changes:  make(chan string, maxPendingChanges),
		done:     make(chan struct{}),
	}, nil
}

// Initialize indexes and watches every file below assetsDir.
func (am *AssetManager) Initialize(assetsDir string) error {
	root, err := filepath.Abs(assetsDir)
	if err != nil {
		return errors.Wrapf(err, "assets directory %q", assetsDir)
	}
	fi, err := os.Stat(root)
	if err != nil {
		return errors.Wrapf(err, "assets directory %q", assetsDir)
	}
	if !fi.IsDir() {
		return errors.Newf("assets path %q is not a directory", assetsDir)
	}
	am.root = root

	// Register loaders
	am.registerLoader(loaders.ResourceTypeShader, &loaders.ShaderLoader{})
	am.registerLoader(loaders.ResourceTypeImage, &loaders.ImageLoader{})

	if err := am.watchRecursive(root); err != nil {
		return err
	}

	am.wg.Add(1)
	go am.start()

	core.LogInfo("watching %d assets under %s", am.Len(), root)
	return nil
}

// Register loaders for each asset type
func (am *AssetManager) registerLoader(assetType loaders.ResourceType, loader Loader) {
	am.loaders[assetType] = loader
}

// Root is the absolute assets directory.
func (am *AssetManager) Root() string {
	return am.root
}

// Len returns the number of indexed assets.
func (am *AssetManager) Len() int {
	am.mutex.RLock()
	defer am.mutex.RUnlock()
	return len(am.assets)
}

// Load an asset using the loader registered for its type. name is relative
// to the assets root.
func (am *AssetManager) Load(name string, params interface{}) (*loaders.Resource, error) {
	key := filepath.ToSlash(filepath.Clean(name))

	am.mutex.Lock()
	asset, exists := am.assets[key]
	if exists {
		// Load or reload asset from disk
		asset.LastLoaded = time.Now()
		am.assets[key] = asset
	}
	am.mutex.Unlock()
	if !exists {
		return nil, errors.Wrapf(ErrAssetNotFound, "%s", key)
	}

	loader, loaderExists := am.loaders[asset.Type]
	if !loaderExists {
		return nil, errors.Newf("no loader registered for %s asset %s", asset.Type, key)
	}
	return loader.Load(key, filepath.Join(am.root, filepath.FromSlash(key)), params)
}

// LoadShader returns the SPIR-V byte code of a compiled shader.
func (am *AssetManager) LoadShader(name string) ([]byte, error) {
	res, err := am.Load(name, nil)
	if err != nil {
		return nil, err
	}
	code, ok := res.Data.([]byte)
	if !ok {
		return nil, errors.Newf("asset %s is a %s, not a shader", name, res.Type)
	}
	return code, nil
}

// LoadImage decodes an image asset into RGBA pixels.
func (am *AssetManager) LoadImage(name string, flipY bool) (*image.RGBA, error) {
	res, err := am.Load(name, &loaders.ImageParams{FlipY: flipY})
	if err != nil {
		return nil, err
	}
	img, ok := res.Data.(*image.RGBA)
	if !ok {
		return nil, errors.Newf("asset %s is a %s, not an image", name, res.Type)
	}
	return img, nil
}

// Poll drains the change notifications without blocking and returns every
// asset written since the last call, once each, in arrival order.
func (am *AssetManager) Poll() []string {
	var changed []string
	seen := make(map[string]bool)
	for {
		select {
		case p := <-am.changes:
			if !seen[p] {
				seen[p] = true
				changed = append(changed, p)
			}
		default:
			return changed
		}
	}
}

// Close stops the watcher goroutine. The index stays readable.
func (am *AssetManager) Close() error {
	am.mutex.Lock()
	if am.isClosed {
		am.mutex.Unlock()
		return nil
	}
	am.isClosed = true
	am.mutex.Unlock()

	close(am.done)
	am.wg.Wait()
	return am.fsnotify.Close()
}

func (am *AssetManager) start() {
	defer am.wg.Done()
	for {
		select {
		case e, ok := <-am.fsnotify.Events:
			if !ok {
				return
			}
			am.handleEvent(e)

		case err, ok := <-am.fsnotify.Errors:
			if !ok {
				return
			}
			core.LogError("asset watcher: %s", err)

		case <-am.done:
			return
		}
	}
}

func (am *AssetManager) handleEvent(e fsnotify.Event) {
	if e.Has(fsnotify.Create) {
		if s, err := os.Stat(e.Name); err == nil && s.IsDir() {
			if err := am.watchRecursive(e.Name); err != nil {
				core.LogWarn("watch %s: %s", e.Name, err)
			}
			return
		}
	}
	if e.Has(fsnotify.Create) || e.Has(fsnotify.Write) {
		if rel, ok := am.handleFileEvent(e.Name); ok {
			am.notify(rel)
		}
	}
	// Can't stat a deleted path, so try both the index and the watch list.
	if e.Has(fsnotify.Remove) || e.Has(fsnotify.Rename) {
		am.removeAsset(e.Name)
		_ = am.fsnotify.Remove(e.Name)
	}
}

func (am *AssetManager) notify(rel string) {
	select {
	case am.changes <- rel:
	default:
		core.LogWarn("asset change queue full, dropping %s", rel)
	}
}

// watchRecursive adds the directory and all its sub-directories to the
// watch list and indexes the files found.
func (am *AssetManager) watchRecursive(path string) error {
	return filepath.Walk(path, func(walkPath string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if fi.IsDir() {
			if err := am.fsnotify.Add(walkPath); err != nil {
				return errors.Wrapf(err, "watch %s", walkPath)
			}
			return nil
		}
		am.handleFileEvent(walkPath)
		return nil
	})
}

// relative maps an absolute path below the root to its index key.
func (am *AssetManager) relative(path string) (string, bool) {
	rel, err := filepath.Rel(am.root, path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

// Handle the creation or modification of a file
func (am *AssetManager) handleFileEvent(path string) (string, bool) {
	rel, ok := am.relative(path)
	if !ok {
		return "", false
	}
	assetType := loaders.TypeOf(rel)
	if assetType == loaders.ResourceTypeNone {
		return "", false
	}

	am.mutex.Lock()
	defer am.mutex.Unlock()
	info, exists := am.assets[rel]
	if !exists {
		info = AssetInfo{Path: rel, Type: assetType}
	}
	am.assets[rel] = info
	return rel, true
}

// Remove the asset from the index if it was deleted
func (am *AssetManager) removeAsset(path string) {
	rel, ok := am.relative(path)
	if !ok {
		return
	}
	am.mutex.Lock()
	defer am.mutex.Unlock()
	delete(am.assets, rel)
}
