package systems

import (
	"runtime"

	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/anima-forward/engine/assets"
	"github.com/spaghettifunk/anima-forward/engine/core"
	"github.com/spaghettifunk/anima-forward/engine/renderer/driver"
	"github.com/spaghettifunk/anima-forward/engine/renderer/forward"
	"github.com/spaghettifunk/anima-forward/engine/renderer/metadata"
)

type SystemManager struct {
	AssetManager  *assets.AssetManager
	JobSystem     *JobSystem
	TextureSystem *TextureSystem
	MeshSystem    *MeshSystem
}

func NewSystemManager(device driver.Device, uploader *forward.TextureUploader, maxTextures uint32) (*SystemManager, error) {
	js, err := NewJobSystem(runtime.NumCPU(), 64)
	if err != nil {
		return nil, err
	}
	am, err := assets.NewAssetManager()
	if err != nil {
		js.Shutdown()
		return nil, err
	}
	ts, err := NewTextureSystem(&TextureSystemConfig{
		MaxTextureCount: maxTextures,
	}, uploader)
	if err != nil {
		js.Shutdown()
		am.Close()
		return nil, err
	}
	return &SystemManager{
		AssetManager:  am,
		JobSystem:     js,
		TextureSystem: ts,
		MeshSystem:    NewMeshSystem(device),
	}, nil
}

func (sm *SystemManager) Initialize(assetsDir string) error {
	if err := sm.AssetManager.Initialize(assetsDir); err != nil {
		return err
	}
	return sm.TextureSystem.Initialize()
}

// WatchTextures decodes every image rewritten on disk on a worker and posts
// the pixels to the bus. The render thread swaps them in on Dispatch.
func (sm *SystemManager) WatchTextures(bus *core.EventBus) {
	go func() {
		for change := range sm.AssetManager.Changes() {
			if change.Type != metadata.ResourceTypeImage {
				continue
			}
			path := change.Path
			err := sm.JobSystem.Submit(JobTask{
				Name: "reload " + path,
				Run: func() (interface{}, error) {
					return sm.AssetManager.LoadAsset(path, nil)
				},
				OnComplete: func(result interface{}) {
					res := result.(*metadata.Resource)
					if err := bus.Post(core.EventContext{
						Code:   core.EVENT_CODE_TEXTURE_RELOADED,
						Sender: sm,
						Data:   res.Data.(*metadata.ImageResourceData),
					}); err != nil {
						core.LogWarn("%v", err)
					}
				},
			})
			if err != nil {
				return
			}
		}
	}()
}

// ReloadTexture replaces a loaded texture with new pixels. The renderer
// stops sampling the old one before it is destroyed.
func (sm *SystemManager) ReloadTexture(data *metadata.ImageResourceData, r *forward.Renderer) error {
	if _, ok := sm.TextureSystem.Acquire(data.Name); !ok {
		core.LogDebug("texture `%s` changed on disk but is not loaded", data.Name)
		return nil
	}
	old, replacement, err := sm.TextureSystem.Replace(data)
	if err != nil {
		return err
	}
	if err := r.ReplaceTexture(old, replacement); err != nil {
		return err
	}
	for _, m := range sm.MeshSystem.meshes {
		if m.TextureID == old {
			m.TextureID = replacement
		}
	}
	if err := sm.TextureSystem.Release(old); err != nil {
		return errors.Wrapf(err, "releasing previous `%s`", data.Name)
	}
	core.LogInfo("texture `%s` reloaded", data.Name)
	return nil
}

func (sm *SystemManager) Shutdown() error {
	if err := sm.AssetManager.Close(); err != nil {
		return err
	}
	if err := sm.JobSystem.Shutdown(); err != nil {
		return err
	}
	sm.MeshSystem.Shutdown()
	return sm.TextureSystem.Shutdown()
}
