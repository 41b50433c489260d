package main

import (
	"fmt"
	"os"
	"time"

	"github.com/cullgate/cullgate/internal/config"
	"github.com/cullgate/cullgate/internal/cull"
	"github.com/cullgate/cullgate/internal/scripting"
	"github.com/cullgate/cullgate/internal/system"
	"github.com/cullgate/cullgate/internal/world"
	"go.uber.org/zap"
)

// configWatcher reports a freshly parsed config whenever the file's
// modification time moves.
type configWatcher struct {
	path  string
	mtime time.Time
}

func newConfigWatcher(path string) *configWatcher {
	w := &configWatcher{path: path}
	if fi, err := os.Stat(path); err == nil {
		w.mtime = fi.ModTime()
	}
	return w
}

// poll returns nil, nil while the file is unchanged. A file that fails to
// parse is reported once and not retried until it changes again.
func (w *configWatcher) poll() (*config.Config, error) {
	fi, err := os.Stat(w.path)
	if err != nil {
		return nil, fmt.Errorf("stat config: %w", err)
	}
	if fi.ModTime().Equal(w.mtime) {
		return nil, nil
	}
	w.mtime = fi.ModTime()
	return config.Load(w.path)
}

// applyReload pushes the cull section of next into the running world.
// Scripted viewpoints that survive the reload keep their current position.
// Registry sizing is fixed for the life of the process.
func applyReload(cur, next *config.Config, mgr *cull.Manager, scene *world.Scene,
	viewSys *system.ViewpointSystem, engine *scripting.Engine, log *zap.Logger) {
	scripts := scriptBindings(next.Cull, engine, log)

	live := make(map[string]cull.Vec3)
	for _, vp := range mgr.Settings().Viewpoints {
		live[vp.Name] = vp.Position
	}
	settings := next.Cull.Settings()
	for i, vp := range settings.Viewpoints {
		if _, scripted := scripts[vp.Name]; !scripted {
			continue
		}
		if pos, ok := live[vp.Name]; ok {
			settings.Viewpoints[i].Position = pos
		}
	}

	mgr.Configure(settings)
	scene.SetFacetsOnly(settings.DisableOnlyFacets)
	viewSys.SetScripts(scripts)

	if cur.Cull.RegistryOptions() != next.Cull.RegistryOptions() {
		log.Warn("registry sizing changes need a restart",
			zap.Int("initial_capacity", next.Cull.InitialCapacity),
			zap.Int("max_capacity", next.Cull.MaxCapacity),
		)
	}
	log.Info("config reloaded",
		zap.Float64("culling_distance", settings.CullingDistance),
		zap.Int("batch_size", settings.BatchSize),
		zap.Bool("facets_only", settings.DisableOnlyFacets),
		zap.Int("viewpoints", len(settings.Viewpoints)),
	)
}
