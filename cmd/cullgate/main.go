package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cullgate/cullgate/internal/config"
	"github.com/cullgate/cullgate/internal/core/ecs"
	"github.com/cullgate/cullgate/internal/core/event"
	coresys "github.com/cullgate/cullgate/internal/core/system"
	"github.com/cullgate/cullgate/internal/cull"
	"github.com/cullgate/cullgate/internal/data"
	"github.com/cullgate/cullgate/internal/persist"
	"github.com/cullgate/cullgate/internal/scripting"
	"github.com/cullgate/cullgate/internal/system"
	"github.com/cullgate/cullgate/internal/world"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config
	defPath := "config/cullgate.toml"
	if p := os.Getenv("CULLGATE_CONFIG"); p != "" {
		defPath = p
	}
	cfgPath := flag.String("config", defPath, "path to the TOML config")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Init logger
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	printBanner(*cfgPath)

	// 3. Visibility manager and scene
	bus := event.NewBus()
	ecsWorld := ecs.NewWorld()
	mgr := cull.NewManager(cfg.Cull.Settings(), cfg.Cull.RegistryOptions(), bus, log)
	scene := world.NewScene(ecsWorld, mgr, bus, cfg.Cull.DisableOnlyFacets, log)
	defer scene.Close()

	printSection("Scene")
	sceneTable, err := data.LoadScene(cfg.Simulation.SceneFile)
	if err != nil {
		return fmt.Errorf("load scene: %w", err)
	}
	spawned, err := spawnScene(scene, sceneTable)
	if err != nil {
		return fmt.Errorf("spawn scene %s: %w", sceneTable.Name(), err)
	}
	printStat("props", spawned)
	printStat("viewpoints", len(cfg.Cull.Viewpoints))

	// 4. Lua viewpoint scripts
	luaEngine, err := scripting.NewEngine(cfg.Simulation.ScriptsDir, log)
	if err != nil {
		return fmt.Errorf("lua engine: %w", err)
	}
	defer luaEngine.Close()
	scripts := scriptBindings(cfg.Cull, luaEngine, log)
	printStat("scripted viewpoints", len(scripts))
	fmt.Println()

	// 5. Systems
	runner := coresys.NewRunner()
	viewSys := system.NewViewpointSystem(mgr, scene, luaEngine, log)
	viewSys.SetScripts(scripts)
	visSys := system.NewVisibilitySystem(mgr)
	cleanupSys := system.NewCleanupSystem(ecsWorld)
	runner.Register(viewSys)
	runner.Register(system.NewRegistrationSystem(mgr, log))
	runner.Register(visSys)
	runner.Register(cleanupSys)

	// 6. Optional transition journal
	var journal *system.JournalSystem
	if cfg.Database.Enabled {
		printSection("Journal")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		db, err := persist.NewDB(ctx, cfg.Database, log)
		if err != nil {
			cancel()
			return fmt.Errorf("database: %w", err)
		}
		defer db.Close()
		version, err := persist.RunMigrations(ctx, db.Pool)
		cancel()
		if err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
		repo := persist.NewJournalRepo(db, uuid.New())
		journal = system.NewJournalSystem(bus, repo, runner.Ticks, cfg.Database.FlushTicks, log)
		runner.Register(journal)
		printOK(fmt.Sprintf("schema version %d", version))
		printOK("run " + repo.RunID().String())
		fmt.Println()
	}

	// 7. Tick loop
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	tickRate := cfg.Simulation.TickRate
	ticker := time.NewTicker(tickRate)
	defer ticker.Stop()

	statsTicker := time.NewTicker(positive(cfg.Simulation.StatsInterval))
	defer statsTicker.Stop()

	watcher := newConfigWatcher(*cfgPath)
	reloadTicker := time.NewTicker(positive(cfg.Simulation.ReloadInterval))
	defer reloadTicker.Stop()

	printSection("Running")
	printReady(fmt.Sprintf("tick loop started (tick: %s)", tickRate))
	fmt.Println()

	var loopErr error
loop:
	for {
		select {
		case <-ticker.C:
			if err := runner.Tick(tickRate); err != nil {
				if errors.Is(err, cull.ErrCapacityExceeded) {
					log.Error("registry capacity exhausted", zap.Error(err))
				}
				loopErr = err
				break loop
			}

		case <-statsTicker.C:
			st := mgr.Stats()
			log.Info("visibility",
				zap.Uint64("tick", runner.Ticks()),
				zap.Int("registered", st.Registered),
				zap.Int("visible", st.Visible),
				zap.Int("pending", st.Pending),
				zap.Int("capacity", st.Capacity),
				zap.Int("rendering", scene.Rendering()),
				zap.Uint64("transitions", visSys.Transitions()),
				zap.Int("destroyed", cleanupSys.Destroyed()),
			)

		case <-reloadTicker.C:
			if cfg.Simulation.ReloadInterval <= 0 {
				continue
			}
			next, err := watcher.poll()
			if err != nil {
				log.Warn("config reload rejected", zap.Error(err))
				continue
			}
			if next == nil {
				continue
			}
			applyReload(cfg, next, mgr, scene, viewSys, luaEngine, log)
			cfg.Cull = next.Cull

		case sig := <-shutdownCh:
			log.Info("shutting down", zap.String("signal", sig.String()))
			break loop
		}
	}

	if journal != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		journal.Close(ctx)
		cancel()
		if n := journal.Dropped(); n > 0 {
			log.Warn("journal entries dropped", zap.Int("count", n))
		}
	}
	log.Info("stopped",
		zap.Uint64("ticks", runner.Ticks()),
		zap.Int("registered", mgr.TotalRegistered()),
		zap.Int("visible", mgr.TotalVisible()),
	)
	return loopErr
}

// spawnScene converts the scene table into props and spawns them hidden.
func spawnScene(scene *world.Scene, table *data.SceneTable) (int, error) {
	n := 0
	for _, e := range table.Props() {
		p := world.Prop{
			Name:     e.Name,
			Position: vec(e.Position),
			Velocity: vec(e.Velocity),
		}
		if e.Collider != nil {
			b := cull.BoxAt(cull.Vec3{}, vec(*e.Collider))
			p.Collider = &b
		}
		if e.Renderer != nil {
			b := cull.BoxAt(cull.Vec3{}, vec(*e.Renderer))
			p.Renderer = &b
		}
		if _, err := scene.Spawn(p); err != nil {
			return n, fmt.Errorf("prop %s: %w", e.Name, err)
		}
		n++
	}
	return n, nil
}

func vec(v data.Vec) cull.Vec3 { return cull.Vec3{X: v[0], Y: v[1], Z: v[2]} }

// scriptBindings maps viewpoint names to their Lua function, skipping
// functions the engine does not define.
func scriptBindings(cc config.CullConfig, engine *scripting.Engine, log *zap.Logger) map[string]string {
	out := make(map[string]string)
	for _, vp := range cc.Viewpoints {
		if vp.Script == "" {
			continue
		}
		if !engine.HasFunction(vp.Script) {
			log.Warn("viewpoint script not found",
				zap.String("viewpoint", vp.Name),
				zap.String("script", vp.Script),
			)
			continue
		}
		out[vp.Name] = vp.Script
	}
	return out
}

// positive keeps time.NewTicker from panicking on disabled intervals.
func positive(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Hour
	}
	return d
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
