package scripting

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/cullgate/cullgate/internal/cull"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// Engine wraps a single gopher-lua VM that drives scripted viewpoints.
// Single-goroutine access only (tick loop).
type Engine struct {
	vm  *lua.LState
	log *zap.Logger
}

// NewEngine creates a Lua engine and loads every .lua file in scriptsDir.
// A missing directory yields an engine with no functions.
func NewEngine(scriptsDir string, log *zap.Logger) (*Engine, error) {
	if log == nil {
		log = zap.NewNop()
	}
	vm := lua.NewState(lua.Options{
		SkipOpenLibs: false,
	})
	vm.SetGlobal("API_VERSION", lua.LNumber(1))

	e := &Engine{vm: vm, log: log}
	if scriptsDir != "" {
		if err := e.loadDir(scriptsDir); err != nil {
			vm.Close()
			return nil, fmt.Errorf("load viewpoint scripts: %w", err)
		}
	}
	return e, nil
}

func (e *Engine) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := e.vm.DoFile(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		e.log.Debug("loaded lua script", zap.String("file", path))
	}
	return nil
}

// LoadString executes a chunk of Lua source in the engine's VM.
func (e *Engine) LoadString(src string) error {
	return e.vm.DoString(src)
}

// HasFunction reports whether a global Lua function named fn exists.
func (e *Engine) HasFunction(fn string) bool {
	_, ok := e.vm.GetGlobal(fn).(*lua.LFunction)
	return ok
}

// MoveViewpoint calls the Lua function fn with a context table
// {name, tick, x, y, z} and reads back a table {x, y, z}. Fields the script
// leaves out keep the current value.
func (e *Engine) MoveViewpoint(fn string, vp cull.Viewpoint, tick uint64) (cull.Vec3, error) {
	f, ok := e.vm.GetGlobal(fn).(*lua.LFunction)
	if !ok {
		return vp.Position, fmt.Errorf("lua function %s not found", fn)
	}

	ctx := e.vm.NewTable()
	ctx.RawSetString("name", lua.LString(vp.Name))
	ctx.RawSetString("tick", lua.LNumber(tick))
	ctx.RawSetString("x", lua.LNumber(vp.Position.X))
	ctx.RawSetString("y", lua.LNumber(vp.Position.Y))
	ctx.RawSetString("z", lua.LNumber(vp.Position.Z))

	if err := e.vm.CallByParam(lua.P{
		Fn:      f,
		NRet:    1,
		Protect: true,
	}, ctx); err != nil {
		return vp.Position, fmt.Errorf("lua %s: %w", fn, err)
	}

	result := e.vm.Get(-1)
	e.vm.Pop(1)

	rt, ok := result.(*lua.LTable)
	if !ok {
		return vp.Position, fmt.Errorf("lua %s returned %s, want table", fn, result.Type())
	}
	return cull.Vec3{
		X: number(rt.RawGetString("x"), vp.Position.X),
		Y: number(rt.RawGetString("y"), vp.Position.Y),
		Z: number(rt.RawGetString("z"), vp.Position.Z),
	}, nil
}

func number(v lua.LValue, fallback float64) float64 {
	if n, ok := v.(lua.LNumber); ok {
		return float64(n)
	}
	return fallback
}

func (e *Engine) Close() {
	e.vm.Close()
}
