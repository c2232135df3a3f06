package scripting

import (
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
)

func newScriptedEngine(t *testing.T, combatLua string) *Engine {
	t.Helper()
	dir := t.TempDir()
	if combatLua != "" {
		combat := filepath.Join(dir, "combat")
		if err := os.MkdirAll(combat, 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(filepath.Join(combat, "volley.lua"), []byte(combatLua), 0o644); err != nil {
			t.Fatalf("write script: %v", err)
		}
	}
	e, err := NewEngine(dir, zap.NewNop())
	if err != nil {
		t.Fatalf("new engine: %+v", err)
	}
	t.Cleanup(e.Close)
	return e
}

func TestVolleyCallsLuaHook(t *testing.T) {
	e := newScriptedEngine(t, `
function calc_volley(c)
    return (c.attack - c.shield) * c.roll
end
`)
	got, ok := e.Volley(400, 100, 1000, 1.05)
	if !ok {
		t.Fatalf("scripted volley not used")
	}
	if want := 300 * 1.05; got != want {
		t.Fatalf("volley = %v, expected %v", got, want)
	}
}

func TestVolleyClampsNegativeResults(t *testing.T) {
	e := newScriptedEngine(t, `
function calc_volley(c)
    return c.attack - c.shield
end
`)
	got, ok := e.Volley(50, 200, 1000, 1)
	if !ok {
		t.Fatalf("scripted volley not used")
	}
	if got != 0 {
		t.Fatalf("negative damage not clamped: %v", got)
	}
}

func TestVolleyFallsBackWithoutHook(t *testing.T) {
	e := newScriptedEngine(t, "")
	if _, ok := e.Volley(400, 100, 1000, 1); ok {
		t.Fatalf("hook reported without any script loaded")
	}
}

func TestVolleyIgnoresNonNumberResults(t *testing.T) {
	e := newScriptedEngine(t, `
function calc_volley(c)
    return "a lot"
end
`)
	if _, ok := e.Volley(400, 100, 1000, 1); ok {
		t.Fatalf("non-number result accepted")
	}
}

func TestNewEngineMissingDirIsFine(t *testing.T) {
	e, err := NewEngine(filepath.Join(t.TempDir(), "nope"), zap.NewNop())
	if err != nil {
		t.Fatalf("missing scripts dir rejected: %+v", err)
	}
	e.Close()
}

func TestNewEngineRejectsBrokenScript(t *testing.T) {
	dir := t.TempDir()
	core := filepath.Join(dir, "core")
	if err := os.MkdirAll(core, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(core, "broken.lua"), []byte("function ("), 0o644); err != nil {
		t.Fatalf("write script: %v", err)
	}
	if _, err := NewEngine(dir, zap.NewNop()); err == nil {
		t.Fatalf("broken script accepted")
	}
}
