package nodes

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/console"
	"github.com/dop251/goja_nodejs/require"
	"github.com/joeycumines/mbt/internal/behavior"
	"github.com/joeycumines/mbt/internal/behavior/loader"
)

// ScriptModuleName is the native module scripts can require for status
// names:
//
//	const mbt = require("mbt");
//	mbt.RUNNING
const ScriptModuleName = "mbt"

// script runs a JavaScript program once per tick. The program sees:
//
//	vars.get(name), vars.set(name, value), vars.changed(name)
//	blackboard (see [behavior.Blackboard.ExposeToJS])
//	dispatch(eventName)
//	entity, frame, now (unix milliseconds)
//
// and completes with "running", "success" or "failure". A boolean maps to
// success or failure; no value means success.
type script struct {
	mu      sync.Mutex
	vm      *goja.Runtime
	program *goja.Program
}

func newScript(bc *loader.BuildContext, def *loader.NodeDefinition) (behavior.Node, error) {
	if err := bc.NoChildren(def); err != nil {
		return nil, err
	}
	source, err := def.RequiredString("source")
	if err != nil {
		return nil, err
	}
	program, err := goja.Compile(bc.Tree()+":"+def.Type, source, true)
	if err != nil {
		return nil, &loader.AttributeError{Attribute: "source", Line: def.AttributeLine("source"), Err: err}
	}
	return bc.NewNode(def, &script{vm: newScriptRuntime(bc.Logger()), program: program}), nil
}

func newScriptRuntime(logger *slog.Logger) *goja.Runtime {
	vm := goja.New()
	registry := require.NewRegistry()
	registry.RegisterNativeModule(console.ModuleName, console.RequireWithPrinter(scriptPrinter{logger: logger}))
	registry.RegisterNativeModule(ScriptModuleName, requireScriptModule)
	registry.Enable(vm)
	console.Enable(vm)
	return vm
}

func requireScriptModule(vm *goja.Runtime, module *goja.Object) {
	exports := module.Get("exports").(*goja.Object)
	_ = exports.Set("RUNNING", "running")
	_ = exports.Set("SUCCESS", "success")
	_ = exports.Set("FAILURE", "failure")
}

// scriptPrinter sends console output to the logger.
type scriptPrinter struct {
	logger *slog.Logger
}

func (p scriptPrinter) Log(s string)   { p.logger.Info(s, "source", "script") }
func (p scriptPrinter) Warn(s string)  { p.logger.Warn(s, "source", "script") }
func (p scriptPrinter) Error(s string) { p.logger.Error(s, "source", "script") }

func (n *script) Update(tc behavior.TickContext) behavior.Status {
	n.mu.Lock()
	defer n.mu.Unlock()

	vm := n.vm
	_ = vm.Set("vars", scriptVariables(vm, tc))
	_ = vm.Set("blackboard", tc.Blackboard.ExposeToJS(vm))
	_ = vm.Set("dispatch", func(name string) { tc.Dispatch(behavior.NewEvent(name)) })
	_ = vm.Set("entity", uint32(tc.Entity))
	_ = vm.Set("frame", tc.Frame)
	_ = vm.Set("now", tc.Now.UnixMilli())

	result, err := vm.RunProgram(n.program)
	if err != nil {
		tc.Logger().Warn("behavior tree script failed", "error", err)
		return behavior.Failure
	}
	return scriptStatus(tc, result)
}

func scriptVariables(vm *goja.Runtime, tc behavior.TickContext) *goja.Object {
	obj := vm.NewObject()
	_ = obj.Set("get", func(name string) goja.Value {
		v, ok := tc.Variables.Get(name)
		if !ok {
			panic(vm.NewTypeError("unknown variable %q", name))
		}
		return vm.ToValue(v)
	})
	_ = obj.Set("set", func(name string, value goja.Value) {
		if err := tc.Variables.Set(name, value.Export()); err != nil {
			panic(vm.NewGoError(err))
		}
	})
	_ = obj.Set("changed", tc.Variables.WasChanged)
	return obj
}

func scriptStatus(tc behavior.TickContext, v goja.Value) behavior.Status {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return behavior.Success
	}
	switch r := v.Export().(type) {
	case bool:
		if r {
			return behavior.Success
		}
		return behavior.Failure
	case string:
		if s, ok := behavior.ParseStatus(strings.ToLower(r)); ok {
			return s
		}
	}
	tc.Logger().Warn("behavior tree script returned an invalid status", "result", v.String())
	return behavior.Failure
}
