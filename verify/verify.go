// Package verify cross-checks a decoded WebAssembly module against the
// wazero compiler's view of the same bytes.
//
// The decoder never executes or validates code, so a module it accepts may
// still be rejected by a runtime, and a decoding bug can go unnoticed as long
// as the tree looks plausible. Compiling the bytes with wazero and comparing
// the function imports and exports it reports with the decoded sections
// catches both.
package verify

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/experimental"
	"go.uber.org/zap"

	"github.com/starsquare/classpy/errors"
	"github.com/starsquare/classpy/wasmfile"
)

// Config holds configuration for the verifying runtime.
type Config struct {
	// EnableThreads accepts modules using the threads proposal
	// (shared memories, atomics).
	EnableThreads bool
}

// Mismatch is one disagreement between the decoded module and wazero.
type Mismatch struct {
	// Kind is "import", "export" or "memory".
	Kind    string
	Name    string
	Decoded string
	Runtime string
}

func (m Mismatch) String() string {
	return fmt.Sprintf("%s %s: decoded %s, runtime %s", m.Kind, m.Name, m.Decoded, m.Runtime)
}

// Report summarizes a verification.
type Report struct {
	Imports    int
	Exports    int
	Mismatches []Mismatch
}

// OK reports whether no mismatches were found.
func (r *Report) OK() bool {
	return len(r.Mismatches) == 0
}

// Err returns a verify-phase error describing the mismatches, or nil.
func (r *Report) Err() error {
	if r.OK() {
		return nil
	}
	return errors.New(errors.PhaseVerify, errors.KindInvalidData).
		Value(len(r.Mismatches)).
		Detail("%d mismatch(es) with wazero, first: %s", len(r.Mismatches), r.Mismatches[0]).
		Build()
}

// Module compiles data with wazero and compares its function imports,
// function exports and exported memories with mod. When mod is nil, data is
// decoded first.
func Module(ctx context.Context, data []byte, mod *wasmfile.File) (*Report, error) {
	return ModuleWithConfig(ctx, data, mod, nil)
}

// ModuleWithConfig is Module with a custom runtime configuration.
func ModuleWithConfig(ctx context.Context, data []byte, mod *wasmfile.File, cfg *Config) (*Report, error) {
	if mod == nil {
		var err error
		if mod, err = wasmfile.Parse(data); err != nil {
			return nil, errors.ParseFailed("wasm module", err)
		}
	}

	runtimeCfg := wazero.NewRuntimeConfig()
	if cfg != nil && cfg.EnableThreads {
		runtimeCfg = runtimeCfg.WithCoreFeatures(api.CoreFeaturesV2 | experimental.CoreFeaturesThreads)
	}
	rt := wazero.NewRuntimeWithConfig(ctx, runtimeCfg)
	defer rt.Close(ctx)

	compiled, err := rt.CompileModule(ctx, data)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseVerify, errors.KindInvalidData, err, "wazero rejected the module")
	}
	defer compiled.Close(ctx)

	report := &Report{}
	compareImports(report, mod, compiled.ImportedFunctions())
	compareExports(report, mod, compiled.ExportedFunctions())
	compareMemories(report, mod, compiled.ExportedMemories())

	for _, m := range report.Mismatches {
		Logger().Debug("verify mismatch",
			zap.String("kind", m.Kind),
			zap.String("name", m.Name),
			zap.String("decoded", m.Decoded),
			zap.String("runtime", m.Runtime),
		)
	}
	Logger().Debug("verified module",
		zap.Int("imports", report.Imports),
		zap.Int("exports", report.Exports),
		zap.Int("mismatches", len(report.Mismatches)),
	)
	return report, nil
}

func compareImports(report *Report, mod *wasmfile.File, defs []api.FunctionDefinition) {
	var decoded []*wasmfile.Import
	for _, imp := range mod.Imports() {
		if imp.KindByte() == wasmfile.KindFunc && imp.Module != nil && imp.Field != nil {
			decoded = append(decoded, imp)
		}
	}
	report.Imports = len(decoded)

	for i := 0; i < max(len(decoded), len(defs)); i++ {
		switch {
		case i >= len(decoded):
			module, name, _ := defs[i].Import()
			report.add("import", module+"."+name, "missing", signature(defs[i].ParamTypes(), defs[i].ResultTypes()))
		case i >= len(defs):
			imp := decoded[i]
			report.add("import", imp.Module.Value+"."+imp.Field.Value, decodedSignature(mod, uint32(i)), "missing")
		default:
			imp := decoded[i]
			want := imp.Module.Value + "." + imp.Field.Value
			module, name, _ := defs[i].Import()
			if got := module + "." + name; got != want {
				report.add("import", fmt.Sprintf("#%d", i), want, got)
				continue
			}
			compareSignature(report, "import", want, mod, uint32(i), defs[i])
		}
	}
}

func compareExports(report *Report, mod *wasmfile.File, defs map[string]api.FunctionDefinition) {
	seen := map[string]bool{}
	for _, e := range mod.Exports() {
		if e.KindByte() != wasmfile.KindFunc || e.Field == nil || e.Index == nil {
			continue
		}
		name := e.Field.Value
		seen[name] = true
		report.Exports++

		def, ok := defs[name]
		if !ok {
			report.add("export", name, fmt.Sprintf("func #%d", e.Index.Value), "missing")
			continue
		}
		if def.Index() != e.Index.Value {
			report.add("export", name, fmt.Sprintf("func #%d", e.Index.Value), fmt.Sprintf("func #%d", def.Index()))
			continue
		}
		compareSignature(report, "export", name, mod, e.Index.Value, def)
	}

	for _, name := range sortedKeys(defs) {
		if !seen[name] {
			def := defs[name]
			report.add("export", name, "missing", fmt.Sprintf("func #%d", def.Index()))
		}
	}
}

func compareMemories(report *Report, mod *wasmfile.File, defs map[string]api.MemoryDefinition) {
	seen := map[string]bool{}
	for _, e := range mod.Exports() {
		if e.KindByte() != wasmfile.KindMemory || e.Field == nil {
			continue
		}
		seen[e.Field.Value] = true
		if _, ok := defs[e.Field.Value]; !ok {
			report.add("memory", e.Field.Value, "exported", "missing")
		}
	}
	for _, name := range sortedKeys(defs) {
		if !seen[name] {
			report.add("memory", name, "missing", "exported")
		}
	}
}

func compareSignature(report *Report, kind, name string, mod *wasmfile.File, index uint32, def api.FunctionDefinition) {
	got := signature(def.ParamTypes(), def.ResultTypes())
	if want := decodedSignature(mod, index); want != got {
		report.add(kind, name, want, got)
	}
}

// decodedSignature renders the decoded type of function index with wazero's
// value type names so both sides compare textually.
func decodedSignature(mod *wasmfile.File, index uint32) string {
	ft, err := mod.FuncType(index)
	if err != nil {
		return "<" + err.Error() + ">"
	}
	return signature(apiTypes(ft.ParamTypes()), apiTypes(ft.ResultTypes()))
}

func apiTypes(types []wasmfile.ValType) []api.ValueType {
	out := make([]api.ValueType, len(types))
	for i, t := range types {
		out[i] = api.ValueType(t)
	}
	return out
}

func signature(params, results []api.ValueType) string {
	return "(" + typeList(params) + ") -> (" + typeList(results) + ")"
}

func typeList(types []api.ValueType) string {
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = api.ValueTypeName(t)
	}
	return strings.Join(names, ", ")
}

func (r *Report) add(kind, name, decoded, runtime string) {
	r.Mismatches = append(r.Mismatches, Mismatch{Kind: kind, Name: name, Decoded: decoded, Runtime: runtime})
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
