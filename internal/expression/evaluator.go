package expression

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	lru "github.com/hashicorp/golang-lru/v2"
)

const defaultProgramCacheSize = 1024

// Evaluator compiles and runs {{ ... }} expressions against a
// ResolutionContext, caching compiled programs in an LRU keyed by the
// raw expression string — an addition the teacher's own
// CompileExpression comment calls out as useful but never wires to a
// cache.
type Evaluator struct {
	mu    sync.Mutex
	cache *lru.Cache[string, *vm.Program]
}

func NewEvaluator() *Evaluator {
	cache, _ := lru.New[string, *vm.Program](defaultProgramCacheSize)
	return &Evaluator{cache: cache}
}

func (e *Evaluator) compile(content string, env map[string]interface{}) (*vm.Program, error) {
	e.mu.Lock()
	if p, ok := e.cache.Get(content); ok {
		e.mu.Unlock()
		return p, nil
	}
	e.mu.Unlock()

	program, err := expr.Compile(content, expr.Env(env))
	if err != nil {
		return nil, fmt.Errorf("failed to compile expression %q: %w", content, err)
	}

	e.mu.Lock()
	e.cache.Add(content, program)
	e.mu.Unlock()
	return program, nil
}

// Eval evaluates a single expression (without surrounding {{ }}) and
// returns its raw value; a reference to a missing path resolves to nil,
// never an error, matching §4.2.
func (e *Evaluator) Eval(content string, ctx *ResolutionContext) (interface{}, error) {
	env := ctx.toEnv()
	program, err := e.compile(content, env)
	if err != nil {
		return nil, err
	}
	result, err := expr.Run(program, env)
	if err != nil {
		// A runtime error reaching here (e.g. calling a method on nil)
		// degrades to the missing-path contract rather than surfacing
		// a NodeExecutionFailure for what is, from the flow author's
		// perspective, an absent value.
		return nil, nil
	}
	return result, nil
}

// ResolveString substitutes every {{ ... }} template inside s. If s is
// exactly one expression, the native JSON-shaped result is returned
// (still as interface{}); otherwise every template is stringified and
// spliced back into s.
func (e *Evaluator) ResolveString(s string, ctx *ResolutionContext) (interface{}, error) {
	if content, ok := IsExactlyOneExpression(s); ok {
		val, err := e.Eval(content, ctx)
		if err != nil {
			return nil, err
		}
		if val == nil {
			return "", nil
		}
		return val, nil
	}

	templates := FindTemplates(s)
	if len(templates) == 0 {
		return s, nil
	}

	result := s
	for _, t := range templates {
		val, err := e.Eval(t.Content, ctx)
		if err != nil {
			return nil, err
		}
		result = replaceFirst(result, t.Raw, ToString(val))
	}
	return result, nil
}

func replaceFirst(s, old, new string) string {
	idx := indexOf(s, old)
	if idx < 0 {
		return s
	}
	return s[:idx] + new + s[idx+len(old):]
}

func indexOf(s, substr string) int {
	if len(substr) == 0 {
		return -1
	}
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}

// ResolveValue applies ResolveString recursively to every string leaf
// in a JSON-shaped value tree — maps, slices, and scalars — matching
// §4.2's "applied recursively to maps and lists inside the node's
// config".
func (e *Evaluator) ResolveValue(v interface{}, ctx *ResolutionContext) (interface{}, error) {
	switch t := v.(type) {
	case string:
		return e.ResolveString(t, ctx)
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			resolved, err := e.ResolveValue(val, ctx)
			if err != nil {
				return nil, err
			}
			out[k] = resolved
		}
		return out, nil
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			resolved, err := e.ResolveValue(val, ctx)
			if err != nil {
				return nil, err
			}
			out[i] = resolved
		}
		return out, nil
	default:
		return v, nil
	}
}

// ResolveConfig unmarshals a raw JSON node config, resolves every
// template within it against ctx, and returns the result as a
// map[string]interface{} ready for handler dispatch.
func (e *Evaluator) ResolveConfig(raw json.RawMessage, ctx *ResolutionContext) (map[string]interface{}, error) {
	var tree map[string]interface{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &tree); err != nil {
			return nil, fmt.Errorf("invalid node config: %w", err)
		}
	}
	resolved, err := e.ResolveValue(tree, ctx)
	if err != nil {
		return nil, err
	}
	m, _ := resolved.(map[string]interface{})
	if m == nil {
		m = map[string]interface{}{}
	}
	return m, nil
}

// ValidateCondition performs a trial compile against a representative
// mock context, mirroring the teacher's Evaluator.ValidateCondition.
func (e *Evaluator) ValidateCondition(content string) error {
	mock := (&ResolutionContext{
		NodeInput:    map[string]interface{}{"field": "value"},
		NodeOutputs:  map[string]map[string]interface{}{"test": {"status": "success"}},
		TriggerInput: map[string]interface{}{"type": "test"},
		Env:          map[string]string{"TENANT_ID": "test"},
	}).toEnv()
	_, err := expr.Compile(content, expr.Env(mock), expr.AsBool())
	if err != nil {
		return fmt.Errorf("invalid condition expression: %w", err)
	}
	return nil
}

// EvaluateCondition compiles and evaluates content as a boolean
// condition, used by switch/if handlers (§4.5 branching semantics).
func (e *Evaluator) EvaluateCondition(content string, ctx *ResolutionContext) (bool, error) {
	val, err := e.Eval(content, ctx)
	if err != nil {
		return false, err
	}
	b, ok := val.(bool)
	if !ok {
		return false, fmt.Errorf("expression did not evaluate to boolean, got %T", val)
	}
	return b, nil
}
