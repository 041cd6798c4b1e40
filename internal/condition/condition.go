// Package condition compiles boolean expressions over behavior tree
// variables, using expr-lang.
//
// Expressions are type checked at load time against the declared variables
// (their default values act as the type environment), so a tree referencing
// an undeclared variable, or comparing a bool with a number, fails to load
// rather than failing every tick.
package condition

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Condition is a compiled boolean expression. It is immutable and safe for
// concurrent use.
type Condition struct {
	source  string
	program *vm.Program
}

// Evaluate runs the condition against env, which must have the same shape
// as the environment it was compiled with.
func (c *Condition) Evaluate(env map[string]any) (bool, error) {
	out, err := expr.Run(c.program, env)
	if err != nil {
		return false, fmt.Errorf("evaluate %q: %w", c.source, err)
	}
	b, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("evaluate %q: non-boolean result %T", c.source, out)
	}
	return b, nil
}

// String returns the source expression.
func (c *Condition) String() string { return c.source }

// Compiler compiles conditions, sharing programs through a [ProgramCache].
type Compiler struct {
	cache *ProgramCache
}

// NewCompiler returns a compiler caching at most cacheSize programs.
func NewCompiler(cacheSize int) *Compiler {
	return &Compiler{cache: NewProgramCache(cacheSize)}
}

// Cache returns the program cache.
func (c *Compiler) Cache() *ProgramCache { return c.cache }

// Compile type checks expression against env, a map from variable names to
// values of their types.
func (c *Compiler) Compile(expression string, env map[string]any) (*Condition, error) {
	expression = strings.TrimSpace(expression)
	if expression == "" {
		return nil, fmt.Errorf("empty condition")
	}
	key := cacheKey(expression, env)
	if program, ok := c.cache.Get(key); ok {
		return &Condition{source: expression, program: program}, nil
	}
	program, err := expr.Compile(expression, expr.Env(env), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("compile condition %q: %w", expression, err)
	}
	c.cache.Put(key, program)
	return &Condition{source: expression, program: program}, nil
}

// ValueVariable is the name bound to the matched value by
// [Compiler.CompileMatcher].
const ValueVariable = "value"

// Matcher tests a single value, e.g. a variable considered by a planner.
type Matcher struct {
	cond *Condition
}

// CompileMatcher compiles an expression over a single value named
// [ValueVariable], typed like sample.
func (c *Compiler) CompileMatcher(expression string, sample any) (*Matcher, error) {
	cond, err := c.Compile(expression, map[string]any{ValueVariable: sample})
	if err != nil {
		return nil, err
	}
	return &Matcher{cond: cond}, nil
}

// Match reports whether value satisfies the expression. Evaluation errors
// are reported as a mismatch.
func (m *Matcher) Match(value any) bool {
	ok, err := m.cond.Evaluate(map[string]any{ValueVariable: value})
	return err == nil && ok
}

func (m *Matcher) String() string { return m.cond.String() }

func cacheKey(expression string, env map[string]any) string {
	var b strings.Builder
	b.WriteString(expression)
	for _, name := range slices.Sorted(maps.Keys(env)) {
		fmt.Fprintf(&b, "\x00%s:%T", name, env[name])
	}
	return b.String()
}
