package loader

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/joeycumines/mbt/internal/behavior"
	"github.com/joeycumines/mbt/internal/condition"
)

// maxDepth bounds tree nesting.
const maxDepth = 256

// BuildContext is passed to constructors while building one template.
type BuildContext struct {
	tree       string
	loader     *Loader
	variables  *behavior.VariableDeclarations
	timestamps *behavior.TimestampCollection
	signals    []string
	extensions []string
	nextID     behavior.NodeID
	depth      int
}

// Tree returns the name of the tree being built.
func (bc *BuildContext) Tree() string { return bc.tree }

// Variables returns the tree's variable declarations.
func (bc *BuildContext) Variables() *behavior.VariableDeclarations { return bc.variables }

// Timestamps returns the tree's timestamp declarations.
func (bc *BuildContext) Timestamps() *behavior.TimestampCollection { return bc.timestamps }

// Signals returns the signals with variable mutations.
func (bc *BuildContext) Signals() []string { return bc.signals }

// HasExtension reports whether the tree declares a meta-extension.
func (bc *BuildContext) HasExtension(name string) bool {
	return slices.Contains(bc.extensions, name)
}

// Logger returns the loader's logger.
func (bc *BuildContext) Logger() *slog.Logger { return bc.loader.logger }

// Conditions returns the condition compiler.
func (bc *BuildContext) Conditions() *condition.Compiler { return bc.loader.conditions }

// CompileCondition type checks expression against the declared variables.
func (bc *BuildContext) CompileCondition(expression string) (*condition.Condition, error) {
	return bc.loader.conditions.Compile(expression, bc.variables.Defaults())
}

// NewNode allocates a node for def from the loader's arena.
func (bc *BuildContext) NewNode(def *NodeDefinition, b behavior.Behavior) behavior.Node {
	bc.nextID++
	return bc.loader.arena.New(behavior.NodeInfo{ID: bc.nextID, Type: def.Type, Line: def.Line}, b)
}

// NodeCount returns the number of nodes allocated so far.
func (bc *BuildContext) NodeCount() int { return int(bc.nextID) }

// Build constructs def and its subtree.
func (bc *BuildContext) Build(def *NodeDefinition) (behavior.Node, error) {
	if def == nil {
		return nil, bc.errorf(0, "missing node")
	}
	if bc.depth >= maxDepth {
		return nil, bc.errorf(def.Line, "tree nested deeper than %d", maxDepth)
	}
	construct, ok := bc.loader.registry.Lookup(def.Type)
	if !ok {
		return nil, bc.errorf(def.Line, "unknown node type %q", def.Type)
	}
	bc.depth++
	n, err := construct(bc, def)
	bc.depth--
	if err != nil {
		return nil, bc.wrap(def, err)
	}
	if n == nil {
		return nil, bc.errorf(def.Line, "%s: constructor returned no node", def.Type)
	}
	return n, nil
}

// BuildChildren constructs every child of def, requiring at least min.
func (bc *BuildContext) BuildChildren(def *NodeDefinition, min int) ([]behavior.Node, error) {
	if len(def.Children) < min {
		return nil, bc.errorf(def.Line, "%s requires at least %d children, has %d", def.Type, min, len(def.Children))
	}
	children := make([]behavior.Node, len(def.Children))
	for i, child := range def.Children {
		n, err := bc.Build(child)
		if err != nil {
			return nil, err
		}
		children[i] = n
	}
	return children, nil
}

// BuildChild constructs the single child of def.
func (bc *BuildContext) BuildChild(def *NodeDefinition) (behavior.Node, error) {
	if len(def.Children) != 1 {
		return nil, bc.errorf(def.Line, "%s requires exactly one child, has %d", def.Type, len(def.Children))
	}
	return bc.Build(def.Children[0])
}

// NoChildren fails if def has children.
func (bc *BuildContext) NoChildren(def *NodeDefinition) error {
	if len(def.Children) != 0 {
		return bc.errorf(def.Line, "%s does not take children", def.Type)
	}
	return nil
}

func (bc *BuildContext) errorf(line int, format string, args ...any) error {
	return &behavior.LoadError{Tree: bc.tree, Line: line, Err: fmt.Errorf("%w: %s", behavior.ErrInvalidDefinition, fmt.Sprintf(format, args...))}
}

func (bc *BuildContext) wrap(def *NodeDefinition, err error) error {
	var loadErr *behavior.LoadError
	if errors.As(err, &loadErr) {
		return err
	}
	line := def.Line
	var attrErr *AttributeError
	if errors.As(err, &attrErr) {
		line = attrErr.Line
	}
	return &behavior.LoadError{Tree: bc.tree, Line: line, Err: fmt.Errorf("%w: %s: %w", behavior.ErrInvalidDefinition, def.Type, err)}
}
