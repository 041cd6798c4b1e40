package command

import (
	"context"
	"flag"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/joeycumines/mbt/internal/config"
)

// ValidateCommand loads tree definitions and reports their errors.
type ValidateCommand struct {
	*BaseCommand
	config *config.Config
	log    logFlags
	paths  stringsFlag
}

// NewValidateCommand creates a new validate command.
func NewValidateCommand(cfg *config.Config) *ValidateCommand {
	return &ValidateCommand{
		BaseCommand: NewBaseCommand(
			"validate",
			"Load behavior trees and report definition errors",
			"validate [options] [tree...]",
		),
		config: cfg,
	}
}

// SetupFlags configures the flags for the validate command.
func (c *ValidateCommand) SetupFlags(fs *flag.FlagSet) {
	fs.Var(&c.paths, "path", "Tree search root, repeatable (default from config)")
	c.log.setup(fs)
}

// Execute validates the named trees, or every tree found when none are
// named. It fails if any tree fails to load.
func (c *ValidateCommand) Execute(_ context.Context, args []string, stdout, stderr io.Writer) error {
	logger, closer, err := c.log.newLogger(c.config, stderr, nil)
	if err != nil {
		return err
	}
	defer closer.Close()

	l := newTreeLoader(c.config, searchPaths(c.config, c.paths), logger)
	trees := args
	if len(trees) == 0 {
		if trees, err = l.Storage().List(); err != nil {
			return err
		}
		if len(trees) == 0 {
			_, _ = fmt.Fprintln(stdout, "No behavior trees found.")
			return nil
		}
	}

	var failed int
	w := tabwriter.NewWriter(stdout, 0, 8, 2, ' ', 0)
	for _, name := range trees {
		tmpl, err := l.LoadTemplate(name)
		if err != nil {
			failed++
			_, _ = fmt.Fprintf(w, "FAIL\t%s\t%v\n", name, err)
			continue
		}
		_, _ = fmt.Fprintf(w, "ok\t%s\t%d nodes\n", name, tmpl.NodeCount())
	}
	_ = w.Flush()

	if failed != 0 {
		return fmt.Errorf("%d of %d behavior trees failed to load", failed, len(trees))
	}
	return nil
}

// TreesCommand lists the trees found under the search roots.
type TreesCommand struct {
	*BaseCommand
	config *config.Config
	paths  stringsFlag
}

// NewTreesCommand creates a new trees command.
func NewTreesCommand(cfg *config.Config) *TreesCommand {
	return &TreesCommand{
		BaseCommand: NewBaseCommand(
			"trees",
			"List behavior trees found under the search roots",
			"trees [options]",
		),
		config: cfg,
	}
}

// SetupFlags configures the flags for the trees command.
func (c *TreesCommand) SetupFlags(fs *flag.FlagSet) {
	fs.Var(&c.paths, "path", "Tree search root, repeatable (default from config)")
}

// Execute prints one tree name per line.
func (c *TreesCommand) Execute(_ context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) > 0 {
		_, _ = fmt.Fprintf(stderr, "unexpected arguments: %v\n", args)
		return fmt.Errorf("unexpected arguments")
	}
	storage := newTreeLoader(c.config, searchPaths(c.config, c.paths), nil).Storage()
	names, err := storage.List()
	if err != nil {
		return err
	}
	for _, name := range names {
		_, _ = fmt.Fprintln(stdout, name)
	}
	return nil
}
