package command

import (
	"context"
	"flag"
	"fmt"
	"io"
)

// Command represents a command that can be executed.
type Command interface {
	// Name returns the command name.
	Name() string

	// Description returns a short description of the command.
	Description() string

	// Usage returns the usage string for the command.
	Usage() string

	// SetupFlags configures the flag.FlagSet for this command.
	// The FlagSet will be used to parse command-specific arguments.
	SetupFlags(fs *flag.FlagSet)

	// Execute runs the command with the given arguments, which are what
	// remains after flags were parsed. Long-running commands stop when ctx
	// is done.
	Execute(ctx context.Context, args []string, stdout, stderr io.Writer) error
}

// BaseCommand provides the descriptive half of [Command] for embedding.
type BaseCommand struct {
	name        string
	description string
	usage       string
}

// NewBaseCommand creates a new BaseCommand.
func NewBaseCommand(name, description, usage string) *BaseCommand {
	return &BaseCommand{
		name:        name,
		description: description,
		usage:       usage,
	}
}

func (c *BaseCommand) Name() string        { return c.name }
func (c *BaseCommand) Description() string { return c.description }
func (c *BaseCommand) Usage() string       { return c.usage }

// SetupFlags defines no flags.
func (c *BaseCommand) SetupFlags(fs *flag.FlagSet) {}

// stringsFlag collects the values of a repeatable flag.
type stringsFlag []string

func (f *stringsFlag) String() string {
	if f == nil {
		return ""
	}
	return fmt.Sprint([]string(*f))
}

func (f *stringsFlag) Set(value string) error {
	*f = append(*f, value)
	return nil
}
