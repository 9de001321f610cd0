package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"

	"github.com/dudk/tensorpipe"
	"github.com/dudk/tensorpipe/filter"
	"github.com/dudk/tensorpipe/graph"
	"github.com/dudk/tensorpipe/tensor"
)

type command interface {
	Name() string
	Help() string
	Register(*pflag.FlagSet)
	Run(w io.Writer, args []string) error
}

type config struct {
	args []string
	out  io.Writer
}

func (config *config) run() int {
	cmdName, args := parseArgs(config.args)
	if cmdName == "" {
		printUsage(config.out)
		return errorExitCode
	}

	for _, cmd := range commands() {
		if cmd.Name() != cmdName {
			continue
		}
		flags := pflag.NewFlagSet(cmdName, pflag.ContinueOnError)
		flags.SetOutput(config.out)
		cmd.Register(flags)
		if err := flags.Parse(args); err != nil {
			flags.PrintDefaults()
			return errorExitCode
		}
		if err := cmd.Run(config.out, flags.Args()); err != nil {
			fmt.Fprintf(config.out, "Command failed: %v\n", err)
			return errorExitCode
		}
		return successExitCode
	}
	printUsage(config.out)
	return errorExitCode
}

const (
	successExitCode = 0
	errorExitCode   = 1
)

func commands() []command {
	return []command{
		&runCommand{},
		&dotCommand{},
		&diffCommand{},
	}
}

func main() {
	c := config{
		args: os.Args,
		out:  os.Stdout,
	}
	os.Exit(c.run())
}

func parseArgs(args []string) (string, []string) {
	if len(args) < 2 {
		return "", nil
	}
	return args[1], args[2:]
}

func printUsage(w io.Writer) {
	fmt.Fprintf(w, "Tensorpipe %s runs tensor pipelines described in YAML\n", tensorpipe.Version)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage: tensorpipe <command> [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	for _, cmd := range commands() {
		fmt.Fprintf(w, "\t%s\t%s\n", cmd.Name(), cmd.Help())
	}
}

// builtins returns registry with filters available to topologies.
func builtins() (*filter.Registry, error) {
	r := filter.NewRegistry()
	for _, f := range []filter.Filter{
		filter.Passthrough("passthrough"),
		filter.Convert("convert-float32", tensor.Float32),
		filter.AddConstant("add-1.5", 1.5),
	} {
		if err := r.Register(f); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func decodeFile(path string) (*graph.Description, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return graph.Decode(f)
}

func buildFile(path string) (*graph.Graph, error) {
	d, err := decodeFile(path)
	if err != nil {
		return nil, err
	}
	r, err := builtins()
	if err != nil {
		return nil, err
	}
	return d.Builder().Build(r)
}
