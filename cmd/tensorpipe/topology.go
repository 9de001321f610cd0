package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/pflag"

	"github.com/dudk/tensorpipe/graph"
)

type dotCommand struct {
	file string
}

func (cmd *dotCommand) Name() string {
	return "dot"
}

func (cmd *dotCommand) Help() string {
	return "Print topology in graphviz format"
}

func (cmd *dotCommand) Register(fs *pflag.FlagSet) {
	fs.StringVarP(&cmd.file, "file", "f", "", "topology description (required)")
}

func (cmd *dotCommand) Run(w io.Writer, _ []string) error {
	if cmd.file == "" {
		return errors.New("missing --file required flag")
	}
	g, err := buildFile(cmd.file)
	if err != nil {
		return err
	}
	g.WriteDot(w)
	return nil
}

type diffCommand struct{}

func (cmd *diffCommand) Name() string {
	return "diff"
}

func (cmd *diffCommand) Help() string {
	return "Show difference between two topologies"
}

func (cmd *diffCommand) Register(*pflag.FlagSet) {}

func (cmd *diffCommand) Run(w io.Writer, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("expected two topology files, got %d", len(args))
	}
	a, err := decodeFile(args[0])
	if err != nil {
		return err
	}
	b, err := decodeFile(args[1])
	if err != nil {
		return err
	}
	diff, err := graph.Diff(a, b)
	if err != nil {
		return err
	}
	if diff == "" {
		fmt.Fprintln(w, "topologies are equal")
		return nil
	}
	fmt.Fprint(w, diff)
	return nil
}
