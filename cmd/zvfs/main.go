// Command zvfs manages ZVFS single-file containers.
//
// Usage:
//
//	zvfs create <container>
//	zvfs add <container> <file>...
//	zvfs ls <container>
//	zvfs get <container> <name> [-o dest] [--digest sha256:...]
//	zvfs cat <container> <name>
//	zvfs stat <container> <name>
//	zvfs rm <container> <name>
//	zvfs info <container>
//	zvfs defrag <container>
//
// The original tool's verbs (mkfs, addfs, lsfs, getfs, catfs, rmfs, gifs,
// dfrgfs) are accepted as aliases.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"
)

var version = "development"

func main() {
	if err := newApp(os.Stdout, os.Stderr).Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "zvfs: %v\n", err)
		os.Exit(1)
	}
}

// newApp builds the command router writing results to stdout and logs and
// help errors to stderr.
func newApp(stdout, stderr io.Writer) *cli.App {
	r := &runner{}
	return &cli.App{
		Name:      "zvfs",
		Usage:     "store files inside a single fixed-layout container file",
		Version:   version,
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "log-level", Value: "warn", Usage: "Set log level (debug, info, warn, error)", EnvVars: []string{"ZVFS_LOG_LEVEL"}},
			&cli.StringFlag{Name: "log-format", Value: "text", Usage: "Set log format (text, json)", EnvVars: []string{"ZVFS_LOG_FORMAT"}},
		},
		Before: func(c *cli.Context) error {
			logger, err := newLogger(c.App.ErrWriter, c.String("log-level"), c.String("log-format"))
			if err != nil {
				return err
			}
			r.logger = logger
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:      "create",
				Aliases:   []string{"mkfs"},
				Usage:     "Create an empty container",
				ArgsUsage: "<container>",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "capacity", Value: 32, Usage: "Number of entry slots"},
				},
				Action: r.create,
			},
			{
				Name:      "info",
				Aliases:   []string{"gifs"},
				Usage:     "Show container statistics and verify header counters",
				ArgsUsage: "<container>",
				Action:    r.info,
			},
			{
				Name:      "ls",
				Aliases:   []string{"lsfs"},
				Usage:     "List live entries",
				ArgsUsage: "<container>",
				Action:    r.list,
			},
			{
				Name:      "add",
				Aliases:   []string{"addfs"},
				Usage:     "Add host files under their base names",
				ArgsUsage: "<container> <file>...",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Usage: "Store a single file under this name"},
					&cli.IntFlag{Name: "jobs", Aliases: []string{"j"}, Value: 4, Usage: "Source files read concurrently"},
				},
				Action: r.add,
			},
			{
				Name:      "get",
				Aliases:   []string{"getfs"},
				Usage:     "Extract an entry to a host file",
				ArgsUsage: "<container> <name>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Destination path (default: the entry name in the current directory)"},
					&cli.StringFlag{Name: "digest", Usage: "Expected payload digest, e.g. sha256:..."},
				},
				Action: r.get,
			},
			{
				Name:      "cat",
				Aliases:   []string{"catfs"},
				Usage:     "Print an entry as UTF-8 text",
				ArgsUsage: "<container> <name>",
				Action:    r.cat,
			},
			{
				Name:      "stat",
				Usage:     "Show entry metadata and payload digest",
				ArgsUsage: "<container> <name>",
				Action:    r.stat,
			},
			{
				Name:      "rm",
				Aliases:   []string{"rmfs"},
				Usage:     "Remove an entry (space is reclaimed by defrag)",
				ArgsUsage: "<container> <name>",
				Action:    r.remove,
			},
			{
				Name:      "defrag",
				Aliases:   []string{"dfrgfs"},
				Usage:     "Compact the container, dropping removed entries",
				ArgsUsage: "<container>",
				Action:    r.defrag,
			},
		},
	}
}
