package main

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"text/tabwriter"
	"time"

	digest "github.com/opencontainers/go-digest"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/meigma/zvfs"
)

// runner holds state shared by every command action.
type runner struct {
	logger *slog.Logger
}

func (r *runner) opts(extra ...zvfs.Option) []zvfs.Option {
	return append([]zvfs.Option{zvfs.WithLogger(r.logger)}, extra...)
}

// args checks the positional argument count.
func args(c *cli.Context, n int) error {
	if c.NArg() != n {
		return fmt.Errorf("%s: expected %d argument(s), got %d\nusage: %s %s %s",
			c.Command.Name, n, c.NArg(), c.App.Name, c.Command.Name, c.Command.ArgsUsage)
	}
	return nil
}

func (r *runner) create(c *cli.Context) error {
	if err := args(c, 1); err != nil {
		return err
	}
	path := c.Args().First()
	if err := zvfs.Create(path, r.opts(zvfs.WithCapacity(c.Int("capacity")))...); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "created %s\n", path)
	return nil
}

func (r *runner) info(c *cli.Context) error {
	if err := args(c, 1); err != nil {
		return err
	}
	sum, err := zvfs.Describe(c.Args().First(), r.opts()...)
	if err != nil && !errors.Is(err, zvfs.ErrConsistency) {
		return err
	}

	w := tabwriter.NewWriter(c.App.Writer, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "live files:\t%d\n", sum.Live)
	fmt.Fprintf(w, "removed files:\t%d\n", sum.Deleted)
	fmt.Fprintf(w, "free slots:\t%d\n", sum.Empty)
	fmt.Fprintf(w, "capacity:\t%d\n", sum.Capacity)
	fmt.Fprintf(w, "data start:\t%d\n", sum.DataStart)
	fmt.Fprintf(w, "next free offset:\t%d\n", sum.NextFree)
	if sum.FreeHint >= 0 {
		fmt.Fprintf(w, "free slot hint:\t%d\n", sum.FreeHint)
	} else {
		fmt.Fprintf(w, "free slot hint:\tnone\n")
	}
	fmt.Fprintf(w, "file size:\t%d\n", sum.FileSize)
	if flushErr := w.Flush(); flushErr != nil {
		return flushErr
	}
	return err
}

func (r *runner) list(c *cli.Context) error {
	if err := args(c, 1); err != nil {
		return err
	}
	w := tabwriter.NewWriter(c.App.Writer, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tSIZE\tCREATED")
	for info, err := range zvfs.List(c.Args().First(), r.opts()...) {
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s\t%d\t%s\n", info.Name, info.Size, info.CreatedAt.Format(time.RFC3339))
	}
	return w.Flush()
}

// add reads every source concurrently, then adds them in argument order so
// slot assignment does not depend on read timing.
func (r *runner) add(c *cli.Context) error {
	if c.NArg() < 2 {
		return fmt.Errorf("add: expected a container and at least one file\nusage: %s add %s", c.App.Name, c.Command.ArgsUsage)
	}
	path := c.Args().First()
	sources := c.Args().Tail()
	name := c.String("name")
	if name != "" && len(sources) != 1 {
		return errors.New("add: --name requires exactly one file")
	}

	payloads := make([][]byte, len(sources))
	g, ctx := errgroup.WithContext(c.Context)
	g.SetLimit(max(c.Int("jobs"), 1))
	for i, src := range sources {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			data, err := zvfs.ReadSource(src)
			if err != nil {
				return err
			}
			payloads[i] = data
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i, src := range sources {
		entryName := name
		if entryName == "" {
			entryName = filepath.Base(src)
		}
		info, err := zvfs.Add(path, entryName, payloads[i], r.opts()...)
		if err != nil {
			return fmt.Errorf("add %s: %w", src, err)
		}
		fmt.Fprintf(c.App.Writer, "added %s (%d bytes, slot %d)\n", info.Name, info.Size, info.Slot)
	}
	return nil
}

func (r *runner) get(c *cli.Context) error {
	if err := args(c, 2); err != nil {
		return err
	}
	path, name := c.Args().Get(0), c.Args().Get(1)
	dest := c.String("output")
	if dest == "" {
		dest = filepath.Base(name)
	}
	if err := zvfs.ExtractFile(path, name, dest, digest.Digest(c.String("digest")), r.opts()...); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "extracted %s to %s\n", name, dest)
	return nil
}

func (r *runner) cat(c *cli.Context) error {
	if err := args(c, 2); err != nil {
		return err
	}
	text, err := zvfs.ReadText(c.Args().Get(0), c.Args().Get(1), r.opts()...)
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(c.App.Writer, text)
	return err
}

func (r *runner) stat(c *cli.Context) error {
	if err := args(c, 2); err != nil {
		return err
	}
	info, err := zvfs.Inspect(c.Args().Get(0), c.Args().Get(1), r.opts()...)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(c.App.Writer, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "name:\t%s\n", info.Name)
	fmt.Fprintf(w, "size:\t%d\n", info.Size)
	fmt.Fprintf(w, "created:\t%s\n", info.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(w, "slot:\t%d\n", info.Slot)
	fmt.Fprintf(w, "offset:\t%d\n", info.Offset)
	fmt.Fprintf(w, "digest:\t%s\n", info.Digest)
	return w.Flush()
}

func (r *runner) remove(c *cli.Context) error {
	if err := args(c, 2); err != nil {
		return err
	}
	name := c.Args().Get(1)
	if err := zvfs.Remove(c.Args().Get(0), name, r.opts()...); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "removed %s\n", name)
	return nil
}

func (r *runner) defrag(c *cli.Context) error {
	if err := args(c, 1); err != nil {
		return err
	}
	stats, err := zvfs.Compact(c.Args().First(), r.opts()...)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "removed %d entries, freed %d bytes, kept %d\n",
		stats.Removed, stats.BytesFreed, stats.Retained)
	return nil
}
