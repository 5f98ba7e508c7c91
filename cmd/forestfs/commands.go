package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	vfs "github.com/worldiety/forestvfs"
)

func lsCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "ls [path]",
		Short: "List a directory. Colliding container names carry an @tag suffix.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := vfs.Root
			if len(args) == 1 {
				path = vfs.Path(args[0])
			}
			entries, err := e.engine.ReadDir(cmd.Context(), path)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, entry := range entries {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", entry.Metadata.Permissions, size(entry.Metadata), modified(entry.Metadata), entry.Name)
			}
			return w.Flush()
		},
	}
}

func size(md vfs.Metadata) string {
	if md.IsDir() {
		return "-"
	}
	return humanize.IBytes(md.Size)
}

func modified(md vfs.Metadata) string {
	if md.Modified.IsZero() {
		return "-"
	}
	return humanize.Time(md.Modified)
}

func statCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "stat <path>",
		Short: "Print the metadata of a file or directory.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			md, err := e.engine.Metadata(cmd.Context(), vfs.Path(args[0]))
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 1, ' ', 0)
			fmt.Fprintf(w, "type:\t%s\n", md.Type)
			fmt.Fprintf(w, "size:\t%s (%d bytes)\n", humanize.IBytes(md.Size), md.Size)
			fmt.Fprintf(w, "mode:\t%s\n", md.Permissions)
			for _, t := range []struct {
				name string
				at   time.Time
			}{{"accessed", md.Accessed}, {"modified", md.Modified}, {"changed", md.Changed}} {
				if !t.at.IsZero() {
					fmt.Fprintf(w, "%s:\t%s\n", t.name, t.at.Format(time.RFC3339))
				}
			}
			return w.Flush()
		},
	}
}

func catCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "cat <path>",
		Short: "Write the content of a file to stdout.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.engine.WithFile(cmd.Context(), vfs.Path(args[0]), func(h vfs.Handle) error {
				_, err := io.Copy(cmd.OutOrStdout(), vfs.HandleIO{Engine: e.engine, Handle: h})
				return err
			})
		},
	}
}

func putCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "put <local file> <path>",
		Short: "Upload a local file, use - for stdin. An existing file is overwritten.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var src io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return errors.Wrap(err, "open local file")
				}
				defer f.Close()
				src = f
			}
			h, err := e.engine.CreateFile(cmd.Context(), vfs.Path(args[1]))
			if err != nil {
				return err
			}
			out := vfs.HandleIO{Engine: e.engine, Handle: h}
			n, err := io.Copy(out, src)
			if cerr := out.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "%s written\n", humanize.IBytes(uint64(n)))
			return nil
		},
	}
}

func touchCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "touch <path>...",
		Short: "Create empty files, existing files keep their content.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, arg := range args {
				if _, err := e.engine.Touch(cmd.Context(), vfs.Path(arg)); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func mkdirCmd(e *env) *cobra.Command {
	var parents bool
	cmd := &cobra.Command{
		Use:   "mkdir <path>...",
		Short: "Create directories.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, arg := range args {
				path := vfs.Path(arg)
				if !parents {
					if err := e.engine.CreateDir(cmd.Context(), path); err != nil {
						return err
					}
					continue
				}
				// walk down from the forest root, existing directories are fine
				current := vfs.Root
				for _, name := range path.Names() {
					current = current.Child(name)
					if err := e.engine.CreateDir(cmd.Context(), current); err != nil && !errors.Is(err, vfs.ErrPathAlreadyExists) {
						return err
					}
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&parents, "parents", "p", false, "create missing parents, ignore existing directories")
	return cmd
}

func rmdirCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "rmdir <path>...",
		Short: "Remove empty directories.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, arg := range args {
				if err := e.engine.RemoveDir(cmd.Context(), vfs.Path(arg)); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func rmCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <path>...",
		Short: "Remove files.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, arg := range args {
				if err := e.engine.RemoveFile(cmd.Context(), vfs.Path(arg)); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func mvCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "mv <src> <dst>",
		Short: "Rename a file or directory within its container.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.engine.Rename(cmd.Context(), vfs.Path(args[0]), vfs.Path(args[1]))
		},
	}
}

func cpCmd(e *env) *cobra.Command {
	var quiet bool
	cmd := &cobra.Command{
		Use:   "cp <src> <dst>",
		Short: "Copy a file or directory tree, also between containers.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var total int64
			opts := &vfs.CopyOptions{
				OnScan: func(obj vfs.Path, objects int64, bytes int64) {
					total = bytes
				},
				OnCopied: func(obj vfs.Path, objects int64, bytes int64) {
					if !quiet {
						fmt.Fprintf(cmd.ErrOrStderr(), "%s\t%s/%s\n", obj, humanize.IBytes(uint64(bytes)), humanize.IBytes(uint64(total)))
					}
				},
			}
			return e.engine.Copy(cmd.Context(), vfs.Path(args[0]), vfs.Path(args[1]), opts)
		},
	}
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "do not report progress")
	return cmd
}

func chmodCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "chmod <octal mode> <path>",
		Short: "Change permission bits.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := strconv.ParseUint(args[0], 8, 32)
			if err != nil {
				return errors.Wrapf(err, "mode %q", args[0])
			}
			return e.engine.SetPermissions(cmd.Context(), vfs.Path(args[1]), os.FileMode(mode).Perm())
		},
	}
}

func dfCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "df <path>...",
		Short: "Show the capacity of the containers claiming the given paths.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stats := make([]vfs.FilesystemStats, len(args))
			eg, ctx := errgroup.WithContext(cmd.Context())
			eg.SetLimit(4)
			for i, arg := range args {
				i, arg := i, arg
				eg.Go(func() error {
					var err error
					stats[i], err = e.engine.StatFS(ctx, vfs.Path(arg))
					return err
				})
			}
			if err := eg.Wait(); err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "path\ttotal\tfree\tfiles")
			for i, arg := range args {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", arg, humanize.IBytes(stats[i].TotalBytes), humanize.IBytes(stats[i].FreeBytes), humanize.Comma(int64(stats[i].TotalFiles)))
			}
			return w.Flush()
		},
	}
}
