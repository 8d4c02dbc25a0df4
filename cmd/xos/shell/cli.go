package shell

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"github.com/pgavlin/xos/sys"
	"github.com/pgavlin/xos/vfs"
)

// Command returns the "shell" subcommand: a small line-oriented shell over a
// fresh in-memory file system, driven through the facade the same way guest
// code is.
func Command() *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "interactively drive an in-memory virtual file system",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			registry := sys.NewRegistry(1024)
			fs, res := vfs.New(vfs.NewMemFS(), registry, &vfs.Options{
				Stdin:  os.Stdin,
				Stdout: os.Stdout,
				Stderr: os.Stderr,
			})
			if res != sys.Success {
				return fmt.Errorf("failed to initialize file system: %v", res)
			}

			hclog.Default().Named("shell").Debug("virtual file system ready")
			return repl(fs, os.Stdin, os.Stdout)
		},
	}
}

func repl(fs *vfs.FileSystem, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	fmt.Fprint(out, "> ")
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) != 0 {
			if fields[0] == "exit" {
				return nil
			}
			if err := eval(fs, out, fields); err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
			}
		}
		fmt.Fprint(out, "> ")
	}
	return scanner.Err()
}

func eval(fs *vfs.FileSystem, out io.Writer, fields []string) error {
	cmd, args := fields[0], fields[1:]
	switch cmd {
	case "mkdir":
		if len(args) != 1 {
			return fmt.Errorf("usage: mkdir <path>")
		}
		return check(fs.CreateDirectory(args[0]))

	case "ls":
		path := "/"
		if len(args) == 1 {
			path = args[0]
		}
		return list(fs, out, path)

	case "write":
		if len(args) < 2 {
			return fmt.Errorf("usage: write <path> <text...>")
		}
		h, res := fs.Open(args[0], vfs.Write, vfs.Create|vfs.Truncate, 0)
		if res != sys.Success {
			return res
		}
		defer fs.Close(h)
		_, res = fs.WriteVectored(h, [][]byte{[]byte(strings.Join(args[1:], " "))})
		return check(res)

	case "cat":
		if len(args) != 1 {
			return fmt.Errorf("usage: cat <path>")
		}
		return cat(fs, out, args[0])

	case "stat":
		if len(args) != 1 {
			return fmt.Errorf("usage: stat <path>")
		}
		stat, res := fs.GetStatisticsFromPath(args[0], true)
		if res != sys.Success {
			return res
		}
		fmt.Fprintf(out, "%s inode=%d links=%d size=%d\n", stat.Kind, stat.Inode, stat.Links, stat.Size)
		return nil

	case "rm":
		if len(args) != 1 {
			return fmt.Errorf("usage: rm <path>")
		}
		return check(fs.Remove(args[0]))

	case "mv":
		if len(args) != 2 {
			return fmt.Errorf("usage: mv <old> <new>")
		}
		return check(fs.Rename(args[0], args[1]))

	case "ln":
		if len(args) != 2 {
			return fmt.Errorf("usage: ln <target> <link>")
		}
		return check(fs.Link(args[0], args[1]))

	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func check(res sys.Result) error {
	if res != sys.Success {
		return res
	}
	return nil
}

func list(fs *vfs.FileSystem, out io.Writer, path string) error {
	dir, res := fs.PreopenDirectory(path)
	if res != sys.Success {
		return res
	}
	defer fs.Close(dir)

	stream, res := fs.OpenDirectory(dir)
	if res != sys.Success {
		return res
	}
	defer fs.CloseDirectory(stream)

	for {
		entry, res := fs.ReadDirectory(stream)
		if res != sys.Success {
			return res
		}
		if entry.Name == "" {
			return nil
		}
		fmt.Fprintf(out, "%-10s %8d %s\n", entry.Kind, entry.Size, entry.Name)
	}
}

func cat(fs *vfs.FileSystem, out io.Writer, path string) error {
	h, res := fs.Open(path, vfs.Read, 0, 0)
	if res != sys.Success {
		return res
	}
	defer fs.Close(h)

	buf := make([]byte, 4096)
	for {
		n, res := fs.ReadVectored(h, [][]byte{buf})
		if res != sys.Success {
			return res
		}
		if n == 0 {
			fmt.Fprintln(out)
			return nil
		}
		if _, err := out.Write(buf[:n]); err != nil {
			return err
		}
	}
}
