package dump

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"

	"github.com/hashicorp/go-hclog"
	"github.com/jszwec/csvutil"
	"github.com/spf13/cobra"

	"github.com/pgavlin/xos/sys"
	"github.com/pgavlin/xos/task"
	"github.com/pgavlin/xos/vfs"
)

// Command returns the "dump" subcommand group with diagnostics over a booted
// runtime: the handle table as CSV and the engine memory snapshot.
func Command() *cobra.Command {
	command := &cobra.Command{
		Use:   "dump",
		Short: "dump runtime diagnostics",
	}
	command.AddCommand(handlesCommand())
	command.AddCommand(meminfoCommand())
	return command
}

// boot brings up the same environment a guest would see: a registry, the
// facade with its stdio descriptors, a root preopen, and the task engine.
func boot() (*sys.Registry, *task.Engine, error) {
	registry := sys.NewRegistry(1024)
	fs, res := vfs.New(vfs.NewMemFS(), registry, &vfs.Options{
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	})
	if res != sys.Success {
		return nil, nil, fmt.Errorf("failed to initialize file system: %v", res)
	}
	if _, res := fs.PreopenDirectory("/"); res != sys.Success {
		return nil, nil, fmt.Errorf("failed to preopen root: %v", res)
	}
	engine := task.NewEngine(registry, hclog.Default().Named("task"))
	engine.Current()
	return registry, engine, nil
}

func handlesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "handles",
		Short: "dump the handle table of a freshly booted runtime as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, _, err := boot()
			if err != nil {
				return err
			}
			return dumpHandles(registry)
		},
	}
}

func dumpHandles(registry *sys.Registry) error {
	type row struct {
		Handle uint64 `csv:"handle"`
		Kind   string `csv:"kind"`
	}

	csvWriter := csv.NewWriter(os.Stdout)
	defer csvWriter.Flush()

	encoder := csvutil.NewEncoder(csvWriter)

	var encodeErr error
	registry.Walk(func(h sys.Handle, kind sys.Kind, _ interface{}) {
		if encodeErr != nil {
			return
		}
		encodeErr = encoder.Encode(&row{Handle: uint64(h), Kind: kind.String()})
	})
	return encodeErr
}

func meminfoCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "meminfo",
		Short: "dump the engine's process memory snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, engine, err := boot()
			if err != nil {
				return err
			}

			out := make([]byte, 4096)
			n, res := engine.DumpMemoryInfo(out)
			if res != sys.Success {
				return fmt.Errorf("failed to dump memory info: %v", res)
			}
			_, err = os.Stdout.Write(bytes.TrimRight(out[:n], "\x00"))
			return err
		},
	}
}
