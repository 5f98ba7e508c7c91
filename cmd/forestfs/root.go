package main

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	vfs "github.com/worldiety/forestvfs"
	"github.com/worldiety/forestvfs/backend/local"
	"github.com/worldiety/forestvfs/backend/memory"
	"github.com/worldiety/forestvfs/backend/objstore"
	"github.com/worldiety/forestvfs/catalog"
)

// env is the state shared by all subcommands of one invocation.
type env struct {
	catalogFile string
	configFile  string

	logger     *zap.Logger
	engine     *vfs.Engine
	subscriber *vfs.Subscriber
}

// newRootCmd builds the command tree. Callers run it through execute, which releases the engine also when a
// command fails.
func newRootCmd(e *env) *cobra.Command {
	root := &cobra.Command{
		Use:          "forestfs",
		Short:        "Inspect and modify a forest of replicated containers.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return e.open()
		},
	}
	root.PersistentFlags().StringVar(&e.catalogFile, "catalog", "forest.yaml", "yaml file describing containers, mount points and storages")
	root.PersistentFlags().StringVar(&e.configFile, "config", "", "optional yaml file with engine settings")

	root.AddCommand(
		lsCmd(e),
		statCmd(e),
		catCmd(e),
		putCmd(e),
		touchCmd(e),
		mkdirCmd(e),
		rmdirCmd(e),
		rmCmd(e),
		mvCmd(e),
		cpCmd(e),
		chmodCmd(e),
		dfCmd(e),
	)
	return root
}

// execute runs the command line in args and always closes the env afterwards.
func execute(e *env, args []string, configure ...func(cmd *cobra.Command)) error {
	root := newRootCmd(e)
	root.SetArgs(args)
	for _, fn := range configure {
		fn(root)
	}
	err := root.Execute()
	return multierr.Append(err, e.close())
}

// newRegistry knows every backend type shipped with this module.
func newRegistry(logger *zap.Logger) *vfs.Registry {
	reg := vfs.NewRegistry()
	reg.Register(memory.Type, memory.NewPool(memory.WithLogger(logger.Named(memory.Type))).Factory)
	reg.Register(local.Type, local.NewFactory(logger.Named(local.Type)))
	reg.Register(objstore.Type, objstore.NewFactory(logger.Named(objstore.Type)))
	return reg
}

func (e *env) open() error {
	cfg := vfs.DefaultConfig()
	if e.configFile != "" {
		var err error
		if cfg, err = vfs.LoadConfig(e.configFile); err != nil {
			return err
		}
	}
	if e.logger == nil {
		logger, err := cfg.Log.NewLogger()
		if err != nil {
			return err
		}
		e.logger = logger
	}
	cat, err := catalog.LoadFile(e.catalogFile)
	if err != nil {
		return err
	}
	e.logger.Debug("catalog loaded", zap.String("file", e.catalogFile), zap.Int("containers", len(cat.Containers())))

	e.engine = vfs.NewEngine(cat, newRegistry(e.logger), vfs.WithLogger(e.logger), vfs.WithEventBuffer(cfg.Events.Buffer))
	e.subscriber = e.engine.Subscribe()
	return nil
}

// close reports the replica events of the invocation and releases everything still open. It is a no-op if
// nothing was opened or it already ran.
func (e *env) close() error {
	if e.engine == nil {
		return nil
	}
	defer func() {
		e.engine = nil
	}()
	for {
		ev, ok := e.subscriber.Poll(0)
		if !ok {
			break
		}
		e.logger.Warn("replica event", zap.Stringer("cause", ev.Cause), zap.String("op", ev.Operation),
			zap.Stringer("path", ev.OperationPath), zap.String("backend", ev.BackendType))
	}
	err := e.engine.Shutdown()
	_ = e.logger.Sync()
	return errors.Wrap(err, "shutdown")
}
