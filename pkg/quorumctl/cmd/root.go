package cmd

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"k8s.io/client-go/kubernetes"

	"github.com/telekom/k8s-quorum/pkg/kube"
	"github.com/telekom/k8s-quorum/pkg/quorumctl/config"
)

type Config struct {
	ConfigPath   string
	OutputWriter io.Writer
}

type runtimeState struct {
	configPath      string
	cfg             *config.Config
	tracker         *config.Tracker
	namespace       string
	contextOverride string
	kubeconfig      string
	outputFormat    string
	verbose         bool
	writer          io.Writer
	log             *zap.SugaredLogger
	factory         *kube.ClientFactory
}

type runtimeKey struct{}

func DefaultConfig() Config {
	return Config{
		ConfigPath:   config.DefaultConfigPath(),
		OutputWriter: os.Stdout,
	}
}

func NewRootCommand(cfg Config) *cobra.Command {
	rt := &runtimeState{configPath: cfg.ConfigPath, writer: cfg.OutputWriter}

	root := &cobra.Command{
		Use:   "quorumctl",
		Short: "Deploy and manage consensus-node networks on Kubernetes",
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if rt.writer == nil {
				rt.writer = os.Stdout
			}
			if rt.configPath == "" {
				rt.configPath = config.DefaultConfigPath()
			}
			if rt.namespace == "" {
				rt.namespace = os.Getenv("QUORUMCTL_NAMESPACE")
			}
			if rt.contextOverride == "" {
				rt.contextOverride = os.Getenv("QUORUMCTL_CONTEXT")
			}
			if rt.outputFormat == "" {
				rt.outputFormat = os.Getenv("QUORUMCTL_OUTPUT")
			}
			if !rt.verbose {
				rt.verbose = strings.EqualFold(os.Getenv("QUORUMCTL_VERBOSE"), "true")
			}
			if rt.log == nil {
				rt.log = newLogger(rt.verbose)
			}

			// Commands that work without a config file
			if cmd.Name() == "init" && cmd.Parent() != nil && cmd.Parent().Name() == "config" {
				return nil
			}
			if cmd.Name() == "version" || cmd.Name() == "completion" {
				return nil
			}

			loaded, err := config.Load(rt.configPath)
			if err != nil {
				return err
			}
			if err := loaded.Validate(); err != nil {
				return err
			}
			rt.cfg = loaded
			rt.tracker = config.NewTracker(loaded)
			return nil
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			if rt.tracker == nil || rt.log == nil {
				return
			}
			if unused := rt.tracker.Unused(); len(unused) > 0 {
				rt.log.Debugw("Configuration fields not used by this command", "fields", unused)
			}
		},
	}

	root.PersistentFlags().StringVar(&rt.configPath, "config", rt.configPath, "Path to quorumctl config file")
	root.PersistentFlags().StringVarP(&rt.namespace, "namespace", "n", "", "Deployment namespace")
	root.PersistentFlags().StringVarP(&rt.contextOverride, "context", "c", "", "Kubeconfig context override")
	root.PersistentFlags().StringVar(&rt.kubeconfig, "kubeconfig", "", "Path to kubeconfig file")
	root.PersistentFlags().StringVarP(&rt.outputFormat, "output", "o", "", "Output format: table, wide, json, yaml")
	root.PersistentFlags().BoolVarP(&rt.verbose, "verbose", "v", false, "Enable verbose logging")

	root.SetContext(context.WithValue(context.Background(), runtimeKey{}, rt))

	root.AddCommand(
		NewConfigCommand(),
		NewNodesCommand(),
		NewLockCommand(),
		NewCompletionCommand(),
		NewVersionCommand(),
	)

	return root
}

func getRuntime(cmd *cobra.Command) (*runtimeState, error) {
	rt, ok := cmd.Context().Value(runtimeKey{}).(*runtimeState)
	if !ok || rt == nil {
		return nil, errors.New("runtime not initialized")
	}
	return rt, nil
}

func newLogger(verbose bool) *zap.SugaredLogger {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.OutputPaths = []string{"stderr"}
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	} else {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	}
	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop().Sugar()
	}
	return logger.Sugar()
}

func (rt *runtimeState) Writer() io.Writer {
	if rt.writer != nil {
		return rt.writer
	}
	return os.Stdout
}

func (rt *runtimeState) OutputFormat() string {
	if rt.outputFormat != "" {
		return rt.outputFormat
	}
	if rt.tracker != nil {
		if format := rt.tracker.OutputFormat(); format != "" {
			return format
		}
	}
	return "table"
}

func (rt *runtimeState) Namespace() (string, error) {
	if rt.namespace == "" {
		return "", errors.New("namespace is required (use --namespace or QUORUMCTL_NAMESPACE)")
	}
	return rt.namespace, nil
}

// clientFor returns a clientset for the given kubeconfig context; empty
// selects the kubeconfig's current context.
func (rt *runtimeState) clientFor(contextName string) (kubernetes.Interface, error) {
	if rt.factory == nil {
		kubeconfig := rt.kubeconfig
		if kubeconfig == "" && rt.tracker != nil {
			kubeconfig = rt.tracker.Kubeconfig()
		}
		rt.factory = kube.NewClientFactory(kubeconfig, rt.log)
	}
	return rt.factory.ClientFor(contextName)
}

func (rt *runtimeState) configPathValue() string {
	if rt.configPath == "" {
		return config.DefaultConfigPath()
	}
	return rt.configPath
}
