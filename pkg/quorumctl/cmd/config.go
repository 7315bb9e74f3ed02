package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/telekom/k8s-quorum/pkg/quorumctl/config"
	"github.com/telekom/k8s-quorum/pkg/quorumctl/output"
)

func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage quorumctl configuration",
	}

	cmd.AddCommand(
		newConfigInitCommand(),
		newConfigViewCommand(),
		newConfigSetClusterCommand(),
		newConfigUnsetClusterCommand(),
	)

	return cmd
}

func newConfigInitCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a quorumctl config file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			path := rt.configPathValue()
			if !force {
				if _, err := os.Stat(path); err == nil {
					return fmt.Errorf("config already exists: %s", path)
				}
			}
			cfg := config.DefaultConfig()
			if err := config.Save(path, &cfg); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(rt.Writer(), "Initialized config at %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config file")
	return cmd
}

func newConfigViewCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "view",
		Short: "Show the current configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			format := output.Format(rt.OutputFormat())
			if format == output.FormatTable || format == output.FormatWide {
				format = output.FormatYAML
			}
			return output.WriteObject(rt.Writer(), format, rt.cfg)
		},
	}
}

func newConfigSetClusterCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set-cluster REF CONTEXT",
		Short: "Map a cluster reference to a kubeconfig context",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			ref, context := args[0], args[1]
			if rt.cfg.ClusterRefs == nil {
				rt.cfg.ClusterRefs = map[string]string{}
			}
			rt.cfg.ClusterRefs[ref] = context
			if err := rt.cfg.Validate(); err != nil {
				return err
			}
			if err := config.Save(rt.configPathValue(), rt.cfg); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(rt.Writer(), "Cluster %q mapped to context %q\n", ref, context)
			return nil
		},
	}
	return cmd
}

func newConfigUnsetClusterCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "unset-cluster REF",
		Short: "Remove a cluster reference mapping",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			ref := args[0]
			if _, ok := rt.cfg.ClusterRefs[ref]; !ok {
				return fmt.Errorf("cluster reference not found: %s", ref)
			}
			delete(rt.cfg.ClusterRefs, ref)
			if err := config.Save(rt.configPathValue(), rt.cfg); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(rt.Writer(), "Cluster %q removed\n", ref)
			return nil
		},
	}
}
