package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/telekom/k8s-quorum/pkg/lease"
	"github.com/telekom/k8s-quorum/pkg/naming"
	"github.com/telekom/k8s-quorum/pkg/orchestrator"
	"github.com/telekom/k8s-quorum/pkg/quorumctl/output"
	"github.com/telekom/k8s-quorum/pkg/remoteconfig"
	"github.com/telekom/k8s-quorum/pkg/topology"
)

func NewNodesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "nodes",
		Short: "Inspect and mutate the consensus-node topology",
	}

	cmd.AddCommand(
		newNodesListCommand(),
		newNodesContextsCommand(),
		newNodesAddCommand(),
		newNodesRemoveCommand(),
	)

	return cmd
}

// deriveNodes loads the topology record for the namespace and joins it with
// the local cluster-ref mapping.
func deriveNodes(ctx context.Context, rt *runtimeState, namespace string) ([]topology.Node, error) {
	client, err := rt.clientFor(rt.contextOverride)
	if err != nil {
		return nil, err
	}
	remote := remoteconfig.NewManager(client, rt.log)
	rc, err := remote.Load(ctx, namespace)
	if err != nil {
		return nil, err
	}
	return topology.Derive(rc, rt.tracker.ClusterRefs(), rt.log)
}

func newNodesListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List consensus nodes with resolved contexts and DNS names",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			namespace, err := rt.Namespace()
			if err != nil {
				return err
			}
			nodes, err := deriveNodes(cmd.Context(), rt, namespace)
			if err != nil {
				return err
			}
			switch format := output.Format(rt.OutputFormat()); format {
			case output.FormatTable:
				output.WriteNodeTable(rt.Writer(), nodes)
				return nil
			case output.FormatWide:
				output.WriteNodeTableWide(rt.Writer(), nodes)
				return nil
			default:
				return output.WriteObject(rt.Writer(), format, nodes)
			}
		},
	}
	return cmd
}

func newNodesContextsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "contexts",
		Short: "Show the distinct contexts and per-cluster context mapping",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			namespace, err := rt.Namespace()
			if err != nil {
				return err
			}
			nodes, err := deriveNodes(cmd.Context(), rt, namespace)
			if err != nil {
				return err
			}
			result := struct {
				Contexts          []string          `json:"contexts"`
				ContextsByCluster map[string]string `json:"contextsByCluster"`
			}{
				Contexts:          topology.DistinctContexts(nodes),
				ContextsByCluster: topology.ContextsByCluster(nodes),
			}
			format := output.Format(rt.OutputFormat())
			if format == output.FormatTable || format == output.FormatWide {
				format = output.FormatYAML
			}
			return output.WriteObject(rt.Writer(), format, result)
		},
	}
}

func newNodesAddCommand() *cobra.Command {
	var (
		clusterRef string
		nodeID     int
	)

	cmd := &cobra.Command{
		Use:   "add ALIAS",
		Short: "Add a consensus node to the topology record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			namespace, err := rt.Namespace()
			if err != nil {
				return err
			}
			alias := args[0]
			if naming.ToRFC1123Label(alias) != alias {
				return fmt.Errorf("node alias %q is not a valid DNS label", alias)
			}
			if clusterRef == "" {
				return errors.New("--cluster is required")
			}
			if _, ok := rt.tracker.ContextFor(clusterRef); !ok {
				rt.log.Warnw("Cluster reference has no local context mapping; node will be unreachable from this machine",
					"clusterRef", clusterRef)
			}

			client, err := rt.clientFor(rt.contextOverride)
			if err != nil {
				return err
			}
			remote := remoteconfig.NewManager(client, rt.log)
			orch := orchestrator.New(orchestrator.Dependencies{
				Leases: lease.NewManager(client, rt.log),
				Log:    rt.log,
			}, orchestrator.Options{
				LeaseDurationSeconds: rt.tracker.LeaseDurationSeconds(),
				AcquireTimeout:       rt.tracker.AcquireTimeout(orchestrator.DefaultAcquireTimeout),
			})

			err = orch.RunExclusive(cmd.Context(), namespace, func(ctx context.Context) error {
				rc, err := remote.Load(ctx, namespace)
				if err != nil {
					var notFound *remoteconfig.NotFoundError
					if !errors.As(err, &notFound) {
						return err
					}
					// First node of a fresh deployment; start a new record.
					rc = remoteconfig.New(namespace, remoteconfig.Document{})
				}
				if _, exists := rc.Components().ConsensusNodes[alias]; exists {
					return fmt.Errorf("node %q already exists in namespace %q", alias, namespace)
				}
				rc.SetNode(alias, remoteconfig.ConsensusNodeEntry{
					Name:      alias,
					NodeID:    nodeID,
					Namespace: namespace,
					Cluster:   clusterRef,
				})
				return remote.Persist(ctx, rc)
			})
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(rt.Writer(), "Node %q added to namespace %q\n", alias, namespace)
			return nil
		},
	}

	cmd.Flags().StringVar(&clusterRef, "cluster", "", "Cluster reference the node runs in")
	cmd.Flags().IntVar(&nodeID, "node-id", 0, "Numeric node id")
	return cmd
}

func newNodesRemoveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "remove ALIAS",
		Aliases: []string{"rm"},
		Short:   "Remove a consensus node from the topology record",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			namespace, err := rt.Namespace()
			if err != nil {
				return err
			}
			alias := args[0]

			client, err := rt.clientFor(rt.contextOverride)
			if err != nil {
				return err
			}
			remote := remoteconfig.NewManager(client, rt.log)
			orch := orchestrator.New(orchestrator.Dependencies{
				Leases: lease.NewManager(client, rt.log),
				Log:    rt.log,
			}, orchestrator.Options{
				LeaseDurationSeconds: rt.tracker.LeaseDurationSeconds(),
				AcquireTimeout:       rt.tracker.AcquireTimeout(orchestrator.DefaultAcquireTimeout),
			})

			err = orch.RunExclusive(cmd.Context(), namespace, func(ctx context.Context) error {
				rc, err := remote.Load(ctx, namespace)
				if err != nil {
					return err
				}
				if _, exists := rc.Components().ConsensusNodes[alias]; !exists {
					return fmt.Errorf("node %q not found in namespace %q", alias, namespace)
				}
				rc.DeleteNode(alias)
				return remote.Persist(ctx, rc)
			})
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(rt.Writer(), "Node %q removed from namespace %q\n", alias, namespace)
			return nil
		},
	}
	return cmd
}
