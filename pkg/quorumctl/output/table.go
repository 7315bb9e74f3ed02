package output

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/telekom/k8s-quorum/pkg/lease"
	"github.com/telekom/k8s-quorum/pkg/topology"
)

func WriteNodeTable(w io.Writer, nodes []topology.Node) {
	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ALIAS\tID\tNAMESPACE\tCLUSTER\tFQDN")
	for _, n := range nodes {
		_, _ = fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\n", n.Alias, n.NodeID, n.Namespace, n.ClusterRef, n.FQDN)
	}
	_ = tw.Flush()
}

func WriteNodeTableWide(w io.Writer, nodes []topology.Node) {
	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ALIAS\tID\tNAMESPACE\tCLUSTER\tCONTEXT\tDNS_BASE_DOMAIN\tFQDN")
	for _, n := range nodes {
		context := n.Context
		if context == "" {
			context = "-"
		}
		_, _ = fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\t%s\t%s\n",
			n.Alias, n.NodeID, n.Namespace, n.ClusterRef, context, n.DNSBaseDomain, n.FQDN)
	}
	_ = tw.Flush()
}

// WriteLockTable renders the current lease state of a namespace; a nil lease
// means the namespace is unlocked.
func WriteLockTable(w io.Writer, namespace string, l *lease.Lease, now time.Time) {
	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "NAMESPACE\tHOLDER\tSTATE\tACQUIRED\tRENEWED\tTRANSITIONS")
	if l == nil {
		_, _ = fmt.Fprintf(tw, "%s\t-\tunlocked\t-\t-\t-\n", namespace)
	} else {
		state := "live"
		if l.Expired(now) {
			state = "expired"
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\n",
			l.Namespace, l.HolderIdentity, state, formatTime(l.AcquireTime), formatTime(l.RenewTime), l.Transitions)
	}
	_ = tw.Flush()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}
