package lease

import "fmt"

// AcquisitionError indicates the lease is already held live by another holder.
type AcquisitionError struct {
	Namespace     string
	Holder        string
	CurrentHolder string
}

func (e *AcquisitionError) Error() string {
	return fmt.Sprintf("lease in namespace %q is held by %q, cannot acquire for %q",
		e.Namespace, e.CurrentHolder, e.Holder)
}

// RenewalError indicates a renewal failed because the holder no longer matches
// the resource's current holder, or the resource vanished.
type RenewalError struct {
	Namespace string
	Holder    string
	Reason    string
}

func (e *RenewalError) Error() string {
	return fmt.Sprintf("failed to renew lease in namespace %q for holder %q: %s",
		e.Namespace, e.Holder, e.Reason)
}

// TransferError indicates a transfer was attempted while the existing lease is
// still live. This is a race-protection check, not merely advisory.
type TransferError struct {
	Namespace     string
	NewHolder     string
	CurrentHolder string
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("lease in namespace %q is still live for holder %q, cannot transfer to %q",
		e.Namespace, e.CurrentHolder, e.NewHolder)
}

// ReleaseError indicates a deletion was attempted by a caller that is no
// longer the current holder. An already-absent lease is not an error.
type ReleaseError struct {
	Namespace     string
	Holder        string
	CurrentHolder string
}

func (e *ReleaseError) Error() string {
	return fmt.Sprintf("lease in namespace %q is held by %q, cannot release as %q",
		e.Namespace, e.CurrentHolder, e.Holder)
}
