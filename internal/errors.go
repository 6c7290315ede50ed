package internal

import "fmt"

// StructuralError reports a declared child that breaks a reconciliation
// assumption, like a duplicate key among siblings. The offending subtree is
// replaced (fresh insert plus deletion of the old one) instead of failing the
// pass.
type StructuralError struct {
	Key    string
	Reason string
}

func (e *StructuralError) Error() string {
	return fmt.Sprintf("structural anomaly at key %q: %s", e.Key, e.Reason)
}

// HostCapabilityError is fatal to the current pass: a required host
// collaborator (time source or renderer) is missing or failed. The work loop
// aborts without committing.
type HostCapabilityError struct {
	Capability string
}

func (e *HostCapabilityError) Error() string {
	return "host capability unavailable: " + e.Capability
}
