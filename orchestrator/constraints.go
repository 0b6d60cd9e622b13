package orchestrator

import "github.com/kartta-io/kartta/types"

// deriveConstraints maps a transformed resource's state and metadata to
// operational flags. Pure function: same resource in, same flags out.
// The scanner-provided metadata map passes through unchanged.
func deriveConstraints(r types.Resource) types.Constraints {
	c := types.Constraints{Metadata: r.Constraints.Metadata}

	switch r.Service {
	case "compute":
		c.CanStop = r.Status == "running"
		c.CanDelete = r.Status != "terminated"
	case "database":
		c.CanStop = r.Status == "available"
		c.CanDelete = c.Metadata["deletion_protection"] != "true"
	case "network":
		// VPCs almost always carry subnets, gateways, and attached
		// instances; deleting the default VPC is provider-managed.
		c.HasDependents = true
		c.CanDelete = c.Metadata["is_default"] != "true"
	default:
		c.CanDelete = true
	}

	return c
}
