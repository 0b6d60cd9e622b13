package scanner

import (
	"context"
	"fmt"

	"github.com/kartta-io/kartta/executor"
	"github.com/kartta-io/kartta/types"
)

// NetworkScanner discovers virtual networks.
type NetworkScanner struct {
	exec executor.Executor
}

// NewNetworkScanner creates a network scanner backed by the given executor
func NewNetworkScanner(exec executor.Executor) *NetworkScanner {
	return &NetworkScanner{exec: exec}
}

// ServiceName returns the service identifier
func (s *NetworkScanner) ServiceName() string { return "network" }

// Discover lists VPCs via the command substrate
func (s *NetworkScanner) Discover(ctx context.Context, sc types.ScanContext) ([]types.RawRecord, error) {
	var output struct {
		Vpcs []map[string]any `json:"Vpcs"`
	}

	if err := runCLI(ctx, s.exec, sc, []string{"ec2", "describe-vpcs"}, &output); err != nil {
		return nil, err
	}

	records := make([]types.RawRecord, 0, len(output.Vpcs))
	for _, vpc := range output.Vpcs {
		records = append(records, types.RawRecord{
			Service: "network",
			Kind:    "vpc",
			Payload: vpc,
		})
	}

	return records, nil
}

// Transform converts one raw VPC record into a normalized resource
func (s *NetworkScanner) Transform(record types.RawRecord, sc types.ScanContext) (types.Resource, error) {
	id := stringField(record.Payload, "VpcId")
	if id == "" {
		return types.Resource{}, fmt.Errorf("vpc record has no VpcId")
	}

	tags := tagMap(record.Payload["Tags"])

	metadata := map[string]string{}
	if cidr := stringField(record.Payload, "CidrBlock"); cidr != "" {
		metadata["cidr_block"] = cidr
	}
	if boolField(record.Payload, "IsDefault") {
		metadata["is_default"] = "true"
	}

	return types.Resource{
		Type:        "network.vpc",
		ExternalID:  id,
		AccountID:   sc.AccountID,
		Region:      sc.Region,
		Service:     "network",
		ARN:         fmt.Sprintf("arn:aws:ec2:%s:%s:vpc/%s", sc.Region, sc.AccountID, id),
		Name:        tags["Name"],
		Status:      stringField(record.Payload, "State"),
		Tags:        tags,
		Constraints: types.Constraints{Metadata: metadata},
	}, nil
}
