package scanner

import (
	"context"
	"fmt"
	"strings"

	"github.com/kartta-io/kartta/executor"
	"github.com/kartta-io/kartta/types"
)

// ComputeScanner discovers virtual machine instances.
type ComputeScanner struct {
	exec executor.Executor
}

// NewComputeScanner creates a compute scanner backed by the given executor
func NewComputeScanner(exec executor.Executor) *ComputeScanner {
	return &ComputeScanner{exec: exec}
}

// ServiceName returns the service identifier
func (s *ComputeScanner) ServiceName() string { return "compute" }

// Discover lists instances via the command substrate
func (s *ComputeScanner) Discover(ctx context.Context, sc types.ScanContext) ([]types.RawRecord, error) {
	var output struct {
		Reservations []struct {
			Instances []map[string]any `json:"Instances"`
		} `json:"Reservations"`
	}

	if err := runCLI(ctx, s.exec, sc, []string{"ec2", "describe-instances"}, &output); err != nil {
		return nil, err
	}

	var records []types.RawRecord
	for _, reservation := range output.Reservations {
		for _, instance := range reservation.Instances {
			records = append(records, types.RawRecord{
				Service: "compute",
				Kind:    "instance",
				Payload: instance,
			})
		}
	}

	return records, nil
}

// Transform converts one raw instance record into a normalized resource
func (s *ComputeScanner) Transform(record types.RawRecord, sc types.ScanContext) (types.Resource, error) {
	id := stringField(record.Payload, "InstanceId")
	if id == "" {
		return types.Resource{}, fmt.Errorf("instance record has no InstanceId")
	}

	tags := tagMap(record.Payload["Tags"])

	metadata := map[string]string{}
	if instanceType := stringField(record.Payload, "InstanceType"); instanceType != "" {
		metadata["instance_type"] = instanceType
	}
	if az := stringField(record.Payload, "Placement", "AvailabilityZone"); az != "" {
		metadata["availability_zone"] = az
	}

	return types.Resource{
		Type:        "compute.instance",
		ExternalID:  id,
		AccountID:   sc.AccountID,
		Region:      sc.Region,
		Service:     "compute",
		ARN:         fmt.Sprintf("arn:aws:ec2:%s:%s:instance/%s", sc.Region, sc.AccountID, id),
		Name:        tags["Name"],
		Status:      stringField(record.Payload, "State", "Name"),
		Tags:        tags,
		Constraints: types.Constraints{Metadata: metadata},
	}, nil
}

// Validate rejects records that did not come from an instance listing
func (s *ComputeScanner) Validate(r types.Resource) error {
	if !strings.HasPrefix(r.ExternalID, "i-") {
		return fmt.Errorf("unexpected instance id %q", r.ExternalID)
	}
	return nil
}
