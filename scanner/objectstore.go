package scanner

import (
	"context"
	"fmt"

	"github.com/kartta-io/kartta/executor"
	"github.com/kartta-io/kartta/types"
)

// ObjectStoreScanner discovers object storage buckets.
type ObjectStoreScanner struct {
	exec executor.Executor
}

// NewObjectStoreScanner creates an object-store scanner backed by the given executor
func NewObjectStoreScanner(exec executor.Executor) *ObjectStoreScanner {
	return &ObjectStoreScanner{exec: exec}
}

// ServiceName returns the service identifier
func (s *ObjectStoreScanner) ServiceName() string { return "objectstore" }

// Discover lists buckets via the command substrate
func (s *ObjectStoreScanner) Discover(ctx context.Context, sc types.ScanContext) ([]types.RawRecord, error) {
	var output struct {
		Buckets []map[string]any `json:"Buckets"`
	}

	if err := runCLI(ctx, s.exec, sc, []string{"s3api", "list-buckets"}, &output); err != nil {
		return nil, err
	}

	records := make([]types.RawRecord, 0, len(output.Buckets))
	for _, bucket := range output.Buckets {
		records = append(records, types.RawRecord{
			Service: "objectstore",
			Kind:    "bucket",
			Payload: bucket,
		})
	}

	return records, nil
}

// Transform converts one raw bucket record into a normalized resource.
// Bucket listings carry no state; a listed bucket is available.
func (s *ObjectStoreScanner) Transform(record types.RawRecord, sc types.ScanContext) (types.Resource, error) {
	name := stringField(record.Payload, "Name")
	if name == "" {
		return types.Resource{}, fmt.Errorf("bucket record has no Name")
	}

	metadata := map[string]string{}
	if created := stringField(record.Payload, "CreationDate"); created != "" {
		metadata["created_at"] = created
	}

	return types.Resource{
		Type:        "objectstore.bucket",
		ExternalID:  name,
		AccountID:   sc.AccountID,
		Region:      sc.Region,
		Service:     "objectstore",
		ARN:         "arn:aws:s3:::" + name,
		Name:        name,
		Status:      "available",
		Constraints: types.Constraints{Metadata: metadata},
	}, nil
}
