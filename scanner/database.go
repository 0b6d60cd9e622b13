package scanner

import (
	"context"
	"fmt"

	"github.com/kartta-io/kartta/executor"
	"github.com/kartta-io/kartta/types"
)

// DatabaseScanner discovers managed database instances.
type DatabaseScanner struct {
	exec executor.Executor
}

// NewDatabaseScanner creates a database scanner backed by the given executor
func NewDatabaseScanner(exec executor.Executor) *DatabaseScanner {
	return &DatabaseScanner{exec: exec}
}

// ServiceName returns the service identifier
func (s *DatabaseScanner) ServiceName() string { return "database" }

// Discover lists database instances via the command substrate
func (s *DatabaseScanner) Discover(ctx context.Context, sc types.ScanContext) ([]types.RawRecord, error) {
	var output struct {
		DBInstances []map[string]any `json:"DBInstances"`
	}

	if err := runCLI(ctx, s.exec, sc, []string{"rds", "describe-db-instances"}, &output); err != nil {
		return nil, err
	}

	records := make([]types.RawRecord, 0, len(output.DBInstances))
	for _, instance := range output.DBInstances {
		records = append(records, types.RawRecord{
			Service: "database",
			Kind:    "db-instance",
			Payload: instance,
		})
	}

	return records, nil
}

// Transform converts one raw DB instance record into a normalized resource
func (s *DatabaseScanner) Transform(record types.RawRecord, sc types.ScanContext) (types.Resource, error) {
	id := stringField(record.Payload, "DBInstanceIdentifier")
	if id == "" {
		return types.Resource{}, fmt.Errorf("db instance record has no DBInstanceIdentifier")
	}

	metadata := map[string]string{}
	if engine := stringField(record.Payload, "Engine"); engine != "" {
		metadata["engine"] = engine
	}
	if class := stringField(record.Payload, "DBInstanceClass"); class != "" {
		metadata["instance_class"] = class
	}
	if boolField(record.Payload, "MultiAZ") {
		metadata["multi_az"] = "true"
	}
	if boolField(record.Payload, "DeletionProtection") {
		metadata["deletion_protection"] = "true"
	}

	return types.Resource{
		Type:        "database.instance",
		ExternalID:  id,
		AccountID:   sc.AccountID,
		Region:      sc.Region,
		Service:     "database",
		ARN:         stringField(record.Payload, "DBInstanceArn"),
		Name:        id,
		Status:      stringField(record.Payload, "DBInstanceStatus"),
		Tags:        tagMap(record.Payload["TagList"]),
		Constraints: types.Constraints{Metadata: metadata},
	}, nil
}
