package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kartta-io/kartta/types"
)

func TestDeriveConstraints(t *testing.T) {
	tests := []struct {
		name     string
		resource types.Resource
		want     types.Constraints
	}{
		{
			name:     "running compute is stoppable",
			resource: types.Resource{Service: "compute", Status: "running"},
			want:     types.Constraints{CanStop: true, CanDelete: true},
		},
		{
			name:     "stopped compute is not stoppable",
			resource: types.Resource{Service: "compute", Status: "stopped"},
			want:     types.Constraints{CanDelete: true},
		},
		{
			name:     "terminated compute is gone",
			resource: types.Resource{Service: "compute", Status: "terminated"},
			want:     types.Constraints{},
		},
		{
			name:     "available database is stoppable",
			resource: types.Resource{Service: "database", Status: "available"},
			want:     types.Constraints{CanStop: true, CanDelete: true},
		},
		{
			name: "protected database cannot be deleted",
			resource: types.Resource{
				Service:     "database",
				Status:      "available",
				Constraints: types.Constraints{Metadata: map[string]string{"deletion_protection": "true"}},
			},
			want: types.Constraints{
				CanStop:  true,
				Metadata: map[string]string{"deletion_protection": "true"},
			},
		},
		{
			name:     "vpc has dependents",
			resource: types.Resource{Service: "network", Status: "available"},
			want:     types.Constraints{CanDelete: true, HasDependents: true},
		},
		{
			name: "default vpc cannot be deleted",
			resource: types.Resource{
				Service:     "network",
				Constraints: types.Constraints{Metadata: map[string]string{"is_default": "true"}},
			},
			want: types.Constraints{
				HasDependents: true,
				Metadata:      map[string]string{"is_default": "true"},
			},
		},
		{
			name:     "bucket is deletable",
			resource: types.Resource{Service: "objectstore", Status: "available"},
			want:     types.Constraints{CanDelete: true},
		},
		{
			name:     "function is deletable",
			resource: types.Resource{Service: "function", Status: "Active"},
			want:     types.Constraints{CanDelete: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, deriveConstraints(tt.resource))
		})
	}
}

func TestDeriveConstraintsIsPure(t *testing.T) {
	r := types.Resource{
		Service:     "database",
		Status:      "available",
		Constraints: types.Constraints{Metadata: map[string]string{"engine": "postgres"}},
	}
	first := deriveConstraints(r)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, deriveConstraints(r))
	}
}
