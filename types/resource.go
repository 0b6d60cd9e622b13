// Package types defines the shared data model for kartta.
package types

import "time"

// Account identifies one cloud account, subscription, or project to scan.
// Supplied by the caller and immutable for the duration of a scan.
type Account struct {
	ID                string `yaml:"id" json:"id"`
	Name              string `yaml:"name,omitempty" json:"name,omitempty"`
	CredentialProfile string `yaml:"credential_profile,omitempty" json:"credential_profile,omitempty"`
	RoleARN           string `yaml:"role_arn,omitempty" json:"role_arn,omitempty"`
}

// Identity describes the principal actually running a scan.
type Identity struct {
	PrincipalID    string     `json:"principal_id,omitempty"`
	PrincipalARN   string     `json:"principal_arn,omitempty"`
	AssumedRoleARN string     `json:"assumed_role_arn,omitempty"`
	SessionExpiry  *time.Time `json:"session_expiry,omitempty"`
}

// ScanContext is the per (account, region) execution frame.
// Created once per region iteration, read-only afterwards, never persisted.
type ScanContext struct {
	AccountID         string
	AccountName       string
	Region            string
	CredentialProfile string
	RoleARN           string
	Identity          Identity
}

// RawRecord wraps one unparsed discovery result. It is produced by a
// scanner's discovery step and consumed only by that same scanner's
// transform step.
type RawRecord struct {
	Service string
	Kind    string
	Payload map[string]any
}

// Permissions holds the action-level access facts attached to a resource.
type Permissions struct {
	Allowed  []string `json:"allowed,omitempty"`
	Denied   []string `json:"denied,omitempty"`
	Identity Identity `json:"identity,omitempty"`
}

// Constraints are operational flags derived from a resource's state.
type Constraints struct {
	CanStop       bool              `json:"can_stop"`
	CanDelete     bool              `json:"can_delete"`
	HasDependents bool              `json:"has_dependents"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// Resource is the normalized, cloud-agnostic representation of one cloud
// entity (VM, managed database, bucket, function, ...).
//
// The tuple (AccountID, Region, ExternalID) is globally unique and is the
// basis of the store key: identical tuples always upsert the same stored
// record.
type Resource struct {
	Type         string            `json:"type"`
	ExternalID   string            `json:"external_id"`
	AccountID    string            `json:"account_id"`
	Region       string            `json:"region"`
	Service      string            `json:"service"`
	ARN          string            `json:"arn,omitempty"`
	Name         string            `json:"name,omitempty"`
	Status       string            `json:"status,omitempty"`
	Tags         map[string]string `json:"tags,omitempty"`
	Permissions  Permissions       `json:"permissions,omitempty"`
	Constraints  Constraints       `json:"constraints,omitempty"`
	LastSyncedAt time.Time         `json:"last_synced_at"`
	Embedding    []float32         `json:"embedding,omitempty"`
}

// Address returns the unique address used for permission resolution.
// The provider-native ARN/URI wins when present.
func (r Resource) Address() string {
	if r.ARN != "" {
		return r.ARN
	}
	return r.Service + ":" + r.AccountID + ":" + r.Region + ":" + r.ExternalID
}
