// Package permissions resolves per-resource access facts via the cloud
// provider's policy simulation API.
package permissions

// Action checklists per resource family. Fixed tables, not auto-discovered:
// these are the actions downstream consumers ask about.
var checklists = map[string][]string{
	"compute": {
		"ec2:StartInstances",
		"ec2:StopInstances",
		"ec2:RebootInstances",
		"ec2:TerminateInstances",
		"ec2:CreateTags",
	},
	"database": {
		"rds:StartDBInstance",
		"rds:StopDBInstance",
		"rds:ModifyDBInstance",
		"rds:CreateDBSnapshot",
		"rds:DeleteDBInstance",
	},
	"objectstore": {
		"s3:ListBucket",
		"s3:GetObject",
		"s3:PutObject",
		"s3:DeleteObject",
		"s3:DeleteBucket",
	},
	"function": {
		"lambda:GetFunction",
		"lambda:InvokeFunction",
		"lambda:UpdateFunctionCode",
		"lambda:DeleteFunction",
	},
	"network": {
		"ec2:ModifyVpcAttribute",
		"ec2:CreateTags",
		"ec2:DeleteVpc",
	},
}

// ChecklistFor returns the action checklist for a resource family.
// Unknown families get an empty checklist: nothing to simulate.
func ChecklistFor(service string) []string {
	return checklists[service]
}
