package orchestrator

import (
	"time"

	"github.com/kartta-io/kartta/types"
)

// ScanRequest describes one run: which accounts, regions, and services to
// scan, and whether stale records should be cleaned up afterwards.
type ScanRequest struct {
	Accounts     []types.Account
	Regions      []string
	Services     []string
	CleanupStale bool
}

// Limits bounds the fan-out at each parallelism level. Zero values take
// the defaults. Accounts are always sequential: different credential
// material must never be used concurrently from shared client state.
type Limits struct {
	Regions         int
	Services        int
	Resources       int
	PermissionCalls int
}

const (
	defaultRegionLimit          = 10
	defaultServiceLimit         = 10
	defaultResourceLimit        = 100
	defaultPermissionCallsLimit = 50
)

func (l Limits) withDefaults() Limits {
	if l.Regions <= 0 {
		l.Regions = defaultRegionLimit
	}
	if l.Services <= 0 {
		l.Services = defaultServiceLimit
	}
	if l.Resources <= 0 {
		l.Resources = defaultResourceLimit
	}
	if l.PermissionCalls <= 0 {
		l.PermissionCalls = defaultPermissionCallsLimit
	}
	return l
}

// State is the terminal state of a run.
type State string

// StateDone is reached by every run that was not aborted by a fatal
// configuration error. Partial failures never change the terminal state.
const StateDone State = "done"

// AccountResult is the per-account breakdown of a run.
type AccountResult struct {
	AccountID  string `json:"account_id"`
	Discovered int    `json:"discovered"`
	Upserted   int    `json:"upserted"`
	Deleted    int    `json:"deleted"`
	Errors     int    `json:"errors"`
}

// ScanResult summarizes one run. Built incrementally by the orchestrator
// and returned to the caller; never persisted by the core.
type ScanResult struct {
	RunID      string          `json:"run_id"`
	StartTime  time.Time       `json:"start_time"`
	EndTime    time.Time       `json:"end_time"`
	Duration   time.Duration   `json:"duration"`
	Discovered int             `json:"discovered"`
	Upserted   int             `json:"upserted"`
	Deleted    int             `json:"deleted"`
	Accounts   []AccountResult `json:"accounts,omitempty"`
	Errors     []*ScanError    `json:"errors,omitempty"`
	State      State           `json:"state"`
}
