package types

import (
	"crypto/sha256"
	"encoding/hex"
)

// StoreKey computes the deterministic store key for a resource identity
// tuple. The account ID prefix keeps keys of one account adjacent so the
// store can list them without a full scan; the hash part is stable across
// process restarts.
func StoreKey(accountID, region, externalID string) string {
	h := sha256.Sum256([]byte(accountID + "\x00" + region + "\x00" + externalID))
	return accountID + "/" + hex.EncodeToString(h[:])
}

// Key returns the deterministic store key for this resource.
func (r Resource) Key() string {
	return StoreKey(r.AccountID, r.Region, r.ExternalID)
}

// KeyPrefix returns the prefix under which all of an account's keys live.
func KeyPrefix(accountID string) string {
	return accountID + "/"
}
