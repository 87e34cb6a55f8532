// Package eligibility resolves whether a signer may act on behalf of an
// allow-listed identity. The same resolution runs client-side before every
// protected action and server-side as the authoritative gate on message
// submission; neither side trusts the other's result.
package eligibility

import "github.com/ethereum/go-ethereum/common"

// Record is the current delegation state for one delegate address as
// observed from the indexer.
type Record struct {
	Owner      common.Address
	Authorized bool
}

// DelegationMap maps delegate address to its delegation record.
type DelegationMap map[common.Address]Record

// Resolve returns the owner identity the signer acts as, or false when the
// signer has no standing. A signer resolves iff it is allow-listed itself,
// or it is the currently authorized delegate of an allow-listed owner. A
// record with Authorized=false never resolves, even while a cached local
// key for that delegate still exists.
func Resolve(allowlist []common.Address, delegations DelegationMap, signer common.Address) (common.Address, bool) {
	for _, owner := range allowlist {
		if owner == signer {
			return owner, true
		}
	}

	record, ok := delegations[signer]
	if !ok || !record.Authorized {
		return common.Address{}, false
	}
	for _, owner := range allowlist {
		if owner == record.Owner {
			return owner, true
		}
	}
	return common.Address{}, false
}
