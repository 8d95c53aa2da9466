// Package nft builds payloads for NFT item contracts.
package nft

import (
	"errors"
	"time"

	"github.com/opencove/tonsend/address"
	"github.com/opencove/tonsend/tlb"
	"github.com/opencove/tonsend/tvm/cell"
)

// OpTransfer is the ownership-transfer operation tag of the NFT
// item contract ABI.
const OpTransfer = 0x5fcc3d14

var ErrNoNewOwner = errors.New("new owner address is required")

// defined this way to mock in tests
var timeNow = time.Now

// BuildTransferPayload encodes an ownership transfer of an NFT item.
//
// A nil queryID defaults to a current-time-derived value, so unrelated
// transfers do not collide on the receiving contract's idempotency
// checks; pass an explicit id for retry detection. forwardPayload is
// attached as a maybe-ref, usually a comment cell, and may be nil.
func BuildTransferPayload(queryID *tlb.QueryID, newOwner, responseTo *address.Address, forwardAmount tlb.Coins, forwardPayload *cell.Cell) (*cell.Cell, error) {
	if newOwner.IsAddrNone() {
		return nil, ErrNoNewOwner
	}

	if responseTo.IsAddrNone() {
		responseTo = newOwner
	}

	b := cell.BeginCell().
		MustStoreUInt(OpTransfer, 32).
		MustStoreUInt(queryID.Or(uint64(timeNow().UnixMilli())), 64)

	if err := b.StoreAddr(newOwner); err != nil {
		return nil, err
	}
	if err := b.StoreAddr(responseTo); err != nil {
		return nil, err
	}

	// no custom payload
	b.MustStoreBoolBit(false)

	if err := b.StoreBigCoins(forwardAmount.Nano()); err != nil {
		return nil, err
	}

	if err := b.StoreMaybeRef(forwardPayload); err != nil {
		return nil, err
	}

	return b.EndCell(), nil
}
