// Package ton declares the narrow interfaces the transfer core needs
// from the network: account state, fee estimation and broadcast.
// Implementations live outside the core (see the toncenter package).
package ton

import (
	"context"
	"math/big"

	"github.com/opencove/tonsend/address"
	"github.com/opencove/tonsend/tlb"
)

// AccountState is a point-in-time snapshot of a wallet account.
// Seqno is only valid for a message built immediately after fetching,
// it must never be cached across operations.
type AccountState struct {
	Active  bool
	Balance tlb.Coins
	Seqno   uint32
}

// FeeEstimate is the remote-computed cost report for a message.
// Extra is the delta to net against the protocol minimum when choosing
// the final attached value; a negative Extra is a refund.
type FeeEstimate struct {
	InFwdFee   *big.Int
	StorageFee *big.Int
	GasFee     *big.Int
	FwdFee     *big.Int

	Extra *big.Int
}

// TotalExtra returns Extra, or zero when the estimate carries none.
func (f *FeeEstimate) TotalExtra() *big.Int {
	if f == nil || f.Extra == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(f.Extra)
}

// API serves the pre-send account queries.
type API interface {
	// GetServiceTime attests the service is alive and returns its
	// current unix time.
	GetServiceTime(ctx context.Context) (uint32, error)
	// GetAccountState returns the balance and seqno snapshot.
	GetAccountState(ctx context.Context, addr *address.Address) (*AccountState, error)
}

// Estimator accepts only placeholder-signed messages.
type Estimator interface {
	EstimateFee(ctx context.Context, ext *tlb.EstimatedExternal) (*FeeEstimate, error)
}

// Broadcaster accepts only properly signed messages.
type Broadcaster interface {
	SendMessage(ctx context.Context, ext *tlb.SignedExternal) error
}
