package tlb

import (
	"errors"

	"github.com/opencove/tonsend/address"
	"github.com/opencove/tonsend/tvm/cell"
)

var ErrNoDestination = errors.New("message has no destination address")

// InternalMessage is a value-bearing message between contracts.
type InternalMessage struct {
	IHRDisabled bool
	Bounce      bool
	Bounced     bool
	SrcAddr     *address.Address
	DstAddr     *address.Address
	Amount      Coins
	Body        *cell.Cell
}

// ToCell encodes int_msg_info$0 framing. Fee and lt fields are left
// zero, the node rewrites them on processing.
func (m *InternalMessage) ToCell() (*cell.Cell, error) {
	if m.DstAddr.IsAddrNone() {
		return nil, ErrNoDestination
	}

	b := cell.BeginCell().
		MustStoreBoolBit(false). // int_msg_info$0
		MustStoreBoolBit(m.IHRDisabled).
		MustStoreBoolBit(m.Bounce).
		MustStoreBoolBit(m.Bounced)

	if err := b.StoreAddr(m.SrcAddr); err != nil {
		return nil, err
	}
	if err := b.StoreAddr(m.DstAddr); err != nil {
		return nil, err
	}
	if err := b.StoreBigCoins(m.Amount.Nano()); err != nil {
		return nil, err
	}

	b.MustStoreBoolBit(false)   // no extra currencies
	b.MustStoreCoins(0)         // ihr_fee
	b.MustStoreCoins(0)         // fwd_fee
	b.MustStoreUInt(0, 64)      // created_lt
	b.MustStoreUInt(0, 32)      // created_at
	b.MustStoreBoolBit(false)   // no state init

	if m.Body != nil {
		if err := b.StoreMaybeRef(m.Body); err != nil {
			return nil, err
		}
	} else {
		b.MustStoreBoolBit(false)
	}

	return b.EndCell(), nil
}

// ExternalMessage is an inbound-from-outside message carrying the
// signed (or placeholder-signed) wallet payload.
type ExternalMessage struct {
	DstAddr *address.Address
	Body    *cell.Cell
}

// ToCell encodes ext_in_msg_info$10 framing with the body as a ref.
func (m *ExternalMessage) ToCell() (*cell.Cell, error) {
	if m.DstAddr.IsAddrNone() {
		return nil, ErrNoDestination
	}
	if m.Body == nil {
		return nil, errors.New("external message has no body")
	}

	b := cell.BeginCell().
		MustStoreUInt(0b10, 2) // ext_in_msg_info$10

	if err := b.StoreAddr(nil); err != nil { // src addr_none
		return nil, err
	}
	if err := b.StoreAddr(m.DstAddr); err != nil {
		return nil, err
	}

	b.MustStoreCoins(0)       // import fee
	b.MustStoreBoolBit(false) // no state init

	if err := b.StoreMaybeRef(m.Body); err != nil {
		return nil, err
	}

	return b.EndCell(), nil
}

// SignedExternal is a broadcast-ready message built with a real key.
// Only values of this type are accepted by the broadcast interface.
type SignedExternal struct {
	Msg *ExternalMessage
}

// EstimatedExternal is structurally identical to SignedExternal but was
// built with a zero placeholder key. Its signature is invalid and it
// must only ever reach a fee-estimation endpoint; the type keeps it out
// of the broadcast interface.
type EstimatedExternal struct {
	Msg *ExternalMessage
}
