package wallet

import (
	"crypto/ed25519"
	"errors"
	"time"

	"github.com/opencove/tonsend/address"
	"github.com/opencove/tonsend/tlb"
	"github.com/opencove/tonsend/tvm/cell"
)

const DefaultSubwallet = 698983191

// messagesTTL is how long a built message stays valid for the wallet
// contract before it rejects it as expired.
const messagesTTL = 3 * time.Minute

const (
	PayGasSeparately = 1
	IgnoreErrors     = 2
)

// defined this way to mock in tests
var timeNow = time.Now

var (
	ErrNilKey   = errors.New("signing key is not set")
	ErrNoWallet = errors.New("wallet state has no address")
)

// State is the active account: its public key and address. It is
// supplied by the caller and never mutated here.
type State struct {
	PublicKey ed25519.PublicKey
	Address   *address.Address
	Subwallet uint32
}

// ZeroKey returns the placeholder private key used on the estimation
// path. Messages assembled with it carry an invalid signature and are
// represented as tlb.EstimatedExternal so they cannot reach broadcast.
func ZeroKey() ed25519.PrivateKey {
	return make(ed25519.PrivateKey, ed25519.PrivateKeySize)
}

// SignExternal assembles a broadcast-ready external message: the
// operation body wrapped into an internal message, sequenced with
// seqno and signed with key.
func SignExternal(st State, seqno uint32, key ed25519.PrivateKey, dst *address.Address, amount tlb.Coins, body *cell.Cell) (*tlb.SignedExternal, error) {
	if len(key) != ed25519.PrivateKeySize {
		return nil, ErrNilKey
	}

	ext, err := assemble(st, seqno, key, dst, amount, body)
	if err != nil {
		return nil, err
	}

	return &tlb.SignedExternal{Msg: ext}, nil
}

// EstimateExternal assembles the structurally identical message with
// the zero placeholder key, for fee estimation only.
func EstimateExternal(st State, seqno uint32, dst *address.Address, amount tlb.Coins, body *cell.Cell) (*tlb.EstimatedExternal, error) {
	ext, err := assemble(st, seqno, ZeroKey(), dst, amount, body)
	if err != nil {
		return nil, err
	}

	return &tlb.EstimatedExternal{Msg: ext}, nil
}

func assemble(st State, seqno uint32, key ed25519.PrivateKey, dst *address.Address, amount tlb.Coins, body *cell.Cell) (*tlb.ExternalMessage, error) {
	if st.Address.IsAddrNone() {
		return nil, ErrNoWallet
	}

	intMsg := &tlb.InternalMessage{
		IHRDisabled: true,
		Bounce:      dst.IsBounceable(),
		DstAddr:     dst,
		Amount:      amount,
		Body:        body,
	}

	intCell, err := intMsg.ToCell()
	if err != nil {
		return nil, err
	}

	subwallet := st.Subwallet
	if subwallet == 0 {
		subwallet = DefaultSubwallet
	}

	payload := cell.BeginCell().
		MustStoreUInt(uint64(subwallet), 32).
		MustStoreUInt(uint64(timeNow().Add(messagesTTL).UTC().Unix()), 32).
		MustStoreUInt(uint64(seqno), 32).
		MustStoreUInt(PayGasSeparately+IgnoreErrors, 8).
		MustStoreRef(intCell)

	sign := payload.EndCell().Sign(key)
	msg := cell.BeginCell().MustStoreSlice(sign, 512).MustStoreBuilder(payload).EndCell()

	return &tlb.ExternalMessage{
		DstAddr: st.Address,
		Body:    msg,
	}, nil
}
