package sender

import (
	"context"
	"crypto/ed25519"
	"errors"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/opencove/tonsend/address"
	"github.com/opencove/tonsend/tlb"
	"github.com/opencove/tonsend/ton"
	"github.com/opencove/tonsend/ton/wallet"
)

var testWords = strings.Fields("birth pattern then forest walnut then phrase walnut fan pumpkin pattern then cluster blossom verify then forest volume biology decline grid punch boring there")

type fakeAPI struct {
	now    uint32
	nowErr error

	state    *ton.AccountState
	stateErr error
}

func (f *fakeAPI) GetServiceTime(context.Context) (uint32, error) {
	return f.now, f.nowErr
}

func (f *fakeAPI) GetAccountState(context.Context, *address.Address) (*ton.AccountState, error) {
	return f.state, f.stateErr
}

type fakeEstimator struct {
	fee *ton.FeeEstimate
	err error

	got *tlb.EstimatedExternal
}

func (f *fakeEstimator) EstimateFee(_ context.Context, ext *tlb.EstimatedExternal) (*ton.FeeEstimate, error) {
	f.got = ext
	return f.fee, f.err
}

type fakeBroadcaster struct {
	sent *tlb.SignedExternal
	err  error
}

func (f *fakeBroadcaster) SendMessage(_ context.Context, ext *tlb.SignedExternal) error {
	f.sent = ext
	return f.err
}

type fakeKeystore struct {
	words []string
	err   error
	calls int
}

func (f *fakeKeystore) GetSecret(ed25519.PublicKey, []byte) ([]string, error) {
	f.calls++
	return f.words, f.err
}

type fixture struct {
	api   *fakeAPI
	est   *fakeEstimator
	bc    *fakeBroadcaster
	store *fakeKeystore

	item  *address.Address
	owner *address.Address
}

func newFixture(t *testing.T, balanceNano uint64, opts ...Option) (*Sender, *fixture) {
	t.Helper()

	key, err := wallet.FromSeed(testWords)
	require.NoError(t, err)

	walletAddr, err := address.ParseAddr("EQCD39VS5jcptHL8vMjEXrzGaRcCVYto7HUn4bpAOg8xqB2N")
	require.NoError(t, err)
	item, err := address.ParseAddr("EQDEGeK4o7bNgazTln27r0RC4YcOmerzIni3gUpsyqxfgMWk")
	require.NoError(t, err)
	owner, err := address.ParseAddr("EQBPQF6r6-pUObVWu6RO05YwoHQRnjM95tRLAL_s2A6n0pvq")
	require.NoError(t, err)

	fx := &fixture{
		api: &fakeAPI{
			now: uint32(time.Now().Unix()),
			state: &ton.AccountState{
				Active:  true,
				Balance: tlb.FromNanoTONU(balanceNano),
				Seqno:   12,
			},
		},
		est:   &fakeEstimator{fee: &ton.FeeEstimate{Extra: big.NewInt(0)}},
		bc:    &fakeBroadcaster{},
		store: &fakeKeystore{words: testWords},
		item:  item,
		owner: owner,
	}

	st := wallet.State{
		PublicKey: key.Public().(ed25519.PublicKey),
		Address:   walletAddr,
	}

	return New(fx.api, fx.est, fx.bc, fx.store, st, opts...), fx
}

// attachedAmount digs the value out of a broadcast message: past the
// signature and sequencing fields into the wrapped internal message.
func attachedAmount(t *testing.T, ext *tlb.SignedExternal) *big.Int {
	t.Helper()

	s := ext.Msg.Body.BeginParse()
	s.MustLoadSlice(512) // signature
	s.MustLoadUInt(32)   // subwallet
	s.MustLoadUInt(32)   // valid until
	s.MustLoadUInt(32)   // seqno
	s.MustLoadUInt(8)    // mode

	intMsg, err := s.LoadRef()
	require.NoError(t, err)

	require.False(t, intMsg.MustLoadBoolBit()) // int_msg_info$0
	intMsg.MustLoadBoolBit()                   // ihr disabled
	intMsg.MustLoadBoolBit()                   // bounce
	intMsg.MustLoadBoolBit()                   // bounced
	intMsg.MustLoadAddr()                      // src
	intMsg.MustLoadAddr()                      // dst

	return intMsg.MustLoadBigCoins()
}

func TestEstimateNFTTransfer(t *testing.T) {
	snd, fx := newFixture(t, 1_000_000_000)
	fx.est.fee = &ton.FeeEstimate{Extra: big.NewInt(3_000_000)}

	fee, err := snd.EstimateNFTTransfer(context.Background(), NFTTransferParams{
		Item:     fx.item,
		NewOwner: fx.owner,
		Comment:  "gift",
	})
	require.NoError(t, err)
	require.Equal(t, int64(3_000_000), fee.TotalExtra().Int64())

	// estimation targets the wallet contract and never opens the keystore
	require.NotNil(t, fx.est.got)
	require.Equal(t, 0, fx.store.calls)
	require.Nil(t, fx.bc.sent)
}

func TestEstimateEmptyBalance(t *testing.T) {
	snd, fx := newFixture(t, 0)

	_, err := snd.EstimateDNSRenew(context.Background(), DNSRenewParams{Domain: fx.item})
	require.ErrorIs(t, err, ErrEmptyBalance)
	require.Nil(t, fx.est.got)
}

func TestEstimateServiceUnavailable(t *testing.T) {
	snd, fx := newFixture(t, 1_000_000_000)
	fx.api.nowErr = errors.New("connection refused")

	_, err := snd.EstimateNFTTransfer(context.Background(), NFTTransferParams{
		Item:     fx.item,
		NewOwner: fx.owner,
	})
	require.ErrorIs(t, err, ErrServiceUnavailable)
}

func TestEstimateClockSkew(t *testing.T) {
	snd, fx := newFixture(t, 1_000_000_000)
	fx.api.now = uint32(time.Now().Add(-time.Hour).Unix())

	_, err := snd.EstimateDNSLink(context.Background(), DNSLinkParams{Domain: fx.item})
	require.ErrorIs(t, err, ErrServiceUnavailable)
}

func TestSendNetsRefundIntoAmount(t *testing.T) {
	snd, fx := newFixture(t, 100, WithMinAttach(big.NewInt(5)))

	// a refund raises the attached value, not the spent total
	fee := &ton.FeeEstimate{Extra: big.NewInt(-2)}

	err := snd.SendNFTTransfer(context.Background(), NFTTransferParams{
		Item:     fx.item,
		NewOwner: fx.owner,
	}, []byte("pass"), fee)
	require.NoError(t, err)

	require.NotNil(t, fx.bc.sent)
	require.Equal(t, int64(7), attachedAmount(t, fx.bc.sent).Int64())
}

func TestSendInsufficientBalance(t *testing.T) {
	snd, fx := newFixture(t, 3, WithMinAttach(big.NewInt(5)))

	err := snd.SendDNSRenew(context.Background(), DNSRenewParams{Domain: fx.item}, []byte("pass"), nil)
	require.ErrorIs(t, err, ErrInsufficientBalance)
	require.Nil(t, fx.bc.sent)
}

func TestSendNilFeeDefaultsToMinimum(t *testing.T) {
	snd, fx := newFixture(t, 1_000_000_000)

	err := snd.SendDNSLink(context.Background(), DNSLinkParams{
		Domain: fx.item,
		Target: fx.owner,
	}, []byte("pass"), nil)
	require.NoError(t, err)

	require.NotNil(t, fx.bc.sent)
	require.Equal(t, int64(50_000_000), attachedAmount(t, fx.bc.sent).Int64())
}

func TestSendKeyMismatch(t *testing.T) {
	snd, fx := newFixture(t, 1_000_000_000)

	other := append([]string{}, testWords...)
	other[0] = "abandon"
	fx.store.words = other

	err := snd.SendDNSRenew(context.Background(), DNSRenewParams{Domain: fx.item}, []byte("pass"), nil)
	require.ErrorIs(t, err, ErrKeyMismatch)
	require.Nil(t, fx.bc.sent)
}

func TestSendKeystoreError(t *testing.T) {
	snd, fx := newFixture(t, 1_000_000_000)
	fx.store.err = errors.New("wrong passphrase")

	err := snd.SendDNSRenew(context.Background(), DNSRenewParams{Domain: fx.item}, []byte("nope"), nil)
	require.Error(t, err)
	require.Nil(t, fx.bc.sent)
}
