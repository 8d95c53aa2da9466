// Package sender sequences outbound wallet operations: preflight
// checks, payload encoding, message assembly and submission. Each
// operation has an estimation entry point, which never touches secret
// material, and a send entry point, which signs with the real key.
//
// Calls are single flight: balance and seqno are fetched fresh inside
// every call and never cached, so concurrent sends from one wallet can
// race on seqno. Serializing user-initiated sends is the caller's job.
package sender

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"fmt"
	"math/big"
	"time"

	"github.com/opencove/tonsend/address"
	"github.com/opencove/tonsend/tlb"
	"github.com/opencove/tonsend/ton"
	"github.com/opencove/tonsend/ton/dns"
	"github.com/opencove/tonsend/ton/nft"
	"github.com/opencove/tonsend/ton/wallet"
	"github.com/opencove/tonsend/tvm/cell"
)

// minAttachNano is the protocol minimum attached to an operation
// message, 0.05 TON. The receiving contract pays its fees from it and
// bounces the rest back.
const minAttachNano = 50_000_000

const defaultTimeTolerance = 5 * time.Minute

// Keystore retrieves the mnemonic protecting the wallet's key.
type Keystore interface {
	GetSecret(pub ed25519.PublicKey, passphrase []byte) ([]string, error)
}

type Sender struct {
	api   ton.API
	est   ton.Estimator
	bc    ton.Broadcaster
	store Keystore
	state wallet.State

	minAttach     *big.Int
	timeTolerance time.Duration
}

type Option func(*Sender)

// WithMinAttach overrides the protocol minimum attached value.
func WithMinAttach(nano *big.Int) Option {
	return func(s *Sender) {
		s.minAttach = new(big.Int).Set(nano)
	}
}

// WithTimeTolerance overrides the allowed clock skew of the service.
func WithTimeTolerance(d time.Duration) Option {
	return func(s *Sender) {
		s.timeTolerance = d
	}
}

func New(api ton.API, est ton.Estimator, bc ton.Broadcaster, store Keystore, state wallet.State, opts ...Option) *Sender {
	s := &Sender{
		api:           api,
		est:           est,
		bc:            bc,
		store:         store,
		state:         state,
		minAttach:     big.NewInt(minAttachNano),
		timeTolerance: defaultTimeTolerance,
	}

	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NFTTransferParams describes an NFT ownership transfer.
type NFTTransferParams struct {
	// Item is the NFT item contract address.
	Item *address.Address
	// NewOwner receives ownership and excess value.
	NewOwner *address.Address
	// Comment is forwarded to the new owner, may be empty.
	Comment string
	// QueryID is optional; nil picks a time-derived default.
	QueryID *tlb.QueryID
}

func (p NFTTransferParams) body() (*cell.Cell, error) {
	var fwd *cell.Cell
	if p.Comment != "" {
		var err error
		fwd, err = wallet.CreateCommentCell(p.Comment)
		if err != nil {
			return nil, err
		}
	}

	// forward one nanocoin so the new owner gets notified
	return nft.BuildTransferPayload(p.QueryID, p.NewOwner, p.NewOwner, tlb.FromNanoTONU(1), fwd)
}

// EstimateNFTTransfer dry-runs the transfer against network state and
// returns the remote fee report.
func (s *Sender) EstimateNFTTransfer(ctx context.Context, p NFTTransferParams) (*ton.FeeEstimate, error) {
	body, err := p.body()
	if err != nil {
		return nil, err
	}
	return s.estimate(ctx, p.Item, body)
}

// SendNFTTransfer signs and broadcasts the transfer. fee is the
// previously obtained estimate and may be nil when none was made.
func (s *Sender) SendNFTTransfer(ctx context.Context, p NFTTransferParams, passphrase []byte, fee *ton.FeeEstimate) error {
	body, err := p.body()
	if err != nil {
		return err
	}
	return s.send(ctx, p.Item, body, passphrase, fee)
}

// DNSRenewParams describes a domain expiration refresh.
type DNSRenewParams struct {
	// Domain is the domain item contract address.
	Domain *address.Address
	// QueryID is optional; nil defaults to zero.
	QueryID *tlb.QueryID
}

func (s *Sender) EstimateDNSRenew(ctx context.Context, p DNSRenewParams) (*ton.FeeEstimate, error) {
	return s.estimate(ctx, p.Domain, dns.BuildRenewPayload(p.QueryID))
}

func (s *Sender) SendDNSRenew(ctx context.Context, p DNSRenewParams, passphrase []byte, fee *ton.FeeEstimate) error {
	return s.send(ctx, p.Domain, dns.BuildRenewPayload(p.QueryID), passphrase, fee)
}

// DNSLinkParams describes linking a domain's wallet record to an
// address, or dropping the record when Target is nil.
type DNSLinkParams struct {
	Domain  *address.Address
	Target  *address.Address
	QueryID *tlb.QueryID
}

func (s *Sender) EstimateDNSLink(ctx context.Context, p DNSLinkParams) (*ton.FeeEstimate, error) {
	return s.estimate(ctx, p.Domain, dns.BuildLinkWalletPayload(p.QueryID, p.Target))
}

func (s *Sender) SendDNSLink(ctx context.Context, p DNSLinkParams, passphrase []byte, fee *ton.FeeEstimate) error {
	return s.send(ctx, p.Domain, dns.BuildLinkWalletPayload(p.QueryID, p.Target), passphrase, fee)
}

// estimate runs the weak preflight, assembles the message with the
// zero placeholder key and submits it to the estimation endpoint.
func (s *Sender) estimate(ctx context.Context, dst *address.Address, body *cell.Cell) (*ton.FeeEstimate, error) {
	if err := s.checkServiceTime(ctx); err != nil {
		return nil, err
	}

	st, err := s.api.GetAccountState(ctx, s.state.Address)
	if err != nil {
		return nil, fmt.Errorf("failed to get account state: %w", err)
	}

	if err = checkPositiveBalance(st); err != nil {
		return nil, err
	}

	ext, err := wallet.EstimateExternal(s.state, st.Seqno, dst, tlb.FromNanoTON(s.minAttach), body)
	if err != nil {
		return nil, fmt.Errorf("failed to assemble message: %w", err)
	}

	return s.est.EstimateFee(ctx, ext)
}

// send runs the strict preflight, retrieves the key, nets the final
// amount against the estimate and broadcasts the signed message.
func (s *Sender) send(ctx context.Context, dst *address.Address, body *cell.Cell, passphrase []byte, fee *ton.FeeEstimate) error {
	if err := s.checkServiceTime(ctx); err != nil {
		return err
	}

	words, err := s.store.GetSecret(s.state.PublicKey, passphrase)
	if err != nil {
		return err
	}

	key, err := wallet.FromSeed(words)
	if err != nil {
		return fmt.Errorf("failed to derive key: %w", err)
	}
	if !bytes.Equal(key.Public().(ed25519.PublicKey), s.state.PublicKey) {
		return ErrKeyMismatch
	}

	st, err := s.api.GetAccountState(ctx, s.state.Address)
	if err != nil {
		return fmt.Errorf("failed to get account state: %w", err)
	}

	final, total, err := s.netAmount(fee)
	if err != nil {
		return err
	}

	if err = checkSufficientBalance(st, total); err != nil {
		return err
	}

	ext, err := wallet.SignExternal(s.state, st.Seqno, key, dst, tlb.FromNanoTON(final), body)
	if err != nil {
		return fmt.Errorf("failed to assemble message: %w", err)
	}

	return s.bc.SendMessage(ctx, ext)
}

// netAmount nets the estimated extra cost against the protocol
// minimum. The attached value is clamped to the minimum from below,
// while the balance comparison total re-adds the extra, so a refund
// (negative extra) raises the attached value without raising the
// total. The order of these steps matters: changing it underfunds
// transactions.
func (s *Sender) netAmount(fee *ton.FeeEstimate) (final, total *big.Int, err error) {
	extra := fee.TotalExtra()

	final = new(big.Int).Sub(s.minAttach, extra)
	if final.Cmp(s.minAttach) < 0 {
		final = new(big.Int).Set(s.minAttach)
	}

	if final.Sign() <= 0 {
		return nil, nil, ErrInvalidAmount
	}

	total = new(big.Int).Add(final, extra)
	return final, total, nil
}
