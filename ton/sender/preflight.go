package sender

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/opencove/tonsend/ton"
)

// defined this way to mock in tests
var timeNow = time.Now

// checkServiceTime verifies the remote service is alive and its clock
// is within tolerance of ours. Every operation runs it first: a dead
// or skewed service would produce messages that expire or never land.
func (s *Sender) checkServiceTime(ctx context.Context) error {
	now, err := s.api.GetServiceTime(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	if now == 0 {
		return fmt.Errorf("%w: no time attestation", ErrServiceUnavailable)
	}

	skew := timeNow().UTC().Unix() - int64(now)
	if skew < 0 {
		skew = -skew
	}
	if time.Duration(skew)*time.Second > s.timeTolerance {
		return fmt.Errorf("%w: clock skew %ds over tolerance", ErrServiceUnavailable, skew)
	}

	return nil
}

// checkPositiveBalance is the weak guard for estimation paths, where
// the real cost is not yet known: anything spendable passes.
func checkPositiveBalance(st *ton.AccountState) error {
	if st.Balance.Nano().Sign() <= 0 {
		return ErrEmptyBalance
	}
	return nil
}

// checkSufficientBalance is the strict guard for send paths, run once
// the final total is known.
func checkSufficientBalance(st *ton.AccountState, total *big.Int) error {
	if st.Balance.Nano().Cmp(total) < 0 {
		return fmt.Errorf("%w: need %s, have %s", ErrInsufficientBalance, total, st.Balance.Nano())
	}
	return nil
}
