package wallet

import (
	"bytes"
	"crypto/ed25519"
	"testing"
	"time"

	"github.com/opencove/tonsend/address"
	"github.com/opencove/tonsend/tlb"
	"github.com/opencove/tonsend/tvm/cell"
)

func testState(t *testing.T, pub ed25519.PublicKey) State {
	t.Helper()
	addr, err := address.ParseAddr("EQCD39VS5jcptHL8vMjEXrzGaRcCVYto7HUn4bpAOg8xqB2N")
	if err != nil {
		t.Fatal(err)
	}
	return State{PublicKey: pub, Address: addr}
}

func fixedTime(t *testing.T) {
	t.Helper()
	timeNow = func() time.Time { return time.Unix(1700000000, 0) }
	t.Cleanup(func() { timeNow = time.Now })
}

func TestSignExternal(t *testing.T) {
	fixedTime(t)

	pub, key, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatal(err)
	}

	st := testState(t, pub)
	dst, err := address.ParseAddr("EQDEGeK4o7bNgazTln27r0RC4YcOmerzIni3gUpsyqxfgMWk")
	if err != nil {
		t.Fatal(err)
	}

	body := cell.BeginCell().MustStoreUInt(0, 32).MustStoreStringSnake("test").EndCell()

	ext, err := SignExternal(st, 3, key, dst, tlb.FromNanoTONU(50000000), body)
	if err != nil {
		t.Fatal(err)
	}

	if !ext.Msg.DstAddr.Equals(st.Address) {
		t.Fatal("external message must target the wallet itself")
	}

	sigView := ext.Msg.Body.BeginParse()
	sig := sigView.MustLoadSlice(512)

	payload, err := sigView.ToCell()
	if err != nil {
		t.Fatal(err)
	}
	if !ed25519.Verify(pub, payload.Hash(), sig) {
		t.Fatal("signature does not cover the signing payload")
	}

	s := ext.Msg.Body.BeginParse()
	s.MustLoadSlice(512)

	if sub := s.MustLoadUInt(32); sub != DefaultSubwallet {
		t.Fatal("zero subwallet should default, got", sub)
	}
	if vu := s.MustLoadUInt(32); vu != 1700000000+3*60 {
		t.Fatal("valid until not eq:", vu)
	}
	if seqno := s.MustLoadUInt(32); seqno != 3 {
		t.Fatal("seqno not eq:", seqno)
	}
	if mode := s.MustLoadUInt(8); mode != PayGasSeparately+IgnoreErrors {
		t.Fatal("mode not eq:", mode)
	}

	intMsg, err := s.LoadRef()
	if err != nil {
		t.Fatal(err)
	}
	if intMsg.MustLoadBoolBit() {
		t.Fatal("wrapped message must be internal")
	}
}

func TestEstimateExternalShape(t *testing.T) {
	fixedTime(t)

	pub, key, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatal(err)
	}

	st := testState(t, pub)
	dst, err := address.ParseAddr("EQDEGeK4o7bNgazTln27r0RC4YcOmerzIni3gUpsyqxfgMWk")
	if err != nil {
		t.Fatal(err)
	}

	body := cell.BeginCell().MustStoreUInt(7, 32).EndCell()

	signed, err := SignExternal(st, 1, key, dst, tlb.FromNanoTONU(1), body)
	if err != nil {
		t.Fatal(err)
	}
	estimated, err := EstimateExternal(st, 1, dst, tlb.FromNanoTONU(1), body)
	if err != nil {
		t.Fatal(err)
	}

	// the placeholder key changes only the 512 signature bits
	ss := signed.Msg.Body.BeginParse()
	es := estimated.Msg.Body.BeginParse()

	sigA := ss.MustLoadSlice(512)
	sigB := es.MustLoadSlice(512)
	if bytes.Equal(sigA, sigB) {
		t.Fatal("real and placeholder signatures should differ")
	}

	restA, err := ss.ToCell()
	if err != nil {
		t.Fatal(err)
	}
	restB, err := es.ToCell()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(restA.Hash(), restB.Hash()) {
		t.Fatal("estimation must reproduce the signed structure exactly")
	}
}

func TestSignExternalNilKey(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatal(err)
	}
	st := testState(t, pub)

	if _, err = SignExternal(st, 0, nil, st.Address, tlb.FromNanoTONU(1), nil); err != ErrNilKey {
		t.Fatal("expected nil key error, got", err)
	}

	st.Address = nil
	if _, err = EstimateExternal(st, 0, nil, tlb.FromNanoTONU(1), nil); err != ErrNoWallet {
		t.Fatal("expected no wallet error, got", err)
	}
}
