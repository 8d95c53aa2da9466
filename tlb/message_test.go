package tlb

import (
	"testing"

	"github.com/opencove/tonsend/address"
	"github.com/opencove/tonsend/tvm/cell"
)

func mustAddr(t *testing.T, s string) *address.Address {
	t.Helper()
	a, err := address.ParseAddr(s)
	if err != nil {
		t.Fatal(err)
	}
	return a
}

func TestInternalMessageToCell(t *testing.T) {
	dst := mustAddr(t, "EQCD39VS5jcptHL8vMjEXrzGaRcCVYto7HUn4bpAOg8xqB2N")
	body := cell.BeginCell().MustStoreUInt(0xDEAD, 32).EndCell()

	msg := InternalMessage{
		IHRDisabled: true,
		Bounce:      true,
		DstAddr:     dst,
		Amount:      FromNanoTONU(50000000),
		Body:        body,
	}

	c, err := msg.ToCell()
	if err != nil {
		t.Fatal(err)
	}

	s := c.BeginParse()

	if s.MustLoadBoolBit() {
		t.Fatal("int_msg_info tag must be 0")
	}
	if !s.MustLoadBoolBit() {
		t.Fatal("ihr disabled flag lost")
	}
	if !s.MustLoadBoolBit() {
		t.Fatal("bounce flag lost")
	}
	if s.MustLoadBoolBit() {
		t.Fatal("bounced must be false")
	}

	src := s.MustLoadAddr()
	if !src.IsAddrNone() {
		t.Fatal("src must be addr none")
	}
	if !s.MustLoadAddr().Equals(dst) {
		t.Fatal("dst addr not eq")
	}

	if amt := s.MustLoadBigCoins(); amt.Uint64() != 50000000 {
		t.Fatal("amount not eq:", amt)
	}

	if s.MustLoadBoolBit() {
		t.Fatal("extra currencies must be empty")
	}
	if s.MustLoadCoins() != 0 || s.MustLoadCoins() != 0 {
		t.Fatal("fees must be zero")
	}
	if s.MustLoadUInt(64) != 0 || s.MustLoadUInt(32) != 0 {
		t.Fatal("lt and time must be zero")
	}
	if s.MustLoadBoolBit() {
		t.Fatal("state init must be absent")
	}

	bodyRef, err := s.LoadMaybeRef()
	if err != nil {
		t.Fatal(err)
	}
	if bodyRef == nil || bodyRef.MustLoadUInt(32) != 0xDEAD {
		t.Fatal("body ref lost")
	}

	if s.BitsLeft() != 0 {
		t.Fatal("unexpected trailing bits:", s.BitsLeft())
	}
}

func TestInternalMessageNoBody(t *testing.T) {
	msg := InternalMessage{
		DstAddr: mustAddr(t, "EQCD39VS5jcptHL8vMjEXrzGaRcCVYto7HUn4bpAOg8xqB2N"),
		Amount:  FromNanoTONU(1),
	}

	c, err := msg.ToCell()
	if err != nil {
		t.Fatal(err)
	}

	if c.RefsNum() != 0 {
		t.Fatal("message without body must have no refs")
	}

	msg.DstAddr = nil
	if _, err = msg.ToCell(); err != ErrNoDestination {
		t.Fatal("expected no destination error, got", err)
	}
}

func TestExternalMessageToCell(t *testing.T) {
	dst := mustAddr(t, "EQCD39VS5jcptHL8vMjEXrzGaRcCVYto7HUn4bpAOg8xqB2N")
	body := cell.BeginCell().MustStoreUInt(7, 8).EndCell()

	msg := ExternalMessage{DstAddr: dst, Body: body}

	c, err := msg.ToCell()
	if err != nil {
		t.Fatal(err)
	}

	s := c.BeginParse()

	if tag := s.MustLoadUInt(2); tag != 0b10 {
		t.Fatal("ext_in_msg_info tag not eq:", tag)
	}
	if !s.MustLoadAddr().IsAddrNone() {
		t.Fatal("src must be addr none")
	}
	if !s.MustLoadAddr().Equals(dst) {
		t.Fatal("dst addr not eq")
	}
	if s.MustLoadCoins() != 0 {
		t.Fatal("import fee must be zero")
	}
	if s.MustLoadBoolBit() {
		t.Fatal("state init must be absent")
	}

	bodyRef, err := s.LoadMaybeRef()
	if err != nil {
		t.Fatal(err)
	}
	if bodyRef == nil || bodyRef.MustLoadUInt(8) != 7 {
		t.Fatal("body ref lost")
	}

	msg.Body = nil
	if _, err = msg.ToCell(); err == nil {
		t.Fatal("expected error for missing body")
	}
}
