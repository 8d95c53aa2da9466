package nft

import (
	"bytes"
	"testing"
	"time"

	"github.com/opencove/tonsend/address"
	"github.com/opencove/tonsend/tlb"
	"github.com/opencove/tonsend/tvm/cell"
)

const testAddr = "EQCD39VS5jcptHL8vMjEXrzGaRcCVYto7HUn4bpAOg8xqB2N"
const testAddr2 = "EQDEGeK4o7bNgazTln27r0RC4YcOmerzIni3gUpsyqxfgMWk"

func TestBuildTransferPayload(t *testing.T) {
	newOwner, err := address.ParseAddr(testAddr)
	if err != nil {
		t.Fatal(err)
	}
	responseTo, err := address.ParseAddr(testAddr2)
	if err != nil {
		t.Fatal(err)
	}

	qid := tlb.NewQueryID(42)
	fwd := cell.BeginCell().MustStoreUInt(0, 32).MustStoreStringSnake("hi").EndCell()

	c, err := BuildTransferPayload(qid, newOwner, responseTo, tlb.FromNanoTONU(1), fwd)
	if err != nil {
		t.Fatal(err)
	}

	s := c.BeginParse()

	if op := s.MustLoadUInt(32); op != OpTransfer {
		t.Fatalf("op not eq: %x", op)
	}
	if id := s.MustLoadUInt(64); id != 42 {
		t.Fatal("query id not eq:", id)
	}
	if !s.MustLoadAddr().Equals(newOwner) {
		t.Fatal("new owner not eq")
	}
	if !s.MustLoadAddr().Equals(responseTo) {
		t.Fatal("response destination not eq")
	}
	if s.MustLoadBoolBit() {
		t.Fatal("custom payload must be absent")
	}
	if amt := s.MustLoadCoins(); amt != 1 {
		t.Fatal("forward amount not eq:", amt)
	}

	fwdRef, err := s.LoadMaybeRef()
	if err != nil {
		t.Fatal(err)
	}
	if fwdRef == nil {
		t.Fatal("forward payload lost")
	}
	if fwdRef.MustLoadUInt(32) != 0 {
		t.Fatal("comment opcode lost")
	}
}

func TestBuildTransferPayloadDefaults(t *testing.T) {
	newOwner, err := address.ParseAddr(testAddr)
	if err != nil {
		t.Fatal(err)
	}

	timeNow = func() time.Time { return time.UnixMilli(1700000000123) }
	defer func() { timeNow = time.Now }()

	c, err := BuildTransferPayload(nil, newOwner, nil, tlb.FromNanoTONU(1), nil)
	if err != nil {
		t.Fatal(err)
	}

	s := c.BeginParse()
	s.MustLoadUInt(32)

	if id := s.MustLoadUInt(64); id != 1700000000123 {
		t.Fatal("nil query id should default to unix millis, got", id)
	}
	if !s.MustLoadAddr().Equals(newOwner) {
		t.Fatal("new owner not eq")
	}
	// nil responseTo falls back to the new owner
	if !s.MustLoadAddr().Equals(newOwner) {
		t.Fatal("response destination should default to new owner")
	}

	s.MustLoadBoolBit()
	s.MustLoadCoins()

	fwdRef, err := s.LoadMaybeRef()
	if err != nil {
		t.Fatal(err)
	}
	if fwdRef != nil {
		t.Fatal("forward payload must be absent")
	}
}

func TestBuildTransferPayloadDeterminism(t *testing.T) {
	newOwner, err := address.ParseAddr(testAddr)
	if err != nil {
		t.Fatal(err)
	}

	qid := tlb.NewQueryID(7)

	a, err := BuildTransferPayload(qid, newOwner, nil, tlb.FromNanoTONU(1), nil)
	if err != nil {
		t.Fatal(err)
	}
	b, err := BuildTransferPayload(qid, newOwner, nil, tlb.FromNanoTONU(1), nil)
	if err != nil {
		t.Fatal(err)
	}

	if !bytes.Equal(a.ToBOC(), b.ToBOC()) {
		t.Fatal("same query id must produce identical payloads")
	}
}

func TestBuildTransferPayloadNoOwner(t *testing.T) {
	if _, err := BuildTransferPayload(nil, nil, nil, tlb.FromNanoTONU(1), nil); err != ErrNoNewOwner {
		t.Fatal("expected missing owner error, got", err)
	}
}
