// Package dns builds change-record payloads for domain item contracts.
package dns

import (
	"crypto/sha256"

	"github.com/opencove/tonsend/address"
	"github.com/opencove/tonsend/tlb"
	"github.com/opencove/tonsend/tvm/cell"
)

// OpChangeRecord is the change-record operation tag of the domain
// item contract ABI.
const OpChangeRecord = 0x4eb1f0f9

// category marker of a contract-address record value
// https://github.com/ton-blockchain/TEPs/blob/master/text/0081-dns-standard.md#dns-records
const _CategoryContractAddr = 0x9fd3

// BuildRenewPayload encodes a record change carrying no new value,
// which refreshes the domain's expiration. A nil queryID defaults
// to zero.
func BuildRenewPayload(queryID *tlb.QueryID) *cell.Cell {
	return cell.BeginCell().
		MustStoreUInt(OpChangeRecord, 32).
		MustStoreUInt(queryID.Or(0), 64).
		MustStoreSlice(make([]byte, 32), 256).
		EndCell()
}

// BuildLinkWalletPayload encodes a change of the domain's "wallet"
// record. A nil target drops the record: the payload then carries no
// sub-cell at all. A nil queryID defaults to zero.
func BuildLinkWalletPayload(queryID *tlb.QueryID, target *address.Address) *cell.Cell {
	h := sha256.Sum256([]byte("wallet"))

	b := cell.BeginCell().
		MustStoreUInt(OpChangeRecord, 32).
		MustStoreUInt(queryID.Or(0), 64).
		MustStoreSlice(h[:], 256)

	if !target.IsAddrNone() {
		record := cell.BeginCell().
			MustStoreUInt(_CategoryContractAddr, 16).
			MustStoreAddr(target).
			MustStoreUInt(0, 8).
			EndCell()

		b.MustStoreRef(record)
	}

	return b.EndCell()
}
