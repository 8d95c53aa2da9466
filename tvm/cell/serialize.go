package cell

import (
	"encoding/binary"
	"errors"
	"hash/crc32"
	"math"
)

var (
	ErrTooBigValue             = errors.New("too big value")
	ErrNegative                = errors.New("value should be non negative")
	ErrRefCannotBeNil          = errors.New("ref cannot be nil")
	ErrSmallSlice              = errors.New("too small slice for this size")
	ErrTooBigSize              = errors.New("too big size")
	ErrTooMuchRefs             = errors.New("too much refs")
	ErrNotFit1023              = errors.New("cell data size should fit into 1023 bits")
	ErrNoMoreRefs              = errors.New("no more refs exists")
	ErrAddressTypeNotSupported = errors.New("address type is not supported")
	ErrNotEnoughData           = errors.New("not enough data in cell")
	ErrInvalidBOC              = errors.New("invalid boc")
	ErrBOCChecksum             = errors.New("boc checksum not matches")
	ErrTooManyRootCells        = errors.New("should have only one root cell")
)

var magic = []byte{0xB5, 0xEE, 0x9C, 0x72}

func (c *Cell) ToBOC() []byte {
	return c.ToBOCWithFlags(true)
}

// ToBOCWithFlags serializes the cell tree to the standard bag-of-cells
// format, bit-exact with what nodes accept on the wire.
func (c *Cell) ToBOCWithFlags(withCRC bool) []byte {
	orderCells := flattenIndex(c)

	var payload []byte
	for i := 0; i < len(orderCells); i++ {
		payload = append(payload, orderCells[i].serialize(false)...)
	}

	// bytes needed to store len of payload
	sizeBits := math.Log2(float64(len(payload)) + 1)
	sizeBytes := byte(math.Ceil(sizeBits / 8))
	if sizeBytes == 0 {
		sizeBytes = 1
	}

	// bytes needed to store num of cells
	cellSizeBits := math.Log2(float64(len(orderCells)) + 1)
	cellSizeBytes := byte(math.Ceil(cellSizeBits / 8))
	if cellSizeBytes == 0 {
		cellSizeBytes = 1
	}

	// has_idx 1bit, hash_crc32 1bit, has_cache_bits 1bit, flags 2bit, size_bytes 3 bit
	flags := byte(0b0_0_0_00_000)
	if withCRC {
		flags |= 0b0_1_0_00_000
	}
	flags |= cellSizeBytes

	var data []byte

	data = append(data, magic...)
	data = append(data, flags)

	data = append(data, sizeBytes)

	// cells num
	data = append(data, dynamicIntBytes(uint64(len(orderCells)), int(cellSizeBytes))...)

	// roots num (only 1 supported)
	data = append(data, dynamicIntBytes(1, int(cellSizeBytes))...)

	// complete BOCs = 0
	data = append(data, dynamicIntBytes(0, int(cellSizeBytes))...)

	// len of payload
	data = append(data, dynamicIntBytes(uint64(len(payload)), int(sizeBytes))...)

	// root index
	data = append(data, dynamicIntBytes(0, int(cellSizeBytes))...)
	data = append(data, payload...)

	if withCRC {
		checksum := make([]byte, 4)
		binary.LittleEndian.PutUint32(checksum, crc32.Checksum(data, crc32.MakeTable(crc32.Castagnoli)))

		data = append(data, checksum...)
	}

	return data
}

// flattenIndex orders unique cells root-first and assigns their boc index.
func flattenIndex(root *Cell) []*Cell {
	var indexed []*Cell
	var offset int
	hashIndex := map[string]int{}

	var doIndex func(cells []*Cell)
	doIndex = func(cells []*Cell) {
		var next []*Cell
		for _, c := range cells {
			h := string(c.Hash())

			id, ok := hashIndex[h]
			if !ok {
				id = offset
				offset++

				hashIndex[h] = id

				indexed = append(indexed, c)
				next = append(next, c.refs...)
			}
			c.index = id
		}

		if len(next) > 0 {
			doIndex(next)
		}
	}
	doIndex([]*Cell{root})

	return indexed
}

// serialize emits descriptors + padded payload, followed by ref indexes
// for boc form, or ref depths and hashes for representation-hash form.
func (c *Cell) serialize(forHash bool) []byte {
	payload := append([]byte{}, c.data...)

	unusedBits := 8 - (c.bitsSz % 8)
	if unusedBits != 8 {
		// completion tag for a partially filled last byte
		payload[len(payload)-1] += 1 << (unusedBits - 1)
	}

	data := append(c.descriptors(), payload...)

	if !forHash {
		for _, ref := range c.refs {
			data = append(data, byte(ref.index))
		}
	} else {
		for _, ref := range c.refs {
			data = append(data, make([]byte, 2)...)
			binary.BigEndian.PutUint16(data[len(data)-2:], uint16(ref.maxDepth()))
		}
		for _, ref := range c.refs {
			data = append(data, ref.Hash()...)
		}
	}

	return data
}

func (c *Cell) descriptors() []byte {
	ceilBytes := c.bitsSz / 8
	if c.bitsSz%8 != 0 {
		ceilBytes++
	}

	return []byte{byte(len(c.refs)), byte(ceilBytes + c.bitsSz/8)}
}

func dynamicIntBytes(val uint64, sz int) []byte {
	data := make([]byte, 8)
	binary.BigEndian.PutUint64(data, val)

	return data[8-sz:]
}
