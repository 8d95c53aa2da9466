package cell

import (
	"encoding/binary"
	"math/big"

	"github.com/opencove/tonsend/address"
)

// Builder is an append-only bit writer. Payloads built with it are
// limited to 1023 bits and a single child reference, which is the
// profile every outgoing wallet payload fits into.
type Builder struct {
	bitsSz uint
	data   []byte

	refs []*Cell
}

func BeginCell() *Builder {
	return &Builder{}
}

func (b *Builder) MustStoreUInt(value uint64, sz uint) *Builder {
	err := b.StoreUInt(value, sz)
	if err != nil {
		panic(err)
	}
	return b
}

func (b *Builder) StoreUInt(value uint64, sz uint) error {
	if sz > 64 {
		return b.StoreBigUInt(new(big.Int).SetUint64(value), sz)
	}

	if sz < 64 && value >= 1<<sz {
		return ErrTooBigValue
	}

	value <<= 64 - sz
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, value)

	return b.StoreSlice(buf, sz)
}

func (b *Builder) MustStoreBigUInt(value *big.Int, sz uint) *Builder {
	err := b.StoreBigUInt(value, sz)
	if err != nil {
		panic(err)
	}
	return b
}

func (b *Builder) StoreBigUInt(value *big.Int, sz uint) error {
	if sz > 256 {
		return ErrTooBigSize
	}

	if value.Sign() == -1 {
		return ErrNegative
	}

	if uint(value.BitLen()) > sz {
		return ErrTooBigValue
	}

	return b.storeBig(value, sz)
}

func (b *Builder) storeBig(value *big.Int, sz uint) error {
	bytes := value.Bytes()

	partByte := 0
	if sz%8 != 0 {
		partByte = 1
	}
	bytesToUse := (int(sz) / 8) + partByte

	if len(bytes) < bytesToUse {
		// add zero bits to fit requested size
		bytes = append(make([]byte, bytesToUse-len(bytes)), bytes...)
	}

	// move bits to the left side of the bytes when size is not byte aligned
	if offset := sz % 8; offset > 0 {
		add := byte(0)
		for i := len(bytes) - 1; i >= 0; i-- {
			toMove := bytes[i] & (0xFF << offset)
			bytes[i] <<= 8 - offset
			bytes[i] += add
			add = toMove >> offset
		}
	}

	return b.StoreSlice(bytes, sz)
}

func (b *Builder) MustStoreBoolBit(value bool) *Builder {
	err := b.StoreBoolBit(value)
	if err != nil {
		panic(err)
	}
	return b
}

func (b *Builder) StoreBoolBit(value bool) error {
	var i uint64
	if value {
		i = 1
	}
	return b.StoreUInt(i, 1)
}

func (b *Builder) MustStoreCoins(value uint64) *Builder {
	err := b.StoreCoins(value)
	if err != nil {
		panic(err)
	}
	return b
}

func (b *Builder) StoreCoins(value uint64) error {
	return b.StoreBigCoins(new(big.Int).SetUint64(value))
}

func (b *Builder) MustStoreBigCoins(value *big.Int) *Builder {
	err := b.StoreBigCoins(value)
	if err != nil {
		panic(err)
	}
	return b
}

// StoreBigCoins stores an amount as VarUInteger 16: a 4-bit byte length
// followed by the value itself.
func (b *Builder) StoreBigCoins(value *big.Int) error {
	if value.Sign() == -1 {
		return ErrNegative
	}

	ln := uint((value.BitLen() + 7) >> 3)
	if ln >= 16 {
		return ErrTooBigValue
	}

	if b.bitsSz+4+(ln*8) >= 1024 {
		return ErrNotFit1023
	}

	err := b.StoreUInt(uint64(ln), 4)
	if err != nil {
		return err
	}

	return b.StoreBigUInt(value, ln*8)
}

func (b *Builder) MustStoreAddr(addr *address.Address) *Builder {
	err := b.StoreAddr(addr)
	if err != nil {
		panic(err)
	}
	return b
}

// StoreAddr stores addr_std$10, or addr_none$00 for a nil address.
func (b *Builder) StoreAddr(addr *address.Address) error {
	if addr.IsAddrNone() {
		return b.StoreUInt(0b00, 2)
	}

	if b.bitsSz+2+1+8+256 >= 1024 {
		return ErrNotFit1023
	}

	err := b.StoreUInt(0b10, 2)
	if err != nil {
		return err
	}

	// anycast
	err = b.StoreBoolBit(false)
	if err != nil {
		return err
	}

	err = b.StoreUInt(uint64(uint8(addr.Workchain())), 8)
	if err != nil {
		return err
	}

	return b.StoreSlice(addr.Data(), 256)
}

func (b *Builder) MustStoreRef(ref *Cell) *Builder {
	err := b.StoreRef(ref)
	if err != nil {
		panic(err)
	}
	return b
}

func (b *Builder) StoreRef(ref *Cell) error {
	if ref == nil {
		return ErrRefCannotBeNil
	}

	if len(b.refs) >= maxRefs {
		return ErrTooMuchRefs
	}

	b.refs = append(b.refs, ref)

	return nil
}

func (b *Builder) MustStoreMaybeRef(ref *Cell) *Builder {
	err := b.StoreMaybeRef(ref)
	if err != nil {
		panic(err)
	}
	return b
}

// StoreMaybeRef stores a presence bit, followed by the ref when it is
// not nil. Costs a single bit for the absent case instead of an empty
// child cell.
func (b *Builder) StoreMaybeRef(ref *Cell) error {
	if ref == nil {
		return b.StoreUInt(0, 1)
	}

	// early checks to do both stores atomically
	if len(b.refs) >= maxRefs {
		return ErrTooMuchRefs
	}
	if b.bitsSz+1 >= 1024 {
		return ErrNotFit1023
	}

	b.MustStoreUInt(1, 1).MustStoreRef(ref)
	return nil
}

func (b *Builder) MustStoreSlice(bytes []byte, sz uint) *Builder {
	err := b.StoreSlice(bytes, sz)
	if err != nil {
		panic(err)
	}
	return b
}

func (b *Builder) StoreSlice(bytes []byte, sz uint) error {
	if sz == 0 {
		return nil
	}

	oneMore := uint(0)
	if sz%8 > 0 {
		oneMore = 1
	}

	if uint(len(bytes)) < sz/8+oneMore {
		return ErrSmallSlice
	}

	if b.bitsSz+sz >= 1024 {
		return ErrNotFit1023
	}

	leftSz := sz
	unusedBits := 8 - (b.bitsSz % 8)

	offset := 0
	for leftSz > 0 {
		bits := uint(8)
		if leftSz < 8 {
			bits = leftSz
		}
		leftSz -= bits

		// if the previous byte was not filled, move bits to fill it
		if unusedBits != 8 {
			b.data[len(b.data)-1] += bytes[offset] >> (8 - unusedBits)
			if bits > unusedBits {
				b.data = append(b.data, bytes[offset]<<unusedBits)
			}
			offset++
			continue
		}

		// clear the unused part of the byte if needed
		b.data = append(b.data, bytes[offset]&(0xFF<<(8-bits)))
		offset++
	}

	b.bitsSz += sz

	return nil
}

func (b *Builder) MustStoreStringSnake(str string) *Builder {
	err := b.StoreStringSnake(str)
	if err != nil {
		panic(err)
	}
	return b
}

func (b *Builder) StoreStringSnake(str string) error {
	return b.StoreBinarySnake([]byte(str))
}

// StoreBinarySnake stores arbitrary-length data as a chain of cells,
// each holding up to 127 bytes and referencing the continuation.
func (b *Builder) StoreBinarySnake(data []byte) error {
	var f func(space int) (*Builder, error)
	f = func(space int) (*Builder, error) {
		if len(data) < space {
			space = len(data)
		}

		c := BeginCell()
		err := c.StoreSlice(data, uint(space)*8)
		if err != nil {
			return nil, err
		}

		data = data[space:]

		if len(data) > 0 {
			ref, err := f(127)
			if err != nil {
				return nil, err
			}

			err = c.StoreRef(ref.EndCell())
			if err != nil {
				return nil, err
			}
		}

		return c, nil
	}

	snake, err := f(127 - 4)
	if err != nil {
		return err
	}

	return b.StoreBuilder(snake)
}

func (b *Builder) MustStoreBuilder(builder *Builder) *Builder {
	err := b.StoreBuilder(builder)
	if err != nil {
		panic(err)
	}
	return b
}

func (b *Builder) StoreBuilder(builder *Builder) error {
	if len(b.refs)+len(builder.refs) > maxRefs {
		return ErrTooMuchRefs
	}

	if b.bitsSz+builder.bitsSz >= 1024 {
		return ErrNotFit1023
	}

	b.refs = append(b.refs, builder.refs...)
	b.MustStoreSlice(builder.data, builder.bitsSz)

	return nil
}

func (b *Builder) RefsUsed() int {
	return len(b.refs)
}

func (b *Builder) BitsUsed() uint {
	return b.bitsSz
}

func (b *Builder) BitsLeft() uint {
	return 1023 - b.bitsSz
}

func (b *Builder) Copy() *Builder {
	data := append([]byte{}, b.data...)

	return &Builder{
		bitsSz: b.bitsSz,
		data:   data,
		refs:   append([]*Cell{}, b.refs...),
	}
}

// EndCell finalizes the builder into an immutable Cell.
func (b *Builder) EndCell() *Cell {
	data := append([]byte{}, b.data...)

	return &Cell{
		bitsSz: b.bitsSz,
		data:   data,
		refs:   append([]*Cell{}, b.refs...),
	}
}
