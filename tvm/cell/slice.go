package cell

import (
	"math/big"

	"github.com/opencove/tonsend/address"
)

// Slice is a reader over a cell's bits and refs.
type Slice struct {
	bitsSz   uint
	loadedSz uint
	data     []byte

	refs []*Cell
}

func (c *Slice) MustLoadUInt(sz uint) uint64 {
	r, err := c.LoadUInt(sz)
	if err != nil {
		panic(err)
	}
	return r
}

func (c *Slice) LoadUInt(sz uint) (uint64, error) {
	res, err := c.LoadBigUInt(sz)
	if err != nil {
		return 0, err
	}
	return res.Uint64(), nil
}

func (c *Slice) MustLoadBigUInt(sz uint) *big.Int {
	r, err := c.LoadBigUInt(sz)
	if err != nil {
		panic(err)
	}
	return r
}

func (c *Slice) LoadBigUInt(sz uint) (*big.Int, error) {
	if sz > 256 {
		return nil, ErrTooBigSize
	}

	b, err := c.LoadSlice(sz)
	if err != nil {
		return nil, err
	}

	// move bits to the right side of bytes when size is not byte aligned
	if offset := sz % 8; offset > 0 {
		for i := len(b) - 1; i >= 0; i-- {
			b[i] >>= 8 - offset
			if i > 0 {
				b[i] += b[i-1] << offset
			}
		}
	}

	return new(big.Int).SetBytes(b), nil
}

func (c *Slice) MustLoadBoolBit() bool {
	r, err := c.LoadBoolBit()
	if err != nil {
		panic(err)
	}
	return r
}

func (c *Slice) LoadBoolBit() (bool, error) {
	res, err := c.LoadUInt(1)
	if err != nil {
		return false, err
	}
	return res == 1, nil
}

func (c *Slice) MustLoadCoins() uint64 {
	r, err := c.LoadCoins()
	if err != nil {
		panic(err)
	}
	return r
}

func (c *Slice) LoadCoins() (uint64, error) {
	value, err := c.LoadBigCoins()
	if err != nil {
		return 0, err
	}
	return value.Uint64(), nil
}

func (c *Slice) MustLoadBigCoins() *big.Int {
	r, err := c.LoadBigCoins()
	if err != nil {
		panic(err)
	}
	return r
}

// LoadBigCoins reads a VarUInteger 16 amount.
func (c *Slice) LoadBigCoins() (*big.Int, error) {
	ln, err := c.LoadUInt(4)
	if err != nil {
		return nil, err
	}

	return c.LoadBigUInt(uint(ln) * 8)
}

func (c *Slice) MustLoadAddr() *address.Address {
	a, err := c.LoadAddr()
	if err != nil {
		panic(err)
	}
	return a
}

// LoadAddr reads addr_std$10 into an Address; addr_none$00 loads as nil.
func (c *Slice) LoadAddr() (*address.Address, error) {
	typ, err := c.LoadUInt(2)
	if err != nil {
		return nil, err
	}

	switch typ {
	case 0b00:
		return nil, nil
	case 0b10:
		// anycast, unused in this profile
		_, err = c.LoadBoolBit()
		if err != nil {
			return nil, err
		}

		wc, err := c.LoadUInt(8)
		if err != nil {
			return nil, err
		}

		data, err := c.LoadSlice(256)
		if err != nil {
			return nil, err
		}

		return address.NewAddress(int8(wc), data), nil
	}

	return nil, ErrAddressTypeNotSupported
}

func (c *Slice) MustLoadRef() *Slice {
	r, err := c.LoadRef()
	if err != nil {
		panic(err)
	}
	return r
}

func (c *Slice) LoadRef() (*Slice, error) {
	ref, err := c.LoadRefCell()
	if err != nil {
		return nil, err
	}
	return ref.BeginParse(), nil
}

func (c *Slice) LoadRefCell() (*Cell, error) {
	if len(c.refs) == 0 {
		return nil, ErrNoMoreRefs
	}
	ref := c.refs[0]
	c.refs = c.refs[1:]

	return ref, nil
}

func (c *Slice) MustLoadMaybeRef() *Slice {
	r, err := c.LoadMaybeRef()
	if err != nil {
		panic(err)
	}
	return r
}

// LoadMaybeRef reads the presence bit and the ref behind it,
// returning nil when the bit is 0.
func (c *Slice) LoadMaybeRef() (*Slice, error) {
	has, err := c.LoadBoolBit()
	if err != nil {
		return nil, err
	}

	if !has {
		return nil, nil
	}

	return c.LoadRef()
}

func (c *Slice) MustLoadSlice(sz uint) []byte {
	s, err := c.LoadSlice(sz)
	if err != nil {
		panic(err)
	}
	return s
}

// LoadSlice reads sz bits, left aligned in the returned bytes.
func (c *Slice) LoadSlice(sz uint) ([]byte, error) {
	if c.bitsSz-c.loadedSz < sz {
		return nil, ErrNotEnoughData
	}

	if sz == 0 {
		return []byte{}, nil
	}

	out := make([]byte, (sz+7)/8)
	for i := uint(0); i < sz; i++ {
		pos := c.loadedSz + i
		bit := (c.data[pos/8] >> (7 - pos%8)) & 1
		out[i/8] |= bit << (7 - i%8)
	}
	c.loadedSz += sz

	return out, nil
}

func (c *Slice) MustLoadBinarySnake() []byte {
	s, err := c.LoadBinarySnake()
	if err != nil {
		panic(err)
	}
	return s
}

// LoadBinarySnake reads a chain of cells written by StoreBinarySnake.
func (c *Slice) LoadBinarySnake() ([]byte, error) {
	var data []byte

	cur := c
	for {
		if left := cur.BitsLeft(); left > 0 {
			if left%8 != 0 {
				return nil, ErrNotEnoughData
			}

			part, err := cur.LoadSlice(left)
			if err != nil {
				return nil, err
			}
			data = append(data, part...)
		}

		if len(cur.refs) == 0 {
			return data, nil
		}

		next, err := cur.LoadRef()
		if err != nil {
			return nil, err
		}
		cur = next
	}
}

func (c *Slice) LoadStringSnake() (string, error) {
	data, err := c.LoadBinarySnake()
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (c *Slice) BitsLeft() uint {
	return c.bitsSz - c.loadedSz
}

func (c *Slice) RefsNum() int {
	return len(c.refs)
}

// RestBits returns all not yet loaded bits.
func (c *Slice) RestBits() (uint, []byte, error) {
	left := c.BitsLeft()
	data, err := c.LoadSlice(left)
	return left, data, err
}

func (c *Slice) MustToCell() *Cell {
	cl, err := c.ToCell()
	if err != nil {
		panic(err)
	}
	return cl
}

// ToCell packs the remaining bits and refs back into a cell.
func (c *Slice) ToCell() (*Cell, error) {
	left := c.BitsLeft()
	data, err := c.LoadSlice(left)
	if err != nil {
		return nil, err
	}

	b := BeginCell()
	if err = b.StoreSlice(data, left); err != nil {
		return nil, err
	}

	for _, ref := range c.refs {
		if err = b.StoreRef(ref); err != nil {
			return nil, err
		}
	}

	return b.EndCell(), nil
}
