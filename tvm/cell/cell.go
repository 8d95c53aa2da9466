package cell

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// maxRefs is the number of children this profile allows per cell.
// Wallet operation payloads never need more than one.
const maxRefs = 1

// Cell is an immutable bit-packed node, finalized by Builder.EndCell.
type Cell struct {
	bitsSz uint
	index  int
	data   []byte

	refs []*Cell
}

func (c *Cell) BeginParse() *Slice {
	// copy data to keep cell immutable
	data := append([]byte{}, c.data...)

	return &Slice{
		bitsSz: c.bitsSz,
		data:   data,
		refs:   append([]*Cell{}, c.refs...),
	}
}

func (c *Cell) ToBuilder() *Builder {
	data := append([]byte{}, c.data...)

	return &Builder{
		bitsSz: c.bitsSz,
		data:   data,
		refs:   append([]*Cell{}, c.refs...),
	}
}

func (c *Cell) BitsSize() uint {
	return c.bitsSz
}

func (c *Cell) RefsNum() int {
	return len(c.refs)
}

func (c *Cell) Dump() string {
	return c.dump(0, false)
}

func (c *Cell) DumpBits() string {
	return c.dump(0, true)
}

func (c *Cell) dump(deep int, bin bool) string {
	sz, data := c.bitsSz, c.data

	var val string
	if bin {
		for _, n := range data {
			val += fmt.Sprintf("%08b", n)
		}
		if sz%8 != 0 {
			val = val[:len(val)-int(8-(sz%8))]
		}
	} else {
		val = hex.EncodeToString(data)
	}

	str := strings.Repeat("  ", deep) + fmt.Sprint(sz) + "[" + val + "]"
	if len(c.refs) > 0 {
		str += " -> {"
		for i, ref := range c.refs {
			str += "\n" + ref.dump(deep+1, bin)
			if i == len(c.refs)-1 {
				str += "\n"
			} else {
				str += ","
			}
		}
		str += strings.Repeat("  ", deep)
		return str + "}"
	}
	return str
}

// Hash returns the representation hash of the cell: sha256 over the
// descriptors, the padded payload, and the depth and hash of each ref.
func (c *Cell) Hash() []byte {
	hash := sha256.New()
	hash.Write(c.serialize(true))
	return hash.Sum(nil)
}

func (c *Cell) Sign(key ed25519.PrivateKey) []byte {
	return ed25519.Sign(key, c.Hash())
}

// depth of a leaf is 0, of a parent 1 + deepest child
func (c *Cell) maxDepth() int {
	d := 0
	for _, ref := range c.refs {
		if x := ref.maxDepth() + 1; x > d {
			d = x
		}
	}
	return d
}
