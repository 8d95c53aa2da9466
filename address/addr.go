package address

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sigurn/crc16"
)

// ErrBadFormat wraps every way an address string can be malformed.
// Parse never returns a partially valid address.
var ErrBadFormat = errors.New("invalid address format")

const (
	flagBounceable    = 0x11
	flagNonBounceable = 0x51
	flagTestnetOnly   = 0x80
)

var crcTable = crc16.MakeTable(crc16.CRC16_XMODEM)

// Address is a parsed standard account identifier: workchain and a
// 256-bit account id, plus display flags.
type Address struct {
	bounceable bool
	testnet    bool
	workchain  int8
	data       []byte
}

func NewAddress(workchain int8, data []byte) *Address {
	return &Address{
		bounceable: true,
		workchain:  workchain,
		data:       data,
	}
}

func MustParseAddr(addr string) *Address {
	a, err := ParseAddr(addr)
	if err != nil {
		panic(err)
	}
	return a
}

func ParseAddr(addr string) (*Address, error) {
	data, err := base64.RawURLEncoding.DecodeString(addr)
	if err != nil {
		// some sources emit standard base64
		data, err = base64.RawStdEncoding.DecodeString(addr)
		if err != nil {
			return nil, fmt.Errorf("%w: not base64: %v", ErrBadFormat, err)
		}
	}

	if len(data) != 36 {
		return nil, fmt.Errorf("%w: wrong length %d", ErrBadFormat, len(data))
	}

	checksum := binary.BigEndian.Uint16(data[34:])
	if crc16.Checksum(data[:34], crcTable) != checksum {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrBadFormat)
	}

	flags := data[0]
	a := &Address{
		testnet:   flags&flagTestnetOnly != 0,
		workchain: int8(data[1]),
		data:      append([]byte{}, data[2:34]...),
	}

	switch flags &^ flagTestnetOnly {
	case flagBounceable:
		a.bounceable = true
	case flagNonBounceable:
		a.bounceable = false
	default:
		return nil, fmt.Errorf("%w: unknown flags byte %x", ErrBadFormat, flags)
	}

	return a, nil
}

func (a *Address) String() string {
	if a.IsAddrNone() {
		return "NONE"
	}

	buf := make([]byte, 36)
	buf[0] = a.flagsByte()
	buf[1] = byte(a.workchain)
	copy(buf[2:34], a.data)
	binary.BigEndian.PutUint16(buf[34:], crc16.Checksum(buf[:34], crcTable))

	return base64.RawURLEncoding.EncodeToString(buf)
}

func (a *Address) flagsByte() byte {
	flags := byte(flagBounceable)
	if !a.bounceable {
		flags = flagNonBounceable
	}
	if a.testnet {
		flags |= flagTestnetOnly
	}
	return flags
}

// Bounce returns a copy with the bounceable display flag set to b.
func (a *Address) Bounce(b bool) *Address {
	x := a.Copy()
	x.bounceable = b
	return x
}

// Testnet returns a copy with the testnet-only display flag set to t.
func (a *Address) Testnet(t bool) *Address {
	x := a.Copy()
	x.testnet = t
	return x
}

func (a *Address) Copy() *Address {
	return &Address{
		bounceable: a.bounceable,
		testnet:    a.testnet,
		workchain:  a.workchain,
		data:       append([]byte{}, a.data...),
	}
}

func (a *Address) IsAddrNone() bool {
	return a == nil || len(a.data) == 0
}

func (a *Address) IsBounceable() bool {
	return a.bounceable
}

func (a *Address) IsTestnetOnly() bool {
	return a.testnet
}

func (a *Address) Workchain() int8 {
	return a.workchain
}

// Data returns the 256-bit account id.
func (a *Address) Data() []byte {
	return a.data
}

// Equals compares the raw representation, ignoring display flags.
func (a *Address) Equals(b *Address) bool {
	if a.IsAddrNone() || b.IsAddrNone() {
		return a.IsAddrNone() == b.IsAddrNone()
	}
	return a.workchain == b.workchain && bytes.Equal(a.data, b.data)
}

func (a *Address) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

func (a *Address) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	p, err := ParseAddr(s)
	if err != nil {
		return err
	}

	*a = *p
	return nil
}
