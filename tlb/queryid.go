package tlb

// QueryID is an explicit optional 64-bit operation query id. A nil
// *QueryID means "not supplied" and lets the encoder pick its default;
// an explicitly supplied zero stays zero.
type QueryID uint64

func NewQueryID(v uint64) *QueryID {
	q := QueryID(v)
	return &q
}

// Or returns the query id value, or def when unset.
func (q *QueryID) Or(def uint64) uint64 {
	if q == nil {
		return def
	}
	return uint64(*q)
}
