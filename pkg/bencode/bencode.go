// Package bencode implements the small subset of the BitTorrent
// bencoding needed to produce the byte-exact BEP-44 signing payload
// described in spec.md §6: a canonical dictionary encoding of the
// pointer record's "v" value, and the "3:seqi{seq}e1:v{v}" concatenation
// that DHT PUT signs.
//
// No bencode library appears anywhere in the example corpus (checked
// across all six pack repos and other_examples/), so this is implemented
// directly against the stdlib per DESIGN.md.
package bencode

import (
	"bytes"
	"fmt"
	"sort"
)

// Dict is a bencode dictionary value. It is an unordered map; EncodeDict
// writes its keys lexicographically sorted; String/Int/Bytes are the
// only value kinds the pointer record needs.
type Dict map[string]any

// EncodeDict serializes d as a bencoded dictionary "d...e" with keys
// sorted lexicographically, as BEP-44 requires for its "v" value.
func EncodeDict(d Dict) ([]byte, error) {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var buf bytes.Buffer
	buf.WriteByte('d')
	for _, k := range keys {
		if err := encodeString(&buf, k); err != nil {
			return nil, err
		}
		if err := encodeValue(&buf, d[k]); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('e')
	return buf.Bytes(), nil
}

func encodeValue(buf *bytes.Buffer, v any) error {
	switch t := v.(type) {
	case string:
		return encodeString(buf, t)
	case []byte:
		return encodeBytes(buf, t)
	case int:
		fmt.Fprintf(buf, "i%de", t)
		return nil
	case int64:
		fmt.Fprintf(buf, "i%de", t)
		return nil
	case uint64:
		fmt.Fprintf(buf, "i%de", t)
		return nil
	case Dict:
		b, err := EncodeDict(t)
		if err != nil {
			return err
		}
		buf.Write(b)
		return nil
	default:
		return fmt.Errorf("bencode: unsupported value type %T", v)
	}
}

func encodeString(buf *bytes.Buffer, s string) error {
	fmt.Fprintf(buf, "%d:", len(s))
	buf.WriteString(s)
	return nil
}

func encodeBytes(buf *bytes.Buffer, b []byte) error {
	fmt.Fprintf(buf, "%d:", len(b))
	buf.Write(b)
	return nil
}

// EncodeSeqV builds the "3:seqi{seq}e1:v{v}" concatenation that a BEP-44
// mutable-put signature covers, given the already-bencoded "v" dictionary.
func EncodeSeqV(seq uint64, vEncoded []byte) []byte {
	var buf bytes.Buffer
	buf.WriteString("3:seq")
	fmt.Fprintf(&buf, "i%de", seq)
	buf.WriteString("1:v")
	buf.Write(vEncoded)
	return buf.Bytes()
}
