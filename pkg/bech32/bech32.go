// Package bech32 implements the minimal BIP-173 bech32 decoding needed to
// accept "npub1..." encoded relay public keys in ALLOWED_PUBKEYS (see
// SPEC_FULL.md §4). Only decoding to the 5-bit word form and the 5-bit to
// 8-bit regroup are implemented; the bridge never needs to emit bech32.
package bech32

import "strings"

const charset = "qpzry9x8gf2tvdw0s3jn54khce6mua7l"

var charsetRev = func() [128]int8 {
	var t [128]int8
	for i := range t {
		t[i] = -1
	}
	for i, c := range charset {
		t[c] = int8(i)
	}
	return t
}()

// Decode splits a bech32 string into its human-readable part and 5-bit-word
// data, verifying the checksum. Only the original bech32 checksum constant
// is accepted (the one npub uses); bech32m strings are rejected.
func Decode(bech string) (hrp string, data []byte, err error) {
	if len(bech) < 8 || len(bech) > 90 {
		return "", nil, ErrInvalidLength(len(bech))
	}
	lower := strings.ToLower(bech)
	upper := strings.ToUpper(bech)
	if bech != lower && bech != upper {
		return "", nil, ErrMixedCase{}
	}
	bech = lower
	one := strings.LastIndex(bech, "1")
	if one < 1 || one+7 > len(bech) {
		return "", nil, ErrInvalidSeparatorIndex(one)
	}
	hrp = bech[:one]
	for _, c := range hrp {
		if c < 33 || c > 126 {
			return "", nil, ErrInvalidCharacter(c)
		}
	}
	data = make([]byte, 0, len(bech)-one-1)
	for _, c := range bech[one+1:] {
		if c > 127 || charsetRev[c] == -1 {
			return "", nil, ErrNonCharsetChar(c)
		}
		data = append(data, byte(charsetRev[c]))
	}
	if !verifyChecksum(hrp, data) {
		return "", nil, ErrInvalidChecksum{}
	}
	data = data[:len(data)-6]
	return hrp, data, nil
}

// ConvertBits regroups a byte slice of fromBits-wide values into one of
// toBits-wide values, used to turn the 5-bit bech32 payload into 8-bit
// public-key bytes.
func ConvertBits(data []byte, fromBits, toBits uint8, pad bool) ([]byte, error) {
	if fromBits < 1 || fromBits > 8 || toBits < 1 || toBits > 8 {
		return nil, ErrInvalidBitGroups{}
	}
	var acc uint32
	var bits uint8
	maxv := uint32(1<<toBits) - 1
	var ret []byte
	for _, value := range data {
		if value>>fromBits != 0 {
			return nil, ErrInvalidDataByte(value)
		}
		acc = (acc << fromBits) | uint32(value)
		bits += fromBits
		for bits >= toBits {
			bits -= toBits
			ret = append(ret, byte((acc>>bits)&maxv))
		}
	}
	if pad {
		if bits > 0 {
			ret = append(ret, byte((acc<<(toBits-bits))&maxv))
		}
	} else if bits >= fromBits || ((acc<<(toBits-bits))&maxv) != 0 {
		return nil, ErrInvalidIncompleteGroup{}
	}
	return ret, nil
}

func polymod(values []byte) uint32 {
	gen := [5]uint32{0x3b6a57b2, 0x26508e6d, 0x1ea119fa, 0x3d4233dd, 0x2a1462b3}
	chk := uint32(1)
	for _, v := range values {
		b := chk >> 25
		chk = (chk&0x1ffffff)<<5 ^ uint32(v)
		for i := 0; i < 5; i++ {
			if (b>>uint(i))&1 == 1 {
				chk ^= gen[i]
			}
		}
	}
	return chk
}

func hrpExpand(hrp string) []byte {
	out := make([]byte, 0, len(hrp)*2+1)
	for _, c := range hrp {
		out = append(out, byte(c)>>5)
	}
	out = append(out, 0)
	for _, c := range hrp {
		out = append(out, byte(c)&31)
	}
	return out
}

func verifyChecksum(hrp string, data []byte) bool {
	values := append(hrpExpand(hrp), data...)
	return polymod(values) == 1
}
