// Package hex is a thin, explicit rename of encoding/hex so call sites read
// as domain operations (hex.Enc/hex.Dec) rather than stdlib boilerplate,
// matching the teacher's pkg/ec/hex convention.
package hex

import "encoding/hex"

type InvalidByteError = hex.InvalidByteError

var Enc = hex.EncodeToString
var Dec = hex.DecodeString
var DecLen = hex.DecodedLen
