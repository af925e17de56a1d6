package simulator

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

var errShortBuffer = errors.New("simulator: calldata shorter than its own ABI head pointed to")

// word returns the 32-byte ABI word at word index idx, or an all-zero word if
// buf is too short. Callers that need to distinguish a genuinely short buffer
// from a legitimate zero word use the checked helpers below.
func word(buf []byte, idx int) []byte {
	start := idx * 32
	if start+32 > len(buf) {
		return make([]byte, 32)
	}
	return buf[start : start+32]
}

func headUint(buf []byte, idx int) *big.Int {
	return new(big.Int).SetBytes(word(buf, idx))
}

func headAddr(buf []byte, idx int) common.Address {
	var a common.Address
	copy(a[:], word(buf, idx)[12:32])
	return a
}

// dynBytesAt follows the offset stored at head word idx to a `bytes` value,
// relative to the start of buf (ABI offsets are always relative to the
// enclosing tuple's own data section; all decoders here operate on
// already-unwrapped tuple bodies so buf itself is that section).
func dynBytesAt(buf []byte, idx int) ([]byte, error) {
	rel := headUint(buf, idx).Int64()
	if rel < 0 || int(rel)+32 > len(buf) {
		return nil, errShortBuffer
	}
	length := new(big.Int).SetBytes(buf[rel : rel+32]).Int64()
	start := rel + 32
	if length < 0 || int(start+length) > len(buf) {
		return nil, errShortBuffer
	}
	return buf[start : start+length], nil
}

// dynBytesArrayAt follows the offset at head word idx to a `bytes[]` value.
func dynBytesArrayAt(buf []byte, idx int) ([][]byte, error) {
	rel := headUint(buf, idx).Int64()
	if rel < 0 || int(rel)+32 > len(buf) {
		return nil, errShortBuffer
	}
	arr := buf[rel:]
	n := new(big.Int).SetBytes(arr[0:32]).Int64()
	if n < 0 || n > 1<<16 {
		return nil, errShortBuffer
	}
	elemHeads := arr[32:]
	out := make([][]byte, 0, n)
	for i := int64(0); i < n; i++ {
		elemRel := new(big.Int).SetBytes(word(elemHeads, int(i))).Int64()
		if elemRel < 0 || int(elemRel)+32 > len(elemHeads) {
			return nil, errShortBuffer
		}
		elemBuf := elemHeads[elemRel:]
		elen := new(big.Int).SetBytes(elemBuf[0:32]).Int64()
		if elen < 0 || int(32+elen) > len(elemBuf) {
			return nil, errShortBuffer
		}
		out = append(out, elemBuf[32:32+elen])
	}
	return out, nil
}

// dynAddressArrayAt follows the offset at head word idx to an `address[]`
// value; each element is a static 32-byte word, so no further indirection.
func dynAddressArrayAt(buf []byte, idx int) ([]common.Address, error) {
	rel := headUint(buf, idx).Int64()
	if rel < 0 || int(rel)+32 > len(buf) {
		return nil, errShortBuffer
	}
	arr := buf[rel:]
	n := new(big.Int).SetBytes(arr[0:32]).Int64()
	if n < 0 || n > 1<<16 {
		return nil, errShortBuffer
	}
	elems := arr[32:]
	out := make([]common.Address, 0, n)
	for i := int64(0); i < n; i++ {
		out = append(out, headAddr(elems, int(i)))
	}
	return out, nil
}

// dynTupleArrayAt follows the offset at head word idx to an array whose
// elements are themselves dynamic tuples (e.g. `(uint32,bytes)[]`): unlike
// dynBytesArrayAt, each element's offset points at a raw tuple head/tail
// section, not a length-prefixed `bytes` blob, so the element is returned
// as-is for the caller to decode with headUint/dynBytesAt relative to its
// own start.
func dynTupleArrayAt(buf []byte, idx int) ([][]byte, error) {
	rel := headUint(buf, idx).Int64()
	if rel < 0 || int(rel)+32 > len(buf) {
		return nil, errShortBuffer
	}
	arr := buf[rel:]
	n := new(big.Int).SetBytes(arr[0:32]).Int64()
	if n < 0 || n > 1<<16 {
		return nil, errShortBuffer
	}
	elemHeads := arr[32:]
	out := make([][]byte, 0, n)
	for i := int64(0); i < n; i++ {
		elemRel := new(big.Int).SetBytes(word(elemHeads, int(i))).Int64()
		if elemRel < 0 || int(elemRel) > len(elemHeads) {
			return nil, errShortBuffer
		}
		out = append(out, elemHeads[elemRel:])
	}
	return out, nil
}

// dynUint256ArrayAt follows the offset at head word idx to a `uint256[]`
// value; elements are static, so they follow the length word directly.
func dynUint256ArrayAt(buf []byte, idx int) ([]*big.Int, error) {
	rel := headUint(buf, idx).Int64()
	if rel < 0 || int(rel)+32 > len(buf) {
		return nil, errShortBuffer
	}
	arr := buf[rel:]
	n := new(big.Int).SetBytes(arr[0:32]).Int64()
	if n < 0 || n > 1<<16 {
		return nil, errShortBuffer
	}
	elems := arr[32:]
	out := make([]*big.Int, 0, n)
	for i := int64(0); i < n; i++ {
		out = append(out, headUint(elems, int(i)))
	}
	return out, nil
}
