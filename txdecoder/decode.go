package txdecoder

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
)

// TransactionInfo is the subset of a sequenced transaction's fields the
// engine cares about: where it's going, what it's worth, and its calldata.
type TransactionInfo struct {
	To    common.Address
	Value *big.Int
	Input []byte
}

var (
	ErrNotATransaction = errors.New("txdecoder: not a transaction this engine decodes")
	ErrMalformedRLP    = errors.New("txdecoder: malformed transaction RLP")
)

// l2MsgKind mirrors Arbitrum's L1IncomingMessageKind/L2MessageKind byte
// values for the inner L2 message, of which only Batch and SignedTx carry
// router calldata worth simulating.
type l2MsgKind uint8

const (
	l2MsgUnsignedUserTx    l2MsgKind = 0
	l2MsgContractTx        l2MsgKind = 1
	l2MsgNonMutatingCall   l2MsgKind = 2
	l2MsgBatch             l2MsgKind = 3
	l2MsgSignedTx          l2MsgKind = 4
	l2MsgHeartbeat         l2MsgKind = 6
	l2MsgSignedCompressedTx l2MsgKind = 7
)

// DecodeL2Message dispatches on buf's leading L2 message kind byte and
// appends every transaction it decodes to txs, returning the extended slice.
// Kinds the engine has no use for (heartbeats, non-mutating calls, ...) are
// silently skipped, matching upstream's "always well-formed or the chain is
// down" assumption: a malformed message is dropped rather than surfaced as
// an error, since blocking the feed on one bad message is worse than losing
// one transaction's visibility.
func DecodeL2Message(buf []byte, txs []TransactionInfo) []TransactionInfo {
	if len(buf) == 0 {
		return txs
	}
	switch l2MsgKind(buf[0]) {
	case l2MsgBatch:
		return decodeBatch(buf[1:], txs)
	case l2MsgSignedTx:
		if tx, ok := decodeTxInfoLegacy(buf[1:]); ok {
			return append(txs, *tx)
		}
		return txs
	default:
		return txs
	}
}

// decodeBatch walks a sequence of length-prefixed inner L2 messages, each
// assumed to itself be a SignedTx. The per-message length field is 8 bytes
// wide but only the low 3 bytes are trusted (no legitimate message comes
// close to the 16MiB that would require more).
func decodeBatch(buf []byte, txs []TransactionInfo) []TransactionInfo {
	offset := 0
	length := len(buf)
	for i := 0; i < 128; i++ {
		if offset+8 > length {
			break
		}
		msgLength := batchMessageLength(buf[offset:])
		offset += 8
		if offset+1 <= length {
			if tx, ok := decodeTxInfoLegacy(buf[offset+1:]); ok {
				txs = append(txs, *tx)
			}
		}
		offset += msgLength
		if offset+9 > length {
			break
		}
	}
	return txs
}

func batchMessageLength(buf []byte) int {
	if len(buf) < 8 {
		return len(buf)
	}
	return int(buf[5])<<16 | int(buf[6])<<8 | int(buf[7])
}

// decodeTxInfoLegacy decodes a single Arbitrum-internal encoded transaction:
// either a bare RLP list (a legacy, untyped transaction) or an RLP string
// wrapping an EIP-2718 typed transaction (EIP-2930 or EIP-1559 only; other
// types aren't routed through contracts this engine monitors).
func decodeTxInfoLegacy(buf []byte) (*TransactionInfo, bool) {
	if len(buf) == 0 {
		return nil, false
	}
	if buf[0] >= 0xc0 {
		return decodeBaseLegacy(buf)
	}

	data := buf
	firstByte := data[0]
	if firstByte > 0x7f {
		inner, _, err := rlp.SplitString(data)
		if err != nil || len(inner) == 0 {
			return nil, false
		}
		data = inner
		firstByte = data[0]
	}

	switch firstByte {
	case 0x02:
		return decodeBaseEip1559(data[1:])
	case 0x01:
		return decodeBaseEip2930(data[1:])
	default:
		return nil, false
	}
}

func decodeBaseLegacy(buf []byte) (*TransactionInfo, bool) {
	return decodeFields(buf, 3)
}

func decodeBaseEip2930(buf []byte) (*TransactionInfo, bool) {
	return decodeFields(buf, 4)
}

func decodeBaseEip1559(buf []byte) (*TransactionInfo, bool) {
	return decodeFields(buf, 5)
}

// decodeFields reads the (to, value, input) triple starting at field index
// toIndex within an RLP-encoded transaction field list.
func decodeFields(buf []byte, toIndex int) (*TransactionInfo, bool) {
	toRaw, err := nthElementContent(buf, toIndex)
	if err != nil || len(toRaw) != common.AddressLength {
		// Empty `to` means contract creation, which never routes through a
		// monitored venue; any other length is malformed.
		return nil, false
	}
	valueRaw, err := nthElementContent(buf, toIndex+1)
	if err != nil {
		return nil, false
	}
	input, err := nthElementContent(buf, toIndex+2)
	if err != nil {
		return nil, false
	}
	return &TransactionInfo{
		To:    common.BytesToAddress(toRaw),
		Value: new(big.Int).SetBytes(valueRaw),
		Input: input,
	}, true
}
