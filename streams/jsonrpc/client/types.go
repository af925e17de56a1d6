package client

import "github.com/fulcrumlabs/sequencer-arb/txdecoder"

// NitroGenesisBlock is Arbitrum One's Nitro genesis block number, the fixed
// offset that converts a feed sequence number into the block it belongs to.
const NitroGenesisBlock = 22_207_817

// FeedMessage is one decoded sequencer feed envelope: its sequence number
// (for gap detection) and every transaction txdecoder could pull out of its
// l2Msg payload.
type FeedMessage struct {
	SequenceNumber uint64
	Transactions   []txdecoder.TransactionInfo
}

// BlockNumber derives the block this message belongs to from its sequence
// number, or 0 if this message is a feed heartbeat carrying no transactions.
func (m FeedMessage) BlockNumber() uint64 {
	if m.SequenceNumber == 0 {
		return 0
	}
	return m.SequenceNumber + NitroGenesisBlock - 1
}
