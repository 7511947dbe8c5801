package headers

import (
	"bytes"
	"errors"
	"math/big"
	"time"

	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/holiman/uint256"
)

const (
	// RawHeaderSize is the canonical bitcoin block header length.
	RawHeaderSize = 80

	// DiffAdjustmentInterval is the number of blocks between difficulty
	// retargets.
	DiffAdjustmentInterval = 2016

	// PrevTimestampCount is the size of the recent-timestamp ring the relay
	// contract keeps per stored header.
	PrevTimestampCount = 10
)

var ErrInvalidHeaderLength = errors.New("raw header must be exactly 80 bytes")

// Header is a bitcoin block header. The embedded wire representation keeps
// the canonical little-endian field order on serialization; Hash() is the
// double-SHA256 of the 80 bytes, little-endian in storage like everywhere
// else in this module.
type Header struct {
	wire.BlockHeader
}

func NewHeader(version int32, prev, merkleRoot chainhash.Hash, timestamp uint32, bits, nonce uint32) *Header {
	return &Header{wire.BlockHeader{
		Version:    version,
		PrevBlock:  prev,
		MerkleRoot: merkleRoot,
		Timestamp:  time.Unix(int64(timestamp), 0),
		Bits:       bits,
		Nonce:      nonce,
	}}
}

// ParseHeader decodes the 80-byte wire form.
func ParseHeader(b []byte) (*Header, error) {
	if len(b) != RawHeaderSize {
		return nil, ErrInvalidHeaderLength
	}

	var h wire.BlockHeader
	if err := h.Deserialize(bytes.NewReader(b)); err != nil {
		return nil, err
	}
	return &Header{h}, nil
}

// Serialize returns the 80-byte wire form.
func (h *Header) Serialize() []byte {
	var buf bytes.Buffer
	// cannot fail on a bytes.Buffer
	_ = h.BlockHeader.Serialize(&buf)
	return buf.Bytes()
}

// Hash returns the block hash, little-endian in storage.
func (h *Header) Hash() chainhash.Hash {
	return h.BlockHash()
}

// UnixTimestamp returns the header timestamp as unix seconds.
func (h *Header) UnixTimestamp() uint32 {
	return uint32(h.Timestamp.Unix())
}

// TargetFromBits expands the compact nbits encoding into the full 256-bit
// proof-of-work target.
func TargetFromBits(bits uint32) *big.Int {
	return blockchain.CompactToBig(bits)
}

// WorkFromBits returns the amount of work a header with the given nbits adds
// to its chain, i.e. 2^256 / (target + 1).
func WorkFromBits(bits uint32) *uint256.Int {
	work, _ := uint256.FromBig(blockchain.CalcWork(bits))
	return work
}
