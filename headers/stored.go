package headers

import (
	"encoding/binary"
	"errors"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"golang.org/x/crypto/sha3"
)

// StoredHeaderSize is the serialized length of the struct the relay contract
// commits to: 80B raw header, 4B last diff adjustment, 10x4B previous block
// timestamps, 4B block height, 32B big-endian chain work.
const StoredHeaderSize = RawHeaderSize + 4 + 4*PrevTimestampCount + 4 + 32

var ErrInvalidStoredHeaderLength = errors.New("stored header must be exactly 160 bytes")

// StoredHeader is the per-block record the relay contract keeps. Its keccak
// digest must match the commitment the contract stores at the block height,
// so the serialization below is part of the wire contract.
type StoredHeader struct {
	Header              Header
	ChainWork           *uint256.Int
	LastDiffAdjustment  uint32
	PrevBlockTimestamps [PrevTimestampCount]uint32
	BlockHeight         uint32
}

// Serialize returns the 160-byte on-chain struct encoding.
func (s *StoredHeader) Serialize() []byte {
	out := make([]byte, 0, StoredHeaderSize)
	out = append(out, s.Header.Serialize()...)

	var u32 [4]byte
	binary.BigEndian.PutUint32(u32[:], s.LastDiffAdjustment)
	out = append(out, u32[:]...)
	for _, ts := range s.PrevBlockTimestamps {
		binary.BigEndian.PutUint32(u32[:], ts)
		out = append(out, u32[:]...)
	}
	binary.BigEndian.PutUint32(u32[:], s.BlockHeight)
	out = append(out, u32[:]...)

	work := s.ChainWork.Bytes32()
	out = append(out, work[:]...)

	return out
}

// ParseStoredHeader decodes the 160-byte on-chain struct encoding.
func ParseStoredHeader(b []byte) (*StoredHeader, error) {
	if len(b) != StoredHeaderSize {
		return nil, ErrInvalidStoredHeaderLength
	}

	hdr, err := ParseHeader(b[:RawHeaderSize])
	if err != nil {
		return nil, err
	}

	s := &StoredHeader{Header: *hdr}
	off := RawHeaderSize
	s.LastDiffAdjustment = binary.BigEndian.Uint32(b[off : off+4])
	off += 4
	for i := 0; i < PrevTimestampCount; i++ {
		s.PrevBlockTimestamps[i] = binary.BigEndian.Uint32(b[off : off+4])
		off += 4
	}
	s.BlockHeight = binary.BigEndian.Uint32(b[off : off+4])
	off += 4
	s.ChainWork = new(uint256.Int).SetBytes(b[off : off+32])

	return s, nil
}

// Hash is the keccak256 commitment of the serialized stored header. It must
// be byte-identical to the digest the relay contract stores at BlockHeight.
func (s *StoredHeader) Hash() ethcommon.Hash {
	h := sha3.NewLegacyKeccak256()
	h.Write(s.Serialize())
	return ethcommon.BytesToHash(h.Sum(nil))
}

// ComputeNext derives the stored header for a new raw header extending prev.
// Chain work grows by 2^256/(target+1); the timestamp ring shifts the new
// timestamp in at height mod 10; the adjustment epoch resets on retarget
// boundaries.
func ComputeNext(prev *StoredHeader, raw *Header) *StoredHeader {
	height := prev.BlockHeight + 1
	ts := raw.UnixTimestamp()

	next := &StoredHeader{
		Header:              *raw,
		ChainWork:           new(uint256.Int).Add(prev.ChainWork, WorkFromBits(raw.Bits)),
		LastDiffAdjustment:  prev.LastDiffAdjustment,
		PrevBlockTimestamps: prev.PrevBlockTimestamps,
		BlockHeight:         height,
	}
	next.PrevBlockTimestamps[height%PrevTimestampCount] = ts

	if height%DiffAdjustmentInterval == 0 {
		next.LastDiffAdjustment = ts
	}

	return next
}

// ComputeNextChain folds ComputeNext over a run of raw headers, returning the
// stored header for each. This is the off-chain precomputation used when
// preparing relay submissions.
func ComputeNextChain(prev *StoredHeader, raws []*Header) []*StoredHeader {
	computed := make([]*StoredHeader, 0, len(raws))
	for _, raw := range raws {
		prev = ComputeNext(prev, raw)
		computed = append(computed, prev)
	}
	return computed
}
