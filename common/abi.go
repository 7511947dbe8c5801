package common

import (
	"bytes"
	"encoding/binary"
	"math/big"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
)

// EncodePacked mirrors solidity's abi.encodePacked for the value shapes used
// by the swap protocol: raw byte strings, 32-byte words, fixed-width
// big-endian integers and uint256 words.
func EncodePacked(values ...interface{}) []byte {
	var res [][]byte
	for _, value := range values {
		switch v := value.(type) {
		case string:
			res = append(res, []byte(v))
		case []byte:
			res = append(res, v)
		case [32]byte:
			res = append(res, bytes.Clone(v[:]))
		case ethcommon.Hash:
			res = append(res, bytes.Clone(v[:]))
		case ethcommon.Address:
			res = append(res, bytes.Clone(v[:]))
		case uint64:
			var b [8]byte
			binary.BigEndian.PutUint64(b[:], v)
			res = append(res, bytes.Clone(b[:]))
		case uint32:
			var b [4]byte
			binary.BigEndian.PutUint32(b[:], v)
			res = append(res, bytes.Clone(b[:]))
		case *big.Int:
			res = append(res, math.U256Bytes(new(big.Int).Set(v)))
		case [][32]byte:
			for _, w := range v {
				res = append(res, bytes.Clone(w[:]))
			}
		}
	}
	return bytes.Join(res, nil)
}
