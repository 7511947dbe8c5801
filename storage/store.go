package storage

import (
	ethcommon "github.com/ethereum/go-ethereum/common"
)

// Store persists serialized swap records keyed by payment hash. The engine
// treats records as opaque bytes; implementations must keep them intact.
type Store interface {
	LoadAll() (map[ethcommon.Hash][]byte, error)
	Save(paymentHash ethcommon.Hash, record []byte) error
	SaveMany(records map[ethcommon.Hash][]byte) error
	Remove(paymentHash ethcommon.Hash) error
}
