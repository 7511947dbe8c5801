package btcrelay

import (
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/lnswap-io/swapclient-go/evmclient"
	"github.com/lnswap-io/swapclient-go/headers"
)

// Gas budgets for relay interactions. The values are part of the fee
// contract with intermediaries, so they are fixed constants rather than
// estimates.
const (
	GasInitial            = 150_000
	GasMainBase           = 40_000
	GasMainPerHeader      = 40_000
	GasForkBase           = 200_000
	GasForkPerHeader      = 100_000
	GasPerBlockHeader     = 35_000
	DefaultLogBlocksLimit = 2500
	ScanSleep             = 500 * time.Millisecond
)

// Config locates the relay contract and bounds the log scans.
type Config struct {
	ContractAddress ethcommon.Address
	// ContractDeployBlock is the L1 block the relay was deployed at; log
	// scans never page below it.
	ContractDeployBlock uint64
	// LogBlocksLimit is the window size (in L1 blocks) of one log query.
	LogBlocksLimit uint64
}

func (c *Config) logBlocksLimit() uint64 {
	if c.LogBlocksLimit == 0 {
		return DefaultLogBlocksLimit
	}
	return c.LogBlocksLimit
}

// Tip is the unpacked relay tip slot.
type Tip struct {
	CommitHash ethcommon.Hash
	ChainWork  *uint256.Int
	Height     uint32
}

// HeaderSubmission is a prepared header-submission transaction together with
// the stored headers precomputed off-chain, so callers can use them without
// another round trip once the tx confirms.
type HeaderSubmission struct {
	ForkID     uint64
	LastStored *headers.StoredHeader
	Tx         *evmclient.UnsignedTx
	Computed   []*headers.StoredHeader
}

// RetrievedHeader is a stored header recovered from the relay's log history,
// plus the relay tip height observed during the search.
type RetrievedHeader struct {
	Stored    *headers.StoredHeader
	TipHeight uint32
}
