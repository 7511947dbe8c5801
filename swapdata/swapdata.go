package swapdata

import (
	"encoding/hex"
	"math/big"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
	"github.com/ethereum/go-ethereum/accounts/abi"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/lnswap-io/swapclient-go/common"
)

// SwapData is the record the swap contract commits to at the payment hash.
// Token == zero address means the native currency. TxoHash is only set for
// on-chain (non-HTLC) swaps.
type SwapData struct {
	Offerer         ethcommon.Address
	Claimer         ethcommon.Address
	Token           ethcommon.Address
	Amount          *big.Int
	PaymentHash     ethcommon.Hash
	Data            *big.Int
	SecurityDeposit *big.Int
	ClaimerBounty   *big.Int
	TxoHash         *ethcommon.Hash
}

// NewSwapData is the field constructor. Deserialization goes through
// FromSerialized instead.
func NewSwapData(
	offerer, claimer, token ethcommon.Address,
	amount *big.Int,
	paymentHash ethcommon.Hash,
	data *big.Int,
	securityDeposit, claimerBounty *big.Int,
	txoHash *ethcommon.Hash,
) *SwapData {
	return &SwapData{
		Offerer:         offerer,
		Claimer:         claimer,
		Token:           token,
		Amount:          common.BigIntClone(amount),
		PaymentHash:     paymentHash,
		Data:            common.BigIntClone(data),
		SecurityDeposit: common.BigIntClone(securityDeposit),
		ClaimerBounty:   common.BigIntClone(claimerBounty),
		TxoHash:         txoHash,
	}
}

// IsPayIn reports whether the offerer funds the escrow in the init tx itself.
func (s *SwapData) IsPayIn() bool {
	return PayIn(s.Data)
}

func (s *SwapData) Kind() Kind {
	return DataKind(s.Data)
}

func (s *SwapData) Expiry() uint64 {
	return Expiry(s.Data)
}

func (s *SwapData) Index() uint8 {
	return Index(s.Data)
}

func (s *SwapData) Confirmations() uint16 {
	return Confirmations(s.Data)
}

// Equals is a structural comparison of the persisted fields.
func (s *SwapData) Equals(other *SwapData) bool {
	if other == nil {
		return false
	}
	if s.Offerer != other.Offerer ||
		s.Claimer != other.Claimer ||
		s.Token != other.Token ||
		s.PaymentHash != other.PaymentHash {
		return false
	}
	if !bigEq(s.Amount, other.Amount) ||
		!bigEq(s.Data, other.Data) ||
		!bigEq(s.SecurityDeposit, other.SecurityDeposit) ||
		!bigEq(s.ClaimerBounty, other.ClaimerBounty) {
		return false
	}
	if (s.TxoHash == nil) != (other.TxoHash == nil) {
		return false
	}
	if s.TxoHash != nil && *s.TxoHash != *other.TxoHash {
		return false
	}
	return true
}

func bigEq(a, b *big.Int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Cmp(b) == 0
}

var swapTupleType = func() abi.Type {
	t, err := abi.NewType("tuple", "", []abi.ArgumentMarshaling{
		{Name: "offerer", Type: "address"},
		{Name: "claimer", Type: "address"},
		{Name: "token", Type: "address"},
		{Name: "amount", Type: "uint256"},
		{Name: "paymentHash", Type: "bytes32"},
		{Name: "data", Type: "uint256"},
		{Name: "securityDeposit", Type: "uint256"},
		{Name: "claimerBounty", Type: "uint256"},
	})
	if err != nil {
		panic(err)
	}
	return t
}()

// SwapTupleType is the ABI type of the swap struct as the contract declares
// it; the contract clients reuse it when packing call arguments.
func SwapTupleType() abi.Type {
	return swapTupleType
}

var swapArgs = abi.Arguments{{Type: swapTupleType}}

// ABISwap is the struct shape go-ethereum's abi packer maps the swap tuple
// onto, in both directions.
type ABISwap struct {
	Offerer         ethcommon.Address
	Claimer         ethcommon.Address
	Token           ethcommon.Address
	Amount          *big.Int
	PaymentHash     [32]byte
	Data            *big.Int
	SecurityDeposit *big.Int
	ClaimerBounty   *big.Int
}

// ToSwapData rebuilds the record from its ABI tuple form.
func (a *ABISwap) ToSwapData(txoHash *ethcommon.Hash) *SwapData {
	return &SwapData{
		Offerer:         a.Offerer,
		Claimer:         a.Claimer,
		Token:           a.Token,
		Amount:          a.Amount,
		PaymentHash:     a.PaymentHash,
		Data:            a.Data,
		SecurityDeposit: a.SecurityDeposit,
		ClaimerBounty:   a.ClaimerBounty,
		TxoHash:         txoHash,
	}
}

// ABITuple returns the tuple value to hand to the abi packer.
func (s *SwapData) ABITuple() interface{} {
	return ABISwap{
		Offerer:         s.Offerer,
		Claimer:         s.Claimer,
		Token:           s.Token,
		Amount:          orZero(s.Amount),
		PaymentHash:     s.PaymentHash,
		Data:            orZero(s.Data),
		SecurityDeposit: orZero(s.SecurityDeposit),
		ClaimerBounty:   orZero(s.ClaimerBounty),
	}
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}

// CommitHash is the keccak256 of the ABI tuple encoding of the record. The
// contract stores this value at the payment hash while the swap is live.
func (s *SwapData) CommitHash() (ethcommon.Hash, error) {
	packed, err := swapArgs.Pack(s.ABITuple())
	if err != nil {
		return ethcommon.Hash{}, err
	}
	return crypto.Keccak256Hash(packed), nil
}

// HashForOnchain derives the payment hash binding an on-chain swap to a
// specific output script, amount and nonce. Widths and endianness are part of
// the wire contract: the amount is 8 bytes little-endian, the nonce is the
// 16-character big-endian hex rendering.
func HashForOnchain(outputScript []byte, amountSats uint64, nonce uint64) ethcommon.Hash {
	var amount [8]byte
	for i := 0; i < 8; i++ {
		amount[i] = byte(amountSats >> (8 * i))
	}
	txoHash := crypto.Keccak256Hash(amount[:], outputScript)

	var nonceBE [8]byte
	for i := 0; i < 8; i++ {
		nonceBE[i] = byte(nonce >> (8 * (7 - i)))
	}
	nonceHex := hex.EncodeToString(nonceBE[:])

	return crypto.Keccak256Hash([]byte(nonceHex), txoHash[:])
}

// HashForAddress is HashForOnchain over the standard output script of a
// bitcoin address.
func HashForAddress(addr btcutil.Address, amountSats uint64, nonce uint64) (ethcommon.Hash, error) {
	script, err := txscript.PayToAddrScript(addr)
	if err != nil {
		return ethcommon.Hash{}, err
	}
	return HashForOnchain(script, amountSats, nonce), nil
}
