package swapdata

import (
	"encoding/json"
	"fmt"

	ethcommon "github.com/ethereum/go-ethereum/common"

	"github.com/lnswap-io/swapclient-go/common"
)

// TypeEVM tags the persisted form of an EVM-side swap record.
const TypeEVM = "evm"

type serializedSwap struct {
	Type            string  `json:"type"`
	Offerer         string  `json:"offerer"`
	Claimer         string  `json:"claimer"`
	Token           string  `json:"token"`
	Amount          string  `json:"amount"`
	PaymentHash     string  `json:"paymentHash"`
	Data            string  `json:"data"`
	SecurityDeposit string  `json:"securityDeposit"`
	ClaimerBounty   string  `json:"claimerBounty"`
	TxoHash         *string `json:"txoHash"`
}

// Serialize renders the persisted JSON form: hex-encoded u256 fields,
// addresses and hashes with 0x prefix, nullable txoHash.
func (s *SwapData) Serialize() ([]byte, error) {
	rec := serializedSwap{
		Type:            TypeEVM,
		Offerer:         s.Offerer.Hex(),
		Claimer:         s.Claimer.Hex(),
		Token:           s.Token.Hex(),
		Amount:          common.BigIntToHexStr(orZero(s.Amount)),
		PaymentHash:     s.PaymentHash.Hex(),
		Data:            common.BigIntToHexStr(orZero(s.Data)),
		SecurityDeposit: common.BigIntToHexStr(orZero(s.SecurityDeposit)),
		ClaimerBounty:   common.BigIntToHexStr(orZero(s.ClaimerBounty)),
	}
	if s.TxoHash != nil {
		h := s.TxoHash.Hex()
		rec.TxoHash = &h
	}
	return json.Marshal(rec)
}

// FromSerialized is the deserialization constructor, the counterpart of
// NewSwapData.
func FromSerialized(raw []byte) (*SwapData, error) {
	var rec serializedSwap
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, err
	}
	if rec.Type != TypeEVM {
		return nil, fmt.Errorf("unknown swap record type %q", rec.Type)
	}

	s := &SwapData{
		Offerer:         ethcommon.HexToAddress(rec.Offerer),
		Claimer:         ethcommon.HexToAddress(rec.Claimer),
		Token:           ethcommon.HexToAddress(rec.Token),
		Amount:          common.HexStrToBigInt(rec.Amount),
		PaymentHash:     ethcommon.HexToHash(rec.PaymentHash),
		Data:            common.HexStrToBigInt(rec.Data),
		SecurityDeposit: common.HexStrToBigInt(rec.SecurityDeposit),
		ClaimerBounty:   common.HexStrToBigInt(rec.ClaimerBounty),
	}
	if rec.TxoHash != nil {
		h := ethcommon.HexToHash(*rec.TxoHash)
		s.TxoHash = &h
	}
	return s, nil
}

// Factory deserializes one tagged record format.
type Factory func(raw []byte) (*SwapData, error)

// NewFactoryTable builds a table from record "type" tag to deserializer.
// Storage and the engine do not consult it: persisted records are decoded
// with FromSerialized, which checks the tag itself.
func NewFactoryTable() map[string]Factory {
	return map[string]Factory{
		TypeEVM: FromSerialized,
	}
}
