package swapengine

import (
	"encoding/json"
	"math/big"

	ethcommon "github.com/ethereum/go-ethereum/common"

	"github.com/lnswap-io/swapclient-go/common"
	"github.com/lnswap-io/swapclient-go/swapdata"
)

// Swap wraps a swap record with the client-side bookkeeping persisted across
// restarts. The engine owns all Swap instances; records reach storage
// through the engine, never through a back-pointer.
type Swap struct {
	PaymentHash    ethcommon.Hash
	URL            string
	PaymentRequest string
	SwapFee        *big.Int
	Prefix         string
	Timeout        uint64
	Signature      []byte
	FeeRate        string
	CommitTxID     string
	ClaimTxID      string
	Expiry         uint64
	State          State
	Secret         *[32]byte

	// Data is nil until the intermediary (or an Initialize event) supplies
	// the full record.
	Data *swapdata.SwapData
}

type serializedSwap struct {
	PaymentHash    string          `json:"paymentHash"`
	URL            string          `json:"url"`
	PaymentRequest string          `json:"pr"`
	SwapFee        string          `json:"swapFee"`
	Prefix         string          `json:"prefix"`
	Timeout        uint64          `json:"timeout"`
	Signature      string          `json:"signature"`
	FeeRate        string          `json:"feeRate"`
	CommitTxID     string          `json:"commitTxId"`
	ClaimTxID      string          `json:"claimTxId"`
	Expiry         uint64          `json:"expiry"`
	State          int             `json:"state"`
	Secret         *string         `json:"secret"`
	Data           json.RawMessage `json:"data"`
}

// Serialize renders the persisted wrapper form with the swap record nested
// under "data".
func (s *Swap) Serialize() ([]byte, error) {
	rec := serializedSwap{
		PaymentHash:    s.PaymentHash.Hex(),
		URL:            s.URL,
		PaymentRequest: s.PaymentRequest,
		Prefix:         s.Prefix,
		Timeout:        s.Timeout,
		FeeRate:        s.FeeRate,
		CommitTxID:     s.CommitTxID,
		ClaimTxID:      s.ClaimTxID,
		Expiry:         s.Expiry,
		State:          int(s.State),
	}
	if s.SwapFee != nil {
		rec.SwapFee = common.BigIntToHexStr(s.SwapFee)
	}
	if len(s.Signature) > 0 {
		rec.Signature = common.Prepend0xPrefix(common.ByteSliceToPureHexStr(s.Signature))
	}
	if s.Secret != nil {
		h := common.Prepend0xPrefix(common.ByteSliceToPureHexStr(s.Secret[:]))
		rec.Secret = &h
	}
	if s.Data != nil {
		raw, err := s.Data.Serialize()
		if err != nil {
			return nil, err
		}
		rec.Data = raw
	}
	return json.Marshal(rec)
}

// FromSerializedSwap is the deserialization constructor for the wrapper.
func FromSerializedSwap(raw []byte) (*Swap, error) {
	var rec serializedSwap
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, err
	}

	s := &Swap{
		PaymentHash:    ethcommon.HexToHash(rec.PaymentHash),
		URL:            rec.URL,
		PaymentRequest: rec.PaymentRequest,
		Prefix:         rec.Prefix,
		Timeout:        rec.Timeout,
		FeeRate:        rec.FeeRate,
		CommitTxID:     rec.CommitTxID,
		ClaimTxID:      rec.ClaimTxID,
		Expiry:         rec.Expiry,
		State:          State(rec.State),
	}
	if rec.SwapFee != "" {
		s.SwapFee = common.HexStrToBigInt(rec.SwapFee)
	}
	if rec.Signature != "" {
		s.Signature = common.HexStrToByteSlice(rec.Signature)
	}
	if rec.Secret != nil {
		var secret [32]byte
		copy(secret[:], common.HexStrToByteSlice(*rec.Secret))
		s.Secret = &secret
	}
	if len(rec.Data) > 0 && string(rec.Data) != "null" {
		data, err := swapdata.FromSerialized(rec.Data)
		if err != nil {
			return nil, err
		}
		s.Data = data
	}
	return s, nil
}
