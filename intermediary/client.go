package intermediary

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math/big"
	"net/http"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	logger "github.com/sirupsen/logrus"

	"github.com/lnswap-io/swapclient-go/common"
	"github.com/lnswap-io/swapclient-go/swapdata"
	"github.com/lnswap-io/swapclient-go/swaperrs"
)

// Response codes of the intermediary API.
const (
	CodePaid    = 10000
	CodePending = 10003
)

const DefaultTimeout = 15 * time.Second

type Client struct {
	httpClient *http.Client
}

func NewClient(timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
	}
}

// PaymentAuthRequest asks the intermediary whether a lightning invoice has
// been paid and, if so, for the signed swap authorization.
type PaymentAuthRequest struct {
	URL            string
	PaymentRequest string
	Token          ethcommon.Address
	Offerer        ethcommon.Address
	BaseFee        *big.Int
	FeePPM         *big.Int
}

// PaymentAuthResponse carries the authorization once the invoice is paid.
type PaymentAuthResponse struct {
	IsPaid    bool
	Data      *swapdata.SwapData
	Prefix    string
	Timeout   uint64
	Signature []byte
	Expiry    uint64
}

type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

type paymentAuthData struct {
	Data      json.RawMessage `json:"data"`
	Prefix    string          `json:"prefix"`
	Timeout   uint64          `json:"timeout"`
	Signature string          `json:"signature"`
	Expiry    uint64          `json:"expiry"`
}

// GetPaymentAuthorization polls the intermediary for the payment state of an
// invoice. A pending invoice yields (nil, nil); rejection codes map to
// PaymentAuth errors.
func (c *Client) GetPaymentAuthorization(ctx context.Context, req *PaymentAuthRequest) (*PaymentAuthResponse, error) {
	body, err := json.Marshal(map[string]interface{}{
		"paymentRequest": req.PaymentRequest,
		"token":          req.Token.Hex(),
		"offerer":        req.Offerer.Hex(),
		"baseFee":        common.BigIntToHexStr(req.BaseFee),
		"feePPM":         common.BigIntToHexStr(req.FeePPM),
	})
	if err != nil {
		return nil, err
	}

	env, err := c.post(ctx, req.URL+"/getPaymentAuthorization", body)
	if err != nil {
		return nil, err
	}

	switch env.Code {
	case CodePending:
		return nil, nil
	case CodePaid:
	default:
		logger.WithFields(logger.Fields{
			"code": env.Code,
			"msg":  env.Msg,
		}).Warn("payment authorization rejected")
		return nil, swaperrs.PaymentAuth(env.Msg)
	}

	var data paymentAuthData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, err
	}

	swap, err := swapdata.FromSerialized(data.Data)
	if err != nil {
		return nil, err
	}

	return &PaymentAuthResponse{
		IsPaid:    true,
		Data:      swap,
		Prefix:    data.Prefix,
		Timeout:   data.Timeout,
		Signature: common.HexStrToByteSlice(data.Signature),
		Expiry:    data.Expiry,
	}, nil
}

// ReceiveLightningRequest opens a lightning-receive swap with the
// intermediary.
type ReceiveLightningRequest struct {
	URL           string
	AmountSats    *big.Int
	Token         ethcommon.Address
	Claimer       ethcommon.Address
	ExpirySeconds uint64
}

type ReceiveLightningResponse struct {
	PaymentRequest  string   `json:"pr"`
	Secret          string   `json:"secret"`
	IntermediaryKey string   `json:"intermediaryKey"`
	Total           *big.Int `json:"-"`
	SecurityDeposit *big.Int `json:"-"`
	SwapFee         *big.Int `json:"-"`
	PricingInfo     string   `json:"pricingInfo"`
	FeeRate         string   `json:"feeRate"`
}

type receiveLightningData struct {
	PaymentRequest  string `json:"pr"`
	Secret          string `json:"secret"`
	IntermediaryKey string `json:"intermediaryKey"`
	Total           string `json:"total"`
	SecurityDeposit string `json:"securityDeposit"`
	SwapFee         string `json:"swapFee"`
	PricingInfo     string `json:"pricingInfo"`
	FeeRate         string `json:"feeRate"`
}

func (c *Client) ReceiveLightning(ctx context.Context, req *ReceiveLightningRequest) (*ReceiveLightningResponse, error) {
	body, err := json.Marshal(map[string]interface{}{
		"amount":  req.AmountSats.String(),
		"token":   req.Token.Hex(),
		"claimer": req.Claimer.Hex(),
		"expiry":  req.ExpirySeconds,
	})
	if err != nil {
		return nil, err
	}

	env, err := c.post(ctx, req.URL+"/receiveLightning", body)
	if err != nil {
		return nil, err
	}
	if env.Code != CodePaid {
		return nil, swaperrs.PaymentAuth(env.Msg)
	}

	var data receiveLightningData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, err
	}

	return &ReceiveLightningResponse{
		PaymentRequest:  data.PaymentRequest,
		Secret:          data.Secret,
		IntermediaryKey: data.IntermediaryKey,
		Total:           common.HexStrToBigInt(data.Total),
		SecurityDeposit: common.HexStrToBigInt(data.SecurityDeposit),
		SwapFee:         common.HexStrToBigInt(data.SwapFee),
		PricingInfo:     data.PricingInfo,
		FeeRate:         data.FeeRate,
	}, nil
}

func (c *Client) post(ctx context.Context, url string, body []byte) (*envelope, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, swaperrs.ErrCancelled
		}
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, swaperrs.HttpResponse(resp.StatusCode, string(raw))
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, err
	}
	return &env, nil
}
