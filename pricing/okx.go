package pricing

import (
	"context"
	"encoding/json"
	"io"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/lnswap-io/swapclient-go/swaperrs"
)

const DefaultOKXBaseURL = "https://www.okx.com"

// OKXPriceAPI reads BTC-denominated index prices from the OKX index-ticker
// endpoint.
type OKXPriceAPI struct {
	baseURL    string
	httpClient *http.Client
}

func NewOKXPriceAPI(baseURL string) *OKXPriceAPI {
	if baseURL == "" {
		baseURL = DefaultOKXBaseURL
	}
	return &OKXPriceAPI{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type okxResponse struct {
	Code string `json:"code"`
	Data []struct {
		IdxPx string `json:"idxPx"`
	} `json:"data"`
}

// FetchPrice returns the pair's index price in milli-sats per whole token:
// idxPx (BTC per token) scaled by 1e8 sats and 1e3 milli-sats.
func (o *OKXPriceAPI) FetchPrice(ctx context.Context, pair string) (*big.Int, error) {
	url := o.baseURL + "/api/v5/market/index-ticker?instId=" + pair

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := o.httpClient.Do(req)
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
	if resp.StatusCode != http.StatusOK {
		return nil, swaperrs.HttpResponse(resp.StatusCode, string(raw))
	}

	var parsed okxResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, err
	}
	if parsed.Code != "0" || len(parsed.Data) == 0 {
		return nil, swaperrs.HttpResponse(resp.StatusCode, string(raw))
	}

	return decimalToScaled(parsed.Data[0].IdxPx, 11)
}

// decimalToScaled parses a decimal string into value * 10^scale without
// going through floats.
func decimalToScaled(s string, scale int) (*big.Int, error) {
	whole, frac, _ := strings.Cut(s, ".")

	if len(frac) > scale {
		frac = frac[:scale]
	}
	digits := whole + frac + strings.Repeat("0", scale-len(frac))

	v, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return nil, swaperrs.InvalidArgument("bad decimal " + s)
	}
	return v, nil
}
