package intermediary

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lnswap-io/swapclient-go/common"
	"github.com/lnswap-io/swapclient-go/swapdata"
	"github.com/lnswap-io/swapclient-go/swaperrs"
)

func authServer(t *testing.T, code int, swap *swapdata.SwapData) *httptest.Server {
	gin.SetMode(gin.TestMode)
	router := gin.New()

	router.POST("/getPaymentAuthorization", func(c *gin.Context) {
		if code != CodePaid {
			c.JSON(http.StatusOK, gin.H{"code": code, "msg": "not paid yet"})
			return
		}

		raw, err := swap.Serialize()
		require.NoError(t, err)

		c.JSON(http.StatusOK, gin.H{
			"code": CodePaid,
			"msg":  "",
			"data": gin.H{
				"data":      json.RawMessage(raw),
				"prefix":    "initialize",
				"timeout":   1_700_001_000,
				"signature": "0x" + common.ByteSliceToPureHexStr(make([]byte, 65)),
				"expiry":    1_700_005_000,
			},
		})
	})

	return httptest.NewServer(router)
}

func sampleSwap() *swapdata.SwapData {
	return swapdata.NewSwapData(
		ethcommon.HexToAddress("0x1111111111111111111111111111111111111111"),
		ethcommon.HexToAddress("0x2222222222222222222222222222222222222222"),
		ethcommon.Address{},
		big.NewInt(50_000),
		ethcommon.HexToHash("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"),
		swapdata.PackData(1_700_005_000, 1, 1, swapdata.KindHTLC, true, false, 0),
		big.NewInt(0), big.NewInt(0), nil,
	)
}

func request(url string) *PaymentAuthRequest {
	return &PaymentAuthRequest{
		URL:            url,
		PaymentRequest: "lnbc500u1...",
		Token:          ethcommon.Address{},
		Offerer:        ethcommon.HexToAddress("0x1111111111111111111111111111111111111111"),
		BaseFee:        big.NewInt(10),
		FeePPM:         big.NewInt(1000),
	}
}

func TestGetPaymentAuthorizationPaid(t *testing.T) {
	swap := sampleSwap()
	srv := authServer(t, CodePaid, swap)
	defer srv.Close()

	client := NewClient(0)
	resp, err := client.GetPaymentAuthorization(context.Background(), request(srv.URL))
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.True(t, resp.IsPaid)
	assert.True(t, swap.Equals(resp.Data))
	assert.Equal(t, "initialize", resp.Prefix)
	assert.Equal(t, uint64(1_700_001_000), resp.Timeout)
	assert.Len(t, resp.Signature, 65)
}

func TestGetPaymentAuthorizationPending(t *testing.T) {
	srv := authServer(t, CodePending, nil)
	defer srv.Close()

	client := NewClient(0)
	resp, err := client.GetPaymentAuthorization(context.Background(), request(srv.URL))
	require.NoError(t, err)
	assert.Nil(t, resp)
}

func TestGetPaymentAuthorizationRejected(t *testing.T) {
	srv := authServer(t, 10001, nil)
	defer srv.Close()

	client := NewClient(0)
	_, err := client.GetPaymentAuthorization(context.Background(), request(srv.URL))
	assert.ErrorIs(t, err, swaperrs.ErrPaymentAuth)
}

func TestNon2xxResponse(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/getPaymentAuthorization", func(c *gin.Context) {
		c.String(http.StatusBadGateway, "upstream down")
	})
	srv := httptest.NewServer(router)
	defer srv.Close()

	client := NewClient(0)
	_, err := client.GetPaymentAuthorization(context.Background(), request(srv.URL))
	assert.ErrorIs(t, err, swaperrs.ErrHttpResponse)
}
