// This is a http type of reporter. It publishes the engine's swap records on
// http routes for operators.

package reporter

import (
	"net/http"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"

	"github.com/lnswap-io/swapclient-go/swapengine"
)

const (
	RouteHealth = "/health"
	RouteSwaps  = "/swaps"
	RouteSwap   = "/swaps/:hash"
)

type HttpReporter struct {
	serverIP   string // listen ip
	serverPort string // listen port

	engine *swapengine.Engine
}

func NewHttpReporter(serverIP, serverPort string, engine *swapengine.Engine) *HttpReporter {
	return &HttpReporter{
		serverIP:   serverIP,
		serverPort: serverPort,
		engine:     engine,
	}
}

// Hook up routes & handlers
func (h *HttpReporter) SetupRouter() *gin.Engine {
	router := gin.Default()

	router.GET(RouteHealth, Health)
	router.GET(RouteSwaps, h.Swaps)
	router.GET(RouteSwap, h.Swap)

	return router
}

// Hook up router & ip:port
func (h *HttpReporter) Run() error {
	router := h.SetupRouter()
	return router.Run(h.serverIP + ":" + h.serverPort)
}

func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type swapView struct {
	PaymentHash string `json:"paymentHash"`
	State       string `json:"state"`
	CommitTxID  string `json:"commitTxId,omitempty"`
	ClaimTxID   string `json:"claimTxId,omitempty"`
	Expiry      uint64 `json:"expiry"`
}

func viewOf(s *swapengine.Swap) swapView {
	return swapView{
		PaymentHash: s.PaymentHash.Hex(),
		State:       s.State.String(),
		CommitTxID:  s.CommitTxID,
		ClaimTxID:   s.ClaimTxID,
		Expiry:      s.Expiry,
	}
}

// Publish all tracked swaps.
func (h *HttpReporter) Swaps(c *gin.Context) {
	swaps := h.engine.Swaps()

	views := make([]swapView, 0, len(swaps))
	for _, s := range swaps {
		views = append(views, viewOf(s))
	}
	c.JSON(http.StatusOK, gin.H{"data": views})
}

// Publish a single swap by payment hash.
func (h *HttpReporter) Swap(c *gin.Context) {
	hash := c.Param("hash")
	if hash == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "hash must be provided"})
		return
	}

	s := h.engine.GetSwap(ethcommon.HexToHash(hash))
	if s == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no swap found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": viewOf(s)})
}
