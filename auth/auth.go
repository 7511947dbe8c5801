package auth

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	logger "github.com/sirupsen/logrus"

	"github.com/lnswap-io/swapclient-go/common"
	"github.com/lnswap-io/swapclient-go/evmclient"
	"github.com/lnswap-io/swapclient-go/swapdata"
	"github.com/lnswap-io/swapclient-go/swaperrs"
)

// Authorization message prefixes, one per signed swap transition.
const (
	PrefixInitialize      = "initialize"
	PrefixClaimInitialize = "claim_initialize"
	PrefixRefund          = "refund"
	PrefixData            = "data"
)

const (
	// DefaultAuthGracePeriod is the minimum remaining validity an
	// authorization must have to be accepted.
	DefaultAuthGracePeriod = 300 * time.Second

	// DefaultClaimGracePeriod is the extra window an init authorization must
	// leave before the swap expiry.
	DefaultClaimGracePeriod = 600 * time.Second
)

// Config carries the grace windows. Zero values fall back to the defaults.
type Config struct {
	AuthGracePeriod  time.Duration
	ClaimGracePeriod time.Duration
}

func (c *Config) authGrace() time.Duration {
	if c.AuthGracePeriod == 0 {
		return DefaultAuthGracePeriod
	}
	return c.AuthGracePeriod
}

func (c *Config) claimGrace() time.Duration {
	if c.ClaimGracePeriod == 0 {
		return DefaultClaimGracePeriod
	}
	return c.ClaimGracePeriod
}

// CommitmentReader reads the current on-chain commitment word at a payment
// hash; the init/claim-init verifications use it for replay protection.
type CommitmentReader interface {
	GetCommitment(ctx context.Context, paymentHash ethcommon.Hash) (*big.Int, error)
}

// MessageHash is the unprefixed authorization digest:
// keccak256(prefix ‖ commitHash ‖ uint64 BE timeout). Signers wrap it in the
// EIP-191 personal envelope.
func MessageHash(prefix string, commitHash ethcommon.Hash, timeout uint64) ethcommon.Hash {
	return crypto.Keccak256Hash(common.EncodePacked(prefix, commitHash, timeout))
}

// PackTimeoutV packs the on-chain submission word: v in the low byte, the
// timeout shifted left 8 bits.
func PackTimeoutV(timeout uint64, v byte) *big.Int {
	packed := new(big.Int).Lsh(new(big.Int).SetUint64(timeout), 8)
	return packed.Or(packed, big.NewInt(int64(v)))
}

// Sign produces the 65-byte [R ‖ S ‖ V] authorization signature for the given
// prefix over the swap's commit hash.
func Sign(signer evmclient.Signer, prefix string, swap *swapdata.SwapData, timeout uint64) ([]byte, error) {
	commitHash, err := swap.CommitHash()
	if err != nil {
		return nil, err
	}
	msg := MessageHash(prefix, commitHash, timeout)
	return signer.SignPersonal(msg[:])
}

// SignData signs an arbitrary payload digest under the data prefix.
func SignData(signer evmclient.Signer, payload []byte, timeout uint64) ([]byte, error) {
	msg := MessageHash(PrefixData, crypto.Keccak256Hash(payload), timeout)
	return signer.SignPersonal(msg[:])
}

// RecoverSigner recovers the address behind a 65-byte authorization
// signature.
func RecoverSigner(prefix string, commitHash ethcommon.Hash, timeout uint64, sig []byte) (ethcommon.Address, error) {
	if len(sig) != 65 {
		return ethcommon.Address{}, swaperrs.SignatureVerification("signature must be 65 bytes")
	}

	msg := MessageHash(prefix, commitHash, timeout)

	sigCopy := make([]byte, 65)
	copy(sigCopy, sig)
	if sigCopy[64] >= 27 {
		sigCopy[64] -= 27
	}

	pub, err := crypto.SigToPub(accounts.TextHash(msg[:]), sigCopy)
	if err != nil {
		return ethcommon.Address{}, swaperrs.SignatureVerification("signature recovery failed")
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// Verifier checks authorization signatures against the clock and the on-chain
// commitment state.
type Verifier struct {
	cfg         Config
	commitments CommitmentReader

	// now is swappable in tests
	now func() time.Time
}

func NewVerifier(cfg Config, commitments CommitmentReader) *Verifier {
	return &Verifier{
		cfg:         cfg,
		commitments: commitments,
		now:         time.Now,
	}
}

// VerifyInit checks an offerer's init authorization: remaining validity, the
// claim window before swap expiry, the replay nonce and the recovered signer.
func (v *Verifier) VerifyInit(ctx context.Context, swap *swapdata.SwapData, timeout uint64, sig []byte) error {
	now := uint64(v.now().Unix())

	if err := v.checkTimeout(timeout, now); err != nil {
		return err
	}

	window := uint64((v.cfg.authGrace() + v.cfg.claimGrace()) / time.Second)
	if swap.Expiry() < now+window {
		return swaperrs.SignatureVerification("expiry too close")
	}

	if err := v.checkReplay(ctx, swap); err != nil {
		return err
	}

	return v.checkSigner(PrefixInitialize, swap, timeout, sig, swap.Offerer)
}

// VerifyClaimInit checks a claimer's claim-init authorization.
func (v *Verifier) VerifyClaimInit(ctx context.Context, swap *swapdata.SwapData, timeout uint64, sig []byte) error {
	now := uint64(v.now().Unix())

	if err := v.checkTimeout(timeout, now); err != nil {
		return err
	}

	if err := v.checkReplay(ctx, swap); err != nil {
		return err
	}

	return v.checkSigner(PrefixClaimInitialize, swap, timeout, sig, swap.Claimer)
}

// VerifyRefund checks an offerer's refund authorization.
func (v *Verifier) VerifyRefund(ctx context.Context, swap *swapdata.SwapData, timeout uint64, sig []byte) error {
	now := uint64(v.now().Unix())

	if err := v.checkTimeout(timeout, now); err != nil {
		return err
	}

	return v.checkSigner(PrefixRefund, swap, timeout, sig, swap.Offerer)
}

func (v *Verifier) checkTimeout(timeout, now uint64) error {
	grace := uint64(v.cfg.authGrace() / time.Second)
	if timeout < now+grace {
		return swaperrs.SignatureVerification("authorization expired")
	}
	return nil
}

func (v *Verifier) checkReplay(ctx context.Context, swap *swapdata.SwapData) error {
	onChain, err := v.commitments.GetCommitment(ctx, swap.PaymentHash)
	if err != nil {
		return err
	}
	if onChain.Cmp(new(big.Int).SetUint64(uint64(swap.Index()))) != 0 {
		logger.WithFields(logger.Fields{
			"paymentHash": swap.PaymentHash.Hex(),
			"onChain":     onChain,
			"index":       swap.Index(),
		}).Warn("commitment index mismatch")
		return swaperrs.SignatureVerification("invalid nonce")
	}
	return nil
}

func (v *Verifier) checkSigner(
	prefix string,
	swap *swapdata.SwapData,
	timeout uint64,
	sig []byte,
	expected ethcommon.Address,
) error {
	commitHash, err := swap.CommitHash()
	if err != nil {
		return err
	}
	recovered, err := RecoverSigner(prefix, commitHash, timeout, sig)
	if err != nil {
		return err
	}
	if recovered != expected {
		return swaperrs.SignatureVerification("wrong signer")
	}
	return nil
}

// IsExpired reports whether an authorization is past its hard deadline.
func (v *Verifier) IsExpired(timeout uint64) bool {
	grace := uint64(v.cfg.authGrace() / time.Second)
	return uint64(v.now().Unix()) > timeout+grace
}

// IsSoftExpired reports the earlier UI deadline: the authorization is still
// technically valid but too close to its timeout to rely on.
func (v *Verifier) IsSoftExpired(timeout uint64) bool {
	grace := uint64(v.cfg.authGrace() / time.Second)
	return uint64(v.now().Unix())+grace > timeout
}

// SetClock overrides the verifier's clock, for tests.
func (v *Verifier) SetClock(now func() time.Time) {
	v.now = now
}
