// Package basenode declares the RPC contract the output manager and
// validation task consume from a configured base node. The transport that
// implements Client — TCP/Tor/SOCKS5 selection, the P2P connectivity
// stack, the actual wire framing — is out of scope for this module; the
// core only ever sees this interface, so it never inspects the concrete
// backend (a Neutrino-backed light client, a full node's JSON-RPC
// service, or a test double).
package basenode

import (
	"context"

	"github.com/pkt-cash/pktd/btcutil/er"
	"github.com/pkt-cash/pktd/chaincfg/chainhash"

	"github.com/pkt-cash/mwcore/crypto"
	"github.com/pkt-cash/mwcore/txo"
)

// RejectionReason enumerates why submit_transaction refused a transaction.
type RejectionReason int

const (
	RejectNone RejectionReason = iota
	RejectOrphan
	RejectTimeLocked
	RejectDoubleSpend
	RejectAlreadyMined
	RejectValidationFailed
)

// SubmissionResponse is the result of submit_transaction.
type SubmissionResponse struct {
	Accepted        bool
	RejectionReason RejectionReason
	IsSynced        bool
}

// TxLocation enumerates where transaction_query found a signature.
type TxLocation int

const (
	LocationNotStored TxLocation = iota
	LocationInMempool
	LocationMined
)

// TransactionQueryResponse is the result of transaction_query.
type TransactionQueryResponse struct {
	Location             TxLocation
	BlockHash            *chainhash.Hash
	Confirmations        int64
	IsSynced             bool
	HeightOfLongestChain int64
}

// BatchQueryEntry is one signature's result within a batch query.
type BatchQueryEntry struct {
	Signature     *crypto.MetadataSignature
	Location      TxLocation
	Confirmations int64
	BlockHeight   int64
}

// BatchQueryResponse is the result of transaction_batch_query.
type BatchQueryResponse struct {
	Responses            []BatchQueryEntry
	IsSynced             bool
	TipHash              chainhash.Hash
	HeightOfLongestChain int64
}

// UtxoQueryEntry is one hash's result within utxo_query.
type UtxoQueryEntry struct {
	MmrPosition  uint64
	MinedHeight  int64
	MinedInBlock chainhash.Hash
	OutputHash   chainhash.Hash
	Output       *txo.TransactionOutput
}

// UtxoQueryResponse is the result of utxo_query.
type UtxoQueryResponse struct {
	Responses            []UtxoQueryEntry
	HeightOfLongestChain int64
	BestBlock            chainhash.Hash
}

// DeletedQueryRequest is the request shape for query_deleted.
type DeletedQueryRequest struct {
	MmrPositions            []uint64
	IncludeDeletedBlockData bool
	ChainMustIncludeHeader  *chainhash.Hash
}

// DeletedQueryResponse is the result of query_deleted.
type DeletedQueryResponse struct {
	DeletedPositions     []uint64
	NotDeletedPositions  []uint64
	BlocksDeletedIn      []chainhash.Hash
	HeightsDeletedAt     []int64
	HeightOfLongestChain int64
	BestBlock            chainhash.Hash
}

// ChainMetadata is the best-known chain tip summary.
type ChainMetadata struct {
	Height    int64
	BestBlock chainhash.Hash
}

// TipInfoResponse is the result of get_tip_info.
type TipInfoResponse struct {
	Metadata ChainMetadata
	IsSynced bool
}

// BlockHeader is the subset of header fields the core ever inspects.
type BlockHeader struct {
	Height int64
	Hash   chainhash.Hash
}

// maxMmrPosition is the 32-bit ceiling query_deleted enforces: positions
// beyond it are rejected with ErrBadRequest rather than silently truncated.
const maxMmrPosition = 1<<32 - 1

// Err identifies the base-node client's error category.
var Err er.ErrorType = er.NewErrorType("basenode.Err")

var (
	// ErrBadRequest mirrors the RPC's BadRequest: malformed input that
	// will never succeed no matter how many times it's retried.
	ErrBadRequest = Err.Code("ErrBadRequest")

	// ErrNotFound mirrors the RPC's NotFound: a legitimately absent
	// header or UTXO.
	ErrNotFound = Err.Code("ErrNotFound")

	// ErrNetwork is surfaced once a caller's bounded retry budget (see
	// validation.DefaultRetries) is exhausted.
	ErrNetwork = Err.Code("ErrNetwork")
)

// ValidatePositions rejects any MMR position outside the 32-bit range
// before a query_deleted call is issued, per §6.
func ValidatePositions(positions []uint64) er.R {
	for _, p := range positions {
		if p > maxMmrPosition {
			return ErrBadRequest.New("mmr position exceeds 32-bit range", nil)
		}
	}
	return nil
}

// Client is the thin remote accessor the output manager and validation
// task drive. Every method is asynchronous; implementations are expected
// to be cheap to clone and backed by a shared connection pool.
type Client interface {
	SubmitTransaction(ctx context.Context, tx *txo.Transaction) (*SubmissionResponse, er.R)
	TransactionQuery(ctx context.Context, sig *crypto.MetadataSignature) (*TransactionQueryResponse, er.R)
	TransactionBatchQuery(ctx context.Context, sigs []*crypto.MetadataSignature) (*BatchQueryResponse, er.R)
	FetchMatchingUtxos(ctx context.Context, hashes []chainhash.Hash) ([]*txo.TransactionOutput, bool, er.R)
	UtxoQuery(ctx context.Context, hashes []chainhash.Hash) (*UtxoQueryResponse, er.R)
	QueryDeleted(ctx context.Context, req DeletedQueryRequest) (*DeletedQueryResponse, er.R)
	GetTipInfo(ctx context.Context) (*TipInfoResponse, er.R)

	// GetHeader and GetHeaderByHeight both dispatch by height today; if
	// an alternate by-hash index was intended for GetHeader, it was
	// never implemented upstream. This preserves that observable
	// behaviour rather than silently fixing it.
	GetHeader(ctx context.Context, height int64) (*BlockHeader, er.R)
	GetHeaderByHeight(ctx context.Context, height int64) (*BlockHeader, er.R)
}

// disabled is a Client that refuses every chain-dependent call with
// ErrNetwork and reports an unsynced node from GetTipInfo, the same
// opt-in-or-silent idiom walletlog uses for its Disabled logger. It lets
// the output manager start up and serve everything except chain-dependent
// operations before a real transport is configured.
type disabled struct{}

// Disabled is the zero-configuration Client: every method except
// GetTipInfo returns ErrNetwork immediately, and GetTipInfo returns a
// response with IsSynced false and no error. None of them blocks or
// panics, so a wallet started without a base-node address still boots.
var Disabled Client = disabled{}

func (disabled) SubmitTransaction(context.Context, *txo.Transaction) (*SubmissionResponse, er.R) {
	return nil, ErrNetwork.New("no base node configured", nil)
}
func (disabled) TransactionQuery(context.Context, *crypto.MetadataSignature) (*TransactionQueryResponse, er.R) {
	return nil, ErrNetwork.New("no base node configured", nil)
}
func (disabled) TransactionBatchQuery(context.Context, []*crypto.MetadataSignature) (*BatchQueryResponse, er.R) {
	return nil, ErrNetwork.New("no base node configured", nil)
}
func (disabled) FetchMatchingUtxos(context.Context, []chainhash.Hash) ([]*txo.TransactionOutput, bool, er.R) {
	return nil, false, ErrNetwork.New("no base node configured", nil)
}
func (disabled) UtxoQuery(context.Context, []chainhash.Hash) (*UtxoQueryResponse, er.R) {
	return nil, ErrNetwork.New("no base node configured", nil)
}
func (disabled) QueryDeleted(context.Context, DeletedQueryRequest) (*DeletedQueryResponse, er.R) {
	return nil, ErrNetwork.New("no base node configured", nil)
}
func (disabled) GetTipInfo(context.Context) (*TipInfoResponse, er.R) {
	return &TipInfoResponse{IsSynced: false}, nil
}
func (disabled) GetHeader(context.Context, int64) (*BlockHeader, er.R) {
	return nil, ErrNetwork.New("no base node configured", nil)
}
func (disabled) GetHeaderByHeight(context.Context, int64) (*BlockHeader, er.R) {
	return nil, ErrNetwork.New("no base node configured", nil)
}
