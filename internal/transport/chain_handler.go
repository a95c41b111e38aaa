package transport

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/goodnatureofminers/btckernel/internal/blocktree"
	"github.com/goodnatureofminers/btckernel/internal/primitives"
)

var errNotFound = errors.New("not found")

// ChainHandler serves read only views of the chain state as JSON.
type ChainHandler struct {
	chain   ChainReader
	decoder scriptDecoder
	logger  *zap.Logger
}

// NewChainHandler returns the HTTP API rooted at /v1 plus /healthz, with
// CORS enabled.
func NewChainHandler(chain ChainReader, logger *zap.Logger) http.Handler {
	h := &ChainHandler{chain: chain, decoder: scriptDecoder{params: chain.Params()}, logger: logger}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", h.health)
	mux.HandleFunc("GET /v1/chain/tip", h.tip)
	mux.HandleFunc("GET /v1/chain/blocks/{height}", h.blockByHeight)
	mux.HandleFunc("GET /v1/blocks/{hash}", h.blockByHash)
	mux.HandleFunc("GET /v1/coins/{txid}/{vout}", h.coin)
	return cors.Default().Handler(mux)
}

func (h *ChainHandler) health(w http.ResponseWriter, _ *http.Request) {
	h.write(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *ChainHandler) tip(w http.ResponseWriter, _ *http.Request) {
	active := h.chain.ActiveChain()
	tip := active.Tip()
	if tip == nil {
		h.fail(w, http.StatusNotFound, errNotFound)
		return
	}
	h.write(w, http.StatusOK, Tip{Height: tip.Height(), Hash: tip.Hash().String()})
}

func (h *ChainHandler) blockByHeight(w http.ResponseWriter, r *http.Request) {
	height, err := strconv.ParseInt(r.PathValue("height"), 10, 32)
	if err != nil || height < 0 {
		h.fail(w, http.StatusBadRequest, errors.New("invalid height"))
		return
	}
	active := h.chain.ActiveChain()
	entry := active.ByHeight(int32(height))
	if entry == nil {
		h.fail(w, http.StatusNotFound, errNotFound)
		return
	}
	h.writeBlock(w, r, entry.Hash())
}

func (h *ChainHandler) blockByHash(w http.ResponseWriter, r *http.Request) {
	hash, err := primitives.ParseHash(r.PathValue("hash"))
	if err != nil {
		h.fail(w, http.StatusBadRequest, errors.New("invalid block hash"))
		return
	}
	h.writeBlock(w, r, hash)
}

// writeBlock answers with the full block when its data is stored and with the
// header alone otherwise. ?header=1 skips reading the block.
func (h *ChainHandler) writeBlock(w http.ResponseWriter, r *http.Request, hash chainhash.Hash) {
	entry := h.chain.LookupEntry(hash)
	if entry == nil {
		h.fail(w, http.StatusNotFound, errNotFound)
		return
	}
	active := h.chain.ActiveChain()
	if r.URL.Query().Get("header") == "1" || !entry.Status().Has(blocktree.StatusHaveData) {
		h.write(w, http.StatusOK, newBlockHeader(entry, active))
		return
	}
	block, err := h.chain.ReadBlock(entry)
	if err != nil {
		h.logger.Error("read block", zap.Stringer("hash", hash), zap.Error(err))
		h.fail(w, http.StatusInternalServerError, errors.New("read block failed"))
		return
	}
	h.write(w, http.StatusOK, newBlock(entry, active, block))
}

func (h *ChainHandler) coin(w http.ResponseWriter, r *http.Request) {
	txid, err := primitives.ParseHash(r.PathValue("txid"))
	if err != nil {
		h.fail(w, http.StatusBadRequest, errors.New("invalid txid"))
		return
	}
	vout, err := strconv.ParseUint(r.PathValue("vout"), 10, 32)
	if err != nil {
		h.fail(w, http.StatusBadRequest, errors.New("invalid vout"))
		return
	}
	coin, ok, err := h.chain.GetCoin(outPoint(txid, uint32(vout)))
	if err != nil {
		h.logger.Error("get coin", zap.Stringer("txid", txid), zap.Uint64("vout", vout), zap.Error(err))
		h.fail(w, http.StatusInternalServerError, errors.New("coin lookup failed"))
		return
	}
	if !ok {
		h.fail(w, http.StatusNotFound, errNotFound)
		return
	}
	h.write(w, http.StatusOK, newCoin(txid, uint32(vout), coin, h.decoder))
}

func (h *ChainHandler) fail(w http.ResponseWriter, status int, err error) {
	h.write(w, status, errorResponse{Error: err.Error()})
}

func (h *ChainHandler) write(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Warn("write response", zap.Error(err))
	}
}
