package server

import (
	"net/http"
	"strconv"
	"strings"

	"portfolio-gateway/pkg/market"
)

// chainParam reads an optional positive chain id, defaulting to Ethereum.
func chainParam(r *http.Request, name string) (int, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 1, true
	}
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func (s *Server) handleSwapQuote(w http.ResponseWriter, r *http.Request) {
	chainID, ok := chainParam(r, "chainId")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid chainId parameter", "")
		return
	}

	q := r.URL.Query()
	quote, err := s.market.SwapQuote(r.Context(), market.SwapRequest{
		ChainID: chainID,
		Src:     q.Get("src"),
		Dst:     q.Get("dst"),
		Amount:  q.Get("amount"),
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, envelope{
		Success:   true,
		Data:      quote,
		Timestamp: s.now().UTC(),
	})
}

func (s *Server) handleCrossChainQuote(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	quote, err := s.market.CrossChainQuote(r.Context(), market.BridgeRequest{
		SrcChain:      q.Get("srcChain"),
		DstChain:      q.Get("dstChain"),
		SrcToken:      q.Get("srcToken"),
		DstToken:      q.Get("dstToken"),
		Amount:        q.Get("amount"),
		WalletAddress: q.Get("walletAddress"),
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, envelope{
		Success:   true,
		Data:      quote,
		Timestamp: s.now().UTC(),
	})
}

func (s *Server) handleTokens(w http.ResponseWriter, r *http.Request) {
	chainID, ok := chainParam(r, "chainId")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid chainId parameter", "")
		return
	}
	raw := strings.TrimSpace(r.URL.Query().Get("addresses"))
	if raw == "" {
		writeError(w, http.StatusBadRequest, "Token addresses parameter is required", "")
		return
	}

	tokens, err := s.market.Tokens(r.Context(), chainID, strings.Split(raw, ","))
	if err != nil {
		s.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, envelope{
		Success:   true,
		Data:      tokens,
		Timestamp: s.now().UTC(),
	})
}

func (s *Server) handleTokenDetails(w http.ResponseWriter, r *http.Request) {
	chainID, ok := chainParam(r, "chainId")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid chainId parameter", "")
		return
	}
	q := r.URL.Query()
	if strings.TrimSpace(q.Get("tokenAddress")) == "" {
		writeError(w, http.StatusBadRequest, "Token address parameter is required", "")
		return
	}

	details, err := s.market.TokenDetails(r.Context(), chainID, q.Get("tokenAddress"), q.Get("refresh") == "true")
	if err != nil {
		s.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, envelope{
		Success:   true,
		Data:      details,
		Timestamp: s.now().UTC(),
		Fallback:  details.Fallback,
		Reason:    details.Reason,
	})
}
