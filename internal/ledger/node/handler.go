package node

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"frost/internal/ledger"
)

const maxCommandBytes = 16 << 20

// Handler serves the node command API on top of a ledger.Gateway.
type Handler struct {
	gateway ledger.Gateway
	logger  *slog.Logger
}

func NewHandler(gateway ledger.Gateway, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{gateway: gateway, logger: logger}
}

// Register mounts the command endpoint at the router root.
func (h *Handler) Register(r chi.Router) {
	r.Post("/", h.HandleCommand)
}

func (h *Handler) HandleCommand(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if r.Header.Get(APIVersionHeader) == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing " + APIVersionHeader + " header"})
		return
	}

	var req commandRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxCommandBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid command body"})
		return
	}

	switch req.Command {
	case CommandGetNewAddress:
		address, err := h.gateway.DeriveAddress(ctx, req.Seed)
		if err != nil {
			h.writeError(w, r, req.Command, err)
			return
		}
		writeJSON(w, http.StatusOK, addressResponse{Address: address})
	case CommandSendBundle:
		hash, err := h.gateway.Submit(ctx, req.Seed, req.Chunks, req.Address)
		if err != nil {
			h.writeError(w, r, req.Command, err)
			return
		}
		h.logger.InfoContext(ctx, "bundle attached",
			"bundle", hash,
			"records", len(req.Chunks),
			"depth", req.Depth,
			"mwm", req.MinWeightMagnitude,
		)
		writeJSON(w, http.StatusOK, sendBundleResponse{Bundle: hash})
	case CommandGetBundle:
		fragments, err := h.gateway.FetchBundle(ctx, req.Bundle)
		if err != nil {
			h.writeError(w, r, req.Command, err)
			return
		}
		writeJSON(w, http.StatusOK, getBundleResponse{Fragments: fragments})
	default:
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "unknown command: " + req.Command})
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, command string, err error) {
	switch {
	case errors.Is(err, ledger.ErrBundleNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, ledger.ErrRejected):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	default:
		h.logger.ErrorContext(r.Context(), "ledger command failed", "command", command, "error", err)
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "ledger unavailable"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
