package httpapi

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	chainrt "github.com/rmacdonaldsmith/facetproxy-go/internal/chain"
	memlog "github.com/rmacdonaldsmith/facetproxy-go/internal/txlog"
	"github.com/rmacdonaldsmith/facetproxy-go/pkg/abi"
	"github.com/rmacdonaldsmith/facetproxy-go/pkg/chain"
	"github.com/rmacdonaldsmith/facetproxy-go/pkg/proxy"
	"github.com/rmacdonaldsmith/facetproxy-go/pkg/txlog"
)

// maxListLimit caps the number of receipts one list request returns
const maxListLimit = 1000

// Handlers contains all HTTP request handlers
type Handlers struct {
	node      chain.Node
	jwtAuth   *JWTAuth
	keepAlive time.Duration
	logger    *zap.Logger
}

// NewHandlers creates a new handlers instance
func NewHandlers(node chain.Node, jwtAuth *JWTAuth, keepAlive time.Duration, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{
		node:      node,
		jwtAuth:   jwtAuth,
		keepAlive: keepAlive,
		logger:    logger,
	}
}

// Auth endpoints

// Login handles POST /api/v1/auth/login. Development-style: the token is
// issued for whatever identity the caller claims.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req AuthRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	id, err := proxy.ParseIdentity(req.Identity)
	if err != nil {
		h.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	token, expiresAt, err := h.jwtAuth.GenerateToken(id)
	if err != nil {
		h.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	h.writeJSON(w, AuthResponse{
		Token:     token,
		Identity:  id.String(),
		ExpiresAt: expiresAt,
	}, http.StatusOK)
}

// Contract endpoints

// ListContracts handles GET /api/v1/contracts
func (h *Handlers) ListContracts(w http.ResponseWriter, r *http.Request) {
	infos, err := h.node.Contracts(r.Context())
	if err != nil {
		h.writeNodeError(w, err)
		return
	}
	if infos == nil {
		infos = []chain.ContractInfo{}
	}
	h.writeJSON(w, ContractsResponse{Contracts: infos}, http.StatusOK)
}

// ProxyOwner handles GET /api/v1/proxy/{addr}/owner
func (h *Handlers) ProxyOwner(w http.ResponseWriter, r *http.Request) {
	addr, ok := h.pathAddress(w, r)
	if !ok {
		return
	}

	owner, present, err := h.node.ProxyOwner(r.Context(), addr)
	if err != nil {
		h.writeNodeError(w, err)
		return
	}

	resp := OwnerResponse{Proxy: addr, Revoked: !present}
	if present {
		resp.Owner = &owner
	}
	h.writeJSON(w, resp, http.StatusOK)
}

// ListRoutes handles GET /api/v1/proxy/{addr}/routes
func (h *Handlers) ListRoutes(w http.ResponseWriter, r *http.Request) {
	addr, ok := h.pathAddress(w, r)
	if !ok {
		return
	}

	routes, err := h.node.ProxyRoutes(r.Context(), addr)
	if err != nil {
		h.writeNodeError(w, err)
		return
	}

	resp := RoutesResponse{Proxy: addr, Routes: make([]RouteInfo, 0, len(routes))}
	for _, route := range routes {
		resp.Routes = append(resp.Routes, RouteInfo{Selector: route.Selector, Implementation: route.Implementation})
	}
	h.writeJSON(w, resp, http.StatusOK)
}

// GetRoute handles GET /api/v1/proxy/{addr}/routes/{selector}
func (h *Handlers) GetRoute(w http.ResponseWriter, r *http.Request) {
	addr, ok := h.pathAddress(w, r)
	if !ok {
		return
	}
	sel, ok := h.pathSelector(w, r)
	if !ok {
		return
	}

	impl, routed, err := h.node.ProxyRoute(r.Context(), addr, sel)
	if err != nil {
		h.writeNodeError(w, err)
		return
	}
	if routed {
		h.writeJSON(w, RouteInfo{Selector: sel, Implementation: impl}, http.StatusOK)
		return
	}
	h.writeError(w, fmt.Sprintf("selector %s is not routed", sel), http.StatusNotFound)
}

// SetRoute handles PUT /api/v1/proxy/{addr}/routes/{selector}
func (h *Handlers) SetRoute(w http.ResponseWriter, r *http.Request) {
	admin, ok := h.proxyAdmin(w, r)
	if !ok {
		return
	}
	sel, ok := h.pathSelector(w, r)
	if !ok {
		return
	}

	var req SetRouteRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	impl, err := proxy.ParseAddress(req.Implementation)
	if err != nil {
		h.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	receipt, err := admin.SetFacetForSelector(r.Context(), sel, impl)
	h.writeTxResult(w, receipt, err)
}

// DeleteRoute handles DELETE /api/v1/proxy/{addr}/routes/{selector}
func (h *Handlers) DeleteRoute(w http.ResponseWriter, r *http.Request) {
	admin, ok := h.proxyAdmin(w, r)
	if !ok {
		return
	}
	sel, ok := h.pathSelector(w, r)
	if !ok {
		return
	}

	receipt, err := admin.RemoveSelector(r.Context(), sel)
	h.writeTxResult(w, receipt, err)
}

// TransferOwnership handles POST /api/v1/proxy/{addr}/ownership/transfer
func (h *Handlers) TransferOwnership(w http.ResponseWriter, r *http.Request) {
	admin, ok := h.proxyAdmin(w, r)
	if !ok {
		return
	}

	var req TransferRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	newOwner, err := proxy.ParseIdentity(req.NewOwner)
	if err != nil {
		h.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	receipt, err := admin.TransferOwnership(r.Context(), newOwner)
	h.writeTxResult(w, receipt, err)
}

// RevokeOwnership handles POST /api/v1/proxy/{addr}/ownership/revoke
func (h *Handlers) RevokeOwnership(w http.ResponseWriter, r *http.Request) {
	admin, ok := h.proxyAdmin(w, r)
	if !ok {
		return
	}

	receipt, err := admin.RevokeOwnership(r.Context())
	h.writeTxResult(w, receipt, err)
}

// Transaction endpoints

// Call handles POST /api/v1/call
func (h *Handlers) Call(w http.ResponseWriter, r *http.Request) {
	var req CallRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	to, err := proxy.ParseAddress(req.To)
	if err != nil {
		h.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	var sel proxy.Selector
	switch {
	case req.Signature != "":
		sel = abi.SelectorOf(req.Signature)
	case req.Selector != "":
		sel, err = abi.ParseSelector(req.Selector)
		if err != nil {
			h.writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
	default:
		h.writeError(w, "signature or selector is required", http.StatusBadRequest)
		return
	}

	enc := abi.NewEncoder()
	for _, v := range req.U64 {
		enc.U64(v)
	}
	if req.Args != "" {
		raw, err := hex.DecodeString(strings.TrimPrefix(req.Args, "0x"))
		if err != nil {
			h.writeError(w, "args must be hex: "+err.Error(), http.StatusBadRequest)
			return
		}
		enc.Raw(raw)
	}

	receipt, err := h.node.Call(r.Context(), GetIdentity(r), to, sel, enc.Bytes(), req.Value)
	if err != nil {
		h.writeTxResult(w, nil, err)
		return
	}
	h.writeTxResult(w, receipt, chainrt.ReceiptError(receipt))
}

// GetTx handles GET /api/v1/tx/{id}
func (h *Handlers) GetTx(w http.ResponseWriter, r *http.Request) {
	receipt, err := h.node.TxStatus(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeNodeError(w, err)
		return
	}
	h.writeJSON(w, receipt, http.StatusOK)
}

// ListTx handles GET /api/v1/tx?from={height}&limit={n}
func (h *Handlers) ListTx(w http.ResponseWriter, r *http.Request) {
	from, ok := h.queryInt(w, r, "from", 0)
	if !ok {
		return
	}
	limit, ok := h.queryInt(w, r, "limit", 100)
	if !ok {
		return
	}

	if limit > maxListLimit {
		limit = maxListLimit
	}

	receipts, err := h.node.Receipts().Read(r.Context(), from, int(limit))
	if err != nil {
		h.writeNodeError(w, err)
		return
	}
	if receipts == nil {
		receipts = []*txlog.Receipt{}
	}
	h.writeJSON(w, receipts, http.StatusOK)
}

// Stats handles GET /api/v1/tx/stats
func (h *Handlers) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.node.Receipts().Statistics(r.Context())
	if err != nil {
		h.writeNodeError(w, err)
		return
	}
	h.writeJSON(w, stats, http.StatusOK)
}

// StreamTx handles GET /api/v1/tx/stream?from={height}&to={address} as
// server-sent events, one receipt per message.
func (h *Handlers) StreamTx(w http.ResponseWriter, r *http.Request) {
	from, ok := h.queryInt(w, r, "from", 0)
	if !ok {
		return
	}
	var filter *proxy.Address
	if raw := r.URL.Query().Get("to"); raw != "" {
		addr, err := proxy.ParseAddress(raw)
		if err != nil {
			h.writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		filter = &addr
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	ctx := r.Context()
	receipts, errs := h.node.Receipts().Watch(ctx, from)

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	flush(w)
	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			if _, err := w.Write([]byte(": ping\n\n")); err != nil {
				return
			}
			flush(w)

		case receipt, open := <-receipts:
			if !open {
				if err := <-errs; err != nil && ctx.Err() == nil {
					h.logger.Warn("receipt stream ended", zap.Error(err))
				}
				return
			}
			if filter != nil && receipt.To != *filter {
				continue
			}
			if err := h.writeSSEMessage(w, receipt); err != nil {
				return
			}
			flush(w)
		}
	}
}

// Health handles GET /api/v1/health
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	health, err := h.node.Health(r.Context())
	if err != nil {
		h.writeError(w, "Failed to get health status", http.StatusInternalServerError)
		return
	}

	statusCode := http.StatusOK
	if !health.Healthy {
		statusCode = http.StatusServiceUnavailable
	}
	h.writeJSON(w, health, statusCode)
}

// Helper methods

// proxyAdmin binds the proxy in the path as the authenticated caller.
func (h *Handlers) proxyAdmin(w http.ResponseWriter, r *http.Request) (*chainrt.ProxyAdmin, bool) {
	addr, ok := h.pathAddress(w, r)
	if !ok {
		return nil, false
	}
	return chainrt.NewProxyAdmin(h.node, addr, GetIdentity(r)), true
}

func (h *Handlers) pathAddress(w http.ResponseWriter, r *http.Request) (proxy.Address, bool) {
	addr, err := proxy.ParseAddress(r.PathValue("addr"))
	if err != nil {
		h.writeError(w, err.Error(), http.StatusBadRequest)
		return proxy.Address{}, false
	}
	return addr, true
}

func (h *Handlers) pathSelector(w http.ResponseWriter, r *http.Request) (proxy.Selector, bool) {
	sel, err := abi.ParseSelector(r.PathValue("selector"))
	if err != nil {
		h.writeError(w, err.Error(), http.StatusBadRequest)
		return 0, false
	}
	return sel, true
}

func (h *Handlers) queryInt(w http.ResponseWriter, r *http.Request, name string, def int64) (int64, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v < 0 {
		h.writeError(w, fmt.Sprintf("%s must be a non-negative integer", name), http.StatusBadRequest)
		return 0, false
	}
	return v, true
}

// decodeJSON validates the content type and decodes the body into v.
func (h *Handlers) decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "application/json") {
		h.writeError(w, "Content-Type must be application/json", http.StatusBadRequest)
		return false
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.writeError(w, "Invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

// revertStatus maps a revert kind onto an HTTP status.
func revertStatus(kind proxy.RevertKind) int {
	switch kind {
	case proxy.RevertAuthorization:
		return http.StatusForbidden
	case proxy.RevertUnresolvedSelector:
		return http.StatusNotFound
	default:
		return http.StatusUnprocessableEntity
	}
}

// writeTxResult writes the receipt of a successful transaction, or the error
// of a reverted or failed one.
func (h *Handlers) writeTxResult(w http.ResponseWriter, receipt *txlog.Receipt, err error) {
	if err == nil {
		h.writeJSON(w, receipt, http.StatusOK)
		return
	}

	var txID string
	if receipt != nil {
		txID = receipt.TxID
	}

	if rev, ok := proxy.AsRevert(err); ok {
		code := revertStatus(rev.Kind)
		h.writeJSON(w, ErrorResponse{
			Error:      http.StatusText(code),
			Message:    "transaction reverted: " + rev.Reason,
			Code:       code,
			RevertKind: rev.Kind.String(),
			Reason:     rev.Reason,
			TxID:       txID,
		}, code)
		return
	}

	if errors.Is(err, chainrt.ErrTxFailed) {
		h.writeJSON(w, ErrorResponse{
			Error:   http.StatusText(http.StatusBadGateway),
			Message: err.Error(),
			Code:    http.StatusBadGateway,
			TxID:    txID,
		}, http.StatusBadGateway)
		return
	}

	h.writeNodeError(w, err)
}

// writeNodeError maps node errors that carry no receipt.
func (h *Handlers) writeNodeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, chainrt.ErrNotProxy), errors.Is(err, memlog.ErrNotFound):
		h.writeError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, memlog.ErrNegativeHeight), errors.Is(err, memlog.ErrNegativeMaxCount):
		h.writeError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, chainrt.ErrRuntimeClosed), errors.Is(err, memlog.ErrClosed):
		h.writeError(w, err.Error(), http.StatusServiceUnavailable)
	default:
		h.logger.Error("request failed", zap.Error(err))
		h.writeError(w, err.Error(), http.StatusInternalServerError)
	}
}

// writeError writes an error response as JSON
func (h *Handlers) writeError(w http.ResponseWriter, message string, statusCode int) {
	h.writeJSON(w, ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	}, statusCode)
}

// writeJSON writes a JSON response
func (h *Handlers) writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Warn("failed to write response", zap.Error(err))
	}
}

// writeSSEMessage writes a receipt as a server-sent event data message
func (h *Handlers) writeSSEMessage(w http.ResponseWriter, receipt *txlog.Receipt) error {
	jsonData, err := json.Marshal(receipt)
	if err != nil {
		return fmt.Errorf("failed to marshal SSE message: %w", err)
	}

	_, err = fmt.Fprintf(w, "id: %d\ndata: %s\n\n", receipt.Height, jsonData)
	return err
}

func flush(w http.ResponseWriter) {
	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}
}
