package rpc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"sodap/core"
	coreerrors "sodap/core/errors"
	"sodap/observability"
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeUnauthorized   = -32001
	codeServerError    = -32000
	codeDuplicateTx    = -32010
	codeRateLimited    = -32020
	codeRejected       = -32030
)

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      json.RawMessage   `json:"id,omitempty"`
}

type RPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  interface{}     `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (e *RPCError) Error() string { return e.Message }

// ErrorData carries the ledger failure class of a rejected call.
type ErrorData struct {
	Code coreerrors.Code `json:"code"`
}

// failure pairs an RPC error with the HTTP status it is written with.
type failure struct {
	status int
	err    *RPCError
}

func (f *failure) Error() string { return f.err.Message }

func invalidParams(format string, args ...interface{}) error {
	return &failure{status: http.StatusBadRequest, err: &RPCError{Code: codeInvalidParams, Message: fmt.Sprintf(format, args...)}}
}

func writeError(w http.ResponseWriter, status int, id json.RawMessage, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id json.RawMessage, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

// statusFor maps a ledger failure class onto an HTTP status.
func statusFor(code coreerrors.Code) int {
	switch code {
	case coreerrors.CodeInvalidInput:
		return http.StatusBadRequest
	case coreerrors.CodeUnauthorized:
		return http.StatusForbidden
	case coreerrors.CodeNotFound:
		return http.StatusNotFound
	case coreerrors.CodeAlreadyExists:
		return http.StatusConflict
	case coreerrors.CodeModulePaused:
		return http.StatusServiceUnavailable
	case coreerrors.CodeInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusUnprocessableEntity
	}
}

// translate converts a handler error into its wire form.
func translate(err error) *failure {
	var f *failure
	if errors.As(err, &f) {
		return f
	}
	code := coreerrors.CodeOf(err)
	rpcCode := codeRejected
	switch {
	case errors.Is(err, core.ErrAlreadySeen):
		rpcCode = codeDuplicateTx
	case code == coreerrors.CodeInvalidInput:
		rpcCode = codeInvalidParams
	case code == coreerrors.CodeUnauthorized:
		rpcCode = codeUnauthorized
	case code == coreerrors.CodeInternal:
		rpcCode = codeServerError
	}
	message := err.Error()
	if code == coreerrors.CodeInternal {
		message = "internal error"
	}
	return &failure{status: statusFor(code), err: &RPCError{Code: rpcCode, Message: message, Data: ErrorData{Code: code}}}
}

type responseRecorder struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (r *responseRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *responseRecorder) Write(p []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	r.body.Write(p)
	return r.ResponseWriter.Write(p)
}

type methodHandler func(r *http.Request, params []json.RawMessage) (interface{}, error)

func (s *Server) methods() map[string]methodHandler {
	return map[string]methodHandler{
		"sodap_status":            s.handleStatus,
		"sodap_height":            s.handleHeight,
		"sodap_stateRoot":         s.handleStateRoot,
		"sodap_getTransaction":    s.handleGetTransaction,
		"sodap_deriveAddress":     s.handleDeriveAddress,
		"sodap_getStore":          s.handleGetStore,
		"sodap_getProduct":        s.handleGetProduct,
		"sodap_listProducts":      s.handleListProducts,
		"sodap_getEscrow":         s.handleGetEscrow,
		"sodap_getReceipt":        s.handleGetReceipt,
		"sodap_getLoyaltyMint":    s.handleGetLoyaltyMint,
		"sodap_getPoints":         s.handleGetPoints,
		"sodap_getBalance":        s.handleGetBalance,
		"sodap_getProfile":        s.handleGetProfile,
		"sodap_getPlatformAdmins": s.handleGetPlatformAdmins,
		"sodap_getPausedModules":  s.handleGetPausedModules,
	}
}

// handle is the JSON-RPC entry point.
func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	rec := &responseRecorder{ResponseWriter: w}
	method := ""
	defer func() {
		status := rec.status
		if status == 0 {
			status = http.StatusOK
		}
		observability.RPC().Observe(method, status, time.Since(start))
	}()

	reader := http.MaxBytesReader(rec, r.Body, s.maxBody)
	defer func() {
		_ = reader.Close()
	}()
	rec.Header().Set("Content-Type", "application/json")

	body, err := io.ReadAll(reader)
	if err != nil {
		status := http.StatusBadRequest
		message := "failed to read request body"
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			status = http.StatusRequestEntityTooLarge
			message = fmt.Sprintf("request body exceeds %d bytes", s.maxBody)
		}
		writeError(rec, status, nil, codeInvalidRequest, message, err.Error())
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		writeError(rec, http.StatusBadRequest, nil, codeInvalidRequest, "request body required", nil)
		return
	}

	req := &RPCRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		writeError(rec, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(rec, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported jsonrpc version", req.JSONRPC)
		return
	}
	if req.Method == "" {
		writeError(rec, http.StatusBadRequest, req.ID, codeInvalidRequest, "method required", nil)
		return
	}
	if s.ledger == nil {
		writeError(rec, http.StatusServiceUnavailable, req.ID, codeServerError, "ledger unavailable", nil)
		return
	}

	if req.Method == "sodap_sendTransaction" {
		method = req.Method
		s.handleSendTransaction(rec, r, req, body)
		return
	}
	handler, ok := s.methods()[req.Method]
	if !ok {
		writeError(rec, http.StatusNotFound, req.ID, codeMethodNotFound, "method not found", req.Method)
		return
	}
	method = req.Method
	result, err := handler(r, req.Params)
	if err != nil {
		f := translate(err)
		writeError(rec, f.status, req.ID, f.err.Code, f.err.Message, f.err.Data)
		return
	}
	writeResult(rec, req.ID, result)
}

// handleSendTransaction applies one signed transaction. It is bearer-gated,
// rate limited per source and, with an Idempotency-Key header, replays the
// first response for repeated bodies.
func (s *Server) handleSendTransaction(w *responseRecorder, r *http.Request, req *RPCRequest, body []byte) {
	if authErr := s.requireAuth(r); authErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
		return
	}
	source := s.clientSource(r)
	now := s.now()
	if !s.limiter.allow(source, now) {
		observability.RPC().RecordThrottle()
		writeError(w, http.StatusTooManyRequests, req.ID, codeRateLimited, "rate limit exceeded", source)
		return
	}

	key := r.Header.Get("Idempotency-Key")
	var requestHash string
	if key != "" && s.idempotency != nil {
		requestHash = RequestHash(body)
		cached, found, err := s.idempotency.Lookup(key, requestHash, now)
		switch {
		case errors.Is(err, ErrIdempotencyConflict):
			writeError(w, http.StatusConflict, req.ID, codeInvalidRequest, err.Error(), key)
			return
		case err != nil:
			s.logger.Error("idempotency lookup failed", slog.String("error", err.Error()))
			writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "idempotency store unavailable", nil)
			return
		case found:
			observability.RPC().RecordReplay()
			w.Header().Set("Idempotent-Replayed", "true")
			if cached.StatusCode != http.StatusOK {
				w.WriteHeader(cached.StatusCode)
			}
			_, _ = w.Write(cached.Body)
			return
		}
	}

	s.sendTransaction(w, r, req)

	if key != "" && s.idempotency != nil && w.status < http.StatusInternalServerError {
		if err := s.idempotency.Remember(key, requestHash, w.status, w.body.Bytes(), now); err != nil {
			s.logger.Error("idempotency store failed", slog.String("error", err.Error()))
		}
	}
}

func (s *Server) sendTransaction(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	tx, err := decodeTransaction(req.Params)
	if err != nil {
		f := translate(err)
		writeError(w, f.status, req.ID, f.err.Code, f.err.Message, f.err.Data)
		return
	}
	res, err := s.ledger.Apply(r.Context(), tx)
	if err != nil {
		f := translate(err)
		writeError(w, f.status, req.ID, f.err.Code, f.err.Message, f.err.Data)
		return
	}
	writeResult(w, req.ID, transactionResult(res))
}
