package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"docmcp/internal/domain"
	"docmcp/internal/infra/dispatch"
)

// maxRequestBody bounds tool parameter payloads.
const maxRequestBody = 4 << 20

// API is the plain JSON surface for clients that do not speak MCP.
type API struct {
	dispatcher *dispatch.Dispatcher
	logger     *zap.Logger
}

func NewAPI(dispatcher *dispatch.Dispatcher, logger *zap.Logger) *API {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &API{
		dispatcher: dispatcher,
		logger:     logger.Named("api"),
	}
}

// Routes wires the API endpoints. An optional mcpHandler is mounted at
// /mcp so one listener serves both surfaces.
func (a *API) Routes(mcpHandler http.Handler) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /tools", a.handleListTools)
	mux.HandleFunc("POST /tools/{name}", a.handleCallTool)
	mux.HandleFunc("POST /execute", a.handleExecute)
	mux.HandleFunc("GET /health", a.handleHealth)
	if mcpHandler != nil {
		mux.Handle("/mcp", mcpHandler)
	}
	return mux
}

func (a *API) handleListTools(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"tools": a.dispatcher.ListTools()})
}

func (a *API) handleCallTool(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	params, err := readBody(r)
	if err != nil {
		a.writeError(w, http.StatusBadRequest, err)
		return
	}
	result := a.dispatcher.Dispatch(r.Context(), domain.ToolCallRequest{
		Name:       name,
		Parameters: params,
	})
	writeJSON(w, statusFor(result), result)
}

func (a *API) handleExecute(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		a.writeError(w, http.StatusBadRequest, err)
		return
	}
	var req domain.ToolCallRequest
	if err := json.Unmarshal(body, &req); err != nil {
		a.writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	if req.Name == "" {
		a.writeError(w, http.StatusBadRequest, fmt.Errorf("name is required"))
		return
	}
	result := a.dispatcher.Dispatch(r.Context(), req)
	writeJSON(w, statusFor(result), result)
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := a.dispatcher.Health(r.Context())
	code := http.StatusOK
	if !status.EngineReachable {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, status)
}

func (a *API) writeError(w http.ResponseWriter, code int, err error) {
	a.logger.Debug("bad request", zap.Error(err))
	writeJSON(w, code, domain.ToolCallResult{
		Success: false,
		Error:   &domain.ErrorDescriptor{Code: domain.CodeValidation, Message: err.Error()},
	})
}

func readBody(r *http.Request) (json.RawMessage, error) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return data, nil
}

// statusFor maps the error taxonomy to HTTP codes; tool results stay
// in the body either way.
func statusFor(result domain.ToolCallResult) int {
	if result.Success {
		return http.StatusOK
	}
	if result.Error == nil {
		return http.StatusInternalServerError
	}
	switch result.Error.Code {
	case domain.CodeValidation, domain.CodeUnsupportedFormat:
		return http.StatusBadRequest
	case domain.CodeNotFound, domain.CodeStaleHandle, domain.CodeNoActiveDocument, domain.CodeNoSelection:
		return http.StatusNotFound
	case domain.CodeEngineUnreachable:
		return http.StatusServiceUnavailable
	case domain.CodeDeadlineExceeded, domain.CodeConversionTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}

// Serve runs the API listener until ctx is canceled.
func Serve(ctx context.Context, addr string, handler http.Handler, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	server := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	errChan := make(chan error, 1)
	go func() {
		logger.Info("http transport listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return fmt.Errorf("http transport failed to start: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http transport shutdown error", zap.Error(err))
			return err
		}
		logger.Info("http transport stopped")
		return nil
	}
}
