package api

import (
	"context"
	"io"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gorilla/mux"

	"rosettagw/config"
	"rosettagw/construction"
	"rosettagw/jsonx"
	"rosettagw/logx"
	"rosettagw/monitoring"
	"rosettagw/rosetta"
	"rosettagw/store"
	"rosettagw/syncer"
)

const maxRequestBody = 1 << 20 // 1 MiB

// StatusSource exposes the sync engine's outcome cell to the handlers.
type StatusSource interface {
	Status() syncer.Status
}

// Server hosts the Rosetta Data and Construction APIs. Handlers are
// stateless: every request validates its parameters and resolves to Block
// Store or Ledger Client operations.
type Server struct {
	network  rosetta.NetworkIdentifier
	currency rosetta.Currency
	st       *store.Store
	status   StatusSource
	con      *construction.Service
}

func NewServer(cfg *config.Config, st *store.Store, status StatusSource, con *construction.Service) *Server {
	return &Server{
		network: rosetta.NetworkIdentifier{
			Blockchain: cfg.Network.Blockchain,
			Network:    cfg.Network.Network,
		},
		currency: rosetta.Currency{
			Symbol:   cfg.Currency.Symbol,
			Decimals: cfg.Currency.Decimals,
		},
		st:     st,
		status: status,
		con:    con,
	}
}

type handlerFunc func(ctx context.Context, body []byte) (interface{}, *rosetta.Error)

// Router wires every Rosetta endpoint. All endpoints are POST with JSON
// bodies, per the Rosetta convention.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	endpoints := map[string]handlerFunc{
		"/network/list":            s.networkList,
		"/network/status":          s.networkStatus,
		"/network/options":         s.networkOptions,
		"/block":                   s.block,
		"/block/transaction":       s.blockTransaction,
		"/account/balance":         s.accountBalance,
		"/search/transactions":     s.searchTransactions,
		"/construction/derive":     s.constructionDerive,
		"/construction/preprocess": s.constructionPreprocess,
		"/construction/metadata":   s.constructionMetadata,
		"/construction/payloads":   s.constructionPayloads,
		"/construction/combine":    s.constructionCombine,
		"/construction/parse":      s.constructionParse,
		"/construction/hash":       s.constructionHash,
		"/construction/submit":     s.constructionSubmit,
	}
	for path, fn := range endpoints {
		r.HandleFunc(path, s.handle(path, fn)).Methods(http.MethodPost)
	}
	return r
}

// handle wraps an endpoint with body reading, structured error rendering,
// metrics and a panic guard. A hostile request must never kill the process.
func (s *Server) handle(name string, fn handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				monitoring.IncreasePanicCount()
				logx.Error("API", "panic in ", name, ": ", rec, string(debug.Stack()))
				writeError(w, rosetta.ErrInternal)
				monitoring.RecordAPIRequest(name, "panic")
			}
		}()

		body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
		if err != nil {
			writeError(w, rosetta.ErrInvalidRequest.WithDetail("reason", "unreadable request body"))
			monitoring.RecordAPIRequest(name, "error")
			return
		}
		res, rerr := fn(r.Context(), body)
		if rerr != nil {
			writeError(w, rerr)
			monitoring.RecordAPIRequest(name, "error")
			return
		}
		writeJSON(w, http.StatusOK, res)
		monitoring.RecordAPIRequest(name, "ok")
	}
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := jsonx.NewEncoder(w).Encode(v); err != nil {
		logx.Error("API", "failed to encode response: ", err)
	}
}

// Rosetta renders every application error with HTTP 500 and the structured
// error object in the body.
func writeError(w http.ResponseWriter, rerr *rosetta.Error) {
	writeJSON(w, http.StatusInternalServerError, rerr)
}

// checkNetwork rejects requests addressed to a network this gateway does not
// serve.
func (s *Server) checkNetwork(ni rosetta.NetworkIdentifier) *rosetta.Error {
	if ni.Blockchain != s.network.Blockchain || ni.Network != s.network.Network {
		return rosetta.ErrUnsupportedNetwork.
			WithDetail("requested", ni.Blockchain+"/"+ni.Network).
			WithDetail("served", s.network.Blockchain+"/"+s.network.Network)
	}
	return nil
}

func decode(body []byte, v interface{}) *rosetta.Error {
	if err := jsonx.Unmarshal(body, v); err != nil {
		return rosetta.ErrInvalidRequest.WithDetail("reason", err.Error())
	}
	return nil
}

// Serve blocks serving the API on addr until the listener fails.
func (s *Server) Serve(addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	logx.Info("API", "serving rosetta api on ", addr)
	return srv.ListenAndServe()
}
