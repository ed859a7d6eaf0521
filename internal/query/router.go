package query

import (
	v1 "TrialStats/api/v1"
	"TrialStats/internal/core/model"
	"TrialStats/internal/logger"
	"TrialStats/internal/metrics"
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
)

// RefreshFunc re-runs the analysis. It may return a partial batch together with an error.
type RefreshFunc func(ctx context.Context) (*model.Batch, error)

// APIHandler holds the dependencies for API handlers.
type APIHandler struct {
	store   *Store
	refresh RefreshFunc
	history Querier
}

// NewRouter builds the HTTP API over store. refresh and history are optional; their
// routes answer 501 when nil.
func NewRouter(store *Store, refresh RefreshFunc, history Querier) *mux.Router {
	h := &APIHandler{store: store, refresh: refresh, history: history}

	reg := prometheus.NewRegistry()
	reg.MustRegister(metrics.NewCollector(store))

	r := mux.NewRouter()
	r.HandleFunc("/api/v1/protocols", h.protocolsHandler).Methods("GET")
	r.HandleFunc("/api/v1/reports/{protocol}", h.reportHandler).Methods("GET")
	r.HandleFunc("/api/v1/reports/{protocol}/bandwidth", h.bandwidthHandler).Methods("GET")
	r.HandleFunc("/api/v1/history/{protocol}", h.historyHandler).Methods("GET")
	r.HandleFunc("/api/v1/refresh", h.refreshHandler).Methods("POST")
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{})).Methods("GET")
	return r
}

func (h *APIHandler) protocolsHandler(w http.ResponseWriter, r *http.Request) {
	writeProto(w, http.StatusOK, v1.ProtocolsToStruct(h.store.Batch()))
}

func (h *APIHandler) reportHandler(w http.ResponseWriter, r *http.Request) {
	protocol := mux.Vars(r)["protocol"]
	report := h.store.Report(protocol)
	if report == nil {
		http.Error(w, fmt.Sprintf("no report for protocol '%s'", protocol), http.StatusNotFound)
		return
	}
	writeProto(w, http.StatusOK, v1.ReportToStruct(report))
}

func (h *APIHandler) bandwidthHandler(w http.ResponseWriter, r *http.Request) {
	protocol := mux.Vars(r)["protocol"]
	report := h.store.Report(protocol)
	if report == nil {
		http.Error(w, fmt.Sprintf("no report for protocol '%s'", protocol), http.StatusNotFound)
		return
	}
	writeProto(w, http.StatusOK, v1.BandwidthToStruct(protocol, report.Bandwidth))
}

func (h *APIHandler) historyHandler(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		http.Error(w, "history requires an enabled clickhouse writer", http.StatusNotImplemented)
		return
	}
	protocol := mux.Vars(r)["protocol"]
	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			http.Error(w, fmt.Sprintf("invalid limit: %v", err), http.StatusBadRequest)
			return
		}
		limit = n
	}

	points, err := h.history.History(r.Context(), protocol, r.URL.Query().Get("condition"), limit)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to query history: %v", err), http.StatusInternalServerError)
		return
	}
	writeProto(w, http.StatusOK, historyToStruct(protocol, points))
}

func (h *APIHandler) refreshHandler(w http.ResponseWriter, r *http.Request) {
	if h.refresh == nil {
		http.Error(w, "refresh is not configured", http.StatusNotImplemented)
		return
	}

	batch, err := h.refresh(r.Context())
	if batch != nil {
		h.store.Set(batch)
	}
	if err != nil {
		logger.Errorf("Refresh failed: %v", err)
		http.Error(w, fmt.Sprintf("failed to refresh: %v", err), http.StatusInternalServerError)
		return
	}
	logger.Infof("Refreshed batch %s with %d report(s).", batch.ID, len(batch.Reports))
	writeProto(w, http.StatusOK, v1.ProtocolsToStruct(batch))
}

func writeProto(w http.ResponseWriter, code int, msg proto.Message) {
	jsonBytes, err := protojson.Marshal(msg)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to marshal response: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(jsonBytes)
}
