package query

import (
	"TrialStats/internal/core/model"
	"context"
	"errors"
	"io"
	"math"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

func testBatch() *model.Batch {
	return &model.Batch{
		ID:        "b-1",
		CreatedAt: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		Reports: []*model.Report{
			{
				Protocol: "tcp",
				Conditions: []model.ConditionSummary{
					{Condition: "Normal", Runs: 2, Loss: 0.1, Overhead: 0.3},
					{Condition: "Horrible", Runs: 2, Loss: math.NaN(), Overhead: 0.5},
				},
				Bandwidth: model.BandwidthSeries{
					ConsumerTX: []float64{0, 60},
					ProducerTX: []float64{0, 20},
					Combined:   []float64{0, 80},
				},
			},
			{Protocol: "lrdp"},
		},
	}
}

func get(t *testing.T, h http.Handler, method, path string) (*httptest.ResponseRecorder, string) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return rec, string(body)
}

func decode(t *testing.T, body string) *structpb.Struct {
	t.Helper()
	s := &structpb.Struct{}
	require.NoError(t, protojson.Unmarshal([]byte(body), s))
	return s
}

func TestStore(t *testing.T) {
	s := NewStore(nil)
	assert.Nil(t, s.Batch())
	assert.Nil(t, s.Report("tcp"))

	s.Set(testBatch())
	require.NotNil(t, s.Report("tcp"))
	assert.Nil(t, s.Report("udp"))
}

func TestRouter_Protocols(t *testing.T) {
	r := NewRouter(NewStore(testBatch()), nil, nil)

	rec, body := get(t, r, "GET", "/api/v1/protocols")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	s := decode(t, body)
	assert.Equal(t, "b-1", s.Fields["batch_id"].GetStringValue())
	assert.Len(t, s.Fields["protocols"].GetListValue().GetValues(), 2)
}

func TestRouter_Report(t *testing.T) {
	r := NewRouter(NewStore(testBatch()), nil, nil)

	rec, body := get(t, r, "GET", "/api/v1/reports/tcp")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, body, `"NaN"`)

	s := decode(t, body)
	conds := s.Fields["conditions"].GetListValue().GetValues()
	require.Len(t, conds, 2)
	assert.Equal(t, "Normal", conds[0].GetStructValue().Fields["condition"].GetStringValue())

	rec, _ = get(t, r, "GET", "/api/v1/reports/udp")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_Bandwidth(t *testing.T) {
	r := NewRouter(NewStore(testBatch()), nil, nil)

	rec, body := get(t, r, "GET", "/api/v1/reports/tcp/bandwidth")
	require.Equal(t, http.StatusOK, rec.Code)
	combined := decode(t, body).Fields["combined"].GetListValue().GetValues()
	require.Len(t, combined, 2)
	assert.Equal(t, 80.0, combined[1].GetNumberValue())
}

func TestRouter_NoBatchYet(t *testing.T) {
	r := NewRouter(NewStore(nil), nil, nil)

	rec, body := get(t, r, "GET", "/api/v1/protocols")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode(t, body).Fields["protocols"].GetListValue().GetValues())

	rec, _ = get(t, r, "GET", "/api/v1/reports/tcp")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_Refresh(t *testing.T) {
	store := NewStore(nil)
	calls := 0
	refresh := func(ctx context.Context) (*model.Batch, error) {
		calls++
		return testBatch(), nil
	}
	r := NewRouter(store, refresh, nil)

	rec, _ := get(t, r, "GET", "/api/v1/refresh")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec, _ = get(t, r, "POST", "/api/v1/refresh")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, calls)
	assert.NotNil(t, store.Report("tcp"))
}

func TestRouter_RefreshPartialFailure(t *testing.T) {
	store := NewStore(nil)
	partial := &model.Batch{ID: "partial", Reports: []*model.Report{{Protocol: "tcp"}}}
	r := NewRouter(store, func(context.Context) (*model.Batch, error) {
		return partial, errors.New("protocol lrdp: missing file")
	}, nil)

	rec, body := get(t, r, "POST", "/api/v1/refresh")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, body, "lrdp")
	assert.Equal(t, "partial", store.Batch().ID)
}

func TestRouter_NotConfigured(t *testing.T) {
	r := NewRouter(NewStore(nil), nil, nil)

	rec, _ := get(t, r, "POST", "/api/v1/refresh")
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
	rec, _ = get(t, r, "GET", "/api/v1/history/tcp")
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestRouter_Metrics(t *testing.T) {
	r := NewRouter(NewStore(testBatch()), nil, nil)

	rec, body := get(t, r, "GET", "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, body, `trialstats_overhead_ratio{condition="Normal",protocol="tcp"} 0.3`)
	assert.Contains(t, body, `trialstats_bandwidth_bytes{protocol="tcp"} 80`)
}

type fakeQuerier struct {
	protocol, condition string
	limit               int
}

func (f *fakeQuerier) History(_ context.Context, protocol, condition string, limit int) ([]HistoryPoint, error) {
	f.protocol, f.condition, f.limit = protocol, condition, limit
	return []HistoryPoint{{
		Timestamp: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		BatchID:   "b-0", Condition: "Normal", Runs: 3, Loss: 0.2, Overhead: math.Inf(1),
	}}, nil
}

func TestRouter_History(t *testing.T) {
	q := &fakeQuerier{}
	r := NewRouter(NewStore(nil), nil, q)

	rec, body := get(t, r, "GET", "/api/v1/history/tcp?condition=Normal&limit=5")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "tcp", q.protocol)
	assert.Equal(t, "Normal", q.condition)
	assert.Equal(t, 5, q.limit)
	assert.Contains(t, body, `"Infinity"`)

	rec, _ = get(t, r, "GET", "/api/v1/history/tcp?limit=lots")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBuildHistoryQuery(t *testing.T) {
	q, args := buildHistoryQuery("tcp", "", 0)
	assert.Equal(t, []interface{}{"tcp"}, args)
	assert.True(t, strings.HasSuffix(q, "LIMIT 100"))
	assert.NotContains(t, q, "Condition = ?")

	q, args = buildHistoryQuery("tcp", "Horrible", 10)
	assert.Equal(t, []interface{}{"tcp", "Horrible"}, args)
	assert.Contains(t, q, "AND Condition = ?")
	assert.True(t, strings.HasSuffix(q, "LIMIT 10"))
}

func dialBufconn(t *testing.T, store *Store) *grpc.ClientConn {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	RegisterReportService(srv, store)
	go srv.Serve(lis)
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestGRPC_RoundTrip(t *testing.T) {
	conn := dialBufconn(t, NewStore(testBatch()))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	names, err := ListProtocols(ctx, conn)
	require.NoError(t, err)
	assert.Equal(t, []string{"tcp", "lrdp"}, names)

	report, err := GetReport(ctx, conn, "tcp")
	require.NoError(t, err)
	assert.Equal(t, "tcp", report.Protocol)
	require.Len(t, report.Conditions, 2)
	assert.InDelta(t, 0.1, report.Conditions[0].Loss, 1e-12)
	assert.True(t, math.IsNaN(report.Conditions[1].Loss))
	assert.Equal(t, []float64{0, 80}, report.Bandwidth.Combined)
}

func TestGRPC_NotFound(t *testing.T) {
	conn := dialBufconn(t, NewStore(testBatch()))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := GetReport(ctx, conn, "udp")
	require.Error(t, err)
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestStore_Upsert(t *testing.T) {
	s := NewStore(testBatch())
	at := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	s.Upsert("b-2", at, &model.Report{Protocol: "lrdp", Conditions: []model.ConditionSummary{{Condition: "Normal"}}})
	b := s.Batch()
	assert.Equal(t, "b-2", b.ID)
	assert.Equal(t, []string{"tcp", "lrdp"}, b.Protocols())
	assert.Len(t, b.Report("lrdp").Conditions, 1)

	s.Upsert("b-2", at, &model.Report{Protocol: "udp"})
	assert.Equal(t, []string{"tcp", "lrdp", "udp"}, s.Batch().Protocols())

	// The previous batch value is not mutated.
	assert.Equal(t, "b-1", testBatch().ID)
	assert.Empty(t, b.Report("udp"))
}
