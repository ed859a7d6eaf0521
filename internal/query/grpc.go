package query

import (
	v1 "TrialStats/api/v1"
	"TrialStats/internal/core/model"
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ReportServer serves the current batch over gRPC.
type ReportServer struct {
	v1.UnimplementedReportServiceServer
	store *Store
}

// RegisterReportService registers a ReportServer backed by store.
func RegisterReportService(s grpc.ServiceRegistrar, store *Store) {
	v1.RegisterReportServiceServer(s, &ReportServer{store: store})
}

func (s *ReportServer) ListProtocols(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return v1.ProtocolsToStruct(s.store.Batch()), nil
}

func (s *ReportServer) GetReport(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	report := s.store.Report(req.GetValue())
	if report == nil {
		return nil, status.Errorf(codes.NotFound, "no report for protocol '%s'", req.GetValue())
	}
	return v1.ReportToStruct(report), nil
}

// ListProtocols asks a report server for the protocols of its current batch.
func ListProtocols(ctx context.Context, conn grpc.ClientConnInterface) ([]string, error) {
	resp, err := v1.NewReportServiceClient(conn).ListProtocols(ctx, &emptypb.Empty{})
	if err != nil {
		return nil, fmt.Errorf("failed to list protocols: %w", err)
	}
	var names []string
	for _, v := range resp.GetFields()["protocols"].GetListValue().GetValues() {
		names = append(names, v.GetStringValue())
	}
	return names, nil
}

// GetReport fetches and decodes the report of one protocol.
func GetReport(ctx context.Context, conn grpc.ClientConnInterface, protocol string) (*model.Report, error) {
	resp, err := v1.NewReportServiceClient(conn).GetReport(ctx, wrapperspb.String(protocol))
	if err != nil {
		return nil, fmt.Errorf("failed to get report: %w", err)
	}
	return v1.ReportFromStruct(resp)
}
