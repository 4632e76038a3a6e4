// Package grpcserver implements the gRPC endpoint of the projection service.
//
// It delegates all business logic to internal/service.ProjectionService,
// translating between wire messages and service-layer types.
package grpcserver

import (
	"context"
	"errors"

	"github.com/opaque/principal/api/wire"
	"github.com/opaque/principal/internal/service"
	"github.com/opaque/principal/internal/session"
	"github.com/opaque/principal/pkg/pca"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Server implements the wire.ProjectionServer gRPC interface.
type Server struct {
	wire.UnimplementedProjectionServer
	svc *service.ProjectionService
}

// New creates a gRPC server backed by the given ProjectionService.
func New(svc *service.ProjectionService) *Server {
	return &Server{svc: svc}
}

func (s *Server) Login(ctx context.Context, req *wire.LoginRequest) (*wire.LoginReply, error) {
	if req.APIKey == "" {
		return nil, status.Error(codes.InvalidArgument, "api_key is required")
	}

	sess, err := s.svc.Login(ctx, req.APIKey)
	if err != nil {
		return nil, mapError(err)
	}
	return &wire.LoginReply{Token: sess.Token, ExpiresAt: sess.ExpiresAt}, nil
}

func (s *Server) Refresh(ctx context.Context, req *wire.RefreshRequest) (*wire.LoginReply, error) {
	if req.Token == "" {
		return nil, status.Error(codes.InvalidArgument, "token is required")
	}

	sess, err := s.svc.RefreshSession(ctx, req.Token)
	if err != nil {
		return nil, mapError(err)
	}
	return &wire.LoginReply{Token: sess.Token, ExpiresAt: sess.ExpiresAt}, nil
}

func (s *Server) Fit(ctx context.Context, req *wire.FitRequest) (*wire.FitReply, error) {
	if req.Token == "" {
		return nil, status.Error(codes.InvalidArgument, "token is required")
	}
	if req.Name == "" {
		return nil, status.Error(codes.InvalidArgument, "name is required")
	}
	if len(req.Rows) == 0 {
		return nil, status.Error(codes.InvalidArgument, "rows are required")
	}

	info, err := s.svc.Fit(ctx, req.Token, req.Name, req.Rows, req.Components, req.Refit)
	if err != nil {
		return nil, mapError(err)
	}
	return &wire.FitReply{Model: *infoReply(info)}, nil
}

func (s *Server) Transform(ctx context.Context, req *wire.TransformRequest) (*wire.MatrixReply, error) {
	if err := checkTransformRequest(req); err != nil {
		return nil, err
	}

	rows, err := s.svc.Transform(ctx, req.Token, req.Name, req.Rows)
	if err != nil {
		return nil, mapError(err)
	}
	return &wire.MatrixReply{Rows: rows}, nil
}

func (s *Server) TransformStream(req *wire.TransformRequest, stream wire.Projection_TransformStreamServer) error {
	if err := checkTransformRequest(req); err != nil {
		return err
	}

	rows, err := s.svc.Transform(stream.Context(), req.Token, req.Name, req.Rows)
	if err != nil {
		return mapError(err)
	}

	for i, row := range rows {
		if err := stream.Send(&wire.RowChunk{Index: i, Row: row}); err != nil {
			return err
		}
	}
	return nil
}

func (s *Server) InverseTransform(ctx context.Context, req *wire.TransformRequest) (*wire.MatrixReply, error) {
	if err := checkTransformRequest(req); err != nil {
		return nil, err
	}

	rows, err := s.svc.InverseTransform(ctx, req.Token, req.Name, req.Rows)
	if err != nil {
		return nil, mapError(err)
	}
	return &wire.MatrixReply{Rows: rows}, nil
}

func (s *Server) ReconstructionError(ctx context.Context, req *wire.TransformRequest) (*wire.ScalarReply, error) {
	if err := checkTransformRequest(req); err != nil {
		return nil, err
	}

	mse, err := s.svc.ReconstructionError(ctx, req.Token, req.Name, req.Rows)
	if err != nil {
		return nil, mapError(err)
	}
	return &wire.ScalarReply{Value: mse}, nil
}

func (s *Server) Cumsum(ctx context.Context, req *wire.CumsumRequest) (*wire.VectorReply, error) {
	if req.Token == "" {
		return nil, status.Error(codes.InvalidArgument, "token is required")
	}
	if req.Name == "" {
		return nil, status.Error(codes.InvalidArgument, "name is required")
	}

	values, err := s.svc.Cumsum(ctx, req.Token, req.Name)
	if err != nil {
		return nil, mapError(err)
	}
	return &wire.VectorReply{Values: values}, nil
}

func (s *Server) Describe(ctx context.Context, req *wire.DescribeRequest) (*wire.ModelInfoReply, error) {
	if req.Token == "" {
		return nil, status.Error(codes.InvalidArgument, "token is required")
	}
	if req.Name == "" {
		return nil, status.Error(codes.InvalidArgument, "name is required")
	}

	info, err := s.svc.Describe(ctx, req.Token, req.Name)
	if err != nil {
		return nil, mapError(err)
	}
	return infoReply(info), nil
}

func (s *Server) List(ctx context.Context, req *wire.ListRequest) (*wire.ListReply, error) {
	if req.Token == "" {
		return nil, status.Error(codes.InvalidArgument, "token is required")
	}

	infos, err := s.svc.List(ctx, req.Token)
	if err != nil {
		return nil, mapError(err)
	}

	reply := &wire.ListReply{Models: make([]wire.ModelInfoReply, len(infos))}
	for i := range infos {
		reply.Models[i] = *infoReply(&infos[i])
	}
	return reply, nil
}

func (s *Server) Delete(ctx context.Context, req *wire.DeleteRequest) (*wire.DeleteReply, error) {
	if req.Token == "" {
		return nil, status.Error(codes.InvalidArgument, "token is required")
	}
	if req.Name == "" {
		return nil, status.Error(codes.InvalidArgument, "name is required")
	}

	if err := s.svc.Delete(ctx, req.Token, req.Name); err != nil {
		return nil, mapError(err)
	}
	return &wire.DeleteReply{}, nil
}

func checkTransformRequest(req *wire.TransformRequest) error {
	if req.Token == "" {
		return status.Error(codes.InvalidArgument, "token is required")
	}
	if req.Name == "" {
		return status.Error(codes.InvalidArgument, "name is required")
	}
	if len(req.Rows) == 0 {
		return status.Error(codes.InvalidArgument, "rows are required")
	}
	return nil
}

func infoReply(info *service.ModelInfo) *wire.ModelInfoReply {
	return &wire.ModelInfoReply{
		Name:       info.Name,
		CreatedAt:  info.CreatedAt,
		Components: info.Components,
		Features:   info.Features,
		Samples:    info.Samples,
		Ratio:      info.Ratio,
	}
}

// mapError translates service-layer errors to gRPC status codes.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, session.ErrInvalidSession),
		errors.Is(err, session.ErrSessionExpired),
		errors.Is(err, session.ErrBadAPIKey):
		return status.Errorf(codes.Unauthenticated, "%v", err)
	case errors.Is(err, session.ErrNotRefreshable):
		return status.Errorf(codes.FailedPrecondition, "%v", err)
	case errors.Is(err, service.ErrModelNotFound):
		return status.Errorf(codes.NotFound, "%v", err)
	case errors.Is(err, service.ErrModelExists):
		return status.Errorf(codes.AlreadyExists, "%v", err)
	case errors.Is(err, service.ErrInvalidRequest),
		errors.Is(err, pca.ErrShapeMismatch),
		errors.Is(err, pca.ErrInvalidComponents),
		errors.Is(err, pca.ErrNotFitted):
		return status.Errorf(codes.InvalidArgument, "%v", err)
	case errors.Is(err, context.Canceled):
		return status.Errorf(codes.Canceled, "%v", err)
	case errors.Is(err, context.DeadlineExceeded):
		return status.Errorf(codes.DeadlineExceeded, "%v", err)
	default:
		return status.Errorf(codes.Internal, "%v", err)
	}
}
