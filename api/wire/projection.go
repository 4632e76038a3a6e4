package wire

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Full method names of the Projection service.
const (
	Projection_Login_FullMethodName               = "/principal.v1.Projection/Login"
	Projection_Refresh_FullMethodName             = "/principal.v1.Projection/Refresh"
	Projection_Fit_FullMethodName                 = "/principal.v1.Projection/Fit"
	Projection_Transform_FullMethodName           = "/principal.v1.Projection/Transform"
	Projection_TransformStream_FullMethodName     = "/principal.v1.Projection/TransformStream"
	Projection_InverseTransform_FullMethodName    = "/principal.v1.Projection/InverseTransform"
	Projection_ReconstructionError_FullMethodName = "/principal.v1.Projection/ReconstructionError"
	Projection_Cumsum_FullMethodName              = "/principal.v1.Projection/Cumsum"
	Projection_Describe_FullMethodName            = "/principal.v1.Projection/Describe"
	Projection_List_FullMethodName                = "/principal.v1.Projection/List"
	Projection_Delete_FullMethodName              = "/principal.v1.Projection/Delete"
)

// ProjectionClient is the client API for the Projection service.
type ProjectionClient interface {
	Login(ctx context.Context, in *LoginRequest, opts ...grpc.CallOption) (*LoginReply, error)
	Refresh(ctx context.Context, in *RefreshRequest, opts ...grpc.CallOption) (*LoginReply, error)
	Fit(ctx context.Context, in *FitRequest, opts ...grpc.CallOption) (*FitReply, error)
	Transform(ctx context.Context, in *TransformRequest, opts ...grpc.CallOption) (*MatrixReply, error)
	TransformStream(ctx context.Context, in *TransformRequest, opts ...grpc.CallOption) (Projection_TransformStreamClient, error)
	InverseTransform(ctx context.Context, in *TransformRequest, opts ...grpc.CallOption) (*MatrixReply, error)
	ReconstructionError(ctx context.Context, in *TransformRequest, opts ...grpc.CallOption) (*ScalarReply, error)
	Cumsum(ctx context.Context, in *CumsumRequest, opts ...grpc.CallOption) (*VectorReply, error)
	Describe(ctx context.Context, in *DescribeRequest, opts ...grpc.CallOption) (*ModelInfoReply, error)
	List(ctx context.Context, in *ListRequest, opts ...grpc.CallOption) (*ListReply, error)
	Delete(ctx context.Context, in *DeleteRequest, opts ...grpc.CallOption) (*DeleteReply, error)
}

type projectionClient struct {
	cc grpc.ClientConnInterface
}

// NewProjectionClient returns a client stub over the given connection.
func NewProjectionClient(cc grpc.ClientConnInterface) ProjectionClient {
	return &projectionClient{cc}
}

func (c *projectionClient) Login(ctx context.Context, in *LoginRequest, opts ...grpc.CallOption) (*LoginReply, error) {
	out := new(LoginReply)
	if err := c.cc.Invoke(ctx, Projection_Login_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *projectionClient) Refresh(ctx context.Context, in *RefreshRequest, opts ...grpc.CallOption) (*LoginReply, error) {
	out := new(LoginReply)
	if err := c.cc.Invoke(ctx, Projection_Refresh_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *projectionClient) Fit(ctx context.Context, in *FitRequest, opts ...grpc.CallOption) (*FitReply, error) {
	out := new(FitReply)
	if err := c.cc.Invoke(ctx, Projection_Fit_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *projectionClient) Transform(ctx context.Context, in *TransformRequest, opts ...grpc.CallOption) (*MatrixReply, error) {
	out := new(MatrixReply)
	if err := c.cc.Invoke(ctx, Projection_Transform_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *projectionClient) TransformStream(ctx context.Context, in *TransformRequest, opts ...grpc.CallOption) (Projection_TransformStreamClient, error) {
	stream, err := c.cc.NewStream(ctx, &Projection_ServiceDesc.Streams[0], Projection_TransformStream_FullMethodName, opts...)
	if err != nil {
		return nil, err
	}
	x := &projectionTransformStreamClient{stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

func (c *projectionClient) InverseTransform(ctx context.Context, in *TransformRequest, opts ...grpc.CallOption) (*MatrixReply, error) {
	out := new(MatrixReply)
	if err := c.cc.Invoke(ctx, Projection_InverseTransform_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *projectionClient) ReconstructionError(ctx context.Context, in *TransformRequest, opts ...grpc.CallOption) (*ScalarReply, error) {
	out := new(ScalarReply)
	if err := c.cc.Invoke(ctx, Projection_ReconstructionError_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *projectionClient) Cumsum(ctx context.Context, in *CumsumRequest, opts ...grpc.CallOption) (*VectorReply, error) {
	out := new(VectorReply)
	if err := c.cc.Invoke(ctx, Projection_Cumsum_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *projectionClient) Describe(ctx context.Context, in *DescribeRequest, opts ...grpc.CallOption) (*ModelInfoReply, error) {
	out := new(ModelInfoReply)
	if err := c.cc.Invoke(ctx, Projection_Describe_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *projectionClient) List(ctx context.Context, in *ListRequest, opts ...grpc.CallOption) (*ListReply, error) {
	out := new(ListReply)
	if err := c.cc.Invoke(ctx, Projection_List_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *projectionClient) Delete(ctx context.Context, in *DeleteRequest, opts ...grpc.CallOption) (*DeleteReply, error) {
	out := new(DeleteReply)
	if err := c.cc.Invoke(ctx, Projection_Delete_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// Projection_TransformStreamClient receives streamed projection rows.
type Projection_TransformStreamClient interface {
	Recv() (*RowChunk, error)
	grpc.ClientStream
}

type projectionTransformStreamClient struct {
	grpc.ClientStream
}

func (x *projectionTransformStreamClient) Recv() (*RowChunk, error) {
	m := new(RowChunk)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

// ProjectionServer is the server API for the Projection service. Embed
// UnimplementedProjectionServer for forward compatibility.
type ProjectionServer interface {
	Login(ctx context.Context, in *LoginRequest) (*LoginReply, error)
	Refresh(ctx context.Context, in *RefreshRequest) (*LoginReply, error)
	Fit(ctx context.Context, in *FitRequest) (*FitReply, error)
	Transform(ctx context.Context, in *TransformRequest) (*MatrixReply, error)
	TransformStream(in *TransformRequest, stream Projection_TransformStreamServer) error
	InverseTransform(ctx context.Context, in *TransformRequest) (*MatrixReply, error)
	ReconstructionError(ctx context.Context, in *TransformRequest) (*ScalarReply, error)
	Cumsum(ctx context.Context, in *CumsumRequest) (*VectorReply, error)
	Describe(ctx context.Context, in *DescribeRequest) (*ModelInfoReply, error)
	List(ctx context.Context, in *ListRequest) (*ListReply, error)
	Delete(ctx context.Context, in *DeleteRequest) (*DeleteReply, error)
}

// UnimplementedProjectionServer returns Unimplemented for every method.
type UnimplementedProjectionServer struct{}

func (UnimplementedProjectionServer) Login(context.Context, *LoginRequest) (*LoginReply, error) {
	return nil, status.Errorf(codes.Unimplemented, "method Login not implemented")
}
func (UnimplementedProjectionServer) Refresh(context.Context, *RefreshRequest) (*LoginReply, error) {
	return nil, status.Errorf(codes.Unimplemented, "method Refresh not implemented")
}
func (UnimplementedProjectionServer) Fit(context.Context, *FitRequest) (*FitReply, error) {
	return nil, status.Errorf(codes.Unimplemented, "method Fit not implemented")
}
func (UnimplementedProjectionServer) Transform(context.Context, *TransformRequest) (*MatrixReply, error) {
	return nil, status.Errorf(codes.Unimplemented, "method Transform not implemented")
}
func (UnimplementedProjectionServer) TransformStream(*TransformRequest, Projection_TransformStreamServer) error {
	return status.Errorf(codes.Unimplemented, "method TransformStream not implemented")
}
func (UnimplementedProjectionServer) InverseTransform(context.Context, *TransformRequest) (*MatrixReply, error) {
	return nil, status.Errorf(codes.Unimplemented, "method InverseTransform not implemented")
}
func (UnimplementedProjectionServer) ReconstructionError(context.Context, *TransformRequest) (*ScalarReply, error) {
	return nil, status.Errorf(codes.Unimplemented, "method ReconstructionError not implemented")
}
func (UnimplementedProjectionServer) Cumsum(context.Context, *CumsumRequest) (*VectorReply, error) {
	return nil, status.Errorf(codes.Unimplemented, "method Cumsum not implemented")
}
func (UnimplementedProjectionServer) Describe(context.Context, *DescribeRequest) (*ModelInfoReply, error) {
	return nil, status.Errorf(codes.Unimplemented, "method Describe not implemented")
}
func (UnimplementedProjectionServer) List(context.Context, *ListRequest) (*ListReply, error) {
	return nil, status.Errorf(codes.Unimplemented, "method List not implemented")
}
func (UnimplementedProjectionServer) Delete(context.Context, *DeleteRequest) (*DeleteReply, error) {
	return nil, status.Errorf(codes.Unimplemented, "method Delete not implemented")
}

// RegisterProjectionServer registers the service implementation with the
// gRPC server.
func RegisterProjectionServer(s grpc.ServiceRegistrar, srv ProjectionServer) {
	s.RegisterService(&Projection_ServiceDesc, srv)
}

func _Projection_Login_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(LoginRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ProjectionServer).Login(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: Projection_Login_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ProjectionServer).Login(ctx, req.(*LoginRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _Projection_Refresh_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(RefreshRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ProjectionServer).Refresh(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: Projection_Refresh_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ProjectionServer).Refresh(ctx, req.(*RefreshRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _Projection_Fit_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(FitRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ProjectionServer).Fit(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: Projection_Fit_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ProjectionServer).Fit(ctx, req.(*FitRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _Projection_Transform_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(TransformRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ProjectionServer).Transform(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: Projection_Transform_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ProjectionServer).Transform(ctx, req.(*TransformRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _Projection_TransformStream_Handler(srv any, stream grpc.ServerStream) error {
	m := new(TransformRequest)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(ProjectionServer).TransformStream(m, &projectionTransformStreamServer{stream})
}

// Projection_TransformStreamServer sends streamed projection rows.
type Projection_TransformStreamServer interface {
	Send(*RowChunk) error
	grpc.ServerStream
}

type projectionTransformStreamServer struct {
	grpc.ServerStream
}

func (x *projectionTransformStreamServer) Send(m *RowChunk) error {
	return x.ServerStream.SendMsg(m)
}

func _Projection_InverseTransform_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(TransformRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ProjectionServer).InverseTransform(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: Projection_InverseTransform_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ProjectionServer).InverseTransform(ctx, req.(*TransformRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _Projection_ReconstructionError_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(TransformRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ProjectionServer).ReconstructionError(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: Projection_ReconstructionError_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ProjectionServer).ReconstructionError(ctx, req.(*TransformRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _Projection_Cumsum_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(CumsumRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ProjectionServer).Cumsum(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: Projection_Cumsum_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ProjectionServer).Cumsum(ctx, req.(*CumsumRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _Projection_Describe_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(DescribeRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ProjectionServer).Describe(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: Projection_Describe_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ProjectionServer).Describe(ctx, req.(*DescribeRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _Projection_List_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ListRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ProjectionServer).List(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: Projection_List_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ProjectionServer).List(ctx, req.(*ListRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _Projection_Delete_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(DeleteRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ProjectionServer).Delete(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: Projection_Delete_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ProjectionServer).Delete(ctx, req.(*DeleteRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// Projection_ServiceDesc is the grpc.ServiceDesc for the Projection service.
var Projection_ServiceDesc = grpc.ServiceDesc{
	ServiceName: "principal.v1.Projection",
	HandlerType: (*ProjectionServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Login", Handler: _Projection_Login_Handler},
		{MethodName: "Refresh", Handler: _Projection_Refresh_Handler},
		{MethodName: "Fit", Handler: _Projection_Fit_Handler},
		{MethodName: "Transform", Handler: _Projection_Transform_Handler},
		{MethodName: "InverseTransform", Handler: _Projection_InverseTransform_Handler},
		{MethodName: "ReconstructionError", Handler: _Projection_ReconstructionError_Handler},
		{MethodName: "Cumsum", Handler: _Projection_Cumsum_Handler},
		{MethodName: "Describe", Handler: _Projection_Describe_Handler},
		{MethodName: "List", Handler: _Projection_List_Handler},
		{MethodName: "Delete", Handler: _Projection_Delete_Handler},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "TransformStream",
			Handler:       _Projection_TransformStream_Handler,
			ServerStreams: true,
		},
	},
	Metadata: "api/wire/projection.go",
}
