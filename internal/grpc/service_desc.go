package grpc

import (
	"context"

	grpclib "google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const ServiceName = "moviedb.v1.MovieCatalog"

// Full method names, as used by clients.
const (
	CheckMovieExistsMethod = "/" + ServiceName + "/CheckMovieExists"
	GetMovieMethod         = "/" + ServiceName + "/GetMovie"
	CountPendingMethod     = "/" + ServiceName + "/CountPending"
)

// CatalogServer is the server side of MovieCatalog.
type CatalogServer interface {
	CheckMovieExists(context.Context, *wrapperspb.Int64Value) (*wrapperspb.BoolValue, error)
	GetMovie(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	CountPending(context.Context, *emptypb.Empty) (*wrapperspb.Int64Value, error)
}

// RegisterCatalogServer adds srv to a gRPC server.
func RegisterCatalogServer(s grpclib.ServiceRegistrar, srv CatalogServer) {
	s.RegisterService(&CatalogServiceDesc, srv)
}

var CatalogServiceDesc = grpclib.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*CatalogServer)(nil),
	Methods: []grpclib.MethodDesc{
		{MethodName: "CheckMovieExists", Handler: checkMovieExistsHandler},
		{MethodName: "GetMovie", Handler: getMovieHandler},
		{MethodName: "CountPending", Handler: countPendingHandler},
	},
	Streams:  []grpclib.StreamDesc{},
	Metadata: catalogProtoFile,
}

func checkMovieExistsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpclib.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.Int64Value)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CatalogServer).CheckMovieExists(ctx, in)
	}
	info := &grpclib.UnaryServerInfo{Server: srv, FullMethod: CheckMovieExistsMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(CatalogServer).CheckMovieExists(ctx, req.(*wrapperspb.Int64Value))
	}
	return interceptor(ctx, in, info, handler)
}

func getMovieHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpclib.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CatalogServer).GetMovie(ctx, in)
	}
	info := &grpclib.UnaryServerInfo{Server: srv, FullMethod: GetMovieMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(CatalogServer).GetMovie(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func countPendingHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpclib.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CatalogServer).CountPending(ctx, in)
	}
	info := &grpclib.UnaryServerInfo{Server: srv, FullMethod: CountPendingMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(CatalogServer).CountPending(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}
