package grpc

import (
	"context"
	"log/slog"
	"time"

	grpclib "google.golang.org/grpc"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
)

// NewGRPCServer builds a gRPC server with the catalog and reflection registered.
func NewGRPCServer(s CatalogStore, logger *slog.Logger, opts ...grpclib.ServerOption) *grpclib.Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	opts = append([]grpclib.ServerOption{grpclib.ChainUnaryInterceptor(logUnary(logger))}, opts...)
	srv := grpclib.NewServer(opts...)
	RegisterCatalogServer(srv, NewServer(s, logger))
	reflection.Register(srv)
	return srv
}

func logUnary(logger *slog.Logger) grpclib.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpclib.UnaryServerInfo, handler grpclib.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		logger.InfoContext(ctx, "gRPC request",
			slog.String("method", info.FullMethod),
			slog.String("code", status.Code(err).String()),
			slog.Duration("duration", time.Since(start)))
		return resp, err
	}
}
