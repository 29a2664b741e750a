// Package clients holds gRPC clients for the catalog service.
package clients

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	catalog "moviedb/internal/grpc"
)

const callTimeout = 3 * time.Second

// CatalogClient is a MovieCatalog client.
type CatalogClient interface {
	CheckMovieExists(ctx context.Context, tmdbID int64) (bool, error)
	GetMovie(ctx context.Context, id string) (map[string]any, error)
	CountPending(ctx context.Context) (int64, error)
	Close() error
}

type catalogGRPCClient struct {
	conn   *grpc.ClientConn
	logger *slog.Logger
}

// NewCatalogClient connects to the catalog at addr without TLS.
func NewCatalogClient(addr string, logger *slog.Logger, opts ...grpc.DialOption) (CatalogClient, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		logger.Error("Failed to create catalog gRPC client", slog.String("address", addr), slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to connect to catalog at %s: %w", addr, err)
	}
	return &catalogGRPCClient{conn: conn, logger: logger}, nil
}

func (c *catalogGRPCClient) CheckMovieExists(ctx context.Context, tmdbID int64) (bool, error) {
	if tmdbID <= 0 {
		return false, status.Errorf(codes.InvalidArgument, "tmdb id must be positive")
	}
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	out := new(wrapperspb.BoolValue)
	if err := c.conn.Invoke(ctx, catalog.CheckMovieExistsMethod, wrapperspb.Int64(tmdbID), out); err != nil {
		c.logFailure(ctx, "CheckMovieExists", err)
		return false, fmt.Errorf("grpc CheckMovieExists failed for tmdb id %d: %w", tmdbID, err)
	}
	return out.GetValue(), nil
}

func (c *catalogGRPCClient) GetMovie(ctx context.Context, id string) (map[string]any, error) {
	if id == "" {
		return nil, status.Errorf(codes.InvalidArgument, "movie id cannot be empty")
	}
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, catalog.GetMovieMethod, wrapperspb.String(id), out); err != nil {
		c.logFailure(ctx, "GetMovie", err)
		return nil, fmt.Errorf("grpc GetMovie failed for movie id %s: %w", id, err)
	}
	return out.AsMap(), nil
}

func (c *catalogGRPCClient) CountPending(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	out := new(wrapperspb.Int64Value)
	if err := c.conn.Invoke(ctx, catalog.CountPendingMethod, &emptypb.Empty{}, out); err != nil {
		c.logFailure(ctx, "CountPending", err)
		return 0, fmt.Errorf("grpc CountPending failed: %w", err)
	}
	return out.GetValue(), nil
}

func (c *catalogGRPCClient) Close() error {
	return c.conn.Close()
}

func (c *catalogGRPCClient) logFailure(ctx context.Context, method string, err error) {
	st, _ := status.FromError(err)
	c.logger.ErrorContext(ctx, "Catalog gRPC call failed",
		slog.String("method", method),
		slog.String("code", st.Code().String()),
		slog.String("message", st.Message()))
}
