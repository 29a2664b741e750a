// Package grpc exposes the collection to internal callers.
//
// The service is declared by hand over the protobuf well-known types, so no
// generated code is needed on either side:
//
//	service MovieCatalog {
//	  rpc CheckMovieExists(google.protobuf.Int64Value) returns (google.protobuf.BoolValue);
//	  rpc GetMovie(google.protobuf.StringValue) returns (google.protobuf.Struct);
//	  rpc CountPending(google.protobuf.Empty) returns (google.protobuf.Int64Value);
//	}
package grpc

import (
	"context"
	"errors"
	"log/slog"

	"github.com/goccy/go-json"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"moviedb/internal/domain"
	"moviedb/internal/store"
)

// CatalogStore is the part of the store the catalog reads.
type CatalogStore interface {
	GetByID(ctx context.Context, id string) (*domain.Movie, error)
	GetByTMDbID(ctx context.Context, tmdbID int64) (*domain.Movie, error)
	CountPending(ctx context.Context) (int, error)
}

// Server implements CatalogServer on a store.
type Server struct {
	store  CatalogStore
	logger *slog.Logger
}

// NewServer creates the catalog service.
func NewServer(s CatalogStore, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Server{store: s, logger: logger}
}

// CheckMovieExists reports whether a TMDb id is already in the collection.
func (s *Server) CheckMovieExists(ctx context.Context, req *wrapperspb.Int64Value) (*wrapperspb.BoolValue, error) {
	tmdbID := req.GetValue()
	s.logger.InfoContext(ctx, "gRPC CheckMovieExists called", slog.Int64("tmdb_id", tmdbID))

	if tmdbID <= 0 {
		return nil, status.Errorf(codes.InvalidArgument, "tmdb_id must be positive")
	}

	_, err := s.store.GetByTMDbID(ctx, tmdbID)
	if err != nil {
		if errors.Is(err, store.ErrMovieNotFound) {
			return wrapperspb.Bool(false), nil
		}
		s.logger.ErrorContext(ctx, "Failed to check movie existence",
			slog.Int64("tmdb_id", tmdbID), slog.String("error", err.Error()))
		return nil, status.Errorf(codes.Internal, "failed to check movie existence: %v", err)
	}
	return wrapperspb.Bool(true), nil
}

// GetMovie returns one movie as a JSON-shaped struct.
func (s *Server) GetMovie(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	id := req.GetValue()
	s.logger.InfoContext(ctx, "gRPC GetMovie called", slog.String("movie_id", id))

	if id == "" {
		return nil, status.Errorf(codes.InvalidArgument, "movie id cannot be empty")
	}

	movie, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrMovieNotFound) {
			return nil, status.Errorf(codes.NotFound, "movie not found with ID %s", id)
		}
		s.logger.ErrorContext(ctx, "Failed to get movie",
			slog.String("movie_id", id), slog.String("error", err.Error()))
		return nil, status.Errorf(codes.Internal, "failed to retrieve movie: %v", err)
	}

	out, err := movieToStruct(movie)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode movie: %v", err)
	}
	return out, nil
}

// CountPending returns the number of suggestions waiting for review.
func (s *Server) CountPending(ctx context.Context, _ *emptypb.Empty) (*wrapperspb.Int64Value, error) {
	n, err := s.store.CountPending(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to count suggestions", slog.String("error", err.Error()))
		return nil, status.Errorf(codes.Internal, "failed to count suggestions: %v", err)
	}
	return wrapperspb.Int64(int64(n)), nil
}

func movieToStruct(m *domain.Movie) (*structpb.Struct, error) {
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	return structpb.NewStruct(fields)
}
