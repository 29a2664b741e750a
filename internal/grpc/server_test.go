package grpc

import (
	"context"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"moviedb/internal/domain"
	"moviedb/internal/store"
)

func TestServer(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore(nil)
	m := &domain.Movie{TMDbID: 155, Title: "The Dark Knight", Genres: []string{"Action", "Crime"}}
	if err := s.Create(ctx, m); err != nil {
		t.Fatal(err)
	}
	srv := NewServer(s, nil)

	tests := []struct {
		name   string
		tmdbID int64
		want   bool
		code   codes.Code
	}{
		{name: "present", tmdbID: 155, want: true, code: codes.OK},
		{name: "absent", tmdbID: 2, want: false, code: codes.OK},
		{name: "invalid", tmdbID: -1, code: codes.InvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := srv.CheckMovieExists(ctx, wrapperspb.Int64(tt.tmdbID))
			if status.Code(err) != tt.code {
				t.Fatalf("code = %v, want %v", status.Code(err), tt.code)
			}
			if err == nil && got.GetValue() != tt.want {
				t.Errorf("exists = %v, want %v", got.GetValue(), tt.want)
			}
		})
	}

	st, err := srv.GetMovie(ctx, wrapperspb.String(m.ID))
	if err != nil {
		t.Fatalf("GetMovie() error = %v", err)
	}
	fields := st.AsMap()
	genres, _ := fields["genres"].([]any)
	if fields["id"] != m.ID || len(genres) != 2 || fields["year"] != nil {
		t.Errorf("GetMovie() = %v", fields)
	}

	n, err := srv.CountPending(ctx, &emptypb.Empty{})
	if err != nil || n.GetValue() != 0 {
		t.Errorf("CountPending() = %v, %v", n, err)
	}
}
