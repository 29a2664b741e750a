// Command moviectl queries the catalog gRPC service.
//
//	moviectl [-addr host:port] exists <tmdb_id>
//	moviectl [-addr host:port] get <movie_id>
//	moviectl [-addr host:port] pending
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"moviedb/internal/clients"
)

func main() {
	addr := flag.String("addr", envOr("MOVIEDB_GRPC_ADDR", "localhost:9092"), "catalog gRPC address")
	timeout := flag.Duration("timeout", 5*time.Second, "overall timeout")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: moviectl [flags] exists <tmdb_id> | get <movie_id> | pending\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	if err := run(*addr, *timeout, flag.Args(), logger); err != nil {
		fmt.Fprintln(os.Stderr, "moviectl:", err)
		os.Exit(1)
	}
}

func run(addr string, timeout time.Duration, args []string, logger *slog.Logger) error {
	if len(args) == 0 {
		flag.Usage()
		return fmt.Errorf("missing command")
	}

	client, err := clients.NewCatalogClient(addr, logger)
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	switch args[0] {
	case "exists":
		if len(args) != 2 {
			return fmt.Errorf("usage: exists <tmdb_id>")
		}
		id, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid tmdb id %q", args[1])
		}
		exists, err := client.CheckMovieExists(ctx, id)
		if err != nil {
			return err
		}
		fmt.Println(exists)
	case "get":
		if len(args) != 2 {
			return fmt.Errorf("usage: get <movie_id>")
		}
		movie, err := client.GetMovie(ctx, args[1])
		if err != nil {
			return err
		}
		out, err := json.MarshalIndent(movie, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
	case "pending":
		n, err := client.CountPending(ctx)
		if err != nil {
			return err
		}
		fmt.Println(n)
	default:
		flag.Usage()
		return fmt.Errorf("unknown command %q", args[0])
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
