package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"moviedb/internal/domain"
)

const (
	moviesCollection  = "movies"
	pendingCollection = "pending_movies"
	configCollection  = "config"
	adminConfigID     = "admin"
)

// adminConfig is the single document of the config collection.
type adminConfig struct {
	ID           string `bson:"_id"`
	PasswordHash string `bson:"passwordHash"`
}

// MongoStore implements Store on MongoDB. Multi-document writes use
// transactions, so the server must be a replica set.
type MongoStore struct {
	client  *mongo.Client
	movies  *mongo.Collection
	pending *mongo.Collection
	config  *mongo.Collection
	logger  *slog.Logger
}

// NewMongoStore uses database dbName of an already connected client.
func NewMongoStore(client *mongo.Client, dbName string, logger *slog.Logger) (*MongoStore, error) {
	if client == nil {
		return nil, errors.New("mongo client cannot be nil")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	db := client.Database(dbName)
	return &MongoStore{
		client:  client,
		movies:  db.Collection(moviesCollection),
		pending: db.Collection(pendingCollection),
		config:  db.Collection(configCollection),
		logger:  logger,
	}, nil
}

// ConnectMongo dials uri and verifies the connection.
func ConnectMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}
	return client, nil
}

// EnsureIndexes creates the lookup and uniqueness indexes.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.movies.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "tmdb_id", Value: 1}}},
		{Keys: bson.D{{Key: "date_added", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create movie indexes: %w", err)
	}
	_, err = s.pending.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "tmdb_id", Value: 1}},
			Options: options.Index().
				SetName("open_suggestion_tmdb_id").
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"status": string(domain.SuggestionPending)}),
		},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "date_suggested", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create suggestion indexes: %w", err)
	}
	s.logger.InfoContext(ctx, "Mongo indexes are up to date")
	return nil
}

func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

func (s *MongoStore) Close() error {
	return s.client.Disconnect(context.Background())
}

func (s *MongoStore) withTransaction(ctx context.Context, fn func(sc mongo.SessionContext) error) error {
	session, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}

func (s *MongoStore) hasMovie(ctx context.Context, tmdbID int64) (bool, error) {
	n, err := s.movies.CountDocuments(ctx, bson.M{"tmdb_id": tmdbID}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("failed to check tmdb id %d: %w", tmdbID, err)
	}
	return n > 0, nil
}

func (s *MongoStore) Create(ctx context.Context, movie *domain.Movie) error {
	exists, err := s.hasMovie(ctx, movie.TMDbID)
	if err != nil {
		return err
	}
	if exists {
		s.logger.WarnContext(ctx, "Movie already in collection", slog.Int64("tmdbID", movie.TMDbID))
		return ErrMovieAlreadyExists
	}
	prepareMovie(movie, now())
	if _, err := s.movies.InsertOne(ctx, movie); err != nil {
		s.logger.ErrorContext(ctx, "Failed to insert movie", slog.String("error", err.Error()))
		return fmt.Errorf("failed to create movie: %w", err)
	}
	s.logger.InfoContext(ctx, "Movie created", slog.String("movieID", movie.ID))
	return nil
}

func (s *MongoStore) GetByID(ctx context.Context, id string) (*domain.Movie, error) {
	var m domain.Movie
	if err := s.movies.FindOne(ctx, bson.M{"_id": id}).Decode(&m); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrMovieNotFound
		}
		return nil, fmt.Errorf("failed to get movie by ID: %w", err)
	}
	return &m, nil
}

func (s *MongoStore) GetByTMDbID(ctx context.Context, tmdbID int64) (*domain.Movie, error) {
	var m domain.Movie
	opts := options.FindOne().SetSort(bson.D{{Key: "date_added", Value: 1}})
	if err := s.movies.FindOne(ctx, bson.M{"tmdb_id": tmdbID}, opts).Decode(&m); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrMovieNotFound
		}
		return nil, fmt.Errorf("failed to get movie by tmdb id: %w", err)
	}
	return &m, nil
}

func (s *MongoStore) List(ctx context.Context) ([]*domain.Movie, error) {
	opts := options.Find().SetSort(bson.D{{Key: "date_added", Value: -1}, {Key: "_id", Value: 1}})
	cursor, err := s.movies.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list movies: %w", err)
	}
	movies := []*domain.Movie{}
	if err := cursor.All(ctx, &movies); err != nil {
		return nil, fmt.Errorf("failed to decode movies: %w", err)
	}
	return movies, nil
}

// updateDocument translates a MovieUpdate into a $set operator.
func updateDocument(u domain.MovieUpdate) bson.M {
	set := bson.M{"last_modified": now()}
	if u.ClearAdminRating {
		set["admin_rating"] = nil
	} else if u.AdminRating != nil {
		set["admin_rating"] = *u.AdminRating
	}
	if u.LetterboxdRating != nil {
		if *u.LetterboxdRating == "" {
			set["letterboxd_rating"] = nil
		} else {
			set["letterboxd_rating"] = *u.LetterboxdRating
		}
	}
	if u.Status != nil {
		set["status"] = string(*u.Status)
	}
	if u.ClearDateWatched {
		set["date_watched"] = nil
	} else if u.DateWatched != nil {
		set["date_watched"] = *u.DateWatched
	}
	if u.Notes != nil {
		set["notes"] = *u.Notes
	}
	return bson.M{"$set": set}
}

func (s *MongoStore) Update(ctx context.Context, id string, update domain.MovieUpdate) (*domain.Movie, error) {
	var m domain.Movie
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	err := s.movies.FindOneAndUpdate(ctx, bson.M{"_id": id}, updateDocument(update), opts).Decode(&m)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrMovieNotFound
		}
		s.logger.ErrorContext(ctx, "Failed to update movie", slog.String("movieID", id), slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to update movie: %w", err)
	}
	s.logger.InfoContext(ctx, "Movie updated", slog.String("movieID", id))
	return &m, nil
}

func (s *MongoStore) Delete(ctx context.Context, id string) error {
	res, err := s.movies.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete movie: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrMovieNotFound
	}
	s.logger.InfoContext(ctx, "Movie deleted", slog.String("movieID", id))
	return nil
}

func (s *MongoStore) BatchDelete(ctx context.Context, ids []string) (int, error) {
	ids = uniqueIDs(ids)
	err := s.withTransaction(ctx, func(sc mongo.SessionContext) error {
		res, err := s.movies.DeleteMany(sc, bson.M{"_id": bson.M{"$in": ids}})
		if err != nil {
			return err
		}
		if int(res.DeletedCount) != len(ids) {
			return ErrMovieNotFound
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrMovieNotFound) {
			return 0, err
		}
		return 0, fmt.Errorf("failed to batch delete movies: %w", err)
	}
	return len(ids), nil
}

func (s *MongoStore) BatchUpdate(ctx context.Context, ids []string, update domain.MovieUpdate) (int, error) {
	ids = uniqueIDs(ids)
	err := s.withTransaction(ctx, func(sc mongo.SessionContext) error {
		res, err := s.movies.UpdateMany(sc, bson.M{"_id": bson.M{"$in": ids}}, updateDocument(update))
		if err != nil {
			return err
		}
		if int(res.MatchedCount) != len(ids) {
			return ErrMovieNotFound
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrMovieNotFound) {
			return 0, err
		}
		return 0, fmt.Errorf("failed to batch update movies: %w", err)
	}
	return len(ids), nil
}

func (s *MongoStore) Import(ctx context.Context, movies []*domain.Movie) (int, error) {
	if len(movies) == 0 {
		return 0, nil
	}
	at := now()
	docs := make([]interface{}, 0, len(movies))
	for _, in := range movies {
		m := in.Clone()
		prepareImported(m, at)
		docs = append(docs, m)
	}
	err := s.withTransaction(ctx, func(sc mongo.SessionContext) error {
		_, err := s.movies.InsertMany(sc, docs)
		return err
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to import movies", slog.String("error", err.Error()))
		return 0, fmt.Errorf("failed to import movies: %w", err)
	}
	s.logger.InfoContext(ctx, "Movies imported", slog.Int("count", len(docs)))
	return len(docs), nil
}

func (s *MongoStore) Clear(ctx context.Context) (int, error) {
	res, err := s.movies.DeleteMany(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("failed to clear movies: %w", err)
	}
	s.logger.WarnContext(ctx, "Collection cleared", slog.Int64("count", res.DeletedCount))
	return int(res.DeletedCount), nil
}

func (s *MongoStore) CreatePending(ctx context.Context, pending *domain.PendingMovie) error {
	exists, err := s.hasMovie(ctx, pending.TMDbID)
	if err != nil {
		return err
	}
	if exists {
		return ErrMovieAlreadyExists
	}
	pending.ID = newID()
	pending.Status = domain.SuggestionPending
	pending.DateSuggested = now()
	pending.ApprovedAt, pending.RejectedAt = nil, nil
	if pending.Genres == nil {
		pending.Genres = []string{}
	}
	if _, err := s.pending.InsertOne(ctx, pending); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrAlreadySuggested
		}
		return fmt.Errorf("failed to create suggestion: %w", err)
	}
	s.logger.InfoContext(ctx, "Suggestion stored", slog.String("pendingID", pending.ID))
	return nil
}

func (s *MongoStore) GetPending(ctx context.Context, id string) (*domain.PendingMovie, error) {
	var p domain.PendingMovie
	if err := s.pending.FindOne(ctx, bson.M{"_id": id}).Decode(&p); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrPendingNotFound
		}
		return nil, fmt.Errorf("failed to get suggestion: %w", err)
	}
	return &p, nil
}

func (s *MongoStore) ListPending(ctx context.Context, status domain.SuggestionStatus) ([]*domain.PendingMovie, error) {
	filter := bson.M{}
	if status != "" {
		filter["status"] = string(status)
	}
	opts := options.Find().SetSort(bson.D{{Key: "date_suggested", Value: -1}, {Key: "_id", Value: 1}})
	cursor, err := s.pending.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list suggestions: %w", err)
	}
	pending := []*domain.PendingMovie{}
	if err := cursor.All(ctx, &pending); err != nil {
		return nil, fmt.Errorf("failed to decode suggestions: %w", err)
	}
	return pending, nil
}

func (s *MongoStore) PendingByTMDbID(ctx context.Context, tmdbID int64) (*domain.PendingMovie, error) {
	var p domain.PendingMovie
	filter := bson.M{"tmdb_id": tmdbID, "status": string(domain.SuggestionPending)}
	if err := s.pending.FindOne(ctx, filter).Decode(&p); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrPendingNotFound
		}
		return nil, fmt.Errorf("failed to get suggestion by tmdb id: %w", err)
	}
	return &p, nil
}

func (s *MongoStore) CountPending(ctx context.Context) (int, error) {
	n, err := s.pending.CountDocuments(ctx, bson.M{"status": string(domain.SuggestionPending)})
	if err != nil {
		return 0, fmt.Errorf("failed to count suggestions: %w", err)
	}
	return int(n), nil
}

// openSuggestion loads a suggestion inside sc and checks that it is still pending.
func (s *MongoStore) openSuggestion(sc mongo.SessionContext, id string) (*domain.PendingMovie, error) {
	var p domain.PendingMovie
	if err := s.pending.FindOne(sc, bson.M{"_id": id}).Decode(&p); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrPendingNotFound
		}
		return nil, err
	}
	if p.Status != domain.SuggestionPending {
		return nil, ErrAlreadyReviewed
	}
	return &p, nil
}

func (s *MongoStore) Approve(ctx context.Context, id string) (*domain.Movie, error) {
	var movie *domain.Movie
	err := s.withTransaction(ctx, func(sc mongo.SessionContext) error {
		p, err := s.openSuggestion(sc, id)
		if err != nil {
			return err
		}
		exists, err := s.hasMovie(sc, p.TMDbID)
		if err != nil {
			return err
		}
		if exists {
			return ErrMovieAlreadyExists
		}

		at := now()
		movie = approvedMovie(p, at)
		if _, err := s.movies.InsertOne(sc, movie); err != nil {
			return err
		}
		res, err := s.pending.UpdateOne(sc,
			bson.M{"_id": id, "status": string(domain.SuggestionPending)},
			bson.M{"$set": bson.M{"status": string(domain.SuggestionApproved), "approved_at": at}})
		if err != nil {
			return err
		}
		if res.MatchedCount == 0 {
			return ErrAlreadyReviewed
		}
		return nil
	})
	if err != nil {
		if isReviewError(err) {
			return nil, err
		}
		s.logger.ErrorContext(ctx, "Failed to approve suggestion", slog.String("pendingID", id), slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to approve suggestion: %w", err)
	}
	s.logger.InfoContext(ctx, "Suggestion approved", slog.String("pendingID", id), slog.String("movieID", movie.ID))
	return movie, nil
}

func (s *MongoStore) Reject(ctx context.Context, id string) (*domain.PendingMovie, error) {
	at := now()
	var p domain.PendingMovie
	err := s.pending.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "status": string(domain.SuggestionPending)},
		bson.M{"$set": bson.M{"status": string(domain.SuggestionRejected), "rejected_at": at}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&p)
	if err == nil {
		s.logger.InfoContext(ctx, "Suggestion rejected", slog.String("pendingID", id))
		return &p, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("failed to reject suggestion: %w", err)
	}
	if _, getErr := s.GetPending(ctx, id); getErr != nil {
		return nil, getErr
	}
	return nil, ErrAlreadyReviewed
}

func (s *MongoStore) DeletePending(ctx context.Context, id string) error {
	res, err := s.pending.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete suggestion: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrPendingNotFound
	}
	return nil
}

func (s *MongoStore) AdminPasswordHash(ctx context.Context) (string, error) {
	var cfg adminConfig
	if err := s.config.FindOne(ctx, bson.M{"_id": adminConfigID}).Decode(&cfg); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return "", ErrSettingNotFound
		}
		return "", fmt.Errorf("failed to read admin password hash: %w", err)
	}
	if cfg.PasswordHash == "" {
		return "", ErrSettingNotFound
	}
	return cfg.PasswordHash, nil
}

func (s *MongoStore) SetAdminPasswordHash(ctx context.Context, hash string) error {
	_, err := s.config.UpdateOne(ctx,
		bson.M{"_id": adminConfigID},
		bson.M{"$set": bson.M{"passwordHash": hash, "updated_at": now()}},
		options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to store admin password hash: %w", err)
	}
	s.logger.InfoContext(ctx, "Admin password hash updated")
	return nil
}
