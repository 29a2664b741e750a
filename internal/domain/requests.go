package domain

import (
	"math"
	"reflect"

	"github.com/go-playground/validator/v10"
)

// CreateMovieRequest is the body of a manual admin insert.
type CreateMovieRequest struct {
	TMDbID           int64       `json:"tmdb_id" validate:"required,gt=0"`
	Title            string      `json:"title" validate:"required,min=1,max=255"`
	Year             *int        `json:"year,omitempty" validate:"omitempty,gte=1888,lte=2100"`
	PosterPath       *string     `json:"poster_path,omitempty" validate:"omitempty,url"`
	Genres           []string    `json:"genres,omitempty" validate:"omitempty,dive,min=1,max=50"`
	Country          string      `json:"country,omitempty" validate:"omitempty,max=100"`
	IMDbRating       *Rating     `json:"imdb_rating,omitempty"`
	Plot             string      `json:"plot,omitempty"`
	Runtime          *int        `json:"runtime,omitempty" validate:"omitempty,gte=0"`
	AdminRating      *float64    `json:"admin_rating,omitempty" validate:"omitempty,gte=0,lte=10,halfstep"`
	LetterboxdRating *string     `json:"letterboxd_rating,omitempty" validate:"omitempty,max=20"`
	Notes            string      `json:"notes,omitempty" validate:"max=5000"`
	DateWatched      *string     `json:"date_watched,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Status           WatchStatus `json:"status" validate:"required,oneof=watchlist watched"`
}

// ToMovie builds the record the request describes.
func (r CreateMovieRequest) ToMovie() *Movie {
	country := r.Country
	if country == "" {
		country = UnknownCountry
	}
	genres := r.Genres
	if genres == nil {
		genres = []string{}
	}
	m := &Movie{
		TMDbID:           r.TMDbID,
		Title:            r.Title,
		Year:             r.Year,
		PosterPath:       r.PosterPath,
		Genres:           genres,
		Country:          country,
		IMDbRating:       r.IMDbRating,
		Plot:             r.Plot,
		Runtime:          r.Runtime,
		AdminRating:      r.AdminRating,
		LetterboxdRating: r.LetterboxdRating,
		Notes:            r.Notes,
		DateWatched:      r.DateWatched,
		Status:           r.Status,
	}
	return m.Clone()
}

// AddFromCatalogRequest adds (or suggests) a movie by its TMDb id.
type AddFromCatalogRequest struct {
	TMDbID int64       `json:"tmdb_id" validate:"required,gt=0"`
	Status WatchStatus `json:"status" validate:"required,oneof=watchlist watched"`
}

// BatchDeleteRequest deletes several movies at once.
type BatchDeleteRequest struct {
	IDs []string `json:"ids" validate:"required,min=1,max=500,dive,required"`
}

// BatchUpdateRequest applies the same update to several movies.
type BatchUpdateRequest struct {
	IDs    []string    `json:"ids" validate:"required,min=1,max=500,dive,required"`
	Update MovieUpdate `json:"update"`
}

// ClearConfirmation is the literal the admin must type to wipe the collection.
const ClearConfirmation = "DELETE"

// ClearRequest guards the clear-all operation.
type ClearRequest struct {
	Confirm string `json:"confirm"`
}

// LoginRequest is the admin login body.
type LoginRequest struct {
	Password string `json:"password" validate:"required"`
}

// LoginResponse carries the issued admin token.
type LoginResponse struct {
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expires_at"`
}

// ChangePasswordRequest replaces the admin password.
type ChangePasswordRequest struct {
	Current string `json:"current" validate:"required"`
	New     string `json:"new" validate:"required,min=6,max=128"`
	Confirm string `json:"confirm" validate:"required,eqfield=New"`
}

// NewValidator returns a validator with the domain specific rules registered.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("halfstep", validateHalfStep)
	return v
}

func validateHalfStep(fl validator.FieldLevel) bool {
	f := fl.Field()
	switch f.Kind() {
	case reflect.Float32, reflect.Float64:
		doubled := f.Float() * 2
		return math.Abs(doubled-math.Round(doubled)) < 1e-9
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return true
	default:
		return false
	}
}
