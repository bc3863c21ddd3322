package movies

import (
	"context"
	"strings"
)

// DefaultImageBase is the CDN base poster paths are resolved against.
const DefaultImageBase = "https://image.tmdb.org/t/p/original/"

// ListEntry is a movie as returned by search and recommendation lists.
type ListEntry struct {
	ID            int     `json:"id"`
	Title         string  `json:"title"`
	OriginalTitle string  `json:"original_title,omitempty"`
	Overview      string  `json:"overview,omitempty"`
	PosterPath    string  `json:"poster_path,omitempty"`
	BackdropPath  string  `json:"backdrop_path,omitempty"`
	ReleaseDate   string  `json:"release_date,omitempty"`
	GenreIDs      []int   `json:"genre_ids,omitempty"`
	Popularity    float64 `json:"popularity,omitempty"`
	VoteAverage   float64 `json:"vote_average,omitempty"`
	VoteCount     int     `json:"vote_count,omitempty"`
	Adult         bool    `json:"adult,omitempty"`
}

// Genre is a movie genre.
type Genre struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Movie holds the details shown on the movie screen.
type Movie struct {
	ID            int     `json:"id"`
	Title         string  `json:"title"`
	OriginalTitle string  `json:"original_title,omitempty"`
	Overview      string  `json:"overview,omitempty"`
	Tagline       string  `json:"tagline,omitempty"`
	PosterPath    string  `json:"poster_path,omitempty"`
	BackdropPath  string  `json:"backdrop_path,omitempty"`
	ReleaseDate   string  `json:"release_date,omitempty"`
	Runtime       int     `json:"runtime,omitempty"`
	Status        string  `json:"status,omitempty"`
	Genres        []Genre `json:"genres,omitempty"`
	Homepage      string  `json:"homepage,omitempty"`
	VoteAverage   float64 `json:"vote_average,omitempty"`
	VoteCount     int     `json:"vote_count,omitempty"`
}

// Year returns the release year, or an empty string when unknown.
func (m Movie) Year() string {
	if len(m.ReleaseDate) < 4 {
		return ""
	}
	return m.ReleaseDate[:4]
}

// Provider returns read-only movie metadata.
type Provider interface {
	Details(ctx context.Context, id int) (Movie, error)
	Search(ctx context.Context, query string) ([]ListEntry, error)
}

// Recommender returns movie suggestions for a category.
type Recommender interface {
	Recommendations(ctx context.Context, category string) ([]ListEntry, error)
}

// Categories lists the recommendation categories offered on the ask screen.
var Categories = []string{
	"Action",
	"Comedy",
	"Drama",
	"Horror",
	"Romance",
	"Science Fiction",
	"Thriller",
	"Animation",
}

// ValidCategory reports whether category is one of Categories.
func ValidCategory(category string) bool {
	for _, c := range Categories {
		if strings.EqualFold(c, category) {
			return true
		}
	}
	return false
}

// PosterURL resolves a poster path fragment against base. An empty path means
// the movie has no poster and yields an empty URL.
func PosterURL(base, path string) string {
	path = strings.TrimLeft(strings.TrimSpace(path), "/")
	if path == "" {
		return ""
	}
	if base == "" {
		base = DefaultImageBase
	}
	return strings.TrimRight(base, "/") + "/" + path
}
