package devbackend

import (
	"github.com/cinemate/client/internal/models"
	"github.com/cinemate/client/internal/movies"
)

var (
	genreAction     = movies.Genre{ID: 28, Name: "Action"}
	genreAnimation  = movies.Genre{ID: 16, Name: "Animation"}
	genreComedy     = movies.Genre{ID: 35, Name: "Comedy"}
	genreDrama      = movies.Genre{ID: 18, Name: "Drama"}
	genreHorror     = movies.Genre{ID: 27, Name: "Horror"}
	genreRomance    = movies.Genre{ID: 10749, Name: "Romance"}
	genreScienceFic = movies.Genre{ID: 878, Name: "Science Fiction"}
	genreThriller   = movies.Genre{ID: 53, Name: "Thriller"}
)

var seedMovies = []movies.Movie{
	{ID: 550, Title: "Fight Club", ReleaseDate: "1999-10-15", Runtime: 139, PosterPath: "pB8BM7pdSp6B6Ih7QZ4DrQ3PmJK.jpg",
		Genres: []movies.Genre{genreDrama, genreThriller}, VoteAverage: 8.4, VoteCount: 29000},
	{ID: 603, Title: "The Matrix", ReleaseDate: "1999-03-30", Runtime: 136, PosterPath: "f89U3ADr1oiB1s9GkdPOEpXUk5H.jpg",
		Genres: []movies.Genre{genreAction, genreScienceFic}, VoteAverage: 8.2, VoteCount: 25000},
	{ID: 13, Title: "Forrest Gump", ReleaseDate: "1994-06-23", Runtime: 142, PosterPath: "arw2vcBveWOVZr6pxd9XTd1TdQa.jpg",
		Genres: []movies.Genre{genreComedy, genreDrama, genreRomance}, VoteAverage: 8.5, VoteCount: 27000},
	{ID: 27205, Title: "Inception", ReleaseDate: "2010-07-15", Runtime: 148, PosterPath: "oYuLEt3zVCKq57qu2F8dT7NIa6f.jpg",
		Genres: []movies.Genre{genreAction, genreScienceFic, genreThriller}, VoteAverage: 8.4, VoteCount: 36000},
	{ID: 157336, Title: "Interstellar", ReleaseDate: "2014-11-05", Runtime: 169, PosterPath: "gEU2QniE6E77NI6lCU6MxlNBvIx.jpg",
		Genres: []movies.Genre{genreDrama, genreScienceFic}, VoteAverage: 8.4, VoteCount: 34000},
	{ID: 694, Title: "The Shining", ReleaseDate: "1980-05-23", Runtime: 144, PosterPath: "xazWoLealQwEgqZ89MLZklLZD3k.jpg",
		Genres: []movies.Genre{genreHorror, genreThriller}, VoteAverage: 8.2, VoteCount: 17000},
	{ID: 862, Title: "Toy Story", ReleaseDate: "1995-10-30", Runtime: 81, PosterPath: "uXDfjJbdP4ijW5hWSBrPrlKpxab.jpg",
		Genres: []movies.Genre{genreAnimation, genreComedy}, VoteAverage: 8.0, VoteCount: 18000},
	{ID: 597, Title: "Titanic", ReleaseDate: "1997-11-18", Runtime: 194, PosterPath: "9xjZS2rlVxm8SFx8kPC3aIGCOYQ.jpg",
		Genres: []movies.Genre{genreDrama, genreRomance}, VoteAverage: 7.9, VoteCount: 24000},
	{ID: 155, Title: "The Dark Knight", ReleaseDate: "2008-07-16", Runtime: 152, PosterPath: "qJ2tW6WMUDux911r6m7haRef0WH.jpg",
		Genres: []movies.Genre{genreAction, genreDrama, genreThriller}, VoteAverage: 8.5, VoteCount: 32000},
}

var seedUsers = []models.UserProfile{
	{UID: "ava", Email: "ava@example.com", DisplayName: "Ava Reyes"},
	{UID: "ben", Email: "ben@example.com", DisplayName: "Ben Okafor"},
	{UID: "chloe", Email: "chloe@example.com", DisplayName: "Chloe Martin"},
	{UID: "dev", Email: "dev@example.com", DisplayName: "Dev Patel"},
}

// Seed fills store with the demo catalog and users. userID is created as the
// demo account and befriends the first seeded user.
func Seed(store *Store, userID string) {
	for _, m := range seedMovies {
		m.OriginalTitle = m.Title
		m.Status = "Released"
		store.PutMovie(m)
	}
	for _, u := range seedUsers {
		store.PutUser(u)
	}
	if userID == "" {
		return
	}
	store.PutUser(models.UserProfile{UID: userID, Email: userID + "@example.com", DisplayName: "Demo User"})
	_ = store.AddFriend(userID, seedUsers[0].UID)
	_ = store.Save(userID, 603, models.WatchStatusWatchList)
	_ = store.Save(userID, 550, models.WatchStatusWatched)
}
