package catalog

// Movie is one catalog entry as returned by the metadata provider's listing
// and search endpoints. Field names mirror the provider wire format.
type Movie struct {
	ID               int64   `json:"id"`
	Title            string  `json:"title"`
	Overview         string  `json:"overview"`
	PosterPath       string  `json:"poster_path"`
	BackdropPath     string  `json:"backdrop_path"`
	ReleaseDate      string  `json:"release_date"`
	VoteAverage      float64 `json:"vote_average"`
	VoteCount        int64   `json:"vote_count"`
	GenreIDs         []int64 `json:"genre_ids"`
	Adult            bool    `json:"adult"`
	OriginalLanguage string  `json:"original_language"`
	Popularity       float64 `json:"popularity"`
	Video            bool    `json:"video"`
}

// Genre is a catalog genre.
type Genre struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// ProductionCompany is a studio credited on a movie.
type ProductionCompany struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	LogoPath string `json:"logo_path"`
}

// MovieDetails is the full record for a single movie.
type MovieDetails struct {
	Movie
	Genres              []Genre             `json:"genres"`
	Runtime             int                 `json:"runtime"`
	Budget              int64               `json:"budget"`
	Revenue             int64               `json:"revenue"`
	ProductionCompanies []ProductionCompany `json:"production_companies"`
	Status              string              `json:"status"`
	Tagline             string              `json:"tagline"`
}

// Video is a trailer or clip attached to a movie.
type Video struct {
	ID       string `json:"id"`
	Key      string `json:"key"`
	Name     string `json:"name"`
	Site     string `json:"site"`
	Type     string `json:"type"`
	Official bool   `json:"official"`
}

// page is the provider's paged response envelope.
type page[T any] struct {
	Page         int   `json:"page"`
	Results      []T   `json:"results"`
	TotalPages   int   `json:"total_pages"`
	TotalResults int64 `json:"total_results"`
}

// videoList is the provider's video listing envelope.
type videoList struct {
	Results []Video `json:"results"`
}
