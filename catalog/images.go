package catalog

import "fmt"

// ImageSize selects an image rendition served by the provider's CDN.
type ImageSize string

// Supported image renditions.
const (
	ImageW200     ImageSize = "w200"
	ImageW300     ImageSize = "w300"
	ImageW400     ImageSize = "w400"
	ImageW500     ImageSize = "w500"
	ImageW780     ImageSize = "w780"
	ImageOriginal ImageSize = "original"
)

// imageBaseURL is the provider's image CDN prefix.
const imageBaseURL = "https://image.tmdb.org/t/p"

// placeholderImage is served when a movie has no artwork.
const placeholderImage = "/placeholder-movie.jpg"

// ImageURL builds the CDN URL for an image path at the given size. An empty
// path yields the local placeholder.
func ImageURL(path string, size ImageSize) string {
	if path == "" {
		return placeholderImage
	}
	if size == "" {
		size = ImageW500
	}
	return fmt.Sprintf("%s/%s%s", imageBaseURL, size, path)
}
