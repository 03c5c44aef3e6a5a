// extract.go: classification of provider photo URLs and derivation of the
// cache keys used by the persistence layer.
package places

import (
	"net/url"
	"strings"
)

const (
	// providerPhotoHost and providerPhotoPath identify the places API photo
	// serving endpoint.
	providerPhotoHost = "maps.googleapis.com"
	providerPhotoPath = "/maps/api/place/photo"

	// photoReferenceParam is the query parameter carrying the photo reference.
	photoReferenceParam = "photoreference"

	// cacheKeyPrefix namespaces cache keys derived from photo references.
	cacheKeyPrefix = "gphoto:"
)

// IsProviderImageURL reports whether rawURL points at the places API photo
// serving endpoint. Pure, no I/O.
func IsProviderImageURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return strings.EqualFold(u.Hostname(), providerPhotoHost) &&
		strings.HasPrefix(u.Path, providerPhotoPath)
}

// ExtractReference returns the photo reference from a provider image URL, or
// the empty string if rawURL is not a provider URL or the parameter is absent.
func ExtractReference(rawURL string) string {
	if !IsProviderImageURL(rawURL) {
		return ""
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	ref := u.Query().Get(photoReferenceParam)
	if ref == "" {
		// Some callers send the underscore form used in the details payload.
		ref = u.Query().Get("photo_reference")
	}
	return ref
}

// CacheKey derives the deterministic persistence key for a photo reference.
func CacheKey(reference string) string {
	return cacheKeyPrefix + reference
}
