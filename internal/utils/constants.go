package utils

import "time"

// GitHub API
const (
	GitHubAPIBase     = "https://api.github.com/"
	GitHubAcceptMedia = "application/vnd.github+json"
	GitHubAPIVersion  = "2022-11-28"
)

// Retry configuration
const (
	DefaultMaxRetries   = 3
	DefaultRetryDelayMs = 1000
	MaxRetryDelayMs     = 32000
)

// DefaultRequestTimeout mirrors the 30 second client timeout of the web app
const DefaultRequestTimeout = 30 * time.Second

// Cache sizing. Search results change with the repository so they expire
// first; objects are keyed by content hash and can live longest.
const (
	SearchCacheSize   = 50
	SearchCacheTTL    = 10 * time.Minute
	ObjectCacheSize   = 200
	ObjectCacheTTL    = 30 * time.Minute
	ListingCacheSize  = 100
	ListingCacheTTL   = 15 * time.Minute
	CacheSweepEvery   = 5 * time.Minute
	ListingKeyPrefix  = "listing:"
	SearchKeyPrefix   = "search:"
	ObjectKeyPrefix   = "object:"
	SchemaVersion     = "1.0"
	DefaultFolderTree = 3
)

// Size bucket boundaries (binary units)
const (
	SizeSmallMax  = 100 * 1024
	SizeMediumMax = 1024 * 1024
	SizeLargeMax  = 5 * 1024 * 1024
)

// Smart search defaults
const (
	DefaultSmartThreshold  = 0.3
	DefaultSmartMaxResults = 50
	DefaultSuggestionLimit = 10
)

// Transfer defaults
const (
	DefaultCompressionLevel = 6
	DefaultTransferWorkers  = 1
)

// ImageExtensions are the file types treated as images
var ImageExtensions = map[string]bool{
	"jpg":  true,
	"jpeg": true,
	"png":  true,
	"gif":  true,
	"webp": true,
	"svg":  true,
	"bmp":  true,
	"ico":  true,
}

// IsImageFile reports whether ext (lower-case, no dot) is an image type
func IsImageFile(ext string) bool {
	return ImageExtensions[ext]
}
