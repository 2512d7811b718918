package shardset

import "context"

// Fetcher is the download/extraction collaborator. It is consumed
// through this narrow interface and implemented elsewhere.
//
// The build pipeline reads DownloadedBytes once, post-generation, to
// record the dataset's download size in the manifest.
type Fetcher interface {
	// Fetch downloads (or returns the cached copy of) a source URL
	// and returns a local path.
	Fetch(ctx context.Context, url string) (string, error)

	// DownloadedBytes returns the total bytes transferred so far.
	DownloadedBytes() int64
}
