package driven

import "context"

// RemoteFetcher downloads the payload of a remote cell.
type RemoteFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}
