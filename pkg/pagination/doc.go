// Package pagination turns single page fetches into one lazy, ordered
// sequence of records.
//
// A Stream walks a paginated resource page by page, starting at page 1, and
// yields every record of every page in the order the remote API returns
// them. Termination is decided from the pagination metadata embedded in each
// page envelope: the page whose currentPage equals totalPages is the last.
//
// Example usage:
//
//	stream := pagination.NewStream(ctx, fetcher, client.FetchRequest{
//		Resource: "search",
//		Params:   url.Values{"q": []string{"debates"}},
//	}, 50)
//	for stream.Next() {
//		process(stream.Item())
//	}
//	if err := stream.Err(); err != nil {
//		// the sequence failed early; items already seen remain valid
//	}
//
// Records are yielded in strict page order and within a page in envelope
// order; the stream never buffers or reorders across pages, because the
// remote API documents its sort order. A fetch failure surfaces at the point
// of consumption: Next returns false and Err reports the cause. Err returning
// nil after Next returns false means the resource was exhausted normally.
package pagination
