package pagination

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/vlukiyanov/pagefetch/pkg/client"
)

// Query parameter names for the page cursor.
const (
	pageParam     = "page"
	pageSizeParam = "pageSize"
)

// DefaultPageSize is used when the caller passes a non-positive page size.
// Callers must not exceed the remote-documented maximum; the stream does not
// enforce it and the remote's error is surfaced as-is.
const DefaultPageSize = 50

// Fetcher performs one page fetch. *client.Client implements it.
type Fetcher interface {
	Fetch(ctx context.Context, req client.FetchRequest) (*client.PageEnvelope, error)
}

// Stream is a lazy sequence of records drawn from a paginated resource.
// It is not safe for concurrent use and not restartable; create a new
// Stream to iterate again.
type Stream struct {
	ctx      context.Context
	fetcher  Fetcher
	base     client.FetchRequest
	pageSize int

	page    int
	total   int
	fetches int

	items   []json.RawMessage
	idx     int
	current json.RawMessage

	done   bool
	err    error
	logger zerolog.Logger
}

// NewStream creates a stream over the resource identified by req. The
// page and pageSize parameters of each underlying request are derived from
// the page cursor and overwrite any same-named parameters in req.
func NewStream(ctx context.Context, fetcher Fetcher, req client.FetchRequest, pageSize int) *Stream {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	return &Stream{
		ctx:      ctx,
		fetcher:  fetcher,
		base:     req,
		pageSize: pageSize,
		logger:   log.With().Str("component", "pagination").Str("resource", req.Resource).Logger(),
	}
}

// Paginate is shorthand for streaming a bare resource path.
func Paginate(ctx context.Context, fetcher Fetcher, resource string, pageSize int) *Stream {
	return NewStream(ctx, fetcher, client.FetchRequest{Resource: resource}, pageSize)
}

// Next advances to the next record. It returns false when the sequence is
// exhausted or a fetch failed; Err distinguishes the two.
func (s *Stream) Next() bool {
	if s.done || s.err != nil {
		return false
	}

	for {
		if s.idx < len(s.items) {
			s.current = s.items[s.idx]
			s.idx++
			return true
		}

		// Current page drained; decide termination from its metadata.
		if s.fetches > 0 && s.page >= s.total {
			s.done = true
			s.logger.Debug().
				Int("pages", s.fetches).
				Msg("Paginated resource exhausted")
			return false
		}

		if !s.fetchNextPage() {
			return false
		}
	}
}

// fetchNextPage pulls the next page into the item buffer. It returns false
// and records the error when the fetch fails terminally.
func (s *Stream) fetchNextPage() bool {
	next := s.page + 1
	if s.fetches == 0 {
		next = 1
	}

	req := s.base.
		WithParam(pageParam, strconv.Itoa(next)).
		WithParam(pageSizeParam, strconv.Itoa(s.pageSize))

	env, err := s.fetcher.Fetch(s.ctx, req)
	if err != nil {
		s.err = err
		s.done = true
		s.logger.Warn().
			Err(err).
			Int("page", next).
			Msg("Stream ended by fetch failure")
		return false
	}

	s.fetches++
	s.page = env.CurrentPage
	s.total = env.TotalPages
	s.items = env.Items
	s.idx = 0

	s.logger.Debug().
		Int("page", env.CurrentPage).
		Int("total_pages", env.TotalPages).
		Int("items", len(env.Items)).
		Msg("Fetched page")
	return true
}

// Item returns the record produced by the last successful Next call.
func (s *Stream) Item() json.RawMessage {
	return s.current
}

// Err returns the terminal error, or nil if the stream is still running or
// was exhausted normally.
func (s *Stream) Err() error {
	return s.err
}

// Fetches returns the number of underlying page fetches performed so far.
func (s *Stream) Fetches() int {
	return s.fetches
}

// Collect drains the stream into a slice. Records yielded before a failure
// are returned alongside the error.
func Collect(s *Stream) ([]json.RawMessage, error) {
	var items []json.RawMessage
	for s.Next() {
		items = append(items, s.Item())
	}
	return items, s.Err()
}
