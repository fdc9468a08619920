package infoscience

import (
	"context"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/epfllibrary/thesisync/pkg/marc"
)

// Stream is a lazy, finite sequence of source records. In paged mode it
// advances spc.page until a page comes back empty; in static mode it makes
// a single fixed-query fetch. A transport or parse failure terminates the
// stream early: records already yielded stay valid, and Err reports the
// terminal failure.
type Stream struct {
	client *Client
	log    log.Logger

	static bool
	page   int

	buf   []*marc.Record
	total int
	done  bool
	err   error
}

func NewStream(client *Client, startPage int, static bool, logger log.Logger) *Stream {
	return &Stream{
		client: client,
		log:    log.With(logger, "component", "infoscience"),
		static: static,
		page:   startPage,
	}
}

// Next returns the next record, or false once the stream is exhausted.
func (s *Stream) Next(ctx context.Context) (*marc.Record, bool) {
	for len(s.buf) == 0 {
		if s.done {
			return nil, false
		}
		s.fill(ctx)
	}

	rec := s.buf[0]
	s.buf = s.buf[1:]
	return rec, true
}

// Err returns the failure that terminated the stream early, or nil after a
// clean end of pagination.
func (s *Stream) Err() error {
	return s.err
}

// Total is the number of records fetched so far.
func (s *Stream) Total() int {
	return s.total
}

func (s *Stream) fill(ctx context.Context) {
	if s.static {
		s.done = true
		records, err := s.client.FetchStatic(ctx)
		if err != nil {
			s.err = err
			level.Error(s.log).Log("msg", "static fetch failed", "err", err.Error())
			return
		}
		s.buf = records
		s.total += len(records)
		level.Info(s.log).Log("msg", "records fetched from static url", "count", len(records))
		return
	}

	records, err := s.client.FetchPage(ctx, s.page)
	if err != nil {
		s.done = true
		s.err = err
		level.Error(s.log).Log("msg", "export page fetch failed", "page", s.page, "err", err.Error())
		return
	}

	if len(records) == 0 {
		s.done = true
		level.Info(s.log).Log("msg", "empty export page, end of pagination", "page", s.page, "total", s.total)
		return
	}

	level.Info(s.log).Log("msg", "records fetched", "page", s.page, "count", len(records))
	s.buf = records
	s.total += len(records)
	s.page++
}
