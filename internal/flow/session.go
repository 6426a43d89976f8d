package flow

import (
	"context"
	"log/slog"
)

// Session keeps the latest result of each request and rebuilds only the
// ones a change can affect.
type Session struct {
	pipeline *Pipeline
	reqs     []Request
	results  []*Result
}

// NewSession starts a session over reqs. Nothing is built until the first
// Refresh.
func (p *Pipeline) NewSession(reqs []Request) *Session {
	return &Session{pipeline: p, reqs: reqs}
}

// Refresh rebuilds the results that changed files can affect and returns
// them. The first call builds everything. A result is kept when none of
// its loaded files changed and the fingerprint of those files is the same,
// unless it has unresolved calls, which a new file may now satisfy.
func (s *Session) Refresh(ctx context.Context, changed []string) (rebuilt []*Result, skipped int, err error) {
	if s.results == nil {
		results, err := s.pipeline.BuildAll(ctx, s.reqs)
		if err != nil {
			return nil, 0, err
		}
		s.results = results
		return results, 0, nil
	}

	for i, res := range s.results {
		if !s.stale(res, changed) {
			skipped++
			if s.pipeline.metrics != nil {
				s.pipeline.metrics.RecordSkipped()
			}
			continue
		}
		next, err := s.pipeline.Build(ctx, s.reqs[i])
		if err != nil {
			return rebuilt, skipped, err
		}
		s.results[i] = next
		rebuilt = append(rebuilt, next)
	}
	return rebuilt, skipped, nil
}

func (s *Session) stale(res *Result, changed []string) bool {
	if res.Graph.Stats.Unresolved > 0 {
		return true
	}
	if !res.Touches(changed) {
		return false
	}
	fp, err := Fingerprint(res.Files)
	if err != nil {
		// a loaded file went away
		return true
	}
	if fp == res.Fingerprint {
		s.pipeline.logger.Debug("sources unchanged", slog.String("target", res.Target))
		return false
	}
	return true
}

// Results returns the latest result of every request, in request order.
func (s *Session) Results() []*Result {
	return s.results
}
