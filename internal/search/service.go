// Package search provides full-text search over prompts and workspaces,
// with Meilisearch as the primary engine and PostgreSQL FTS as fallback.
package search

import (
	"context"

	"github.com/rs/zerolog"
)

// Service is the facade that tries Meilisearch first and falls back to
// PG FTS.
type Service struct {
	meili *Meili
	pgfts *PgFTS
	log   zerolog.Logger
}

// NewService creates a search service. meili may be nil when
// Meilisearch is not configured.
func NewService(meili *Meili, pgfts *PgFTS, log zerolog.Logger) *Service {
	return &Service{meili: meili, pgfts: pgfts, log: log}
}

func (s *Service) Search(q Query) Response {
	if s.meili != nil && s.meili.Healthy() {
		results, total, err := s.meili.Search(q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		s.log.Warn().Err(err).Msg("meilisearch error, falling back to pgfts")
	}

	results, total, err := s.pgfts.Search(q)
	if err != nil {
		s.log.Error().Err(err).Msg("pgfts search failed")
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text}
}

// IndexPrompt pushes a prompt into Meilisearch, fire-and-forget.
func (s *Service) IndexPrompt(rec PromptRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexPrompt(rec); err != nil {
			s.log.Warn().Err(err).Str("prompt", rec.ID).Msg("index prompt")
		}
	}()
}

// IndexWorkspace pushes a workspace into Meilisearch, fire-and-forget.
func (s *Service) IndexWorkspace(rec WorkspaceRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexWorkspace(rec); err != nil {
			s.log.Warn().Err(err).Str("workspace", rec.ID).Msg("index workspace")
		}
	}()
}

// DeletePrompt removes a prompt from the search index, fire-and-forget.
func (s *Service) DeletePrompt(id string) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeletePrompt(id); err != nil {
			s.log.Warn().Err(err).Str("prompt", id).Msg("delete prompt from index")
		}
	}()
}

// ReindexAllFromPG reads every searchable row from PostgreSQL and
// pushes it into Meilisearch. Called at startup when Meilisearch is
// healthy.
func (s *Service) ReindexAllFromPG(ctx context.Context) {
	if s.meili == nil || !s.meili.Healthy() || s.pgfts == nil {
		return
	}
	prompts, workspaces, err := s.pgfts.LoadAllRecords(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("reindex load failed")
		return
	}
	if err := s.meili.IndexPrompts(prompts); err != nil {
		s.log.Warn().Err(err).Msg("reindex prompts")
	}
	if err := s.meili.IndexWorkspaces(workspaces); err != nil {
		s.log.Warn().Err(err).Msg("reindex workspaces")
	}
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
