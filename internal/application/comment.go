package application

import (
	"context"
	"fmt"
	"strings"

	"github.com/atvirokodosprendimai/nocometa/internal/domain"
)

func (s *MetaService) InsertComment(ctx context.Context, c domain.Comment) (*domain.Comment, error) {
	if c.FkModelID == "" {
		return nil, domain.BadRequest("fk_model_id is required")
	}
	if c.RowID == "" {
		return nil, domain.BadRequest("row_id is required")
	}
	if strings.TrimSpace(c.Comment) == "" {
		return nil, domain.BadRequest("comment is required")
	}
	m, err := s.models().get(ctx, c.FkModelID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, domain.BadRequest("table %s not found", c.FkModelID)
	}
	c.ID = ""
	if err := s.comments().insert(ctx, &c, []string{c.FkModelID, c.RowID}); err != nil {
		return nil, err
	}
	return &c, nil
}

// ListComments returns the comments of one row, oldest first.
func (s *MetaService) ListComments(ctx context.Context, modelID, rowID string) ([]domain.Comment, error) {
	c := domain.Where("fk_model_id", modelID).And("row_id", rowID).Asc("created_at")
	return s.comments().list(ctx, []string{modelID, rowID}, c)
}

func (s *MetaService) deleteComments(ctx context.Context, modelID string) error {
	rows, err := s.store.Comments().List(ctx, domain.Where("fk_model_id", modelID))
	if err != nil {
		return fmt.Errorf("comments of %s: %w", modelID, err)
	}
	if _, err := s.store.Comments().DeleteWhere(ctx, domain.Where("fk_model_id", modelID)); err != nil {
		return fmt.Errorf("delete comments of %s: %w", modelID, err)
	}
	r := s.comments()
	for _, c := range rows {
		if err := s.cache.Del(ctx, r.key(c.ID)); err != nil {
			return err
		}
	}
	s.observer.CascadeDeleted("comment", len(rows))
	return s.cache.DelAll(ctx, domain.ScopeComment, modelID+":*")
}
