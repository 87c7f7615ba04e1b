package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/edusphere/apiserver/internal/store"
	"github.com/edusphere/apiserver/types"
)

// TagRepository defines persistence operations for tags.
type TagRepository interface {
	Create(ctx context.Context, tag types.Tag) (types.Tag, error)
	GetByName(ctx context.Context, name string) (types.Tag, error)
	List(ctx context.Context) ([]types.Tag, error)
}

// TagService encapsulates tag use-cases.
type TagService struct {
	repo TagRepository
}

func NewTagService(repo TagRepository) *TagService {
	return &TagService{repo: repo}
}

func (s *TagService) Create(ctx context.Context, name, description string) (types.Tag, error) {
	name = strings.TrimSpace(name)
	description = strings.TrimSpace(description)
	if name == "" || description == "" {
		return types.Tag{}, ErrMissingFields
	}

	if _, err := s.repo.GetByName(ctx, name); err == nil {
		return types.Tag{}, ErrTagExists
	} else if !errors.Is(err, store.ErrNotFound) {
		return types.Tag{}, fmt.Errorf("lookup tag: %w", err)
	}

	tag, err := s.repo.Create(ctx, types.Tag{Name: name, Description: description})
	if err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return types.Tag{}, ErrTagExists
		}
		return types.Tag{}, fmt.Errorf("create tag: %w", err)
	}
	return tag, nil
}

func (s *TagService) List(ctx context.Context) ([]types.Tag, error) {
	return s.repo.List(ctx)
}
