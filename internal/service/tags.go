package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/jask/moneysync/internal/database"
	"github.com/jask/moneysync/internal/database/repository"
)

// TagService manages tags.
type TagService struct {
	Store *database.Handle
}

// Add creates a tag. Names are unique regardless of case.
func (s *TagService) Add(ctx context.Context, name, color string) (int64, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, invalid("name", "name is required")
	}
	var id int64
	err := s.Store.Write(ctx, func(q repository.Querier) error {
		tags := repository.NewTagRepo(q)
		existing, err := tags.ByName(ctx, name)
		if err != nil {
			return err
		}
		if existing != nil {
			return invalid("name", "tag %q already exists", existing.Name)
		}
		id, err = tags.Insert(ctx, name, color)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("add tag: %w", err)
	}
	return id, nil
}

// Update renames and/or recolors a tag; nil fields are left alone.
func (s *TagService) Update(ctx context.Context, id int64, name, color *string) error {
	if name != nil && strings.TrimSpace(*name) == "" {
		return invalid("name", "name is required")
	}
	return s.Store.Write(ctx, func(q repository.Querier) error {
		tags := repository.NewTagRepo(q)
		t, err := tags.Get(ctx, id)
		if err != nil {
			return err
		}
		if t == nil {
			return notFoundID("tag", id)
		}
		if name != nil {
			t.Name = strings.TrimSpace(*name)
			other, err := tags.ByName(ctx, t.Name)
			if err != nil {
				return err
			}
			if other != nil && other.ID != id {
				return invalid("name", "tag %q already exists", other.Name)
			}
		}
		if color != nil && *color != "" {
			t.Color = *color
		}
		return tags.Update(ctx, *t)
	})
}

// Delete removes a tag from every transaction and then the tag itself.
func (s *TagService) Delete(ctx context.Context, id int64) error {
	return s.Store.Write(ctx, func(q repository.Querier) error {
		tags := repository.NewTagRepo(q)
		t, err := tags.Get(ctx, id)
		if err != nil {
			return err
		}
		if t == nil {
			return notFoundID("tag", id)
		}
		return tags.Delete(ctx, id)
	})
}

// List orders tags by most recent use, then name.
func (s *TagService) List(ctx context.Context) ([]repository.Tag, error) {
	var out []repository.Tag
	err := s.Store.Read(ctx, func(q repository.Querier) error {
		var err error
		out, err = repository.NewTagRepo(q).List(ctx)
		return err
	})
	return out, err
}

// Resolve finds a tag by name, suggesting close names on a miss.
func (s *TagService) Resolve(ctx context.Context, name string) (repository.Tag, error) {
	var out repository.Tag
	err := s.Store.Read(ctx, func(q repository.Querier) error {
		tags := repository.NewTagRepo(q)
		t, err := tags.ByName(ctx, strings.TrimSpace(name))
		if err != nil {
			return err
		}
		if t == nil {
			all, err := tags.List(ctx)
			if err != nil {
				return err
			}
			names := make([]string, len(all))
			for i, t := range all {
				names[i] = t.Name
			}
			return notFoundName("tag", name, names)
		}
		out = *t
		return nil
	})
	return out, err
}
