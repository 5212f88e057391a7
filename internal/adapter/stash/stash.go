package stash

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	graphql "github.com/hasura/go-graphql-client"
	"github.com/jgivc/tagsync/internal/common"
	"github.com/jgivc/tagsync/internal/entity"
)

const (
	headerAPIKey = "ApiKey"

	allPages = -1
)

// Variable types carry the names of the catalog's GraphQL input types.

type FindFilterType struct {
	PerPage int `json:"per_page"`
}

type TagFilterType struct {
	UpdatedAt *TimestampCriterionInput `json:"updated_at,omitempty"`
}

type TimestampCriterionInput struct {
	Value    string            `json:"value"`
	Modifier CriterionModifier `json:"modifier"`
}

type CriterionModifier string

const ModifierGreaterThan CriterionModifier = "GREATER_THAN"

type tagNode struct {
	ID            string   `graphql:"id"`
	Name          string   `graphql:"name"`
	Aliases       []string `graphql:"aliases"`
	ImagePath     string   `graphql:"image_path"`
	IgnoreAutoTag bool     `graphql:"ignore_auto_tag"`
	StashIDs      []struct {
		Endpoint string `graphql:"endpoint"`
		StashID  string `graphql:"stash_id"`
	} `graphql:"stash_ids"`
}

func (n *tagNode) toEntity() *entity.Tag {
	tag := &entity.Tag{
		ID:            n.ID,
		Name:          n.Name,
		Aliases:       n.Aliases,
		ImageURL:      n.ImagePath,
		IgnoreAutoTag: n.IgnoreAutoTag,
	}
	for _, sid := range n.StashIDs {
		tag.StashIDs = append(tag.StashIDs, entity.StashID{Endpoint: sid.Endpoint, StashID: sid.StashID})
	}

	return tag
}

type client struct {
	gql *graphql.Client
	log *slog.Logger
}

func NewClient(url, apiKey string, timeout time.Duration, log *slog.Logger) *client {
	return NewClientWithHTTP(url, apiKey, &http.Client{Timeout: timeout}, log)
}

func NewClientWithHTTP(url, apiKey string, cl *http.Client, log *slog.Logger) *client {
	gql := graphql.NewClient(url, cl).WithRequestModifier(func(r *http.Request) {
		if apiKey != "" {
			r.Header.Set(headerAPIKey, apiKey)
		}
	})

	return &client{
		gql: gql,
		log: log.With(slog.String("item", "StashClient")),
	}
}

// FindTags returns all tags, or only those updated after since when it is not
// the zero time.
func (c *client) FindTags(ctx context.Context, since time.Time) ([]*entity.Tag, error) {
	var q struct {
		FindTags struct {
			Count int       `graphql:"count"`
			Tags  []tagNode `graphql:"tags"`
		} `graphql:"findTags(filter: $filter, tag_filter: $tag_filter)"`
	}

	var tagFilter *TagFilterType
	if !since.IsZero() {
		tagFilter = &TagFilterType{
			UpdatedAt: &TimestampCriterionInput{
				Value:    since.UTC().Format(time.RFC3339),
				Modifier: ModifierGreaterThan,
			},
		}
	}

	vars := map[string]any{
		"filter":     FindFilterType{PerPage: allPages},
		"tag_filter": tagFilter,
	}

	if err := c.gql.Query(ctx, &q, vars, graphql.OperationName("FindTags")); err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrCatalogQueryFailed, err)
	}

	tags := make([]*entity.Tag, 0, len(q.FindTags.Tags))
	for i := range q.FindTags.Tags {
		tags = append(tags, q.FindTags.Tags[i].toEntity())
	}

	c.log.Info("Found tags", slog.Int("count", len(tags)), slog.Time("since", since))

	return tags, nil
}

// TagIDs returns the ids of every tag currently in the catalog.
func (c *client) TagIDs(ctx context.Context) (map[string]struct{}, error) {
	var q struct {
		FindTags struct {
			Tags []struct {
				ID string `graphql:"id"`
			} `graphql:"tags"`
		} `graphql:"findTags(filter: $filter)"`
	}

	vars := map[string]any{
		"filter": FindFilterType{PerPage: allPages},
	}

	if err := c.gql.Query(ctx, &q, vars, graphql.OperationName("FindTagIDs")); err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrCatalogQueryFailed, err)
	}

	ids := make(map[string]struct{}, len(q.FindTags.Tags))
	for _, t := range q.FindTags.Tags {
		ids[t.ID] = struct{}{}
	}

	c.log.Debug("Found tag ids", slog.Int("count", len(ids)))

	return ids, nil
}
