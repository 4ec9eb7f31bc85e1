package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/elastic/go-elasticsearch/v9"

	"schoolapi/internal/models"
)

const lessonIndex = "lessons"

// Client wraps the elasticsearch client for lesson search. A nil Client
// is valid: indexing becomes a no-op and Search reports unavailability.
type Client struct {
	es *elasticsearch.Client
}

type Config struct {
	URL      string
	User     string
	Password string
}

// NewClient connects to elasticsearch, or returns (nil, nil) when no URL
// is configured — search is an optional collaborator.
func NewClient(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{cfg.URL},
		Username:  cfg.User,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("elasticsearch client: %w", err)
	}
	res, err := es.Info()
	if err != nil {
		return nil, fmt.Errorf("elasticsearch info: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("elasticsearch: %s: %s", res.Status(), body)
	}
	return &Client{es: es}, nil
}

func (c *Client) Enabled() bool { return c != nil && c.es != nil }

// IndexLesson stores a lesson document. Callers treat failures as
// best-effort and only log them.
func (c *Client) IndexLesson(ctx context.Context, lesson *models.Lesson) error {
	if !c.Enabled() {
		return nil
	}
	data, err := json.Marshal(lesson)
	if err != nil {
		return err
	}
	res, err := c.es.Index(
		lessonIndex,
		bytes.NewReader(data),
		c.es.Index.WithContext(ctx),
		c.es.Index.WithDocumentID(strconv.FormatUint(uint64(lesson.ID), 10)),
	)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("index lesson: %s", res.Status())
	}
	return nil
}

// SearchLessons runs a fuzzy multi_match over title and room.
func (c *Client) SearchLessons(ctx context.Context, query string, from, size int) (int64, []models.Lesson, error) {
	if !c.Enabled() {
		return 0, nil, fmt.Errorf("search is not configured")
	}

	body := map[string]any{
		"query": map[string]any{
			"multi_match": map[string]any{
				"query":     query,
				"fields":    []string{"title^2", "room"},
				"fuzziness": "AUTO",
			},
		},
		"from": from,
		"size": size,
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return 0, nil, err
	}

	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(lessonIndex),
		c.es.Search.WithBody(&buf),
	)
	if err != nil {
		return 0, nil, err
	}
	defer res.Body.Close()
	if res.IsError() {
		return 0, nil, fmt.Errorf("search lessons: %s", res.Status())
	}

	var r struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source models.Lesson `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return 0, nil, err
	}

	lessons := make([]models.Lesson, len(r.Hits.Hits))
	for i, hit := range r.Hits.Hits {
		lessons[i] = hit.Source
	}
	return r.Hits.Total.Value, lessons, nil
}
