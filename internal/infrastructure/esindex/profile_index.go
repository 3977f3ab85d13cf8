package esindex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/oksasatya/kios-auth/internal/domain/entity"
)

// ProfileIndex keeps a searchable copy of user profiles in Elasticsearch.
type ProfileIndex struct {
	es    *elasticsearch.Client
	index string
}

func NewProfileIndex(es *elasticsearch.Client, index string) *ProfileIndex {
	return &ProfileIndex{es: es, index: index}
}

func (x *ProfileIndex) Index(ctx context.Context, p entity.Profile) error {
	b, err := json.Marshal(p)
	if err != nil {
		return err
	}
	req := esapi.IndexRequest{Index: x.index, DocumentID: p.ID, Body: bytes.NewReader(b), Refresh: "false"}
	res, err := req.Do(ctx, x.es)
	if err != nil {
		return err
	}
	defer func() { _ = res.Body.Close() }()
	if res.IsError() {
		return fmt.Errorf("es index %s: %s", p.ID, res.Status())
	}
	return nil
}

// Search performs a simple multi_match search on email and name.
func (x *ProfileIndex) Search(ctx context.Context, q string, size int) ([]entity.Profile, error) {
	query := map[string]any{
		"query": map[string]any{
			"multi_match": map[string]any{
				"query":  q,
				"fields": []string{"email^2", "name"},
			},
		},
		"size": size,
	}
	b, err := json.Marshal(query)
	if err != nil {
		return nil, err
	}

	res, err := x.es.Search(
		x.es.Search.WithContext(ctx),
		x.es.Search.WithIndex(x.index),
		x.es.Search.WithBody(bytes.NewReader(b)),
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = res.Body.Close() }()
	if res.IsError() {
		return nil, fmt.Errorf("es search: %s", res.Status())
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				ID     string         `json:"_id"`
				Source entity.Profile `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, err
	}

	out := make([]entity.Profile, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		p := h.Source
		if p.ID == "" {
			p.ID = h.ID
		}
		out = append(out, p)
	}
	return out, nil
}
