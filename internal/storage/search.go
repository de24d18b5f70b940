// internal/storage/search.go
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	stderrors "notification-hub/internal/common/errors"
	"notification-hub/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

const notificationIndexName = "notifications"

// NotificationIndex mirrors delivered notifications into Elasticsearch for
// full-text search over title and message. Indexing is best effort: Postgres
// remains the source of truth and a failed index write never fails a
// dispatch.
type NotificationIndex struct {
	es *elasticsearch.Client
}

// NewNotificationIndex creates the search index adapter.
func NewNotificationIndex(es *elasticsearch.Client) *NotificationIndex {
	return &NotificationIndex{es: es}
}

// Index stores one notification document keyed by its id.
func (i *NotificationIndex) Index(ctx context.Context, n *models.Notification) error {
	doc, err := json.Marshal(n)
	if err != nil {
		return stderrors.NewValidationError(fmt.Sprintf("encode notification: %v", err))
	}

	req := esapi.IndexRequest{
		Index:      notificationIndexName,
		DocumentID: n.ID,
		Body:       bytes.NewReader(doc),
	}
	res, err := req.Do(ctx, i.es)
	if err != nil {
		return stderrors.NewQueryExecutionError(fmt.Sprintf("index notification: %v", err))
	}
	defer res.Body.Close()

	if res.IsError() {
		return stderrors.NewQueryExecutionError(fmt.Sprintf("index notification: %s", res.Status()))
	}
	return nil
}

// Delete removes a notification document. A missing document is not an error.
func (i *NotificationIndex) Delete(ctx context.Context, id string) error {
	req := esapi.DeleteRequest{
		Index:      notificationIndexName,
		DocumentID: id,
	}
	res, err := req.Do(ctx, i.es)
	if err != nil {
		return stderrors.NewQueryExecutionError(fmt.Sprintf("delete from index: %v", err))
	}
	defer res.Body.Close()

	if res.IsError() && res.StatusCode != 404 {
		return stderrors.NewQueryExecutionError(fmt.Sprintf("delete from index: %s", res.Status()))
	}
	return nil
}

// Search returns the ids of a user's notifications matching the query text,
// best match first.
func (i *NotificationIndex) Search(ctx context.Context, userID, query string, size int) ([]string, error) {
	if size <= 0 {
		size = 20
	}

	queryBody := map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"must": []interface{}{
					map[string]interface{}{
						"multi_match": map[string]interface{}{
							"query":  query,
							"fields": []string{"title^3", "message^2", "type"},
							"type":   "best_fields",
						},
					},
				},
				"filter": []interface{}{
					map[string]interface{}{
						"term": map[string]interface{}{"userId": userID},
					},
				},
			},
		},
	}
	body, _ := json.Marshal(queryBody)

	req := esapi.SearchRequest{
		Index: []string{notificationIndexName},
		Body:  bytes.NewReader(body),
		Size:  &size,
	}
	res, err := req.Do(ctx, i.es)
	if err != nil {
		return nil, stderrors.NewQueryExecutionError(fmt.Sprintf("search notifications: %v", err))
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, stderrors.NewQueryExecutionError(fmt.Sprintf("search notifications: %s", res.Status()))
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				ID string `json:"_id"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, stderrors.NewQueryExecutionError(fmt.Sprintf("decode search response: %v", err))
	}

	ids := make([]string, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		ids = append(ids, hit.ID)
	}
	return ids, nil
}
