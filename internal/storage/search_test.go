// internal/storage/search_test.go
package storage

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"notification-hub/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeES serves just enough of the Elasticsearch API for the index adapter.
type fakeES struct {
	mu       sync.Mutex
	requests []recordedRequest
	respond  func(r *http.Request) (int, string)
}

type recordedRequest struct {
	method string
	path   string
	body   string
}

func newFakeES(t *testing.T, respond func(r *http.Request) (int, string)) (*fakeES, *elasticsearch.Client) {
	t.Helper()
	f := &fakeES{respond: respond}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.requests = append(f.requests, recordedRequest{method: r.Method, path: r.URL.Path, body: string(body)})
		f.mu.Unlock()

		status, payload := http.StatusOK, "{}"
		if f.respond != nil {
			status, payload = f.respond(r)
		}
		// The v8 client refuses to talk to anything not identifying itself
		// as Elasticsearch.
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(payload))
	}))
	t.Cleanup(srv.Close)

	es, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)
	return f, es
}

func TestNotificationIndex_Index(t *testing.T) {
	f, es := newFakeES(t, nil)
	index := NewNotificationIndex(es)

	n := &models.Notification{
		ID:        "n1",
		UserID:    "user-1",
		Type:      "reminder",
		Title:     "Invoice due",
		Message:   "Pay now",
		Priority:  models.PriorityMedium,
		Channel:   models.ChannelInApp,
		Status:    models.StatusUnread,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, index.Index(context.Background(), n))

	require.Len(t, f.requests, 1)
	assert.Equal(t, "/notifications/_doc/n1", f.requests[0].path)

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(f.requests[0].body), &doc))
	assert.Equal(t, "user-1", doc["userId"])
	assert.Equal(t, "Invoice due", doc["title"])
}

func TestNotificationIndex_Delete_MissingDocumentIsFine(t *testing.T) {
	_, es := newFakeES(t, func(*http.Request) (int, string) {
		return http.StatusNotFound, `{"result":"not_found"}`
	})
	index := NewNotificationIndex(es)

	assert.NoError(t, index.Delete(context.Background(), "ghost"))
}

func TestNotificationIndex_Search(t *testing.T) {
	f, es := newFakeES(t, func(*http.Request) (int, string) {
		return http.StatusOK, `{"hits":{"hits":[{"_id":"n2"},{"_id":"n1"}]}}`
	})
	index := NewNotificationIndex(es)

	ids, err := index.Search(context.Background(), "user-1", "invoice", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"n2", "n1"}, ids)

	require.Len(t, f.requests, 1)
	assert.Equal(t, "/notifications/_search", f.requests[0].path)

	var query map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(f.requests[0].body), &query))
	boolQuery := query["query"].(map[string]interface{})["bool"].(map[string]interface{})
	must := boolQuery["must"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "invoice", must["multi_match"].(map[string]interface{})["query"])
	filter := boolQuery["filter"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "user-1", filter["term"].(map[string]interface{})["userId"])
}

func TestNotificationIndex_Search_ServerError(t *testing.T) {
	_, es := newFakeES(t, func(*http.Request) (int, string) {
		return http.StatusInternalServerError, `{"error":"boom"}`
	})
	index := NewNotificationIndex(es)

	_, err := index.Search(context.Background(), "user-1", "invoice", 10)
	assert.Error(t, err)
}
