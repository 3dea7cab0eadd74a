package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"parkgate/internal/models"
)

// Config содержит конфигурацию для подключения к Elasticsearch
type Config struct {
	Enabled    bool
	URL        string
	Index      string
	Username   string
	Password   string
	MaxRetries int
	Timeout    time.Duration
}

// TicketDocument is a closed ticket as stored in the archive index
type TicketDocument struct {
	models.Ticket
	DurationHours float64 `json:"durationHours"`
}

// TicketQuery filters the archive. Zero values match everything.
type TicketQuery struct {
	GateID   string
	ZoneID   string
	Type     string
	From     *time.Time
	To       *time.Time
	Page     int
	PageSize int
}

// TicketReport is one page of archived tickets plus totals over every match
type TicketReport struct {
	Total   int64            `json:"total"`
	Revenue float64          `json:"revenue"`
	Tickets []TicketDocument `json:"tickets"`
}

// TicketArchive хранит закрытые билеты в Elasticsearch
type TicketArchive struct {
	client *elasticsearch.Client
	config Config
}

// NewTicketArchive создает клиент и индекс, если его еще нет
func NewTicketArchive(cfg Config) (*TicketArchive, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses:     []string{cfg.URL},
		Username:      cfg.Username,
		Password:      cfg.Password,
		RetryOnStatus: []int{502, 503, 504, 429},
		MaxRetries:    cfg.MaxRetries,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Elasticsearch client: %w", err)
	}

	archive := &TicketArchive{client: es, config: cfg}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()
	if err := archive.ensureIndex(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure index exists: %w", err)
	}

	return archive, nil
}

var ticketMapping = map[string]any{
	"settings": map[string]any{
		"number_of_shards":   1,
		"number_of_replicas": 0,
	},
	"mappings": map[string]any{
		"properties": map[string]any{
			"id":             map[string]any{"type": "keyword"},
			"gateId":         map[string]any{"type": "keyword"},
			"zoneId":         map[string]any{"type": "keyword"},
			"type":           map[string]any{"type": "keyword"},
			"subscriptionId": map[string]any{"type": "keyword"},
			"checkinAt":      map[string]any{"type": "date"},
			"checkoutAt":     map[string]any{"type": "date"},
			"totalAmount":    map[string]any{"type": "scaled_float", "scaling_factor": 100},
			"durationHours":  map[string]any{"type": "double"},
			"breakdown":      map[string]any{"type": "object", "enabled": false},
		},
	},
}

func (a *TicketArchive) ensureIndex(ctx context.Context) error {
	res, err := esapi.IndicesExistsRequest{Index: []string{a.config.Index}}.Do(ctx, a.client)
	if err != nil {
		return fmt.Errorf("failed to check index existence: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == 200 {
		slog.Info("Elasticsearch index already exists", "index", a.config.Index)
		return nil
	}

	body, err := json.Marshal(ticketMapping)
	if err != nil {
		return fmt.Errorf("failed to marshal mapping: %w", err)
	}

	createRes, err := esapi.IndicesCreateRequest{
		Index: a.config.Index,
		Body:  bytes.NewReader(body),
	}.Do(ctx, a.client)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	defer createRes.Body.Close()

	if createRes.IsError() {
		return fmt.Errorf("failed to create index: %s", createRes.String())
	}

	slog.Info("Created Elasticsearch index", "index", a.config.Index)
	return nil
}

// IndexTicket upserts a closed ticket by id, so redelivered events are harmless
func (a *TicketArchive) IndexTicket(ctx context.Context, doc TicketDocument) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal ticket: %w", err)
	}

	res, err := esapi.IndexRequest{
		Index:      a.config.Index,
		DocumentID: doc.ID,
		Body:       bytes.NewReader(body),
	}.Do(ctx, a.client)
	if err != nil {
		return fmt.Errorf("failed to index ticket: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("indexing error: %s", res.String())
	}
	return nil
}

// Search возвращает страницу архива и сумму выручки по всем совпадениям
func (a *TicketArchive) Search(ctx context.Context, q TicketQuery) (*TicketReport, error) {
	body, err := json.Marshal(buildSearchRequest(q))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal search query: %w", err)
	}

	res, err := esapi.SearchRequest{
		Index: []string{a.config.Index},
		Body:  bytes.NewReader(body),
	}.Do(ctx, a.client)
	if err != nil {
		return nil, fmt.Errorf("failed to execute search: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("search error: %s", res.String())
	}

	var response struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source TicketDocument `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
		Aggregations struct {
			Revenue struct {
				Value float64 `json:"value"`
			} `json:"revenue"`
		} `json:"aggregations"`
	}
	if err := json.NewDecoder(res.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	report := &TicketReport{
		Total:   response.Hits.Total.Value,
		Revenue: response.Aggregations.Revenue.Value,
		Tickets: make([]TicketDocument, len(response.Hits.Hits)),
	}
	for i, hit := range response.Hits.Hits {
		report.Tickets[i] = hit.Source
	}
	return report, nil
}

func buildSearchRequest(q TicketQuery) map[string]any {
	pageSize := q.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	from := 0
	if q.Page > 1 {
		from = (q.Page - 1) * pageSize
	}

	var filters []map[string]any
	for field, value := range map[string]string{"gateId": q.GateID, "zoneId": q.ZoneID, "type": q.Type} {
		if value != "" {
			filters = append(filters, map[string]any{"term": map[string]any{field: value}})
		}
	}
	if q.From != nil || q.To != nil {
		rng := map[string]any{}
		if q.From != nil {
			rng["gte"] = q.From.Format(time.RFC3339)
		}
		if q.To != nil {
			rng["lt"] = q.To.Format(time.RFC3339)
		}
		filters = append(filters, map[string]any{"range": map[string]any{"checkoutAt": rng}})
	}

	query := map[string]any{"match_all": map[string]any{}}
	if len(filters) > 0 {
		query = map[string]any{"bool": map[string]any{"filter": filters}}
	}

	return map[string]any{
		"query": query,
		"sort":  []map[string]any{{"checkoutAt": map[string]any{"order": "desc"}}},
		"from":  from,
		"size":  pageSize,
		"aggs": map[string]any{
			"revenue": map[string]any{"sum": map[string]any{"field": "totalAmount"}},
		},
		"track_total_hits": true,
	}
}

// HealthCheck проверяет состояние Elasticsearch
func (a *TicketArchive) HealthCheck(ctx context.Context) error {
	res, err := esapi.ClusterHealthRequest{
		WaitForStatus: "yellow",
		Timeout:       10 * time.Second,
	}.Do(ctx, a.client)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("health check error: %s", res.String())
	}
	return nil
}
