package opensearch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/loykin/launchr/internal/history"
)

// Sink indexes events into OpenSearch/Elasticsearch by POSTing each one to
// <baseURL>/<index>/_doc.
type Sink struct {
	client *resty.Client
	index  string
}

func New(baseURL, index string) *Sink {
	c := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(5*time.Second).
		SetHeader("Content-Type", "application/json")
	return &Sink{client: c, index: index}
}

func (s *Sink) Send(ctx context.Context, e history.Event) error {
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(e).
		Post("/" + s.index + "/_doc")
	if err != nil {
		return err
	}
	if resp.StatusCode() >= 300 {
		return fmt.Errorf("opensearch sink status %d", resp.StatusCode())
	}
	return nil
}
