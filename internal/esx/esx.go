// Package esx indexes and searches connect audit documents in Elasticsearch.
package esx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	es8 "github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/samber/lo"

	"player-ticket-gateway/internal/config"
)

type Client = es8.Client

// Open builds a client when ES_ADDRS is set and returns nil otherwise.
func Open(cfg *config.Config) (*Client, func(), error) {
	if strings.TrimSpace(cfg.ES.Addrs) == "" {
		return nil, func() {}, nil
	}
	es, err := es8.NewClient(es8.Config{
		Addresses: SplitAddrs(cfg.ES.Addrs),
		Username:  cfg.ES.Username,
		Password:  cfg.ES.Password,
	})
	if err != nil {
		return nil, func() {}, err
	}
	return es, func() {}, nil
}

// SplitAddrs parses a comma separated address list, dropping blanks.
func SplitAddrs(raw string) []string {
	return lo.FilterMap(strings.Split(raw, ","), func(s string, _ int) (string, bool) {
		t := strings.TrimSpace(s)
		return t, t != ""
	})
}

// ConnectDoc is one connect attempt, successful or rejected.
type ConnectDoc struct {
	ID         string `json:"id"`
	Event      string `json:"event"`
	GameID     string `json:"game_id"`
	AreaID     string `json:"area_id"`
	UID        string `json:"uid"`
	AuthMethod string `json:"auth_method,omitempty"`
	Code       string `json:"code,omitempty"`
	TicketID   string `json:"ticket_id,omitempty"`
	RemoteIP   string `json:"remote_ip,omitempty"`
	RequestID  string `json:"request_id,omitempty"`
	At         string `json:"at"`
}

func IndexConnect(ctx context.Context, es *Client, index string, doc ConnectDoc) error {
	if es == nil {
		return nil
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	res, err := es.Index(index, bytes.NewReader(b),
		es.Index.WithContext(ctx),
		es.Index.WithDocumentID(doc.ID))
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode >= http.StatusBadRequest {
		return fmtError(res)
	}
	return nil
}

// ConnectQuery selects connect documents of a game, optionally narrowed to a player and event.
type ConnectQuery struct {
	GameID string
	UID    string
	Event  string
	From   int
	Size   int
	Asc    bool
}

// SearchConnects returns the connect documents matching q ordered by time, newest first unless q.Asc.
func SearchConnects(ctx context.Context, es *Client, index string, q ConnectQuery) ([]ConnectDoc, error) {
	if es == nil {
		return nil, nil
	}
	filters := []any{map[string]any{"term": map[string]any{"game_id": q.GameID}}}
	if q.UID != "" {
		filters = append(filters, map[string]any{"term": map[string]any{"uid": q.UID}})
	}
	if q.Event != "" {
		filters = append(filters, map[string]any{"term": map[string]any{"event": q.Event}})
	}
	body := map[string]any{
		"query": map[string]any{"bool": map[string]any{"filter": filters}},
		"sort":  []any{map[string]any{"at": lo.Ternary(q.Asc, "asc", "desc")}},
	}
	b, _ := json.Marshal(body)
	res, err := es.Search(
		es.Search.WithContext(ctx),
		es.Search.WithIndex(index),
		es.Search.WithBody(bytes.NewReader(b)),
		es.Search.WithFrom(q.From),
		es.Search.WithSize(q.Size))
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.StatusCode >= http.StatusBadRequest {
		return nil, fmtError(res)
	}
	var out struct {
		Hits struct {
			Hits []searchHit `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	return lo.Map(out.Hits.Hits, func(h searchHit, _ int) ConnectDoc { return h.Source }), nil
}

type searchHit struct {
	Source ConnectDoc `json:"_source"`
}

func fmtError(res *esapi.Response) error { return fmt.Errorf("es error: %s", res.String()) }
