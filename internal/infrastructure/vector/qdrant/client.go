// Package qdrant stores course chunks in a Qdrant collection over its
// HTTP API.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/tbocquet/course-rag-assistant/internal/core/domain"
)

const scrollBatchSize = 256

type Client struct {
	baseURL    string
	collection string
	httpClient *http.Client

	ensureMu          sync.Mutex
	ensuredCollection bool
	ensuredVectorSize int
}

func New(baseURL, collection string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

func (c *Client) UpsertChunks(ctx context.Context, chunks []domain.Chunk, vectors [][]float32) error {
	if len(chunks) == 0 {
		return nil
	}
	if len(chunks) != len(vectors) {
		return fmt.Errorf("qdrant upsert: %d chunks for %d vectors", len(chunks), len(vectors))
	}
	if err := c.ensureCollection(ctx, len(vectors[0])); err != nil {
		return err
	}

	type point struct {
		ID      string         `json:"id"`
		Vector  []float32      `json:"vector"`
		Payload map[string]any `json:"payload"`
	}

	points := make([]point, 0, len(chunks))
	for i, chunk := range chunks {
		points = append(points, point{
			ID:     chunk.ID,
			Vector: vectors[i],
			Payload: map[string]any{
				"text":        chunk.Text,
				"subject":     chunk.Subject,
				"doc_type":    string(chunk.DocType),
				"filename":    chunk.Filename,
				"filepath":    chunk.Filepath,
				"chunk_index": chunk.ChunkIndex,
				"source_hash": chunk.SourceHash,
			},
		})
	}

	path := fmt.Sprintf("/collections/%s/points?wait=true", c.collection)
	return c.do(ctx, http.MethodPut, path, map[string]any{"points": points}, nil, "upsert")
}

func (c *Client) DeleteByFilepaths(ctx context.Context, filepaths []string) error {
	if len(filepaths) == 0 {
		return nil
	}

	payload := map[string]any{
		"filter": map[string]any{
			"must": []map[string]any{
				{
					"key":   "filepath",
					"match": map[string]any{"any": filepaths},
				},
			},
		},
	}

	path := fmt.Sprintf("/collections/%s/points/delete?wait=true", c.collection)
	err := c.do(ctx, http.MethodPost, path, payload, nil, "delete")
	if isMissingCollection(err) {
		// Nothing indexed yet, so nothing to delete.
		return nil
	}
	return err
}

func (c *Client) Count(ctx context.Context) (int, error) {
	var response struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	path := fmt.Sprintf("/collections/%s/points/count", c.collection)
	err := c.do(ctx, http.MethodPost, path, map[string]any{"exact": true}, &response, "count")
	if isMissingCollection(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return response.Result.Count, nil
}

// Scroll walks the whole collection in batches and hands each batch to fn.
func (c *Client) Scroll(ctx context.Context, fn func(chunks []domain.Chunk) error) error {
	var offset any
	for {
		payload := map[string]any{
			"limit":        scrollBatchSize,
			"with_payload": true,
		}
		if offset != nil {
			payload["offset"] = offset
		}

		var response struct {
			Result struct {
				Points []struct {
					ID      any            `json:"id"`
					Payload map[string]any `json:"payload"`
				} `json:"points"`
				NextPageOffset any `json:"next_page_offset"`
			} `json:"result"`
		}
		path := fmt.Sprintf("/collections/%s/points/scroll", c.collection)
		err := c.do(ctx, http.MethodPost, path, payload, &response, "scroll")
		if isMissingCollection(err) {
			return nil
		}
		if err != nil {
			return err
		}

		if len(response.Result.Points) > 0 {
			batch := make([]domain.Chunk, 0, len(response.Result.Points))
			for _, p := range response.Result.Points {
				chunk := chunkFromPayload(p.Payload)
				chunk.ID = pointIDString(p.ID)
				batch = append(batch, chunk)
			}
			if err := fn(batch); err != nil {
				return err
			}
		}

		offset = response.Result.NextPageOffset
		if offset == nil {
			return nil
		}
	}
}

func (c *Client) ensureCollection(ctx context.Context, vectorSize int) error {
	c.ensureMu.Lock()
	if c.ensuredCollection && c.ensuredVectorSize == vectorSize {
		c.ensureMu.Unlock()
		return nil
	}
	c.ensureMu.Unlock()

	payload := map[string]any{
		"vectors": map[string]any{
			"size":     vectorSize,
			"distance": "Cosine",
		},
	}

	path := fmt.Sprintf("/collections/%s", c.collection)
	err := c.do(ctx, http.MethodPut, path, payload, nil, "ensure collection")
	// 409 means the collection already exists, depending on the
	// server version.
	var statusErr *statusError
	if err != nil && !(errors.As(err, &statusErr) && statusErr.code == http.StatusConflict) {
		return err
	}

	c.ensureMu.Lock()
	c.ensuredCollection = true
	c.ensuredVectorSize = vectorSize
	c.ensureMu.Unlock()
	return nil
}

type statusError struct {
	operation string
	code      int
	status    string
	body      string
}

func (e *statusError) Error() string {
	if strings.TrimSpace(e.body) == "" {
		return fmt.Sprintf("qdrant %s status: %s", e.operation, e.status)
	}
	return fmt.Sprintf("qdrant %s status: %s: %s", e.operation, e.status, strings.TrimSpace(e.body))
}

func isMissingCollection(err error) bool {
	var statusErr *statusError
	return errors.As(err, &statusErr) && statusErr.code == http.StatusNotFound
}

func (c *Client) do(ctx context.Context, method, path string, payload any, out any, operation string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s body: %w", operation, err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.WrapError(domain.ErrUnavailable, "qdrant "+operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &statusError{
			operation: operation,
			code:      resp.StatusCode,
			status:    resp.Status,
			body:      string(raw),
		}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", operation, err)
	}
	return nil
}

func chunkFromPayload(payload map[string]any) domain.Chunk {
	return domain.Chunk{
		Text:       getStringPayload(payload, "text"),
		Subject:    getStringPayload(payload, "subject"),
		DocType:    domain.DocType(getStringPayload(payload, "doc_type")),
		Filename:   getStringPayload(payload, "filename"),
		Filepath:   getStringPayload(payload, "filepath"),
		ChunkIndex: getIntPayload(payload, "chunk_index"),
		SourceHash: getStringPayload(payload, "source_hash"),
	}
}

func getStringPayload(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

// pointIDString renders a Qdrant point id, which may be a UUID string or
// an integer.
func pointIDString(id any) string {
	switch v := id.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatInt(int64(v), 10)
	case json.Number:
		return v.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}

func getIntPayload(payload map[string]any, key string) int {
	switch v := payload[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case json.Number:
		n, _ := v.Int64()
		return int(n)
	case string:
		n, _ := strconv.Atoi(v)
		return n
	default:
		return 0
	}
}
