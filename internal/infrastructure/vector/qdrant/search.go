package qdrant

import (
	"context"
	"fmt"
	"math"
	"net/http"

	"github.com/tbocquet/course-rag-assistant/internal/core/domain"
)

func (c *Client) Search(ctx context.Context, queryVector []float32, limit int, filter domain.SearchFilter) ([]domain.Candidate, error) {
	hits, err := c.search(ctx, queryVector, limit, filter, false)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Candidate, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.cand)
	}
	return out, nil
}

// SearchMMR overfetches fetchLimit points with their vectors and reorders
// them greedily, trading relevance against redundancy with lambda.
func (c *Client) SearchMMR(ctx context.Context, queryVector []float32, limit, fetchLimit int, lambda float64, filter domain.SearchFilter) ([]domain.Candidate, error) {
	if fetchLimit < limit {
		fetchLimit = limit
	}
	hits, err := c.search(ctx, queryVector, fetchLimit, filter, true)
	if err != nil {
		return nil, err
	}
	return mmrOrder(hits, limit, lambda), nil
}

type searchHit struct {
	cand   domain.Candidate
	vector []float32
}

func (c *Client) search(ctx context.Context, queryVector []float32, limit int, filter domain.SearchFilter, withVector bool) ([]searchHit, error) {
	payload := map[string]any{
		"vector":       queryVector,
		"limit":        limit,
		"with_payload": true,
	}
	if withVector {
		payload["with_vector"] = true
	}
	if !filter.Empty() {
		payload["filter"] = map[string]any{
			"must": []map[string]any{
				{
					"key":   "subject",
					"match": map[string]any{"any": filter.Subjects},
				},
			},
		}
	}

	var response struct {
		Result []struct {
			ID      any            `json:"id"`
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
			Vector  []float32      `json:"vector"`
		} `json:"result"`
	}
	path := fmt.Sprintf("/collections/%s/points/search", c.collection)
	err := c.do(ctx, http.MethodPost, path, payload, &response, "search")
	if isMissingCollection(err) {
		return nil, domain.WrapError(domain.ErrIndexUnavailable, "qdrant search", err)
	}
	if err != nil {
		return nil, err
	}

	hits := make([]searchHit, 0, len(response.Result))
	for _, r := range response.Result {
		chunk := chunkFromPayload(r.Payload)
		chunk.ID = pointIDString(r.ID)
		hits = append(hits, searchHit{
			cand: domain.Candidate{
				Chunk:  chunk,
				Score:  r.Score,
				Origin: domain.OriginSemantic,
			},
			vector: r.Vector,
		})
	}
	return hits, nil
}

func mmrOrder(hits []searchHit, limit int, lambda float64) []domain.Candidate {
	if limit > len(hits) {
		limit = len(hits)
	}
	if limit <= 0 {
		return nil
	}

	selected := make([]domain.Candidate, 0, limit)
	selectedVectors := make([][]float32, 0, limit)
	used := make([]bool, len(hits))

	for len(selected) < limit {
		best := -1
		bestScore := math.Inf(-1)
		for i, h := range hits {
			if used[i] {
				continue
			}
			redundancy := 0.0
			for _, v := range selectedVectors {
				if sim := cosineSimilarity(h.vector, v); sim > redundancy {
					redundancy = sim
				}
			}
			score := lambda*h.cand.Score - (1-lambda)*redundancy
			if score > bestScore {
				bestScore = score
				best = i
			}
		}
		if best < 0 {
			break
		}
		used[best] = true
		selected = append(selected, hits[best].cand)
		selectedVectors = append(selectedVectors, hits[best].vector)
	}
	return selected
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
