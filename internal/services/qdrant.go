package services

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"job-matcher/internal/config"
	"job-matcher/internal/models"
)

// VectorSearcher is the similarity query contract against the embedding
// store's native index. Implementations must tag index-not-found errors so
// the search stage can select its fallback path.
type VectorSearcher interface {
	SearchSimilar(ctx context.Context, queryVector []float32, industryCodes []string, limit int) ([]VectorHit, error)
}

type VectorHit struct {
	ResumeID uuid.UUID
	Score    float32
}

type QdrantService interface {
	VectorSearcher
	InitCollection(ctx context.Context) error
	UpsertResume(ctx context.Context, resume *models.ResumeRecord, embedding []float32) error
}

type qdrantService struct {
	client         *qdrant.Client
	collectionName string
	vectorSize     uint64
	timeout        time.Duration
}

func NewQdrantService(cfg *config.QdrantConfig) (QdrantService, error) {
	parsed, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid Qdrant URL: %w", err)
	}

	host := parsed.Hostname()
	useTLS := parsed.Scheme == "https"

	// gRPC port, 6334 by default
	port := 6334
	if p := parsed.Port(); p != "" {
		if v, err := strconv.Atoi(p); err == nil {
			port = v
		}
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: cfg.APIKey,
		UseTLS: useTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	return &qdrantService{
		client:         client,
		collectionName: cfg.Collection,
		vectorSize:     cfg.VectorSize,
		timeout:        cfg.Timeout,
	}, nil
}

// opCtx bounds every store call independently of overall job time.
func (q *qdrantService) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if q.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, q.timeout)
}

// InitCollection implements QdrantService.
func (q *qdrantService) InitCollection(ctx context.Context) error {
	ctx, cancel := q.opCtx(ctx)
	defer cancel()

	exists, err := q.client.CollectionExists(ctx, q.collectionName)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}
	if exists {
		return nil
	}

	err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.collectionName,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     q.vectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}
	return nil
}

// UpsertResume implements QdrantService. The point ID is the resume UUID so
// re-ingesting a resume replaces its vector.
func (q *qdrantService) UpsertResume(ctx context.Context, resume *models.ResumeRecord, embedding []float32) error {
	ctx, cancel := q.opCtx(ctx)
	defer cancel()

	point := &qdrant.PointStruct{
		Id:      qdrant.NewID(resume.ID.String()),
		Vectors: qdrant.NewVectors(embedding...),
		Payload: qdrant.NewValueMap(map[string]interface{}{
			"resume_id":     resume.ID.String(),
			"industry_code": resume.IndustryCode,
		}),
	}

	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collectionName,
		Points:         []*qdrant.PointStruct{point},
	})
	if err != nil {
		return fmt.Errorf("failed to upsert resume point: %w", err)
	}
	return nil
}

// SearchSimilar implements VectorSearcher. industryCodes become a payload
// pre-filter; empty means unrestricted.
func (q *qdrantService) SearchSimilar(ctx context.Context, queryVector []float32, industryCodes []string, limit int) ([]VectorHit, error) {
	ctx, cancel := q.opCtx(ctx)
	defer cancel()

	var filter *qdrant.Filter
	if len(industryCodes) > 0 {
		filter = &qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatchKeywords("industry_code", industryCodes...),
			},
		}
	}

	points, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collectionName,
		Query:          qdrant.NewQuery(queryVector...),
		Filter:         filter,
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		if isIndexMissing(err) {
			return nil, NewIndexNotFound(err)
		}
		return nil, NewRetryable(fmt.Errorf("vector search failed: %w", err))
	}

	hits := make([]VectorHit, 0, len(points))
	for _, point := range points {
		idValue, ok := point.Payload["resume_id"]
		if !ok {
			continue
		}
		val, ok := idValue.GetKind().(*qdrant.Value_StringValue)
		if !ok {
			continue
		}
		resumeID, err := uuid.Parse(val.StringValue)
		if err != nil {
			continue
		}
		hits = append(hits, VectorHit{ResumeID: resumeID, Score: point.Score})
	}

	return hits, nil
}
