// Package qdrantvec provides a memory source backed by a Qdrant collection.
// Content is embedded by a pluggable embedding service; the default hashing
// embedder needs no model service.
package qdrantvec

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/custodia-labs/memquery/internal/adapters/driven/embedding/hash"
	"github.com/custodia-labs/memquery/internal/core/domain"
	"github.com/custodia-labs/memquery/internal/core/ports/driven"
	"github.com/custodia-labs/memquery/internal/logger"
)

// Ensure Source implements the interface.
var _ driven.MemorySource = (*Source)(nil)

// Defaults for connection options.
const (
	DefaultCollection = "memories"
	DefaultPort       = 6334
)

// Payload fields written with every point.
const (
	payloadContent   = "content"
	payloadCreatedAt = "created_at"
)

// pointsClient is the subset of the Qdrant client the source uses.
type pointsClient interface {
	Query(ctx context.Context, request *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error)
	Upsert(ctx context.Context, request *qdrant.UpsertPoints) (*qdrant.UpdateResult, error)
	HealthCheck(ctx context.Context) (*qdrant.HealthCheckReply, error)
	ListCollections(ctx context.Context) ([]string, error)
	CreateCollection(ctx context.Context, request *qdrant.CreateCollection) error
	Close() error
}

// Source runs similarity searches against one Qdrant collection.
type Source struct {
	cfg        domain.SourceConfig
	collection string
	embedder   driven.EmbeddingService
	newClient  func(cfg domain.SourceConfig) (pointsClient, error)

	mu     sync.RWMutex
	client pointsClient
}

// New creates a Qdrant source reading the "collection" option. A nil
// embedder falls back to hashing with the "vector_size" option.
func New(cfg domain.SourceConfig, embedder driven.EmbeddingService) *Source {
	if embedder == nil {
		size, _ := strconv.Atoi(cfg.Option("vector_size", ""))
		embedder = hash.New(size)
	}
	return &Source{
		cfg:        cfg,
		collection: cfg.Option("collection", DefaultCollection),
		embedder:   embedder,
		newClient:  newGRPCClient,
	}
}

// Name returns the configured source name.
func (s *Source) Name() string {
	return s.cfg.Name
}

// Initialize connects and creates the collection when missing. An
// unreachable embedding service is only logged; searches report it.
func (s *Source) Initialize(ctx context.Context) error {
	if err := s.embedder.Ping(ctx); err != nil {
		logger.Warn("%s: embedder %s not reachable: %v", s.cfg.Name, s.embedder.ModelName(), err)
	}

	c, err := s.newClient(s.cfg)
	if err != nil {
		return fmt.Errorf("%s: create client: %w", s.cfg.Name, err)
	}
	if err := s.ensureCollection(ctx, c); err != nil {
		_ = c.Close()
		return fmt.Errorf("%s: %w: %w", s.cfg.Name, domain.ErrSourceUnavailable, err)
	}

	s.mu.Lock()
	s.client = c
	s.mu.Unlock()
	logger.Debug("%s: using collection %s (%s, %d dims)", s.cfg.Name, s.collection, s.embedder.ModelName(), s.embedder.Dimensions())
	return nil
}

// Shutdown closes the gRPC connection and the embedder.
func (s *Source) Shutdown(_ context.Context) error {
	s.mu.Lock()
	c := s.client
	s.client = nil
	s.mu.Unlock()

	var err error
	if c != nil {
		err = c.Close()
	}
	return errors.Join(err, s.embedder.Close())
}

// Search embeds the query and returns the nearest points. Filters become
// keyword match conditions on payload fields.
func (s *Source) Search(ctx context.Context, query string, params driven.SearchParams) ([]driven.RawResult, error) {
	c, err := s.active()
	if err != nil {
		return nil, err
	}

	vec, err := s.embed(ctx, query)
	if err != nil {
		return nil, err
	}

	limit := uint64(max(params.Limit, 1))
	req := &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(vec...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if len(params.Filters) > 0 {
		must := make([]*qdrant.Condition, 0, len(params.Filters))
		for k, v := range params.Filters {
			must = append(must, qdrant.NewMatch(k, v))
		}
		req.Filter = &qdrant.Filter{Must: must}
	}

	points, err := c.Query(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%s: query: %w: %w", s.cfg.Name, domain.ErrSourceUnavailable, err)
	}

	results := make([]driven.RawResult, 0, len(points))
	for _, p := range points {
		meta := map[string]any{"source": s.cfg.Name, "collection": s.collection}
		var content string
		var ts time.Time
		for k, v := range p.GetPayload() {
			switch k {
			case payloadContent:
				content = v.GetStringValue()
			case payloadCreatedAt:
				if ms := v.GetIntegerValue(); ms > 0 {
					ts = time.UnixMilli(ms).UTC()
				}
			default:
				meta[k] = payloadValue(v)
			}
		}
		results = append(results, driven.RawResult{
			ID:        pointID(p.GetId()),
			Content:   content,
			Score:     float64(p.GetScore()),
			Metadata:  meta,
			Timestamp: ts,
		})
	}
	return results, nil
}

// Store upserts a point with a new UUID. Metadata values become payload
// fields.
func (s *Source) Store(ctx context.Context, content string, metadata map[string]any) (string, error) {
	c, err := s.active()
	if err != nil {
		return "", err
	}

	fields := make(map[string]any, len(metadata)+2)
	for k, v := range metadata {
		fields[k] = v
	}
	fields[payloadContent] = content
	fields[payloadCreatedAt] = time.Now().UnixMilli()

	payload, err := qdrant.TryValueMap(fields)
	if err != nil {
		return "", fmt.Errorf("%s: %w: payload: %w", s.cfg.Name, domain.ErrInvalidInput, err)
	}

	vec, err := s.embed(ctx, content)
	if err != nil {
		return "", err
	}

	id := uuid.NewString()
	wait := true
	_, err = c.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Wait:           &wait,
		Points: []*qdrant.PointStruct{{
			Id:      qdrant.NewID(id),
			Vectors: qdrant.NewVectors(vec...),
			Payload: payload,
		}},
	})
	if err != nil {
		return "", fmt.Errorf("%s: upsert: %w: %w", s.cfg.Name, domain.ErrSourceUnavailable, err)
	}
	return id, nil
}

// HealthCheck calls Qdrant's health endpoint.
func (s *Source) HealthCheck(ctx context.Context) bool {
	c, err := s.active()
	if err != nil {
		return false
	}
	_, err = c.HealthCheck(ctx)
	return err == nil
}

// embed keeps domain errors from the embedder and marks anything else as
// the source being unavailable.
func (s *Source) embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := s.embedder.Embed(ctx, text)
	if err == nil {
		return vec, nil
	}
	if errors.Is(err, domain.ErrInvalidInput) || errors.Is(err, domain.ErrRateLimited) ||
		errors.Is(err, domain.ErrSourceUnavailable) {
		return nil, fmt.Errorf("%s: embed: %w", s.cfg.Name, err)
	}
	return nil, fmt.Errorf("%s: embed: %w: %w", s.cfg.Name, domain.ErrSourceUnavailable, err)
}

func (s *Source) active() (pointsClient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.client == nil {
		return nil, fmt.Errorf("%s: %w", s.cfg.Name, domain.ErrNotInitialized)
	}
	return s.client, nil
}

func (s *Source) ensureCollection(ctx context.Context, c pointsClient) error {
	names, err := c.ListCollections(ctx)
	if err != nil {
		return fmt.Errorf("list collections: %w", err)
	}
	for _, name := range names {
		if name == s.collection {
			return nil
		}
	}

	logger.Info("%s: creating collection %s", s.cfg.Name, s.collection)
	err = c.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(s.embedder.Dimensions()),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("create collection: %w", err)
	}
	return nil
}

func pointID(id *qdrant.PointId) string {
	if u := id.GetUuid(); u != "" {
		return u
	}
	return strconv.FormatUint(id.GetNum(), 10)
}

func payloadValue(v *qdrant.Value) any {
	switch k := v.GetKind().(type) {
	case *qdrant.Value_StringValue:
		return k.StringValue
	case *qdrant.Value_IntegerValue:
		return k.IntegerValue
	case *qdrant.Value_DoubleValue:
		return k.DoubleValue
	case *qdrant.Value_BoolValue:
		return k.BoolValue
	case *qdrant.Value_ListValue:
		out := make([]any, 0, len(k.ListValue.GetValues()))
		for _, item := range k.ListValue.GetValues() {
			out = append(out, payloadValue(item))
		}
		return out
	case *qdrant.Value_StructValue:
		out := make(map[string]any, len(k.StructValue.GetFields()))
		for key, item := range k.StructValue.GetFields() {
			out[key] = payloadValue(item)
		}
		return out
	default:
		return nil
	}
}

// newGRPCClient dials Qdrant. The URL may be host:port or a full URL; an
// https scheme enables TLS.
func newGRPCClient(cfg domain.SourceConfig) (pointsClient, error) {
	host, port, useTLS, err := parseAddress(cfg.URL)
	if err != nil {
		return nil, err
	}
	return qdrant.NewClient(&qdrant.Config{
		Host:                   host,
		Port:                   port,
		APIKey:                 cfg.APIKey,
		UseTLS:                 useTLS,
		SkipCompatibilityCheck: true,
	})
}

func parseAddress(raw string) (host string, port int, useTLS bool, err error) {
	addr := raw
	if u, perr := url.Parse(raw); perr == nil && u.Host != "" {
		addr = u.Host
		useTLS = u.Scheme == "https"
	}

	h, p, serr := net.SplitHostPort(addr)
	if serr != nil {
		if addr == "" {
			return "", 0, false, fmt.Errorf("%w: empty qdrant address", domain.ErrInvalidInput)
		}
		return addr, DefaultPort, useTLS, nil
	}
	port, err = strconv.Atoi(p)
	if err != nil {
		return "", 0, false, fmt.Errorf("%w: qdrant port %q", domain.ErrInvalidInput, p)
	}
	return h, port, useTLS, nil
}
