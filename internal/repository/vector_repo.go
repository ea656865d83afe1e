package repository

import (
	"context"
	"crypto/tls"
	"fmt"

	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"github.com/sahil/voxpert/internal/domain"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
)

const defaultVectorDimension = 3072

// VectorConnectionConfig holds configuration for the Qdrant connection.
type VectorConnectionConfig struct {
	Host            string
	Port            int
	Collection      string
	APIKey          string // Qdrant Cloud API Key (enables TLS automatically)
	UseTLS          bool   // Explicitly enable TLS without API Key
	VectorDimension int
}

// apiKeyInterceptor creates a unary interceptor that adds API key to metadata
func apiKeyInterceptor(apiKey string) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		ctx = metadata.AppendToOutgoingContext(ctx, "api-key", apiKey)
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}

// VectorRepository stores chunk vectors in a single Qdrant collection.
// Tenant isolation is a mandatory namespace payload field: every search and
// delete filters on it, never on caller-supplied free text.
type VectorRepository struct {
	conn            *grpc.ClientConn
	pointsClient    pb.PointsClient
	collectClient   pb.CollectionsClient
	collectionName  string
	vectorDimension int
}

// NewVectorRepository creates a new VectorRepository.
// Supports both local Qdrant (insecure) and Qdrant Cloud (TLS + API Key).
func NewVectorRepository(cfg *VectorConnectionConfig) (*VectorRepository, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	vectorDimension := cfg.VectorDimension
	if vectorDimension <= 0 {
		vectorDimension = defaultVectorDimension
	}

	var opts []grpc.DialOption

	// TLS is enabled if: APIKey is set OR UseTLS is explicitly true
	useTLS := cfg.UseTLS || cfg.APIKey != ""

	if useTLS {
		tlsConfig := &tls.Config{
			MinVersion: tls.VersionTLS13,
		}
		creds := credentials.NewTLS(tlsConfig)
		opts = append(opts, grpc.WithTransportCredentials(creds))

		if cfg.APIKey != "" {
			opts = append(opts, grpc.WithUnaryInterceptor(apiKeyInterceptor(cfg.APIKey)))
		}
	} else {
		opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}

	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to qdrant: %w", err)
	}

	return &VectorRepository{
		conn:            conn,
		pointsClient:    pb.NewPointsClient(conn),
		collectClient:   pb.NewCollectionsClient(conn),
		collectionName:  cfg.Collection,
		vectorDimension: vectorDimension,
	}, nil
}

// Close closes the gRPC connection.
func (r *VectorRepository) Close() error {
	return r.conn.Close()
}

// EnsureCollection creates the collection if it doesn't exist and verifies
// the vector dimension matches the configured embedding model.
func (r *VectorRepository) EnsureCollection(ctx context.Context) error {
	info, err := r.collectClient.Get(ctx, &pb.GetCollectionInfoRequest{
		CollectionName: r.collectionName,
	})
	if err == nil {
		if size, ok := collectionVectorSize(info.GetResult()); ok {
			if size != uint64(r.vectorDimension) {
				return fmt.Errorf("collection %s has vector size %d, expected %d", r.collectionName, size, r.vectorDimension)
			}
		}
		return nil
	}

	_, err = r.collectClient.Create(ctx, &pb.CreateCollection{
		CollectionName: r.collectionName,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(r.vectorDimension),
					Distance: pb.Distance_Cosine,
				},
			},
		},
		HnswConfig: &pb.HnswConfigDiff{
			M:                 optionalUint64(16),
			EfConstruct:       optionalUint64(128),
			FullScanThreshold: optionalUint64(10000),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	return nil
}

func optionalUint64(v uint64) *uint64 {
	return &v
}

func collectionVectorSize(info *pb.CollectionInfo) (uint64, bool) {
	if info == nil {
		return 0, false
	}

	config := info.GetConfig()
	if config == nil {
		return 0, false
	}

	params := config.GetParams()
	if params == nil {
		return 0, false
	}

	vectors := params.GetVectorsConfig()
	if vectors == nil {
		return 0, false
	}

	if single := vectors.GetParams(); single != nil {
		if size := single.GetSize(); size > 0 {
			return size, true
		}
	}

	return 0, false
}

// pointID maps a deterministic chunk ID to a Qdrant-compatible UUID,
// scoped by namespace so identical chunk IDs in different namespaces never
// collide.
func pointID(namespace, chunkID string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(namespace+"/"+chunkID)).String()
}

// UpsertBatch writes one batch of chunks under the namespace. All-or-nothing
// for the batch: callers split oversized sets before calling.
func (r *VectorRepository) UpsertBatch(ctx context.Context, namespace string, chunks []domain.Chunk) (int, error) {
	if namespace == "" {
		return 0, fmt.Errorf("namespace is required")
	}

	points := make([]*pb.PointStruct, 0, len(chunks))
	for _, chunk := range chunks {
		points = append(points, &pb.PointStruct{
			Id: &pb.PointId{
				PointIdOptions: &pb.PointId_Uuid{Uuid: pointID(namespace, chunk.ID)},
			},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{
					Vector: &pb.Vector{Data: chunk.Embedding},
				},
			},
			Payload: chunkPayload(namespace, chunk),
		})
	}

	_, err := r.pointsClient.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: r.collectionName,
		Points:         points,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to upsert points: %w", err)
	}

	return len(points), nil
}

func chunkPayload(namespace string, chunk domain.Chunk) map[string]*pb.Value {
	m := chunk.Metadata
	return map[string]*pb.Value{
		"namespace":    {Kind: &pb.Value_StringValue{StringValue: namespace}},
		"chunk_id":     {Kind: &pb.Value_StringValue{StringValue: chunk.ID}},
		"file_id":      {Kind: &pb.Value_StringValue{StringValue: m.FileID}},
		"filename":     {Kind: &pb.Value_StringValue{StringValue: m.Filename}},
		"chunk_index":  {Kind: &pb.Value_IntegerValue{IntegerValue: int64(m.ChunkIndex)}},
		"total_chunks": {Kind: &pb.Value_IntegerValue{IntegerValue: int64(m.TotalChunks)}},
		"expert_id":    {Kind: &pb.Value_StringValue{StringValue: m.ExpertID}},
		"word_count":   {Kind: &pb.Value_IntegerValue{IntegerValue: int64(m.WordCount)}},
		"text":         {Kind: &pb.Value_StringValue{StringValue: m.Text}},
		"created_at":   {Kind: &pb.Value_StringValue{StringValue: m.CreatedAt}},
	}
}

// ChunkSearchResult is one similarity match with its original metadata.
type ChunkSearchResult struct {
	ID       string
	Score    float32
	Metadata domain.ChunkMetadata
}

// Search performs a namespaced vector similarity search.
func (r *VectorRepository) Search(ctx context.Context, namespace string, vector []float32, topK int) ([]ChunkSearchResult, error) {
	if namespace == "" {
		return nil, fmt.Errorf("namespace is required")
	}

	resp, err := r.pointsClient.Search(ctx, &pb.SearchPoints{
		CollectionName: r.collectionName,
		Vector:         vector,
		Limit:          uint64(topK),
		Filter:         namespaceFilter(namespace, ""),
		WithPayload: &pb.WithPayloadSelector{
			SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	results := make([]ChunkSearchResult, len(resp.Result))
	for i, scored := range resp.Result {
		results[i] = ChunkSearchResult{
			ID:       payloadString(scored.Payload, "chunk_id"),
			Score:    scored.Score,
			Metadata: parseChunkPayload(scored.Payload),
		}
	}

	return results, nil
}

// DeleteByFile removes every chunk belonging to the document in the
// namespace. The index is not document-aware, so deletion is by metadata
// filter; this backs document re-upload and expert cleanup.
func (r *VectorRepository) DeleteByFile(ctx context.Context, namespace, fileID string) error {
	if namespace == "" {
		return fmt.Errorf("namespace is required")
	}

	_, err := r.pointsClient.Delete(ctx, &pb.DeletePoints{
		CollectionName: r.collectionName,
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Filter{
				Filter: namespaceFilter(namespace, fileID),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to delete points: %w", err)
	}
	return nil
}

// DeleteNamespace removes the entire namespace (all of one expert's chunks).
func (r *VectorRepository) DeleteNamespace(ctx context.Context, namespace string) error {
	return r.DeleteByFile(ctx, namespace, "")
}

func namespaceFilter(namespace, fileID string) *pb.Filter {
	conditions := []*pb.Condition{
		{
			ConditionOneOf: &pb.Condition_Field{
				Field: &pb.FieldCondition{
					Key: "namespace",
					Match: &pb.Match{
						MatchValue: &pb.Match_Keyword{Keyword: namespace},
					},
				},
			},
		},
	}

	if fileID != "" {
		conditions = append(conditions, &pb.Condition{
			ConditionOneOf: &pb.Condition_Field{
				Field: &pb.FieldCondition{
					Key: "file_id",
					Match: &pb.Match{
						MatchValue: &pb.Match_Keyword{Keyword: fileID},
					},
				},
			},
		})
	}

	return &pb.Filter{Must: conditions}
}

func payloadString(payload map[string]*pb.Value, key string) string {
	if v, ok := payload[key]; ok {
		return v.GetStringValue()
	}
	return ""
}

func parseChunkPayload(payload map[string]*pb.Value) domain.ChunkMetadata {
	m := domain.ChunkMetadata{
		FileID:    payloadString(payload, "file_id"),
		Filename:  payloadString(payload, "filename"),
		ExpertID:  payloadString(payload, "expert_id"),
		Text:      payloadString(payload, "text"),
		CreatedAt: payloadString(payload, "created_at"),
	}
	if v, ok := payload["chunk_index"]; ok {
		m.ChunkIndex = int(v.GetIntegerValue())
	}
	if v, ok := payload["total_chunks"]; ok {
		m.TotalChunks = int(v.GetIntegerValue())
	}
	if v, ok := payload["word_count"]; ok {
		m.WordCount = int(v.GetIntegerValue())
	}
	return m
}
