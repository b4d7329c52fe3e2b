package vector

import (
	"context"
	"fmt"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// QdrantRepository implements Repository using Qdrant over gRPC.
type QdrantRepository struct {
	conn        *grpc.ClientConn
	collections pb.CollectionsClient
	points      pb.PointsClient
	collection  string
}

// NewQdrant creates a Qdrant-backed repository.
func NewQdrant(ctx context.Context, host string, port int, collection string) (*QdrantRepository, error) {
	addr := fmt.Sprintf("%s:%d", host, port)
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("qdrant connect: %w", err)
	}
	return &QdrantRepository{
		conn:        conn,
		collections: pb.NewCollectionsClient(conn),
		points:      pb.NewPointsClient(conn),
		collection:  collection,
	}, nil
}

// EnsureCollection creates the collection if missing, with cosine distance
// and the embedding model's dimensionality. An existing collection is left
// untouched.
func (r *QdrantRepository) EnsureCollection(ctx context.Context, dimension int) error {
	exists, err := r.collections.CollectionExists(ctx, &pb.CollectionExistsRequest{
		CollectionName: r.collection,
	})
	if err != nil {
		return fmt.Errorf("qdrant collection lookup: %w", err)
	}
	if exists.GetResult().GetExists() {
		return nil
	}

	_, err = r.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: r.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(dimension),
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("qdrant create collection: %w", err)
	}
	return nil
}

func (r *QdrantRepository) Upsert(ctx context.Context, points []Point) error {
	pts := make([]*pb.PointStruct, len(points))
	for i, p := range points {
		pts[i] = &pb.PointStruct{
			Id:      &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: p.ID}},
			Vectors: &pb.Vectors{VectorsOptions: &pb.Vectors_Vector{Vector: &pb.Vector{Data: p.Vector}}},
			Payload: map[string]*pb.Value{
				"chunk":     {Kind: &pb.Value_StringValue{StringValue: p.Payload.Chunk}},
				"document":  {Kind: &pb.Value_StringValue{StringValue: p.Payload.Document}},
				"page":      {Kind: &pb.Value_IntegerValue{IntegerValue: int64(p.Payload.Page)}},
				"parent_id": {Kind: &pb.Value_StringValue{StringValue: p.Payload.ParentID}},
			},
		}
	}

	_, err := r.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: r.collection,
		Points:         pts,
	})
	return err
}

func (r *QdrantRepository) Search(ctx context.Context, vector []float32, topK int) ([]SearchResult, error) {
	resp, err := r.points.Search(ctx, &pb.SearchPoints{
		CollectionName: r.collection,
		Vector:         vector,
		Limit:          uint64(topK),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		return nil, err
	}

	results := make([]SearchResult, len(resp.Result))
	for i, pt := range resp.Result {
		results[i] = SearchResult{
			ID:    pt.Id.GetUuid(),
			Score: pt.Score,
			Payload: Payload{
				Chunk:    pt.Payload["chunk"].GetStringValue(),
				Document: pt.Payload["document"].GetStringValue(),
				Page:     int(pt.Payload["page"].GetIntegerValue()),
				ParentID: pt.Payload["parent_id"].GetStringValue(),
			},
		}
	}
	return results, nil
}

func (r *QdrantRepository) Close() error {
	return r.conn.Close()
}
