// Package qdrant provides a vector.Driver backed by a Qdrant server over
// gRPC.
package qdrant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"sync"

	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/bindery/shelf/pkg/vector"
)

const defaultPort = 6334

// Config holds the settings for a Qdrant driver.
type Config struct {
	// Target is the Qdrant gRPC address, as host:port or a URL.
	// The port defaults to 6334 when omitted. Required.
	Target string

	// APIKey authenticates against a secured deployment. Optional.
	APIKey string
}

// Driver talks to one Qdrant deployment. Collection dimensionalities are
// cached after the first describe so EnsureCollection usually costs nothing
// on the hot path; the cache is invalidated on delete.
type Driver struct {
	client *qdrant.Client
	logger *slog.Logger

	mu   sync.RWMutex
	dims map[string]uint64
}

var _ vector.Driver = (*Driver)(nil)

// NewDriver creates a Qdrant driver. The gRPC connection dials lazily, so
// construction succeeds even while the database is still starting.
func NewDriver(config Config, logger *slog.Logger) (*Driver, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if strings.TrimSpace(config.Target) == "" {
		return nil, fmt.Errorf("qdrant target is required")
	}

	host, port, useTLS, err := splitTarget(config.Target)
	if err != nil {
		return nil, fmt.Errorf("parsing qdrant target: %w", err)
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: config.APIKey,
		UseTLS: useTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("creating qdrant client: %w", err)
	}

	return &Driver{
		client: client,
		logger: logger,
		dims:   make(map[string]uint64),
	}, nil
}

// EnsureCollection creates the collection with cosine distance when absent
// and verifies the dimension when present. A concurrent creation race
// resolves by re-reading the winner's schema.
func (d *Driver) EnsureCollection(ctx context.Context, name string, dimension uint64) error {
	if err := validName(name); err != nil {
		return err
	}

	d.mu.RLock()
	cached, ok := d.dims[name]
	d.mu.RUnlock()
	if ok {
		if cached != dimension {
			return fmt.Errorf("%w: collection %q has dimension %d, want %d",
				vector.ErrSchemaConflict, name, cached, dimension)
		}
		return nil
	}

	exists, err := d.client.CollectionExists(ctx, name)
	if err != nil {
		return d.classify(err, "checking collection")
	}

	if exists {
		return d.verifyDimension(ctx, name, dimension)
	}

	err = d.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     dimension,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		// Another caller may have created it between the existence check
		// and now. Re-read the schema and accept a matching dimension.
		if verifyErr := d.verifyDimension(ctx, name, dimension); verifyErr == nil {
			return nil
		} else if errors.Is(verifyErr, vector.ErrSchemaConflict) {
			return verifyErr
		}
		return d.classify(err, "creating collection")
	}

	d.cacheDim(name, dimension)
	d.logger.Debug("created qdrant collection", "collection", name, "dimensions", dimension)
	return nil
}

// verifyDimension reads the stored vector size and compares it.
func (d *Driver) verifyDimension(ctx context.Context, name string, dimension uint64) error {
	info, err := d.client.GetCollectionInfo(ctx, name)
	if err != nil {
		return d.classify(err, "describing collection")
	}

	stored := info.GetConfig().GetParams().GetVectorsConfig().GetParams().GetSize()
	if stored != dimension {
		return fmt.Errorf("%w: collection %q has dimension %d, want %d",
			vector.ErrSchemaConflict, name, stored, dimension)
	}

	d.cacheDim(name, dimension)
	return nil
}

// Upsert writes points, replacing any with the same ID.
func (d *Driver) Upsert(ctx context.Context, collection string, points []vector.Point) error {
	if err := validName(collection); err != nil {
		return err
	}
	if len(points) == 0 {
		return nil
	}

	upserts := make([]*qdrant.PointStruct, 0, len(points))
	for _, p := range points {
		payload := map[string]any{"content": p.Payload.Content}
		if len(p.Payload.Metadata) > 0 {
			payload["metadata"] = p.Payload.Metadata
		}

		upserts = append(upserts, &qdrant.PointStruct{
			Id:      qdrant.NewID(p.ID),
			Vectors: qdrant.NewVectors(p.Vector...),
			Payload: qdrant.NewValueMap(payload),
		})
	}

	_, err := d.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Points:         upserts,
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		return d.classify(err, "upserting points")
	}

	d.logger.Debug("upserted points", "collection", collection, "count", len(points))
	return nil
}

// Query runs a nearest-neighbor search over the collection.
func (d *Driver) Query(ctx context.Context, collection string, vec []float32, limit int, scoreThreshold float32) ([]vector.SearchHit, error) {
	if err := validName(collection); err != nil {
		return nil, err
	}

	limit = vector.ClampLimit(limit)
	scoreThreshold = vector.ClampThreshold(scoreThreshold)

	scored, err := d.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQuery(vec...),
		Limit:          qdrant.PtrOf(uint64(limit)),
		ScoreThreshold: qdrant.PtrOf(scoreThreshold),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, d.classify(err, "querying points")
	}

	hits := make([]vector.SearchHit, 0, len(scored))
	for _, point := range scored {
		hit := vector.SearchHit{Score: point.GetScore()}

		payload := point.GetPayload()
		if content, ok := payload["content"]; ok {
			hit.Content = content.GetStringValue()
		}
		if metadata, ok := payload["metadata"]; ok {
			if fields := metadata.GetStructValue().GetFields(); len(fields) > 0 {
				hit.Metadata = mapFromValues(fields)
			}
		}

		hits = append(hits, hit)
	}

	d.logger.Debug("queried collection",
		"collection", collection,
		"limit", limit,
		"score_threshold", scoreThreshold,
		"hits", len(hits),
	)
	return hits, nil
}

// ListCollections names every collection along with its point count.
func (d *Driver) ListCollections(ctx context.Context) ([]vector.CollectionInfo, error) {
	names, err := d.client.ListCollections(ctx)
	if err != nil {
		return nil, d.classify(err, "listing collections")
	}

	infos := make([]vector.CollectionInfo, 0, len(names))
	for _, name := range names {
		info, err := d.client.GetCollectionInfo(ctx, name)
		if err != nil {
			// A collection deleted mid-listing is not an error.
			if errors.Is(d.classify(err, ""), vector.ErrCollectionNotFound) {
				continue
			}
			return nil, d.classify(err, "describing collection")
		}
		infos = append(infos, vector.CollectionInfo{
			Name:        name,
			PointsCount: info.GetPointsCount(),
		})
	}

	return infos, nil
}

// DeleteCollection removes the collection. Deleting an absent collection is
// success.
func (d *Driver) DeleteCollection(ctx context.Context, name string) error {
	if err := validName(name); err != nil {
		return err
	}

	d.mu.Lock()
	delete(d.dims, name)
	d.mu.Unlock()

	if err := d.client.DeleteCollection(ctx, name); err != nil {
		classified := d.classify(err, "deleting collection")
		if errors.Is(classified, vector.ErrCollectionNotFound) {
			return nil
		}
		return classified
	}

	d.logger.Debug("deleted qdrant collection", "collection", name)
	return nil
}

// Close tears down the gRPC connection.
func (d *Driver) Close() error {
	return d.client.Close()
}

func (d *Driver) cacheDim(name string, dimension uint64) {
	d.mu.Lock()
	d.dims[name] = dimension
	d.mu.Unlock()
}

// classify maps a qdrant call error onto the driver's sentinel errors.
// Qdrant reports missing collections as NotFound on newer servers and as
// InvalidArgument("... doesn't exist") on older ones.
func (d *Driver) classify(err error, action string) error {
	st, ok := status.FromError(err)
	if ok {
		switch {
		case st.Code() == codes.NotFound,
			st.Code() == codes.InvalidArgument && strings.Contains(st.Message(), "doesn't exist"):
			return fmt.Errorf("%w: %s", vector.ErrCollectionNotFound, st.Message())
		}
	}
	if action == "" {
		return fmt.Errorf("%w: %v", vector.ErrUnavailable, err)
	}
	return fmt.Errorf("%w: %s: %v", vector.ErrUnavailable, action, err)
}

func validName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: name must not be empty", vector.ErrInvalidCollectionName)
	}
	return nil
}

// splitTarget accepts "host:port", "host", or a URL and returns the gRPC
// connection parameters.
func splitTarget(target string) (host string, port int, useTLS bool, err error) {
	switch {
	case strings.HasPrefix(target, "https://"):
		target = strings.TrimPrefix(target, "https://")
		useTLS = true
	case strings.HasPrefix(target, "http://"):
		target = strings.TrimPrefix(target, "http://")
	}
	target = strings.TrimSuffix(target, "/")

	host, portStr, splitErr := net.SplitHostPort(target)
	if splitErr != nil {
		return target, defaultPort, useTLS, nil
	}

	port, err = strconv.Atoi(portStr)
	if err != nil {
		return "", 0, false, fmt.Errorf("invalid port %q", portStr)
	}
	return host, port, useTLS, nil
}

// mapFromValues converts a qdrant payload struct back into plain Go values.
func mapFromValues(fields map[string]*qdrant.Value) map[string]any {
	out := make(map[string]any, len(fields))
	for key, value := range fields {
		out[key] = anyFromValue(value)
	}
	return out
}

func anyFromValue(v *qdrant.Value) any {
	switch kind := v.GetKind().(type) {
	case *qdrant.Value_BoolValue:
		return kind.BoolValue
	case *qdrant.Value_IntegerValue:
		return kind.IntegerValue
	case *qdrant.Value_DoubleValue:
		return kind.DoubleValue
	case *qdrant.Value_StringValue:
		return kind.StringValue
	case *qdrant.Value_ListValue:
		items := kind.ListValue.GetValues()
		out := make([]any, 0, len(items))
		for _, item := range items {
			out = append(out, anyFromValue(item))
		}
		return out
	case *qdrant.Value_StructValue:
		return mapFromValues(kind.StructValue.GetFields())
	default:
		return nil
	}
}
