// Package sqlitevec provides an embedded vector driver backed by SQLite
// with the sqlite-vec extension.
package sqlitevec

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"regexp"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"

	"github.com/bindery/shelf/pkg/vector"
)

// Config holds configuration for the sqlite-vec driver.
type Config struct {
	// DBPath is the path to the SQLite database file.
	// Use ":memory:" for an in-memory database.
	DBPath string
}

// Driver implements vector.Driver on a single SQLite database. Each
// collection gets its own vec0 virtual table for KNN queries plus a
// companion table holding point IDs and payloads.
type Driver struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ vector.Driver = (*Driver)(nil)

// Collection names become SQLite table names, so the charset is restricted.
var collectionNameRE = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// NewDriver opens the database, verifies sqlite-vec is available, and
// creates the collection registry.
func NewDriver(c Config, logger *slog.Logger) (*Driver, error) {
	// enable connection to have sqlite-vec extension
	sqlite_vec.Auto()

	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if c.DBPath == "" {
		return nil, fmt.Errorf("database path is required")
	}

	db, err := sql.Open("sqlite3", c.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// An in-memory database exists per connection, so hold exactly one.
	// Every method collects rows before issuing follow-up statements to
	// keep that single connection free.
	db.SetMaxOpenConns(1)

	// Verify sqlite-vec is loaded
	var vecVersion string
	if err := db.QueryRow("SELECT vec_version()").Scan(&vecVersion); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite-vec not available: %w", err)
	}

	// The registry latches each collection's dimension so re-creation
	// attempts with a different size can be rejected.
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS collections (
			name TEXT PRIMARY KEY,
			dimension INTEGER NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating collections table: %w", err)
	}

	logger.Info("sqlite-vec vector driver initialized",
		"db_path", c.DBPath,
		"vec_version", vecVersion,
	)

	return &Driver{
		db:     db,
		logger: logger,
	}, nil
}

// serializeFloat32 converts a float32 slice to a little-endian byte slice
// suitable for sqlite-vec BLOB format.
func serializeFloat32(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func validName(name string) error {
	if !collectionNameRE.MatchString(name) {
		return fmt.Errorf("%w: %q", vector.ErrInvalidCollectionName, name)
	}
	return nil
}

// vec0 virtual tables use integer rowids, so each collection pairs a
// vec0 table with a points table mapping string point IDs to rowids.
func vecTable(name string) string {
	return `"vec_` + name + `"`
}

func pointsTable(name string) string {
	return `"points_` + name + `"`
}

// EnsureCollection creates the collection if it does not exist. Calling
// it again with the same dimension is a no-op; a different dimension
// returns vector.ErrSchemaConflict and leaves the stored points intact.
func (d *Driver) EnsureCollection(ctx context.Context, name string, dimension uint64) error {
	if err := validName(name); err != nil {
		return err
	}
	if dimension == 0 {
		return fmt.Errorf("collection dimension must be positive")
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO collections(name, dimension) VALUES (?, ?)
		 ON CONFLICT(name) DO NOTHING`,
		name, dimension,
	); err != nil {
		return fmt.Errorf("registering collection %s: %w", name, err)
	}

	// Read back the registered dimension: if another caller (or a prior
	// run) won, it must match ours.
	var stored uint64
	if err := tx.QueryRowContext(ctx,
		`SELECT dimension FROM collections WHERE name = ?`, name,
	).Scan(&stored); err != nil {
		return fmt.Errorf("reading collection %s: %w", name, err)
	}
	if stored != dimension {
		return fmt.Errorf("%w: collection %s has dimension %d, requested %d",
			vector.ErrSchemaConflict, name, stored, dimension)
	}

	createVec := fmt.Sprintf(
		`CREATE VIRTUAL TABLE IF NOT EXISTS %s USING vec0(embedding float[%d] distance_metric=cosine)`,
		vecTable(name), dimension,
	)
	if _, err := tx.ExecContext(ctx, createVec); err != nil {
		return fmt.Errorf("creating vec0 table for %s: %w", name, err)
	}

	createPoints := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			point_id TEXT NOT NULL UNIQUE,
			content TEXT NOT NULL,
			metadata TEXT NOT NULL DEFAULT ''
		)
	`, pointsTable(name))
	if _, err := tx.ExecContext(ctx, createPoints); err != nil {
		return fmt.Errorf("creating points table for %s: %w", name, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	d.logger.Debug("ensured sqlite-vec collection",
		"collection", name,
		"dimension", dimension,
	)

	return nil
}

// collectionDimension looks up a collection's latched dimension,
// returning vector.ErrCollectionNotFound when it was never created.
func (d *Driver) collectionDimension(ctx context.Context, name string) (uint64, error) {
	var dim uint64
	err := d.db.QueryRowContext(ctx,
		`SELECT dimension FROM collections WHERE name = ?`, name,
	).Scan(&dim)
	switch err {
	case nil:
		return dim, nil
	case sql.ErrNoRows:
		return 0, fmt.Errorf("%w: %s", vector.ErrCollectionNotFound, name)
	default:
		return 0, fmt.Errorf("looking up collection %s: %w", name, err)
	}
}

// Upsert stores points with their vectors and payloads. A point with an
// existing ID is replaced.
func (d *Driver) Upsert(ctx context.Context, collection string, points []vector.Point) error {
	if err := validName(collection); err != nil {
		return err
	}
	if len(points) == 0 {
		return nil
	}

	dim, err := d.collectionDimension(ctx, collection)
	if err != nil {
		return err
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, p := range points {
		if uint64(len(p.Vector)) != dim {
			return fmt.Errorf("%w: collection %s expects %d dimensions, point %s has %d",
				vector.ErrSchemaConflict, collection, dim, p.ID, len(p.Vector))
		}

		metadata := ""
		if len(p.Payload.Metadata) > 0 {
			raw, err := json.Marshal(p.Payload.Metadata)
			if err != nil {
				return fmt.Errorf("encoding metadata for point %s: %w", p.ID, err)
			}
			metadata = string(raw)
		}

		embBlob := serializeFloat32(p.Vector)

		// Check if the point already exists
		var existingRowID int64
		err = tx.QueryRowContext(ctx,
			fmt.Sprintf(`SELECT rowid FROM %s WHERE point_id = ?`, pointsTable(collection)),
			p.ID,
		).Scan(&existingRowID)

		switch err {
		case nil:
			// Point exists; update payload and embedding.
			if _, err := tx.ExecContext(ctx,
				fmt.Sprintf(`UPDATE %s SET content = ?, metadata = ? WHERE rowid = ?`, pointsTable(collection)),
				p.Payload.Content, metadata, existingRowID,
			); err != nil {
				return fmt.Errorf("updating point %s: %w", p.ID, err)
			}

			// Update embedding in the vec0 table via DELETE + INSERT
			// (vec0 does not support UPDATE)
			if _, err := tx.ExecContext(ctx,
				fmt.Sprintf(`DELETE FROM %s WHERE rowid = ?`, vecTable(collection)),
				existingRowID,
			); err != nil {
				return fmt.Errorf("deleting old embedding for point %s: %w", p.ID, err)
			}

			if _, err := tx.ExecContext(ctx,
				fmt.Sprintf(`INSERT INTO %s(rowid, embedding) VALUES (?, ?)`, vecTable(collection)),
				existingRowID, embBlob,
			); err != nil {
				return fmt.Errorf("re-inserting embedding for point %s: %w", p.ID, err)
			}
		case sql.ErrNoRows:
			// New point; insert into the points table first to get the rowid
			result, err := tx.ExecContext(ctx,
				fmt.Sprintf(`INSERT INTO %s(point_id, content, metadata) VALUES (?, ?, ?)`, pointsTable(collection)),
				p.ID, p.Payload.Content, metadata,
			)
			if err != nil {
				return fmt.Errorf("inserting point %s: %w", p.ID, err)
			}

			rowID, err := result.LastInsertId()
			if err != nil {
				return fmt.Errorf("getting rowid for point %s: %w", p.ID, err)
			}

			if _, err := tx.ExecContext(ctx,
				fmt.Sprintf(`INSERT INTO %s(rowid, embedding) VALUES (?, ?)`, vecTable(collection)),
				rowID, embBlob,
			); err != nil {
				return fmt.Errorf("inserting embedding for point %s: %w", p.ID, err)
			}
		default:
			return fmt.Errorf("checking for existing point %s: %w", p.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	d.logger.Debug("upserted points into sqlite-vec",
		"collection", collection,
		"count", len(points),
	)

	return nil
}

// Query runs a KNN search over the collection and returns hits ordered
// by descending similarity. Hits scoring below the threshold are dropped.
func (d *Driver) Query(ctx context.Context, collection string, queryVector []float32, limit int, scoreThreshold float32) ([]vector.SearchHit, error) {
	if err := validName(collection); err != nil {
		return nil, err
	}

	limit = vector.ClampLimit(limit)
	scoreThreshold = vector.ClampThreshold(scoreThreshold)

	if _, err := d.collectionDimension(ctx, collection); err != nil {
		return nil, err
	}

	queryBlob := serializeFloat32(queryVector)

	// KNN via vec0 MATCH, joined back to payloads. The vec0 table is
	// declared with cosine distance, so similarity = 1 - distance.
	rows, err := d.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT
			p.content,
			p.metadata,
			ve.distance
		FROM %s ve
		INNER JOIN %s p ON p.rowid = ve.rowid
		WHERE ve.embedding MATCH ?
			AND ve.k = ?
		ORDER BY ve.distance
	`, vecTable(collection), pointsTable(collection)), queryBlob, limit)
	if err != nil {
		return nil, fmt.Errorf("querying vectors: %w", err)
	}
	defer rows.Close()

	var hits []vector.SearchHit
	for rows.Next() {
		var content, metadata string
		var distance float64
		if err := rows.Scan(&content, &metadata, &distance); err != nil {
			return nil, fmt.Errorf("scanning query result: %w", err)
		}

		score := float32(1.0 - distance)
		if score < scoreThreshold {
			continue
		}

		hit := vector.SearchHit{
			Content: content,
			Score:   score,
		}
		if metadata != "" {
			if err := json.Unmarshal([]byte(metadata), &hit.Metadata); err != nil {
				return nil, fmt.Errorf("decoding metadata: %w", err)
			}
		}
		hits = append(hits, hit)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating query results: %w", err)
	}

	d.logger.Debug("queried sqlite-vec",
		"collection", collection,
		"hits", len(hits),
	)

	return hits, nil
}

// ListCollections returns every collection with its point count, ordered
// by name.
func (d *Driver) ListCollections(ctx context.Context) ([]vector.CollectionInfo, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT name FROM collections ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("listing collections: %w", err)
	}

	// Collect names first so the rows cursor is closed before the count
	// queries go out on the same connection.
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning collection name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterating collections: %w", err)
	}
	rows.Close()

	infos := make([]vector.CollectionInfo, 0, len(names))
	for _, name := range names {
		var count uint64
		if err := d.db.QueryRowContext(ctx,
			fmt.Sprintf(`SELECT COUNT(*) FROM %s`, pointsTable(name)),
		).Scan(&count); err != nil {
			return nil, fmt.Errorf("counting points in %s: %w", name, err)
		}
		infos = append(infos, vector.CollectionInfo{
			Name:        name,
			PointsCount: count,
		})
	}

	return infos, nil
}

// DeleteCollection removes the collection and all its points. Deleting a
// collection that does not exist is a no-op.
func (d *Driver) DeleteCollection(ctx context.Context, name string) error {
	if err := validName(name); err != nil {
		return err
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM collections WHERE name = ?`, name,
	); err != nil {
		return fmt.Errorf("deregistering collection %s: %w", name, err)
	}

	if _, err := tx.ExecContext(ctx,
		fmt.Sprintf(`DROP TABLE IF EXISTS %s`, vecTable(name)),
	); err != nil {
		return fmt.Errorf("dropping vec0 table for %s: %w", name, err)
	}

	if _, err := tx.ExecContext(ctx,
		fmt.Sprintf(`DROP TABLE IF EXISTS %s`, pointsTable(name)),
	); err != nil {
		return fmt.Errorf("dropping points table for %s: %w", name, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	d.logger.Debug("deleted sqlite-vec collection", "collection", name)

	return nil
}

// Close releases resources held by the driver.
func (d *Driver) Close() error {
	return d.db.Close()
}
