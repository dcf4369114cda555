package vectorutils

import (
	"fmt"
	"log/slog"

	"github.com/bindery/shelf/pkg/vector"
	"github.com/bindery/shelf/pkg/vector/qdrant"
	"github.com/bindery/shelf/pkg/vector/sqlitevec"
)

type NewVectorDriverOpts struct {
	ProviderType string

	// Target is the qdrant server address, host:port or URL.
	Target string
	APIKey string

	// DBPath is the sqlite database path.
	DBPath string

	Logger *slog.Logger
}

func NewVectorDriver(o *NewVectorDriverOpts) (vector.Driver, error) {
	switch o.ProviderType {
	case "qdrant":
		return qdrant.NewDriver(qdrant.Config{
			Target: o.Target,
			APIKey: o.APIKey,
		}, o.Logger)
	case "sqlite":
		return sqlitevec.NewDriver(sqlitevec.Config{
			DBPath: o.DBPath,
		}, o.Logger)
	default:
		return nil, fmt.Errorf("unsupported vector store provider: %s", o.ProviderType)
	}
}
