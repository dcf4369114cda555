package config

const (
	defaultListen            = ":8080"
	defaultDefaultCollection = "documents"

	defaultClientAPITarget = "http://localhost:8080"

	defaultVectorProvider = "qdrant"
	defaultVectorTarget   = "localhost:6334"

	defaultEmbeddingProvider   = "ollama"
	defaultEmbeddingTarget     = "http://localhost:11434"
	defaultEmbeddingModel      = "nomic-embed-text"
	defaultEmbeddingDimensions = 768

	defaultEventsTopic = "shelf.events"
)

// defaultEventsBrokers returns a fresh slice so callers can append without
// sharing backing arrays.
func defaultEventsBrokers() []string {
	return []string{"localhost:9092"}
}

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Server: ServerConfig{
			Listen:            defaultListen,
			DefaultCollection: defaultDefaultCollection,
		},
		Client: ClientConfig{
			APITarget: defaultClientAPITarget,
		},
		VectorStore: VectorStoreConfig{
			Provider: defaultVectorProvider,
			Target:   defaultVectorTarget,
		},
		Embedding: EmbeddingConfig{
			Provider:   defaultEmbeddingProvider,
			Target:     defaultEmbeddingTarget,
			Model:      defaultEmbeddingModel,
			Dimensions: defaultEmbeddingDimensions,
		},
		Events: EventsConfig{
			Enabled: false,
			Brokers: defaultEventsBrokers(),
			Topic:   defaultEventsTopic,
		},
	}
}
