package config

const (
	defaultStorageDriver = "sqlite"
	defaultAPIListen     = ":8080"

	defaultExtractorProvider = "ollama"
	defaultExtractorTarget   = "http://localhost:11434"
	defaultExtractorModel    = "llama3.2"
	defaultExtractorTimeout  = 30

	defaultEventStreamProvider = "nop"
	defaultEventStreamTopic    = "recall.ingest"

	defaultPackMaxNodes = 200
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Storage: StorageConfig{
			Driver: defaultStorageDriver,
		},
		API: APIConfig{
			Listen: defaultAPIListen,
		},
		Extractor: ExtractorConfig{
			Provider:       defaultExtractorProvider,
			Target:         defaultExtractorTarget,
			Model:          defaultExtractorModel,
			TimeoutSeconds: defaultExtractorTimeout,
		},
		EventStream: EventStreamConfig{
			Provider: defaultEventStreamProvider,
			Topic:    defaultEventStreamTopic,
		},
		Pack: PackConfig{
			MaxNodes: defaultPackMaxNodes,
		},
	}
}
