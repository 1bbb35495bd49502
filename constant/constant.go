package constant

type Environment string

const (
	EnvironmentProduction Environment = "production"
	EnvironmentStaging    Environment = "staging"
	EnvironmentDevelop    Environment = "develop"
)

func (e Environment) String() string {
	return string(e)
}

type StorageBackend string

const (
	BackendMinio StorageBackend = "minio"
	BackendLocal StorageBackend = "local"
)

func (b StorageBackend) String() string {
	return string(b)
}

// AudioMediaTypePrefix gates uploads: only audio content is accepted.
const AudioMediaTypePrefix = "audio/"

type EventKind string

const (
	EventOrphanBlob       EventKind = "orphan_blob"
	EventBlobDeleteFailed EventKind = "blob_delete_failed"
)
