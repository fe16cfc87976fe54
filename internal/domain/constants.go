package domain

const (
	DefaultEngineEndpoint             = "http://localhost:8765"
	DefaultConvertTimeoutSeconds      = 30
	DefaultConvertConcurrency         = 4
	DefaultBridgeTimeoutSeconds       = 15
	DefaultBridgeQueueSize            = 64
	DefaultDispatchTimeoutSeconds     = 60
	DefaultHTTPListenAddress          = "127.0.0.1:8090"
	DefaultObservabilityListenAddress = "127.0.0.1:9090"

	// EngineExecutableEnv overrides engine binary discovery.
	EngineExecutableEnv = "DOCMCP_SOFFICE"
)

// EngineExecutableCandidates are tried in order when no override is set.
var EngineExecutableCandidates = []string{"soffice", "libreoffice", "loffice"}

// DefaultBatchExtensions are the source extensions batch conversion
// matches when the caller does not narrow them.
var DefaultBatchExtensions = []string{
	".odt", ".ods", ".odp", ".doc", ".docx", ".xls", ".xlsx", ".ppt", ".pptx",
}

// DefaultSearchExtensions bound which files document search reads.
var DefaultSearchExtensions = []string{
	".odt", ".ods", ".odp", ".odg", ".doc", ".docx", ".txt",
}
