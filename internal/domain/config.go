package domain

// Config is the normalized gateway configuration.
type Config struct {
	Engine        EngineConfig        `json:"engine"`
	Convert       ConvertConfig       `json:"convert"`
	Bridge        BridgeConfig        `json:"bridge"`
	Dispatch      DispatchConfig      `json:"dispatch"`
	Discovery     DiscoveryConfig     `json:"discovery"`
	Transport     TransportConfig     `json:"transport"`
	Observability ObservabilityConfig `json:"observability"`
}

// EngineConfig locates the external engine.
type EngineConfig struct {
	// Executable overrides discovery of the headless binary. Empty
	// falls back to EngineExecutableEnv, then the candidate list.
	Executable string `json:"executable,omitempty"`
	// Endpoint is the automation HTTP endpoint exposed by the
	// engine-side extension.
	Endpoint string `json:"endpoint"`
}

type ConvertConfig struct {
	TimeoutSeconds int `json:"timeoutSeconds"`
	Concurrency    int `json:"concurrency"`
}

type BridgeConfig struct {
	TimeoutSeconds int `json:"timeoutSeconds"`
	QueueSize      int `json:"queueSize"`
}

// DispatchConfig bounds tool calls that arrive without a deadline of
// their own.
type DispatchConfig struct {
	TimeoutSeconds int `json:"timeoutSeconds"`
}

// DiscoveryConfig lists the directories document search falls back to
// when the caller supplies no path.
type DiscoveryConfig struct {
	Paths []string `json:"paths,omitempty"`
}

type TransportKind string

const (
	TransportStdio TransportKind = "stdio"
	TransportHTTP  TransportKind = "http"
)

type TransportConfig struct {
	Mode     TransportKind `json:"mode"`
	HTTPAddr string        `json:"httpAddr"`
}

type ObservabilityConfig struct {
	ListenAddress string `json:"listenAddress"`
}
