package protocol

const (
	// DefaultNodePort is the default TCP port for the noise transport.
	DefaultNodePort = 9735
	// DefaultDirectoryPort is the default directory REST API port.
	DefaultDirectoryPort = 9394
	// DefaultRelayPort is the default relay listen port.
	DefaultRelayPort = 9736
)
