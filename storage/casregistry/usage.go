package casregistry

// Usage restricts which programs accept a backend. Backends are linked at
// build time: a backend package registers itself in init() and a binary
// enables it with a blank import.
type Usage uint8

const (
	// UsageCLI marks backends available to the suiml CLI.
	UsageCLI Usage = 1 << iota
	// UsageDaemon marks backends the blob daemon may serve from.
	UsageDaemon
	// UsageServer marks backends the HTTP API may store converted models in.
	UsageServer
)

func (u Usage) allows(want Usage) bool { return u&want != 0 }
