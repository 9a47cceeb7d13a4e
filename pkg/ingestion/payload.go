package ingestion

// SourceAPI tags requests coming from the API server.
const SourceAPI = "api"

type PackageEntry struct {
	Package string `json:"package"`
	Version string `json:"version"`
}

// Payload is the body accepted by the ingestion endpoint.
type Payload struct {
	Ecosystem      string         `json:"ecosystem"`
	Packages       []PackageEntry `json:"packages"`
	Force          bool           `json:"force"`
	ForceGraphSync bool           `json:"force_graph_sync"`
	Source         string         `json:"source"`
}

// NewPayload lists every member of pkgs once. Force is always false,
// ForceGraphSync always true and Source always "api".
func NewPayload(ecosystem string, pkgs PackageSet) Payload {
	entries := make([]PackageEntry, 0, pkgs.Len())
	for _, p := range pkgs.Sorted() {
		entries = append(entries, PackageEntry{Package: p.Name, Version: p.Version})
	}
	return Payload{
		Ecosystem:      ecosystem,
		Packages:       entries,
		Force:          false,
		ForceGraphSync: true,
		Source:         SourceAPI,
	}
}
