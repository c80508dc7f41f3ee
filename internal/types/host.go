// Package types defines the shared data model of the repackaging pipeline.
package types

import "sort"

// Host identifies a supported file-hosting service.
type Host string

const (
	// HostUploadEE is the primary file host.
	HostUploadEE Host = "upload_ee"
	// HostMediafire is the first fallback host.
	HostMediafire Host = "mediafire"
	// HostWorkupload is the second fallback host.
	HostWorkupload Host = "workupload"
	// HostPixeldrain is the last fallback host.
	HostPixeldrain Host = "pixeldrain"
)

// hostPriority fixes the try order of hosts. Lower is tried first.
var hostPriority = map[Host]int{
	HostUploadEE:   0,
	HostMediafire:  1,
	HostWorkupload: 2,
	HostPixeldrain: 3,
}

// AllHosts returns every supported host in priority order.
func AllHosts() []Host {
	return []Host{HostUploadEE, HostMediafire, HostWorkupload, HostPixeldrain}
}

// Priority returns the position of the host in the try order.
// Unknown hosts sort after every known host.
func (h Host) Priority() int {
	if p, ok := hostPriority[h]; ok {
		return p
	}
	return len(hostPriority)
}

// Valid reports whether h is a supported host.
func (h Host) Valid() bool {
	_, ok := hostPriority[h]
	return ok
}

func (h Host) String() string {
	return string(h)
}

// CandidateLink is a file-host page discovered on an aggregator page.
type CandidateLink struct {
	Host Host   `json:"host"`
	URL  string `json:"url"`
}

// SortCandidates orders links by host priority. The sort is stable so links
// of the same host keep their discovery order.
func SortCandidates(links []CandidateLink) {
	sort.SliceStable(links, func(i, j int) bool {
		return links[i].Host.Priority() < links[j].Host.Priority()
	})
}

// SortHosts orders hosts by priority.
func SortHosts(hosts []Host) {
	sort.SliceStable(hosts, func(i, j int) bool {
		return hosts[i].Priority() < hosts[j].Priority()
	})
}
