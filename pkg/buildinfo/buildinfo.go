// Package buildinfo exposes the version stamped into the vidtwin binary.
package buildinfo

import (
	"encoding/json"
	"net/http"
	"runtime"
)

// ServiceName identifies this client in version output and request headers.
const ServiceName = "vidtwin-cli"

// These vars are set at build time via ldflags:
// -X github.com/otherjamesbrown/vidtwin-cli/pkg/buildinfo.Version=v0.3.0
// -X github.com/otherjamesbrown/vidtwin-cli/pkg/buildinfo.Commit=4c1e9a2
// -X github.com/otherjamesbrown/vidtwin-cli/pkg/buildinfo.BuildTime=2026-10-01T09:00:00Z
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// Info holds build information for a binary.
type Info struct {
	ServiceName string `json:"service_name" yaml:"service_name"`
	Version     string `json:"version" yaml:"version"`
	Commit      string `json:"commit" yaml:"commit"`
	BuildTime   string `json:"build_time" yaml:"build_time"`
	GoVersion   string `json:"go_version" yaml:"go_version"`
}

// Get returns build info for the named service.
func Get(serviceName string) Info {
	return Info{
		ServiceName: serviceName,
		Version:     Version,
		Commit:      Commit,
		BuildTime:   BuildTime,
		GoVersion:   runtime.Version(),
	}
}

// String returns a human-readable one-liner like "v0.3.0 (4c1e9a2, 2026-10-01T09:00:00Z)"
func String() string {
	return Version + " (" + Commit + ", " + BuildTime + ")"
}

// UserAgent returns the User-Agent header value sent to the transcript service.
func UserAgent() string {
	return ServiceName + "/" + Version
}

// Handler returns an HTTP handler that responds with build info JSON.
func Handler(serviceName string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		info := Get(serviceName)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(info)
	}
}
