package handlers

import (
	"net/http"
	"runtime/debug"
)

type VersionHandler struct {
	version string
}

type VersionResponse struct {
	Version   string `json:"version"`
	GoVersion string `json:"goVersion,omitempty"`
}

// NewVersionHandler reports version, falling back to the module version
// recorded in the binary when it is empty.
func NewVersionHandler(version string) *VersionHandler {
	if version == "" {
		version = "unknown"
		if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
			version = info.Main.Version
		}
	}
	return &VersionHandler{version: version}
}

func (h *VersionHandler) GetVersion(w http.ResponseWriter, r *http.Request) {
	resp := VersionResponse{Version: h.version}
	if info, ok := debug.ReadBuildInfo(); ok {
		resp.GoVersion = info.GoVersion
	}
	writeJSON(w, http.StatusOK, resp)
}
