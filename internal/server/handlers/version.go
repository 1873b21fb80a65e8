package handlers

import (
	"net/http"
	"runtime"
	"sync"

	apperrors "github.com/3leaps/nimbuscdn/internal/errors"
)

// VersionInfo describes the running build.
type VersionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
}

var (
	versionMu   sync.RWMutex
	versionInfo = VersionInfo{Version: "dev", Commit: "unknown", BuildDate: "unknown"}
)

// SetVersionInfo sets the build information served by VersionHandler.
func SetVersionInfo(version, commit, buildDate string) {
	versionMu.Lock()
	defer versionMu.Unlock()
	versionInfo = VersionInfo{Version: version, Commit: commit, BuildDate: buildDate}
}

// GetVersionInfo returns the current build information.
func GetVersionInfo() VersionInfo {
	versionMu.RLock()
	info := versionInfo
	versionMu.RUnlock()
	info.GoVersion = runtime.Version()
	return info
}

// VersionHandler serves GET /version.
func VersionHandler(w http.ResponseWriter, r *http.Request) {
	apperrors.WriteJSON(w, http.StatusOK, GetVersionInfo())
}
