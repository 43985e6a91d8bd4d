// Package util provides small host and filesystem helpers used by
// vidreg's discovery package and its CLI.
package util

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"golang.org/x/sys/unix"
)

// videoExtensions lists file extensions treated as video sources by
// directory discovery. Matched case-insensitively.
var videoExtensions = map[string]bool{
	".mp4":  true,
	".mkv":  true,
	".mov":  true,
	".avi":  true,
	".webm": true,
	".m4v":  true,
	".ts":   true,
}

// IsVideoFile reports whether path has a recognized video extension.
func IsVideoFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return videoExtensions[ext]
}

// GetAvailableSpace returns the available disk space in bytes for the given path.
// Returns 0 if the space cannot be determined.
func GetAvailableSpace(path string) uint64 {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return 0
	}
	return stat.Bavail * uint64(stat.Bsize)
}

// LogicalCores returns the number of logical CPUs available to the process,
// used by the CLI as the default for Config.MaxThread.
func LogicalCores() int {
	return runtime.NumCPU()
}

// Hostname returns the local hostname, or "unknown" if it cannot be
// determined.
func Hostname() string {
	h, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return h
}
