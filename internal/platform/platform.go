// Package platform detects the host environment. The dashboard cares
// about two things: which clipboard tool to reach for, and whether
// fsnotify on the state directory can be trusted.
package platform

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// Platform is the detected host environment.
type Platform string

const (
	PlatformMacOS   Platform = "macos"
	PlatformLinux   Platform = "linux"
	PlatformWSL1    Platform = "wsl1"
	PlatformWSL2    Platform = "wsl2"
	PlatformWindows Platform = "windows"
	PlatformUnknown Platform = "unknown"
)

var (
	detected      Platform
	detectionDone bool
)

// Detect returns the current platform. The result is cached.
func Detect() Platform {
	if detectionDone {
		return detected
	}
	detected = detect()
	detectionDone = true
	return detected
}

func detect() Platform {
	switch runtime.GOOS {
	case "darwin":
		return PlatformMacOS
	case "windows":
		return PlatformWindows
	case "linux":
		return detectLinuxOrWSL()
	default:
		return PlatformUnknown
	}
}

func detectLinuxOrWSL() Platform {
	if os.Getenv("WSL_DISTRO_NAME") != "" {
		return detectWSLVersion()
	}
	procVersion, err := os.ReadFile("/proc/version")
	if err != nil {
		return PlatformLinux
	}
	s := string(procVersion)
	if strings.Contains(s, "microsoft") || strings.Contains(s, "Microsoft") {
		return detectWSLVersion()
	}
	return PlatformLinux
}

// detectWSLVersion tells WSL1 from WSL2. WSL2 kernels carry
// "microsoft-standard"; WSL1 has "Microsoft" without it.
func detectWSLVersion() Platform {
	procVersion, err := os.ReadFile("/proc/version")
	if err == nil {
		s := string(procVersion)
		if strings.Contains(s, "microsoft-standard") {
			return PlatformWSL2
		}
		if strings.Contains(s, "Microsoft") {
			return PlatformWSL1
		}
	}
	if _, err := os.Stat("/run/WSL"); err == nil {
		return PlatformWSL2
	}
	if _, err := os.Stat("/dev/vsock"); err == nil {
		return PlatformWSL2
	}
	return PlatformWSL1
}

// IsWSL reports whether this is any WSL environment.
func IsWSL() bool {
	p := Detect()
	return p == PlatformWSL1 || p == PlatformWSL2
}

// String returns a human-readable platform name.
func (p Platform) String() string {
	switch p {
	case PlatformMacOS:
		return "macOS"
	case PlatformLinux:
		return "Linux"
	case PlatformWSL1:
		return "WSL1"
	case PlatformWSL2:
		return "WSL2"
	case PlatformWindows:
		return "Windows"
	default:
		return "Unknown"
	}
}

// CheckFsnotifySupport inspects the filesystem under path and returns a
// warning when it is a type where inotify events are unreliable (9p,
// NFS, CIFS, SSHFS). Empty string means events should work. The config
// watcher keeps running either way; the warning just explains why live
// reload may need a manual refresh.
func CheckFsnotifySupport(path string) string {
	if runtime.GOOS != "linux" {
		return ""
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return ""
	}
	mounts, err := os.ReadFile("/proc/mounts")
	if err != nil {
		return ""
	}

	// Longest mountpoint prefix wins.
	var matchedMount, matchedFsType string
	for _, line := range strings.Split(string(mounts), "\n") {
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		if strings.HasPrefix(absPath, fields[1]) && len(fields[1]) > len(matchedMount) {
			matchedMount = fields[1]
			matchedFsType = fields[2]
		}
	}

	switch {
	case matchedFsType == "9p":
		return "config directory on a 9p mount (WSL2 Windows filesystem): live config reload will not fire"
	case matchedFsType == "nfs" || matchedFsType == "nfs4":
		return "config directory on NFS: live config reload may be unreliable"
	case matchedFsType == "cifs" || matchedFsType == "smbfs":
		return "config directory on CIFS/SMB: live config reload may be unreliable"
	case strings.HasPrefix(matchedFsType, "fuse.sshfs"):
		return "config directory on SSHFS: live config reload will not fire"
	}
	return ""
}
