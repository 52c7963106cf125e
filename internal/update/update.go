// Package update checks GitHub releases for a newer fleetdeck build and
// can replace the running binary in place.
package update

import (
	"archive/tar"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/CursedScorpio/fleetdeck/internal/config"
)

const (
	// GitHubRepo is the repository checked for releases.
	GitHubRepo = "CursedScorpio/fleetdeck"

	// cacheFileName stores the last check result under the fleetdeck dir
	// so the GitHub API is not hit on every invocation.
	cacheFileName = "update-cache.json"

	checkInterval = time.Hour
)

// Release is the slice of the GitHub release payload we read.
type Release struct {
	TagName string  `json:"tag_name"`
	HTMLURL string  `json:"html_url"`
	Assets  []Asset `json:"assets"`
}

// Asset is one downloadable release artifact.
type Asset struct {
	Name               string `json:"name"`
	BrowserDownloadURL string `json:"browser_download_url"`
}

// Info describes the outcome of an update check.
type Info struct {
	Available      bool
	CurrentVersion string
	LatestVersion  string
	DownloadURL    string
	ReleaseURL     string
}

type checkCache struct {
	CheckedAt     time.Time `json:"checked_at"`
	LatestVersion string    `json:"latest_version"`
	DownloadURL   string    `json:"download_url"`
	ReleaseURL    string    `json:"release_url"`
}

// Check reports whether a newer release exists. A cache younger than an
// hour answers without a network round trip unless force is set.
func Check(currentVersion string, force bool) (*Info, error) {
	info := &Info{CurrentVersion: currentVersion}

	if !force {
		if cache, err := loadCache(); err == nil && time.Since(cache.CheckedAt) < checkInterval {
			info.LatestVersion = cache.LatestVersion
			info.DownloadURL = cache.DownloadURL
			info.ReleaseURL = cache.ReleaseURL
			info.Available = CompareVersions(currentVersion, cache.LatestVersion) < 0
			return info, nil
		}
	}

	release, err := fetchLatestRelease()
	if err != nil {
		return info, err
	}

	latest := strings.TrimPrefix(release.TagName, "v")
	downloadURL := assetURL(release)

	_ = saveCache(&checkCache{
		CheckedAt:     time.Now(),
		LatestVersion: latest,
		DownloadURL:   downloadURL,
		ReleaseURL:    release.HTMLURL,
	})

	info.LatestVersion = latest
	info.DownloadURL = downloadURL
	info.ReleaseURL = release.HTMLURL
	info.Available = CompareVersions(currentVersion, latest) < 0
	return info, nil
}

// CompareVersions compares two dotted versions, tolerating a leading
// "v". Returns -1, 0, or 1.
func CompareVersions(v1, v2 string) int {
	p1 := strings.Split(strings.TrimPrefix(v1, "v"), ".")
	p2 := strings.Split(strings.TrimPrefix(v2, "v"), ".")
	for len(p1) < 3 {
		p1 = append(p1, "0")
	}
	for len(p2) < 3 {
		p2 = append(p2, "0")
	}
	for i := 0; i < 3; i++ {
		var n1, n2 int
		fmt.Sscanf(p1[i], "%d", &n1)
		fmt.Sscanf(p2[i], "%d", &n2)
		if n1 != n2 {
			if n1 < n2 {
				return -1
			}
			return 1
		}
	}
	return 0
}

// Apply downloads the release archive and swaps the running binary,
// keeping the old one around until the new one is in place.
func Apply(downloadURL string) error {
	if downloadURL == "" {
		return fmt.Errorf("no release asset for %s/%s", runtime.GOOS, runtime.GOARCH)
	}

	execPath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("locate executable: %w", err)
	}
	execPath, err = filepath.EvalSymlinks(execPath)
	if err != nil {
		return fmt.Errorf("resolve executable path: %w", err)
	}

	client := &http.Client{Timeout: 2 * time.Minute}
	resp, err := client.Get(downloadURL)
	if err != nil {
		return fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download failed with status %d", resp.StatusCode)
	}

	tmpFile, err := os.CreateTemp("", "fleetdeck-update-*.tar.gz")
	if err != nil {
		return err
	}
	tmpPath := tmpFile.Name()
	defer os.Remove(tmpPath)
	if _, err := io.Copy(tmpFile, resp.Body); err != nil {
		tmpFile.Close()
		return fmt.Errorf("save download: %w", err)
	}
	tmpFile.Close()

	binary, err := extractBinary(tmpPath)
	if err != nil {
		return fmt.Errorf("extract: %w", err)
	}

	newPath := execPath + ".new"
	if err := os.WriteFile(newPath, binary, 0o755); err != nil {
		return fmt.Errorf("write new binary: %w", err)
	}
	oldPath := execPath + ".old"
	if err := os.Rename(execPath, oldPath); err != nil {
		os.Remove(newPath)
		return fmt.Errorf("back up old binary: %w", err)
	}
	if err := os.Rename(newPath, execPath); err != nil {
		_ = os.Rename(oldPath, execPath)
		return fmt.Errorf("install new binary: %w", err)
	}
	os.Remove(oldPath)
	return nil
}

func fetchLatestRelease() (*Release, error) {
	url := fmt.Sprintf("https://api.github.com/repos/%s/releases/latest", GitHubRepo)
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("fetch release: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GitHub API returned status %d", resp.StatusCode)
	}
	var release Release
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return nil, fmt.Errorf("parse release: %w", err)
	}
	return &release, nil
}

// assetURL picks the archive matching this platform, named
// fleetdeck_X.Y.Z_os_arch.tar.gz by the release workflow.
func assetURL(release *Release) string {
	version := strings.TrimPrefix(release.TagName, "v")
	want := fmt.Sprintf("fleetdeck_%s_%s_%s.tar.gz", version, runtime.GOOS, runtime.GOARCH)
	for _, asset := range release.Assets {
		if asset.Name == want {
			return asset.BrowserDownloadURL
		}
	}
	return ""
}

func extractBinary(archivePath string) ([]byte, error) {
	file, err := os.Open(archivePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	gzr, err := gzip.NewReader(file)
	if err != nil {
		return nil, err
	}
	defer gzr.Close()

	tr := tar.NewReader(gzr)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if header.Typeflag == tar.TypeReg && header.Name == "fleetdeck" {
			return io.ReadAll(tr)
		}
	}
	return nil, fmt.Errorf("fleetdeck binary not found in archive")
}

func cachePath() (string, error) {
	dir, err := config.Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, cacheFileName), nil
}

func loadCache() (*checkCache, error) {
	path, err := cachePath()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cache checkCache
	if err := json.Unmarshal(data, &cache); err != nil {
		return nil, err
	}
	return &cache, nil
}

func saveCache(cache *checkCache) error {
	path, err := cachePath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cache, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
