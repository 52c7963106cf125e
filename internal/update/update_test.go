package update

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompareVersions(t *testing.T) {
	cases := []struct {
		name   string
		v1, v2 string
		want   int
	}{
		{"equal", "1.0.0", "1.0.0", 0},
		{"patch behind", "0.3.0", "0.3.1", -1},
		{"minor ahead", "0.4.0", "0.3.9", 1},
		{"v prefix", "v0.3.1", "0.3.1", 0},
		{"mixed prefix", "v1.0.0", "1.0.1", -1},
		{"two-part padded", "1.0", "1.0.0", 0},
		{"single part", "2", "1.9.9", 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, CompareVersions(tc.v1, tc.v2))
		})
	}
}

func TestAssetURLMatchesPlatform(t *testing.T) {
	release := &Release{
		TagName: "v0.4.0",
		Assets: []Asset{
			{Name: "fleetdeck_0.4.0_linux_amd64.tar.gz", BrowserDownloadURL: "https://dl.test/linux_amd64"},
			{Name: "fleetdeck_0.4.0_darwin_arm64.tar.gz", BrowserDownloadURL: "https://dl.test/darwin_arm64"},
		},
	}
	url := assetURL(release)
	// Exactly one of the listed assets can match the test host, and a
	// host outside that set gets an empty URL, never a wrong one.
	if url != "" {
		assert.Contains(t, []string{"https://dl.test/linux_amd64", "https://dl.test/darwin_arm64"}, url)
	}
}

func TestCheckUsesFreshCache(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("FLEETDECK_DIR", dir)

	cache := checkCache{
		CheckedAt:     time.Now(),
		LatestVersion: "0.9.0",
		DownloadURL:   "https://dl.test/a",
		ReleaseURL:    "https://github.test/r",
	}
	data, err := json.Marshal(cache)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, cacheFileName), data, 0o600))

	info, err := Check("0.3.1", false)

	require.NoError(t, err, "a fresh cache must answer without network access")
	assert.True(t, info.Available)
	assert.Equal(t, "0.9.0", info.LatestVersion)
	assert.Equal(t, "https://dl.test/a", info.DownloadURL)
}

func TestCheckCacheReportsUpToDate(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("FLEETDECK_DIR", dir)

	cache := checkCache{CheckedAt: time.Now(), LatestVersion: "0.3.1"}
	data, err := json.Marshal(cache)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, cacheFileName), data, 0o600))

	info, err := Check("0.3.1", false)

	require.NoError(t, err)
	assert.False(t, info.Available)
}
