package chrome

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupDevice(t *testing.T) {
	d, ok := LookupDevice("iphone 12 pro")
	require.True(t, ok)
	assert.Equal(t, "iPhone 12 Pro", d.Name)
	assert.True(t, d.Mobile)
	assert.Equal(t, int64(390), d.Width)

	_, ok = LookupDevice("Nokia 3310")
	assert.False(t, ok)

	_, ok = LookupDevice(DefaultDevice)
	assert.True(t, ok)
}

func TestDeviceNamesSorted(t *testing.T) {
	names := DeviceNames()
	assert.Len(t, names, len(Devices))
	assert.IsIncreasing(t, names)
}

func TestAllocatorOptionsAddDeviceFlags(t *testing.T) {
	desktop := Devices["Desktop 1280x800"]
	phone := Devices["iPhone 12 Pro"]

	base := AllocatorOptions("", true, desktop)
	withPath := AllocatorOptions("/usr/bin/chromium", true, desktop)
	mobile := AllocatorOptions("", true, phone)

	assert.Len(t, withPath, len(base)+1)
	assert.Len(t, mobile, len(base)+2, "touch and mobile scrollbars")
}

func TestFindExecutableOverride(t *testing.T) {
	_, err := FindExecutable("/definitely/not/chrome")
	assert.Error(t, err)

	path, err := FindExecutable(t.TempDir())
	require.NoError(t, err)
	assert.NotEmpty(t, path)
}

func TestInstallPaths(t *testing.T) {
	linux := installPaths("linux", "")
	require.NotEmpty(t, linux)
	assert.Equal(t, "/usr/bin/google-chrome-stable", linux[0])
	for _, p := range linux {
		assert.True(t, strings.HasPrefix(p, "/"), p)
	}

	assert.Len(t, installPaths("windows", ""), 2)
	win := installPaths("windows", `C:\Users\qa\AppData\Local`)
	require.Len(t, win, 3)
	assert.Equal(t, `C:\Users\qa\AppData\Local\Google\Chrome\Application\chrome.exe`, win[2])

	assert.Len(t, installPaths("darwin", ""), 2)
	assert.Empty(t, installPaths("plan9", ""))
}
