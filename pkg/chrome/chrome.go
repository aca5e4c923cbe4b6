package chrome

import (
	"errors"
	"os"
	"os/exec"
	"runtime"
)

var ErrNotFound = errors.New("chrome executable not found")

var pathNames = []string{"google-chrome", "google-chrome-stable", "chromium-browser", "chromium"}

// FindExecutable returns override when it exists, otherwise the first Chrome
// or Chromium installation found on this machine.
func FindExecutable(override string) (string, error) {
	if override != "" {
		if _, err := os.Stat(override); err != nil {
			return "", err
		}
		return override, nil
	}
	if path := GetChromePath(); path != "" {
		return path, nil
	}
	return "", ErrNotFound
}

// GetChromePath returns the path to a Chrome executable, or "" when none is
// installed in a known location or on PATH.
func GetChromePath() string {
	for _, path := range installPaths(runtime.GOOS, os.Getenv("LOCALAPPDATA")) {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	for _, name := range pathNames {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}
	return ""
}

// installPaths lists the default install locations for goos, best first.
func installPaths(goos, localAppData string) []string {
	switch goos {
	case "linux":
		return []string{
			"/usr/bin/google-chrome-stable",
			"/usr/bin/google-chrome",
			"/usr/bin/chromium-browser",
			"/usr/bin/chromium",
			"/snap/bin/chromium",
			"/opt/google/chrome/google-chrome",
		}
	case "darwin":
		return []string{
			"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
			"/Applications/Chromium.app/Contents/MacOS/Chromium",
		}
	case "windows":
		paths := []string{
			`C:\Program Files\Google\Chrome\Application\chrome.exe`,
			`C:\Program Files (x86)\Google\Chrome\Application\chrome.exe`,
		}
		if localAppData != "" {
			paths = append(paths, localAppData+`\Google\Chrome\Application\chrome.exe`)
		}
		return paths
	}
	return nil
}
