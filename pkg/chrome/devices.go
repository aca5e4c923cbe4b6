package chrome

import (
	"context"
	"sort"
	"strings"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/device"
)

const DefaultDevice = "Desktop 1280x800"

const (
	mobileSafariUA = "Mozilla/5.0 (iPhone; CPU iPhone OS 14_7_1 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/14.1.2 Mobile/15E148 Safari/604.1"
	androidUA      = "Mozilla/5.0 (Linux; Android 10; SM-G981B) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/80.0.3987.162 Mobile Safari/537.36"
	desktopUA      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
)

// Devices are the emulation presets a browser can be launched with. Scale
// stays at 1.0 so recorded coordinates match CSS pixels.
var Devices = map[string]device.Info{
	"iPhone 12 Pro": {
		Name: "iPhone 12 Pro", UserAgent: mobileSafariUA,
		Width: 390, Height: 844, Scale: 1.0, Mobile: true, Touch: true,
	},
	"iPhone X": {
		Name:      "iPhone X",
		UserAgent: "Mozilla/5.0 (iPhone; CPU iPhone OS 11_0 like Mac OS X) AppleWebKit/604.1.38 (KHTML, like Gecko) Version/11.0 Mobile/15A372 Safari/604.1",
		Width:     375, Height: 812, Scale: 1.0, Mobile: true, Touch: true,
	},
	"Galaxy S20": {
		Name: "Galaxy S20", UserAgent: androidUA,
		Width: 360, Height: 800, Scale: 1.0, Mobile: true, Touch: true,
	},
	"iPad Pro": {
		Name:      "iPad Pro",
		UserAgent: "Mozilla/5.0 (iPad; CPU OS 13_3 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) CriOS/87.0.4280.77 Mobile/15E148 Safari/604.1",
		Width:     1024, Height: 1366, Scale: 1.0, Mobile: true, Touch: true,
	},
	"Desktop 1280x800": {
		Name: "Desktop 1280x800", UserAgent: desktopUA,
		Width: 1280, Height: 800, Scale: 1.0,
	},
	"Desktop 1920x1080": {
		Name: "Desktop 1920x1080", UserAgent: desktopUA,
		Width: 1920, Height: 1080, Scale: 1.0,
	},
}

// LookupDevice finds a preset by name, ignoring case.
func LookupDevice(name string) (device.Info, bool) {
	if d, ok := Devices[name]; ok {
		return d, true
	}
	for key, d := range Devices {
		if strings.EqualFold(key, name) {
			return d, true
		}
	}
	return device.Info{}, false
}

// DeviceNames returns the preset names in alphabetical order.
func DeviceNames() []string {
	names := make([]string, 0, len(Devices))
	for name := range Devices {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// AllocatorOptions returns the exec allocator flags for launching Chrome
// with dev emulated.
func AllocatorOptions(execPath string, headless bool, dev device.Info) []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-gpu", headless),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-background-timer-throttling", true),
		chromedp.Flag("disable-backgrounding-occluded-windows", true),
		chromedp.Flag("disable-renderer-backgrounding", true),
		chromedp.Flag("ignore-certificate-errors", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("force-device-scale-factor", "1"),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("no-pings", true),
		chromedp.WindowSize(int(dev.Width), int(dev.Height)),
	)
	if execPath != "" {
		opts = append(opts, chromedp.ExecPath(execPath))
	}
	if dev.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(dev.UserAgent))
	}
	if dev.Touch {
		opts = append(opts, chromedp.Flag("touch-events", "enabled"))
	}
	if dev.Mobile {
		opts = append(opts, chromedp.Flag("enable-features", "OverlayScrollbar"))
	}
	return opts
}

// Emulate applies dev to the current tab: metrics, user agent and touch.
func Emulate(dev device.Info) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := emulation.SetDeviceMetricsOverride(dev.Width, dev.Height, dev.Scale, dev.Mobile).Do(ctx); err != nil {
			return err
		}
		if dev.UserAgent != "" {
			if err := emulation.SetUserAgentOverride(dev.UserAgent).Do(ctx); err != nil {
				return err
			}
		}
		return emulation.SetTouchEmulationEnabled(dev.Touch).Do(ctx)
	})
}
