package browser

import (
	"context"
	"fmt"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"indiflow/internal/config"
	"indiflow/pkg/chrome"
)

// Browser is a launched Chrome process with one tab.
type Browser struct {
	Page   *Page
	cancel func()
}

// Launch starts Chrome as configured, applies the device preset and opens
// startURL when it is not empty.
func Launch(ctx context.Context, cfg config.ChromeConfig, startURL string, logger *zap.Logger, opts ...PageOption) (*Browser, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	log := logger.Named("browser")

	execPath, err := chrome.FindExecutable(cfg.ExecPath)
	if err != nil {
		return nil, err
	}
	dev, ok := chrome.LookupDevice(cfg.Device)
	if !ok {
		if cfg.Device != "" {
			log.Warn("unknown device preset, using default", zap.String("device", cfg.Device), zap.String("default", chrome.DefaultDevice))
		}
		dev = chrome.Devices[chrome.DefaultDevice]
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, chrome.AllocatorOptions(execPath, cfg.HeadlessMode, dev)...)
	sugar := log.Sugar()
	ctxOpts := []chromedp.ContextOption{chromedp.WithErrorf(sugar.Errorf)}
	if cfg.Debug {
		ctxOpts = append(ctxOpts, chromedp.WithDebugf(sugar.Debugf))
	}
	tab, tabCancel := chromedp.NewContext(allocCtx, ctxOpts...)
	b := &Browser{
		Page: NewPage(tab, logger, opts...),
		cancel: func() {
			tabCancel()
			allocCancel()
		},
	}

	actions := []chromedp.Action{chrome.Emulate(dev)}
	if startURL != "" {
		actions = append(actions, chromedp.Navigate(startURL))
	}
	if err := chromedp.Run(tab, actions...); err != nil {
		b.Close()
		return nil, fmt.Errorf("start chrome: %w", err)
	}
	log.Info("chrome started",
		zap.String("exec_path", execPath),
		zap.String("device", dev.Name),
		zap.Bool("headless", cfg.HeadlessMode))
	return b, nil
}

// Close shuts the tab and the browser process down.
func (b *Browser) Close() {
	b.cancel()
}
