package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"indiflow/internal/api/handlers"
	"indiflow/internal/api/routes"
	"indiflow/internal/browser"
	"indiflow/internal/dom"
	"indiflow/internal/models"
	"indiflow/internal/services"
	"indiflow/pkg/htmldom"
)

const shutdownTimeout = 10 * time.Second

var (
	serveURL       string
	serveNoBrowser bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, the flow scheduler and the session janitor",
	Long: `Serve launches Chrome (unless --no-browser is given), restores any recording or
playback that was interrupted by a restart, and exposes the engine over HTTP
and a websocket event stream.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveURL, "url", "", "page to open when the browser starts")
	serveCmd.Flags().BoolVar(&serveNoBrowser, "no-browser", false, "serve flows without a browser; recording and playback run against an empty page")
}

func serve(ctx context.Context) error {
	var (
		page   dom.Page
		source dom.EventSource
		b      *browser.Browser
	)
	if serveNoBrowser {
		p := htmldom.NewPage(htmldom.MustParse("<html><body></body></html>", "about:blank"))
		page, source = p, p
	} else {
		var err error
		b, err = browser.Launch(ctx, cfg.Chrome, serveURL, logger, browser.WithPollInterval(cfg.Recorder.EventPollInterval))
		if err != nil {
			return err
		}
		defer b.Close()
		page, source = b.Page, b.Page
	}

	eng, closeEngine, err := openEngine(ctx, page, source)
	if err != nil {
		return err
	}
	defer closeEngine()

	if b != nil {
		if err := b.Page.WatchNetwork(ctx, func(call models.NetworkCall) { eng.AddAPICall(call) }); err != nil {
			logger.Warn("network capture unavailable", zap.Error(err))
		}
	}
	sched := services.NewScheduler(eng.Flows, eng, logger)
	janitor := services.NewJanitor(eng.Player, cfg.Scheduler.JanitorInterval, logger)

	gin.SetMode(cfg.Server.Mode)
	router := routes.SetupRoutes(cfg, handlers.New(eng, sched, logger), logger)
	srv := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		// a resumed playback runs to completion here, alongside the server
		if res, err := eng.Restore(gctx); err != nil {
			logger.Warn("restore previous session", zap.Error(err))
		} else if res != nil {
			logger.Info("resumed playback finished", zap.String("flow_id", res.FlowID), zap.Bool("success", res.Success))
		}
		return nil
	})
	g.Go(func() error { return sched.Run(gctx) })
	g.Go(func() error { return janitor.Run(gctx) })
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})

	err = g.Wait()
	logger.Info("server shutdown complete")
	return err
}
