package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/deixis/execkit/internal/history"
	execmcp "github.com/deixis/execkit/internal/mcp"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

func (a *app) newMCPCmd() *cobra.Command {
	var (
		httpAddr     string
		instructions bool
	)
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the executor over MCP (stdio by default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if instructions {
				fmt.Fprint(cmd.OutOrStdout(), execmcp.Instructions)
				return nil
			}
			return a.serve(cmd.Context(), httpAddr)
		},
	}
	cmd.Flags().StringVar(&httpAddr, "http", "", "serve streamable HTTP on this address instead of stdio (e.g. :8080)")
	cmd.Flags().BoolVar(&instructions, "instructions", false, "print the server instructions and exit")
	return cmd
}

func (a *app) serve(ctx context.Context, httpAddr string) error {
	e, err := a.loadEnv()
	if err != nil {
		return err
	}

	store := history.NewLRUStore(e.cfg.HistoryCache(), e.diskStore())
	server := execmcp.NewServer(e.cfg, store, e.workspace, execmcp.WithLogger(a.logger))

	if httpAddr != "" {
		return a.serveHTTP(ctx, server, httpAddr)
	}
	a.logger.Debug("serving mcp over stdio", zap.String("workspace", e.workspace))
	return server.Run(ctx, &mcpsdk.StdioTransport{})
}

func (a *app) serveHTTP(ctx context.Context, server *mcpsdk.Server, addr string) error {
	handler := mcpsdk.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcpsdk.Server { return server },
		nil,
	)

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info("listening", zap.String("addr", addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			a.logger.Warn("http shutdown", zap.Error(err))
			return httpServer.Close()
		}
		return nil
	})
	return g.Wait()
}
