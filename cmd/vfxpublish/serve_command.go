package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"vfxpublish/internal/auth"
	"vfxpublish/internal/handler"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and gRPC publish API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := ctx.openApp(runCtx)
			if err != nil {
				return err
			}
			defer a.Close()

			return serve(runCtx, a)
		},
	}
}

func serve(ctx context.Context, a *app) error {
	logger := a.logger
	verifier := auth.NewVerifier(a.cfg.Auth.Tokens)
	if !verifier.Enabled() {
		logger.Warn("No API tokens configured, authentication disabled")
	}

	deps := handler.RouterDeps{
		Publish:  handler.NewPublishHandler(a.publisher, logger),
		Folders:  handler.NewFolderHandler(a.folders, logger),
		Query:    handler.NewQueryHandler(a.folderDB, a.entities, logger),
		Verifier: verifier,
		Logger:   logger,
	}
	if a.mirror != nil {
		deps.Layers = handler.NewLayerHandler(a.mirror, logger)
	}
	router := handler.NewRouter(deps)
	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%s", a.cfg.Server.Port),
		Handler: router,
	}

	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(verifier.UnaryServerInterceptor()))
	handler.RegisterPublishServiceServer(grpcServer, handler.NewPublishGRPCHandler(a.publisher, a.folders, logger))

	lis, err := net.Listen("tcp", fmt.Sprintf(":%s", a.cfg.Server.GRPCPort))
	if err != nil {
		return fmt.Errorf("failed to listen for gRPC: %w", err)
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("Starting gRPC server", zap.String("port", a.cfg.Server.GRPCPort))
		if err := grpcServer.Serve(lis); err != nil {
			errCh <- fmt.Errorf("failed to serve gRPC: %w", err)
		}
	}()
	go func() {
		logger.Info("Starting HTTP server", zap.String("port", a.cfg.Server.Port))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("failed to start HTTP server: %w", err)
		}
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
	}
	logger.Info("Shutting down servers...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server forced to shutdown", zap.Error(err))
	}
	grpcServer.GracefulStop()

	logger.Info("Server exited properly")
	return serveErr
}
