package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"

	"vfxpublish/internal/domain"
	"vfxpublish/internal/handler"
)

func newPublishCommand(ctx *commandContext) *cobra.Command {
	var remote string
	var token string

	cmd := &cobra.Command{
		Use:   "publish <request.json|->",
		Short: "Integrate a publish request and print the result as JSON",
		Long: `Integrate a publish request read from a JSON file ("-" reads stdin).

Without --remote the request is integrated locally against the configured
database and work root. With --remote it is sent to a running
"vfxpublish serve" over gRPC.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := readPublishRequest(cmd, args[0])
			if err != nil {
				return err
			}

			var result *domain.PublishResult
			if remote != "" {
				result, err = publishRemote(cmd, remote, token, req)
			} else {
				result, err = publishLocal(cmd, ctx, req)
			}
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		},
	}

	cmd.Flags().StringVar(&remote, "remote", "", "gRPC address of a publish server (host:port)")
	cmd.Flags().StringVar(&token, "token", os.Getenv("VFXPUBLISH_TOKEN"), "Bearer token for --remote")

	return cmd
}

func readPublishRequest(cmd *cobra.Command, source string) (*domain.PublishRequest, error) {
	var (
		data []byte
		err  error
	)
	if source == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(source)
	}
	if err != nil {
		return nil, fmt.Errorf("read publish request: %w", err)
	}

	var req domain.PublishRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("parse publish request: %w", err)
	}
	return &req, nil
}

func publishLocal(cmd *cobra.Command, ctx *commandContext, req *domain.PublishRequest) (*domain.PublishResult, error) {
	a, err := ctx.openApp(cmd.Context())
	if err != nil {
		return nil, err
	}
	defer a.Close()

	return a.publisher.Publish(cmd.Context(), req)
}

func publishRemote(cmd *cobra.Command, addr, token string, req *domain.PublishRequest) (*domain.PublishResult, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	defer conn.Close()

	rpcCtx := cmd.Context()
	if token != "" {
		rpcCtx = metadata.AppendToOutgoingContext(rpcCtx, "authorization", "Bearer "+token)
	}
	return handler.NewPublishClient(conn).Publish(rpcCtx, req)
}
