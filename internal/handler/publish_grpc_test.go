package handler

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"vfxpublish/internal/auth"
	"vfxpublish/internal/domain"
	"vfxpublish/internal/repository"
	"vfxpublish/internal/service"
	"vfxpublish/internal/service/pathtemplate"
	"vfxpublish/internal/service/versioning"
	"vfxpublish/internal/testsupport"
	"vfxpublish/internal/usd"
)

func TestStatusFor(t *testing.T) {
	tests := map[string]struct {
		err  error
		http int
		grpc codes.Code
	}{
		"invalid request": {fmt.Errorf("%w: author", service.ErrInvalidRequest), http.StatusBadRequest, codes.InvalidArgument},
		"folder missing":  {fmt.Errorf("x: %w", service.ErrFolderNotFound), http.StatusNotFound, codes.NotFound},
		"folder exists":   {fmt.Errorf("x: %w", repository.ErrFolderExists), http.StatusConflict, codes.AlreadyExists},
		"unresolved": {
			fmt.Errorf("resolve: %w", &pathtemplate.UnresolvedPlaceholderError{Template: "{root[work]}", Keys: []string{"root[work]"}}),
			http.StatusUnprocessableEntity, codes.FailedPrecondition,
		},
		"store": {
			fmt.Errorf("reconcile: %w", &service.StoreError{Phase: service.PhaseRepresentation, Op: "commit", Err: errors.New("conn reset")}),
			http.StatusBadGateway, codes.Unavailable,
		},
		"directory": {
			&versioning.DirectoryUnavailableError{Dir: "/work", Err: errors.New("permission denied")},
			http.StatusInternalServerError, codes.Internal,
		},
		"other": {errors.New("boom"), http.StatusInternalServerError, codes.Internal},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.http, statusFor(tt.err))
			assert.Equal(t, tt.grpc, status.Code(grpcError(tt.err)))
		})
	}
}

func newGRPCClient(t *testing.T, tokens ...string) (*PublishClient, string) {
	t.Helper()
	logger := zaptest.NewLogger(t)
	db := testsupport.OpenSQLite(t)

	folderRepo := repository.NewFolderRepository(db)
	entities := repository.NewEntityRepository(db, logger)
	reconciler := service.NewReconciler(entities, entities, repository.NewAttributeRepository(db), logger)
	scanner, err := versioning.NewScanner(versioning.DefaultPattern)
	require.NoError(t, err)
	work := t.TempDir()
	publisher, err := service.NewPublishService(folderRepo, reconciler, scanner, usd.NewFileWriter(),
		service.PublishSettings{Roots: map[string]string{"work": work}}, logger)
	require.NoError(t, err)

	lis := bufconn.Listen(1 << 20)
	server := grpc.NewServer(grpc.UnaryInterceptor(auth.NewVerifier(tokens).UnaryServerInterceptor()))
	RegisterPublishServiceServer(server, NewPublishGRPCHandler(publisher, service.NewFolderService(folderRepo, logger), logger))
	go server.Serve(lis) //nolint:errcheck
	t.Cleanup(server.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return NewPublishClient(conn), work
}

func grpcRequest() *domain.PublishRequest {
	return &domain.PublishRequest{
		ProjectName: "demo",
		FolderPath:  "/shots/sh010",
		ProductType: "usd",
		Author:      "alice",
		Time:        "20261019T120000Z",
		Representations: []domain.PublishedRepresentation{
			{Name: "layout", PublishedFiles: []string{"/pub/layout.usd"}},
		},
	}
}

func TestGRPCPublish(t *testing.T) {
	client, _ := newGRPCClient(t)
	ctx := context.Background()

	_, err := client.Publish(ctx, grpcRequest())
	assert.Equal(t, codes.NotFound, status.Code(err))

	folder, err := client.EnsureFolder(ctx, &EnsureFolderRequest{ProjectName: "demo", Path: "/shots/sh010"})
	require.NoError(t, err)
	assert.Equal(t, "/shots/sh010", folder.Path)

	result, err := client.Publish(ctx, grpcRequest())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Version)
	assert.Equal(t, folder.ID, result.FolderID)
	assert.Equal(t, 1, result.Created[domain.KindVersion])
	assert.Contains(t, result.RootPath, "sh010_USD_v00001.usda")

	req := grpcRequest()
	req.Author = ""
	_, err = client.Publish(ctx, req)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestGRPCAuthentication(t *testing.T) {
	client, _ := newGRPCClient(t, "pipeline:s3cret")

	_, err := client.EnsureFolder(context.Background(), &EnsureFolderRequest{ProjectName: "demo", Path: "/shots"})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	ctx := metadata.AppendToOutgoingContext(context.Background(), "authorization", "Bearer s3cret")
	_, err = client.EnsureFolder(ctx, &EnsureFolderRequest{ProjectName: "demo", Path: "/shots"})
	require.NoError(t, err)

	_, err = client.EnsureFolder(metadata.AppendToOutgoingContext(context.Background(), "authorization", "Bearer "),
		&EnsureFolderRequest{ProjectName: "demo", Path: "/shots"})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
}

func TestGRPCPublishDefaultsAuthorToSubject(t *testing.T) {
	client, _ := newGRPCClient(t, "pipeline:s3cret")
	ctx := metadata.AppendToOutgoingContext(context.Background(), "authorization", "Bearer s3cret")

	_, err := client.EnsureFolder(ctx, &EnsureFolderRequest{ProjectName: "demo", Path: "/shots/sh010"})
	require.NoError(t, err)

	req := grpcRequest()
	req.Author = ""
	result, err := client.Publish(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Version)
}
