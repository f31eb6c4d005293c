package handler

import (
	"context"
	"encoding/json"
	"errors"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/status"

	"vfxpublish/internal/auth"
	"vfxpublish/internal/domain"
	"vfxpublish/internal/repository"
	"vfxpublish/internal/service"
	"vfxpublish/internal/service/pathtemplate"
)

// The publish RPC service exchanges JSON messages ("application/grpc+json")
// so the domain types travel without generated stubs.
const (
	jsonCodecName = "json"

	publishServiceName     = "vfxpublish.v1.PublishService"
	publishFullMethod      = "/" + publishServiceName + "/Publish"
	ensureFolderFullMethod = "/" + publishServiceName + "/EnsureFolder"
)

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                       { return jsonCodecName }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

type EnsureFolderRequest struct {
	ProjectName string `json:"project_name"`
	Path        string `json:"path"`
}

// PublishServiceServer is the server API of the publish RPC service.
type PublishServiceServer interface {
	Publish(ctx context.Context, req *domain.PublishRequest) (*domain.PublishResult, error)
	EnsureFolder(ctx context.Context, req *EnsureFolderRequest) (*domain.Folder, error)
}

var PublishServiceDesc = grpc.ServiceDesc{
	ServiceName: publishServiceName,
	HandlerType: (*PublishServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Publish", Handler: publishMethodHandler},
		{MethodName: "EnsureFolder", Handler: ensureFolderMethodHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "vfxpublish/v1/publish",
}

func RegisterPublishServiceServer(s grpc.ServiceRegistrar, srv PublishServiceServer) {
	s.RegisterService(&PublishServiceDesc, srv)
}

func publishMethodHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(domain.PublishRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PublishServiceServer).Publish(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: publishFullMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(PublishServiceServer).Publish(ctx, req.(*domain.PublishRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func ensureFolderMethodHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(EnsureFolderRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PublishServiceServer).EnsureFolder(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ensureFolderFullMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(PublishServiceServer).EnsureFolder(ctx, req.(*EnsureFolderRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// PublishGRPCHandler serves the publish RPC service.
type PublishGRPCHandler struct {
	publisher Publisher
	folders   *service.FolderService
	logger    *zap.Logger
}

func NewPublishGRPCHandler(publisher Publisher, folders *service.FolderService, logger *zap.Logger) *PublishGRPCHandler {
	return &PublishGRPCHandler{publisher: publisher, folders: folders, logger: logger}
}

func (h *PublishGRPCHandler) Publish(ctx context.Context, req *domain.PublishRequest) (*domain.PublishResult, error) {
	if req.Author == "" {
		if subject, ok := auth.SubjectFromContext(ctx); ok {
			req.Author = subject
		}
	}
	h.logger.Info("Received publish request",
		zap.String("project", req.ProjectName),
		zap.String("folder", req.FolderPath),
		zap.Int("representations", len(req.Representations)))

	result, err := h.publisher.Publish(ctx, req)
	if err != nil {
		h.logger.Error("Publish failed", zap.Error(err))
		return nil, grpcError(err)
	}
	return result, nil
}

func (h *PublishGRPCHandler) EnsureFolder(ctx context.Context, req *EnsureFolderRequest) (*domain.Folder, error) {
	folder, err := h.folders.EnsurePath(ctx, req.ProjectName, req.Path)
	if err != nil {
		return nil, grpcError(err)
	}
	return folder, nil
}

// grpcError maps service errors to status codes.
func grpcError(err error) error {
	var (
		unresolved *pathtemplate.UnresolvedPlaceholderError
		storeErr   *service.StoreError
	)
	code := codes.Internal
	switch {
	case errors.Is(err, service.ErrInvalidRequest), errors.Is(err, service.ErrInvalidFolder):
		code = codes.InvalidArgument
	case errors.Is(err, service.ErrFolderNotFound):
		code = codes.NotFound
	case errors.Is(err, repository.ErrFolderExists):
		code = codes.AlreadyExists
	case errors.As(err, &unresolved):
		code = codes.FailedPrecondition
	case errors.As(err, &storeErr):
		code = codes.Unavailable
	}
	return status.Error(code, err.Error())
}

// PublishClient calls a remote publish RPC service.
type PublishClient struct {
	cc grpc.ClientConnInterface
}

func NewPublishClient(cc grpc.ClientConnInterface) *PublishClient {
	return &PublishClient{cc: cc}
}

func (c *PublishClient) Publish(ctx context.Context, req *domain.PublishRequest, opts ...grpc.CallOption) (*domain.PublishResult, error) {
	out := new(domain.PublishResult)
	opts = append(opts, grpc.CallContentSubtype(jsonCodecName))
	if err := c.cc.Invoke(ctx, publishFullMethod, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *PublishClient) EnsureFolder(ctx context.Context, req *EnsureFolderRequest, opts ...grpc.CallOption) (*domain.Folder, error) {
	out := new(domain.Folder)
	opts = append(opts, grpc.CallContentSubtype(jsonCodecName))
	if err := c.cc.Invoke(ctx, ensureFolderFullMethod, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
