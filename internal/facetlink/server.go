package facetlink

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/rmacdonaldsmith/facetproxy-go/internal/registry"
	"github.com/rmacdonaldsmith/facetproxy-go/pkg/proxy"
)

// Server exposes the contracts of a directory to remote proxies.
type Server struct {
	config *Config
	dir    registry.Directory
	logger *zap.Logger

	mu     sync.Mutex
	grpc   *grpc.Server
	closed bool
}

// NewServer creates a facet link server over dir.
func NewServer(config *Config, dir registry.Directory, logger *zap.Logger) (*Server, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if dir == nil {
		return nil, fmt.Errorf("directory cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	// Make a copy and set defaults
	configCopy := *config
	configCopy.SetDefaults()

	s := &Server{
		config: &configCopy,
		dir:    dir,
		logger: logger.Named("facetlink"),
	}
	s.grpc = grpc.NewServer(
		grpc.MaxRecvMsgSize(configCopy.MaxMessageSize),
		grpc.MaxSendMsgSize(configCopy.MaxMessageSize),
		grpc.UnaryInterceptor(s.logCall),
	)
	s.grpc.RegisterService(&ServiceDesc, s)
	return s, nil
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.config.ListenAddress
}

// Serve accepts connections on lis until Stop is called.
func (s *Server) Serve(lis net.Listener) error {
	s.logger.Info("facet link serving", zap.String("address", lis.Addr().String()))
	return s.grpc.Serve(lis)
}

// ListenAndServe listens on the configured address and serves until ctx is
// cancelled, then stops gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.config.ListenAddress)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.ListenAddress, err)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- s.Serve(lis) }()

	select {
	case <-ctx.Done():
		s.Close()
		<-errCh
		return nil
	case err := <-errCh:
		return err
	}
}

// Close stops the server gracefully. Closing twice is a no-op.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.grpc.GracefulStop()
	return nil
}

// Call runs an encoded call against a local contract.
func (s *Server) Call(ctx context.Context, in *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	env, err := decodeEnvelope(in.GetValue())
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, errMalformedFrame)
	}

	impl, ok := s.dir.Lookup(env.target)
	if !ok {
		return nil, status.Errorf(codes.NotFound, "no contract at %s", env.target)
	}

	out, err := impl.Call(ctx, env.call)
	if err != nil {
		return nil, toStatus(err)
	}
	return wrapperspb.Bytes(out), nil
}

// Selectors lists the selectors a local contract exports.
func (s *Server) Selectors(ctx context.Context, in *wrapperspb.BytesValue) (*structpb.ListValue, error) {
	if len(in.GetValue()) != proxy.AddressLength {
		return nil, status.Error(codes.InvalidArgument, "request must hold a 32-byte address")
	}
	target := proxy.BytesToAddress(in.GetValue())

	impl, ok := s.dir.Lookup(target)
	if !ok {
		return nil, status.Errorf(codes.NotFound, "no contract at %s", target)
	}
	lister, ok := impl.(proxy.SelectorLister)
	if !ok {
		return encodeSelectors(nil), nil
	}
	return encodeSelectors(lister.Selectors()), nil
}

func (s *Server) logCall(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	s.logger.Debug("facet call",
		zap.String("method", info.FullMethod),
		zap.String("code", status.Code(err).String()),
		zap.Duration("duration", time.Since(start)),
	)
	return resp, err
}

// Verify that Server implements the FacetServer interface at compile time
var _ FacetServer = (*Server)(nil)
