package facetlink

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/rmacdonaldsmith/facetproxy-go/pkg/abi"
	"github.com/rmacdonaldsmith/facetproxy-go/pkg/proxy"
)

const (
	serviceName       = "facetlink.v1.Facet"
	callMethod        = "/" + serviceName + "/Call"
	selectorsMethod   = "/" + serviceName + "/Selectors"
	errMalformedFrame = "malformed call envelope"
)

// FacetServer is the server API of the facet link service.
type FacetServer interface {
	// Call runs an encoded call envelope and returns the raw result.
	Call(ctx context.Context, in *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error)

	// Selectors returns the selectors exported by the contract whose
	// address is in the request, as hex strings.
	Selectors(ctx context.Context, in *wrapperspb.BytesValue) (*structpb.ListValue, error)
}

func callHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.BytesValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(FacetServer).Call(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: callMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(FacetServer).Call(ctx, req.(*wrapperspb.BytesValue))
	}
	return interceptor(ctx, in, info, handler)
}

func selectorsHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.BytesValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(FacetServer).Selectors(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: selectorsMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(FacetServer).Selectors(ctx, req.(*wrapperspb.BytesValue))
	}
	return interceptor(ctx, in, info, handler)
}

// ServiceDesc describes the facet link service for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*FacetServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Call", Handler: callHandler},
		{MethodName: "Selectors", Handler: selectorsHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "facetlink/v1/facet.proto",
}

// envelope is a call addressed to one contract on the remote side.
type envelope struct {
	target proxy.Address
	call   proxy.Call
}

// encodeEnvelope lays out target, caller, contract, selector, value and then
// the raw arguments.
func encodeEnvelope(target proxy.Address, call proxy.Call) []byte {
	return abi.NewEncoder().
		B256(target).
		Identity(call.Caller).
		B256(call.Contract).
		U64(uint64(call.Selector)).
		U64(call.Value).
		Raw(call.Args).
		Bytes()
}

func decodeEnvelope(b []byte) (envelope, error) {
	var env envelope
	d := abi.NewDecoder(b)

	var err error
	if env.target, err = d.B256(); err != nil {
		return env, err
	}
	if env.call.Caller, err = d.Identity(); err != nil {
		return env, err
	}
	if env.call.Contract, err = d.B256(); err != nil {
		return env, err
	}
	sel, err := d.U64()
	if err != nil {
		return env, err
	}
	env.call.Selector = proxy.Selector(sel)
	if env.call.Value, err = d.U64(); err != nil {
		return env, err
	}
	env.call.Args = d.Rest()
	return env, nil
}

func encodeSelectors(sels []proxy.Selector) *structpb.ListValue {
	values := make([]*structpb.Value, 0, len(sels))
	for _, sel := range sels {
		values = append(values, structpb.NewStringValue(sel.String()))
	}
	return &structpb.ListValue{Values: values}
}

func decodeSelectors(list *structpb.ListValue) ([]proxy.Selector, error) {
	sels := make([]proxy.Selector, 0, len(list.GetValues()))
	for _, v := range list.GetValues() {
		sel, err := proxy.ParseSelector(v.GetStringValue())
		if err != nil {
			return nil, err
		}
		sels = append(sels, sel)
	}
	return sels, nil
}

// toStatus maps an implementation error onto a gRPC status. Reverts keep
// their reason as the status message.
func toStatus(err error) error {
	if rev, ok := proxy.AsRevert(err); ok {
		switch rev.Kind {
		case proxy.RevertAuthorization:
			return status.Error(codes.PermissionDenied, rev.Reason)
		case proxy.RevertUnresolvedSelector:
			return status.Error(codes.FailedPrecondition, rev.Reason)
		default:
			return status.Error(codes.Aborted, rev.Reason)
		}
	}
	if errors.Is(err, context.Canceled) {
		return status.Error(codes.Canceled, err.Error())
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return status.Error(codes.DeadlineExceeded, err.Error())
	}
	return status.Error(codes.Internal, err.Error())
}

// fromStatus is the inverse of toStatus.
func fromStatus(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.OK:
		return nil
	case codes.PermissionDenied:
		return &proxy.Revert{Kind: proxy.RevertAuthorization, Reason: st.Message()}
	case codes.FailedPrecondition:
		return &proxy.Revert{Kind: proxy.RevertUnresolvedSelector, Reason: st.Message()}
	case codes.Aborted:
		return proxy.NewRevert(st.Message())
	case codes.NotFound:
		return proxy.NewRevert(proxy.ReasonContractNotFound)
	case codes.InvalidArgument:
		return proxy.NewRevert(proxy.ReasonInvalidArgs)
	default:
		return fmt.Errorf("facetlink: remote call failed: %w", err)
	}
}
