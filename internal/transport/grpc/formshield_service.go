// Package grpc exposes the server mirror over gRPC. Messages are
// google.protobuf.Struct so bodies keep the same shape as the JSON payload.
package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/FlooooowY/SteelMount-FormShield/internal/usecase"
	"github.com/FlooooowY/SteelMount-FormShield/internal/validator"
)

// Fully qualified names
const (
	ServiceName    = "formshield.v1.FormShield"
	ValidateMethod = "/" + ServiceName + "/Validate"
	SubmitMethod   = "/" + ServiceName + "/Submit"
)

// FormShieldServer is the server API of the FormShield service
type FormShieldServer interface {
	// Validate reports {valid, error, isBot} for a submission body
	Validate(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// Submit is the protected action; it runs behind BoundaryInterceptor
	Submit(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// UnimplementedFormShieldServer can be embedded for forward compatibility
type UnimplementedFormShieldServer struct{}

func (UnimplementedFormShieldServer) Validate(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method Validate not implemented")
}

func (UnimplementedFormShieldServer) Submit(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method Submit not implemented")
}

// FormShieldServiceDesc describes the service for grpc.Server
var FormShieldServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*FormShieldServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Validate", Handler: validateHandler},
		{MethodName: "Submit", Handler: submitHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "formshield/v1/formshield.proto",
}

// RegisterFormShieldServer registers srv on s
func RegisterFormShieldServer(s grpc.ServiceRegistrar, srv FormShieldServer) {
	s.RegisterService(&FormShieldServiceDesc, srv)
}

func validateHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(FormShieldServer).Validate(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ValidateMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(FormShieldServer).Validate(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func submitHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(FormShieldServer).Submit(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: SubmitMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(FormShieldServer).Submit(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// FormShieldService implements FormShieldServer on the submission usecase
type FormShieldService struct {
	UnimplementedFormShieldServer
	uc usecase.SubmissionUsecase
}

// NewFormShieldService creates a new FormShield service
func NewFormShieldService(uc usecase.SubmissionUsecase) *FormShieldService {
	return &FormShieldService{uc: uc}
}

// Validate reports the verdict of a submission without acting on it
func (s *FormShieldService) Validate(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	verdict := s.uc.ValidateSubmission(ctx, usecase.SurfaceGRPC, validator.Body(req.AsMap()))

	var message interface{}
	if verdict.Error != nil {
		message = *verdict.Error
	}
	return newStruct(map[string]interface{}{
		"valid": verdict.Valid,
		"error": message,
		"isBot": verdict.IsBot,
	})
}

// Submit accepts a submission that passed the boundary
func (s *FormShieldService) Submit(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := validator.Body(req.AsMap()).FormFields()
	list := make([]interface{}, len(fields))
	for i, f := range fields {
		list[i] = f
	}

	return newStruct(map[string]interface{}{
		"success": true,
		"message": MessageAccepted,
		"fields":  list,
	})
}

func newStruct(m map[string]interface{}) (*structpb.Struct, error) {
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode response: %v", err)
	}
	return out, nil
}

// FormShieldClient is the client API of the FormShield service
type FormShieldClient interface {
	Validate(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	Submit(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
}

type formShieldClient struct {
	cc grpc.ClientConnInterface
}

// NewFormShieldClient creates a client on an established connection
func NewFormShieldClient(cc grpc.ClientConnInterface) FormShieldClient {
	return &formShieldClient{cc: cc}
}

func (c *formShieldClient) Validate(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, ValidateMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *formShieldClient) Submit(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, SubmitMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
