package grpc

import (
	"context"
	"net"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/FlooooowY/SteelMount-FormShield/internal/logger"
	"github.com/FlooooowY/SteelMount-FormShield/internal/monitoring"
	"github.com/FlooooowY/SteelMount-FormShield/internal/usecase"
	"github.com/FlooooowY/SteelMount-FormShield/internal/validator"
)

// Boundary responses
const (
	MessageAccepted        = "Form submitted successfully!"
	MessageInvalidFallback = "Invalid form submission"
)

// BoundaryInterceptor validates the request body of the guarded methods
// (Submit when none are given). Bots get a fake success without reaching
// the handler; invalid submissions get InvalidArgument.
func BoundaryInterceptor(uc usecase.SubmissionUsecase, methods ...string) grpc.UnaryServerInterceptor {
	if len(methods) == 0 {
		methods = []string{SubmitMethod}
	}
	guarded := make(map[string]bool, len(methods))
	for _, m := range methods {
		guarded[m] = true
	}
	log := logger.WithComponent("grpc")

	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if !guarded[info.FullMethod] {
			return handler(ctx, req)
		}

		msg, ok := req.(*structpb.Struct)
		if !ok {
			return nil, status.Error(codes.InvalidArgument, MessageInvalidFallback)
		}

		verdict := uc.ValidateSubmission(ctx, usecase.SurfaceGRPC, validator.Body(msg.AsMap()))
		if verdict.IsBot {
			ip, userAgent := extractClientInfo(ctx)
			log.WithFields(logrus.Fields{
				"method":     info.FullMethod,
				"ip":         ip,
				"user_agent": userAgent,
			}).Info("Bot submission answered with a silent success")

			return newStruct(map[string]interface{}{
				"success": true,
				"message": MessageAccepted,
			})
		}
		if !verdict.Valid {
			message := verdict.Message()
			if message == "" {
				message = MessageInvalidFallback
			}
			return nil, status.Error(codes.InvalidArgument, message)
		}

		return handler(ctx, req)
	}
}

// extractClientInfo extracts IP address and user agent from gRPC context
func extractClientInfo(ctx context.Context) (string, string) {
	ip := "unknown"
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		if tcpAddr, ok := p.Addr.(*net.TCPAddr); ok {
			ip = tcpAddr.IP.String()
		} else {
			ip = p.Addr.String()
		}
	}

	userAgent := "grpc-client"
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if ua := md.Get("user-agent"); len(ua) > 0 {
			userAgent = ua[0]
		}
	}

	return ip, userAgent
}

// NewServer creates a gRPC server with the FormShield service registered
// behind the metrics and boundary interceptors. metrics may be nil.
func NewServer(uc usecase.SubmissionUsecase, metrics *monitoring.Metrics, opts ...grpc.ServerOption) *grpc.Server {
	interceptors := []grpc.UnaryServerInterceptor{}
	if metrics != nil {
		interceptors = append(interceptors, monitoring.NewMetricsMiddleware(metrics).GRPCMetricsInterceptor())
	}
	interceptors = append(interceptors, BoundaryInterceptor(uc))

	opts = append(opts, grpc.ChainUnaryInterceptor(interceptors...))
	s := grpc.NewServer(opts...)
	RegisterFormShieldServer(s, NewFormShieldService(uc))
	return s
}
