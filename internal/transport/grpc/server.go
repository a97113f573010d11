package grpc

import (
	"context"
	"time"

	grpc_middleware "github.com/grpc-ecosystem/go-grpc-middleware"
	grpc_logrus "github.com/grpc-ecosystem/go-grpc-middleware/logging/logrus"
	grpc_recovery "github.com/grpc-ecosystem/go-grpc-middleware/recovery"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"

	"github.com/chatify/chatify/internal/domain"
)

// HistoryReader is the slice of internal/history.Reader this surface
// needs.
type HistoryReader interface {
	QueryByScope(ctx context.Context, scopeType domain.ScopeType, scopeID string, from, to *time.Time, limit int) domain.Result[[]domain.ChatEvent]
}

// PresenceLookup is the slice of internal/presence.Registry this surface
// needs.
type PresenceLookup interface {
	GetConnections(ctx context.Context, userID string) ([]string, error)
}

// AdminServiceServer is the interface a gRPC server hands off to:
// QueryByScope and GetConnections, the same two operations cmd/server also
// serves over REST.
type AdminServiceServer interface {
	QueryByScope(ctx context.Context, req *QueryByScopeRequest) (*QueryByScopeResponse, error)
	GetConnections(ctx context.Context, req *GetConnectionsRequest) (*GetConnectionsResponse, error)
}

type adminServer struct {
	history  HistoryReader
	presence PresenceLookup
}

// NewAdminServiceServer constructs the admin surface's implementation.
func NewAdminServiceServer(history HistoryReader, presence PresenceLookup) AdminServiceServer {
	return &adminServer{history: history, presence: presence}
}

func (s *adminServer) QueryByScope(ctx context.Context, req *QueryByScopeRequest) (*QueryByScopeResponse, error) {
	result := s.history.QueryByScope(ctx, domain.ScopeType(req.ScopeType), req.ScopeID, req.From, req.To, int(req.Limit))
	if !result.Ok() {
		return nil, result.Err()
	}
	events := result.Value()
	dtos := make([]ChatEventDTO, 0, len(events))
	for _, e := range events {
		dtos = append(dtos, ChatEventDTO{
			MessageID:    e.MessageID.String(),
			ScopeType:    string(e.Scope.Type),
			ScopeID:      e.Scope.ID,
			SenderID:     e.SenderID,
			Text:         e.Text,
			CreatedAtUTC: e.CreatedAtUTC,
			OriginPodID:  e.OriginPodID,
		})
	}
	return &QueryByScopeResponse{Events: dtos}, nil
}

func (s *adminServer) GetConnections(ctx context.Context, req *GetConnectionsRequest) (*GetConnectionsResponse, error) {
	conns, err := s.presence.GetConnections(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	return &GetConnectionsResponse{ConnectionIDs: conns}, nil
}

// NewServer builds a *grpc.Server wrapped with logging and panic-recovery
// interceptors, matching the teacher's layered-middleware style in
// cmd/server/main.go.
func NewServer(log *logrus.Entry) *grpc.Server {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return grpc.NewServer(
		grpc.UnaryInterceptor(grpc_middleware.ChainUnaryServer(
			grpc_logrus.UnaryServerInterceptor(log),
			grpc_recovery.UnaryServerInterceptor(),
		)),
	)
}

// RegisterAdminServiceServer registers srv on s under the hand-maintained
// service descriptor below (no protoc-generated registration is
// available).
func RegisterAdminServiceServer(s *grpc.Server, srv AdminServiceServer) {
	s.RegisterService(&adminServiceDesc, srv)
}

var adminServiceDesc = grpc.ServiceDesc{
	ServiceName: "chatify.admin.AdminService",
	HandlerType: (*AdminServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "QueryByScope", Handler: queryByScopeHandler},
		{MethodName: "GetConnections", Handler: getConnectionsHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "chatify/admin.proto",
}

func queryByScopeHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(QueryByScopeRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AdminServiceServer).QueryByScope(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/chatify.admin.AdminService/QueryByScope"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(AdminServiceServer).QueryByScope(ctx, req.(*QueryByScopeRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func getConnectionsHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(GetConnectionsRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AdminServiceServer).GetConnections(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/chatify.admin.AdminService/GetConnections"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(AdminServiceServer).GetConnections(ctx, req.(*GetConnectionsRequest))
	}
	return interceptor(ctx, in, info, handler)
}
