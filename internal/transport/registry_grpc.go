package transport

import (
	"context"

	"realestate/internal/dispatcher"

	"google.golang.org/grpc"
)

const (
	ServiceName         = "realestate.v1.Registry"
	ExecuteFullMethod   = "/" + ServiceName + "/Execute"
	QueryFullMethod     = "/" + ServiceName + "/Query"
	CallerMetadataKey   = "x-caller-identity"
	registryServiceFile = "realestate/v1/registry"
)

// RegistryServer is the server API for the registry service.
type RegistryServer interface {
	Execute(context.Context, *dispatcher.Request) (*dispatcher.Response, error)
	Query(context.Context, *dispatcher.Request) (*dispatcher.Response, error)
}

func RegisterRegistryServer(s grpc.ServiceRegistrar, srv RegistryServer) {
	s.RegisterService(&registryServiceDesc, srv)
}

func executeHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(dispatcher.Request)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RegistryServer).Execute(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: ExecuteFullMethod,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(RegistryServer).Execute(ctx, req.(*dispatcher.Request))
	}
	return interceptor(ctx, in, info, handler)
}

func queryHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(dispatcher.Request)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RegistryServer).Query(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: QueryFullMethod,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(RegistryServer).Query(ctx, req.(*dispatcher.Request))
	}
	return interceptor(ctx, in, info, handler)
}

var registryServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*RegistryServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Execute",
			Handler:    executeHandler,
		},
		{
			MethodName: "Query",
			Handler:    queryHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: registryServiceFile,
}
