// Package grpcsvc публикует сценарии заказов по gRPC.
//
// Сообщения передаются как google.protobuf.Struct, поэтому сервису не нужен
// сгенерированный код: клиенты вызывают методы через grpc.ClientConn.Invoke.
package grpcsvc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	// ServiceName: полное имя gRPC-сервиса заказов.
	ServiceName = "order.v1.OrderService"

	MethodCreateOrder = "/" + ServiceName + "/CreateOrder"
	MethodGetOrder    = "/" + ServiceName + "/GetOrder"
)

// OrderServer: серверная сторона order.v1.OrderService.
type OrderServer interface {
	CreateOrder(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	GetOrder(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

// ServiceDesc описывает сервис для grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*OrderServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "CreateOrder", Handler: createOrderHandler},
		{MethodName: "GetOrder", Handler: getOrderHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "order/v1/order_service.proto",
}

// Register регистрирует реализацию в gRPC-сервере.
func Register(registrar grpc.ServiceRegistrar, srv OrderServer) {
	registrar.RegisterService(&ServiceDesc, srv)
}

func createOrderHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(OrderServer).CreateOrder(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodCreateOrder}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(OrderServer).CreateOrder(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func getOrderHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(OrderServer).GetOrder(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodGetOrder}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(OrderServer).GetOrder(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// Client: тонкий клиент для тестов и утилит.
type Client struct {
	conn grpc.ClientConnInterface
}

// NewClient оборачивает соединение.
func NewClient(conn grpc.ClientConnInterface) *Client {
	return &Client{conn: conn}
}

// CreateOrder вызывает order.v1.OrderService/CreateOrder.
func (c *Client) CreateOrder(ctx context.Context, req *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, MethodCreateOrder, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// GetOrder вызывает order.v1.OrderService/GetOrder.
func (c *Client) GetOrder(ctx context.Context, req *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, MethodGetOrder, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
