package grpcsvc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName — полное имя gRPC-сервиса.
const ServiceName = "ims.v1.InventoryService"

// Имена методов сервиса.
const (
	MethodAddItem                 = "AddItem"
	MethodRemoveItem              = "RemoveItem"
	MethodGetItem                 = "GetItem"
	MethodListItems               = "ListItems"
	MethodUpdateItem              = "UpdateItem"
	MethodCreateOrder             = "CreateOrder"
	MethodCancelOrder             = "CancelOrder"
	MethodGetOrder                = "GetOrder"
	MethodListOrders              = "ListOrders"
	MethodProcessOrder            = "ProcessOrder"
	MethodGetOrderTimeline        = "GetOrderTimeline"
	MethodRegisterPaymentMethod   = "RegisterPaymentMethod"
	MethodUnregisterPaymentMethod = "UnregisterPaymentMethod"
	MethodListPaymentMethods      = "ListPaymentMethods"
)

// InventoryServer — серверная сторона ims.v1.InventoryService. Запросы и
// ответы передаются как google.protobuf.Struct.
type InventoryServer interface {
	AddItem(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RemoveItem(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetItem(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListItems(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UpdateItem(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CreateOrder(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CancelOrder(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetOrder(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListOrders(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ProcessOrder(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetOrderTimeline(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RegisterPaymentMethod(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UnregisterPaymentMethod(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListPaymentMethods(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// ServiceDesc описывает сервис для grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*InventoryServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: MethodAddItem, Handler: unaryHandler(MethodAddItem, InventoryServer.AddItem)},
		{MethodName: MethodRemoveItem, Handler: unaryHandler(MethodRemoveItem, InventoryServer.RemoveItem)},
		{MethodName: MethodGetItem, Handler: unaryHandler(MethodGetItem, InventoryServer.GetItem)},
		{MethodName: MethodListItems, Handler: unaryHandler(MethodListItems, InventoryServer.ListItems)},
		{MethodName: MethodUpdateItem, Handler: unaryHandler(MethodUpdateItem, InventoryServer.UpdateItem)},
		{MethodName: MethodCreateOrder, Handler: unaryHandler(MethodCreateOrder, InventoryServer.CreateOrder)},
		{MethodName: MethodCancelOrder, Handler: unaryHandler(MethodCancelOrder, InventoryServer.CancelOrder)},
		{MethodName: MethodGetOrder, Handler: unaryHandler(MethodGetOrder, InventoryServer.GetOrder)},
		{MethodName: MethodListOrders, Handler: unaryHandler(MethodListOrders, InventoryServer.ListOrders)},
		{MethodName: MethodProcessOrder, Handler: unaryHandler(MethodProcessOrder, InventoryServer.ProcessOrder)},
		{MethodName: MethodGetOrderTimeline, Handler: unaryHandler(MethodGetOrderTimeline, InventoryServer.GetOrderTimeline)},
		{MethodName: MethodRegisterPaymentMethod, Handler: unaryHandler(MethodRegisterPaymentMethod, InventoryServer.RegisterPaymentMethod)},
		{MethodName: MethodUnregisterPaymentMethod, Handler: unaryHandler(MethodUnregisterPaymentMethod, InventoryServer.UnregisterPaymentMethod)},
		{MethodName: MethodListPaymentMethods, Handler: unaryHandler(MethodListPaymentMethods, InventoryServer.ListPaymentMethods)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "ims/v1/inventory.proto",
}

// RegisterInventoryServer регистрирует реализацию на gRPC-сервере.
func RegisterInventoryServer(registrar grpc.ServiceRegistrar, srv InventoryServer) {
	registrar.RegisterService(&ServiceDesc, srv)
}

func fullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

type unaryCall func(InventoryServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(method string, call unaryCall) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(InventoryServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod(method),
		}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(InventoryServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// Client — тонкий клиент ims.v1.InventoryService.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient создаёт клиента поверх соединения.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Call вызывает метод с запросом из обычной карты значений.
func (c *Client) Call(ctx context.Context, method string, request map[string]any, opts ...grpc.CallOption) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(request)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, fullMethod(method), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
