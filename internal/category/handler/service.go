package handler

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

const ServiceName = "category.v1.CategoryTreeService"

// CategoryTreeServiceServer is the gRPC surface of the category tree. Request
// and response bodies are google.protobuf.Struct documents using the JSON
// field names of the category model.
type CategoryTreeServiceServer interface {
	CreateCategory(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetCategory(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UpdateCategory(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DeleteCategory(context.Context, *structpb.Struct) (*emptypb.Empty, error)
	PromoteToRoot(context.Context, *structpb.Struct) (*structpb.Struct, error)
	MoveCategory(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RebuildFromAdjacency(context.Context, *structpb.Struct) (*emptypb.Empty, error)
	RepairTree(context.Context, *structpb.Struct) (*emptypb.Empty, error)
	GetFullTree(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetSubtree(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetDescendants(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetAncestors(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CheckIntegrity(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

func RegisterCategoryTreeServiceServer(s grpc.ServiceRegistrar, srv CategoryTreeServiceServer) {
	s.RegisterService(&CategoryTreeService_ServiceDesc, srv)
}

func unary[Resp any](method string, call func(CategoryTreeServiceServer, context.Context, *structpb.Struct) (Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(CategoryTreeServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: "/" + ServiceName + "/" + method,
			}
			h := func(ctx context.Context, req any) (any, error) {
				return call(srv.(CategoryTreeServiceServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, h)
		},
	}
}

var CategoryTreeService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*CategoryTreeServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("CreateCategory", CategoryTreeServiceServer.CreateCategory),
		unary("GetCategory", CategoryTreeServiceServer.GetCategory),
		unary("UpdateCategory", CategoryTreeServiceServer.UpdateCategory),
		unary("DeleteCategory", CategoryTreeServiceServer.DeleteCategory),
		unary("PromoteToRoot", CategoryTreeServiceServer.PromoteToRoot),
		unary("MoveCategory", CategoryTreeServiceServer.MoveCategory),
		unary("RebuildFromAdjacency", CategoryTreeServiceServer.RebuildFromAdjacency),
		unary("RepairTree", CategoryTreeServiceServer.RepairTree),
		unary("GetFullTree", CategoryTreeServiceServer.GetFullTree),
		unary("GetSubtree", CategoryTreeServiceServer.GetSubtree),
		unary("GetDescendants", CategoryTreeServiceServer.GetDescendants),
		unary("GetAncestors", CategoryTreeServiceServer.GetAncestors),
		unary("CheckIntegrity", CategoryTreeServiceServer.CheckIntegrity),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "category/v1/category_tree.proto",
}

// CategoryTreeClient calls the service over a client connection.
type CategoryTreeClient struct {
	cc grpc.ClientConnInterface
}

func NewCategoryTreeClient(cc grpc.ClientConnInterface) *CategoryTreeClient {
	return &CategoryTreeClient{cc: cc}
}

// Call invokes method with req and returns the Struct response. Methods
// answering google.protobuf.Empty go through CallEmpty.
func (c *CategoryTreeClient) Call(ctx context.Context, method string, req *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *CategoryTreeClient) CallEmpty(ctx context.Context, method string, req *structpb.Struct, opts ...grpc.CallOption) error {
	return c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, req, new(emptypb.Empty), opts...)
}
