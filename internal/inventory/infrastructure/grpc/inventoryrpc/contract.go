// Package inventoryrpc is the wire contract of the inventory gRPC service.
// Messages travel as JSON through a codec registered with grpc-go under the
// "json" content subtype; both server and client import this package.
package inventoryrpc

import (
	"context"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
)

const (
	ServiceName = "storefront.inventory.v1.InventoryService"

	MethodGetProduct = "/" + ServiceName + "/GetProduct"
	MethodCheckStock = "/" + ServiceName + "/CheckStock"

	MethodListStoreProducts  = "/" + ServiceName + "/ListStoreProducts"
	MethodListOrderMovements = "/" + ServiceName + "/ListOrderMovements"
)

type GetProductRequest struct {
	ProductID string `json:"product_id"`
}

type ProductReply struct {
	ID          string          `json:"id"`
	StoreID     string          `json:"store_id,omitempty"`
	Name        string          `json:"name"`
	SKU         string          `json:"sku,omitempty"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
	Version     int64           `json:"version"`
}

type StockLine struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type CheckStockRequest struct {
	Lines []StockLine `json:"lines"`
}

type LineAvailability struct {
	ProductID string `json:"product_id"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
}

type CheckStockReply struct {
	Lines     []LineAvailability `json:"lines"`
	Available bool               `json:"available"`
}

type ListStoreProductsRequest struct {
	StoreID string `json:"store_id"`
}

type ListStoreProductsReply struct {
	Products []ProductReply `json:"products"`
}

type ListOrderMovementsRequest struct {
	OrderID string `json:"order_id"`
}

// Movement is one projected stock adjustment; Delta is signed.
type Movement struct {
	ProductID  string    `json:"product_id"`
	Direction  string    `json:"direction"`
	Quantity   int       `json:"quantity"`
	Delta      int       `json:"delta"`
	OccurredAt time.Time `json:"occurred_at"`
}

type ListOrderMovementsReply struct {
	Movements []Movement `json:"movements"`
}

type InventoryServer interface {
	GetProduct(ctx context.Context, req *GetProductRequest) (*ProductReply, error)
	CheckStock(ctx context.Context, req *CheckStockRequest) (*CheckStockReply, error)
	ListStoreProducts(ctx context.Context, req *ListStoreProductsRequest) (*ListStoreProductsReply, error)
	ListOrderMovements(ctx context.Context, req *ListOrderMovementsRequest) (*ListOrderMovementsReply, error)
}

func RegisterInventoryServer(s grpc.ServiceRegistrar, srv InventoryServer) {
	s.RegisterService(&serviceDesc, srv)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*InventoryServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetProduct", Handler: getProductHandler},
		{MethodName: "CheckStock", Handler: checkStockHandler},
		{MethodName: "ListStoreProducts", Handler: listStoreProductsHandler},
		{MethodName: "ListOrderMovements", Handler: listOrderMovementsHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "storefront/inventory/v1/inventory.json",
}

func getProductHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(GetProductRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(InventoryServer).GetProduct(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodGetProduct}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(InventoryServer).GetProduct(ctx, req.(*GetProductRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func checkStockHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(CheckStockRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(InventoryServer).CheckStock(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodCheckStock}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(InventoryServer).CheckStock(ctx, req.(*CheckStockRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func listStoreProductsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ListStoreProductsRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(InventoryServer).ListStoreProducts(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodListStoreProducts}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(InventoryServer).ListStoreProducts(ctx, req.(*ListStoreProductsRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func listOrderMovementsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ListOrderMovementsRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(InventoryServer).ListOrderMovements(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodListOrderMovements}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(InventoryServer).ListOrderMovements(ctx, req.(*ListOrderMovementsRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// InventoryClient calls the service over conn.
type InventoryClient struct {
	cc grpc.ClientConnInterface
}

func NewInventoryClient(cc grpc.ClientConnInterface) *InventoryClient {
	return &InventoryClient{cc: cc}
}

func (c *InventoryClient) GetProduct(ctx context.Context, req *GetProductRequest, opts ...grpc.CallOption) (*ProductReply, error) {
	out := new(ProductReply)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := c.cc.Invoke(ctx, MethodGetProduct, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *InventoryClient) CheckStock(ctx context.Context, req *CheckStockRequest, opts ...grpc.CallOption) (*CheckStockReply, error) {
	out := new(CheckStockReply)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := c.cc.Invoke(ctx, MethodCheckStock, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *InventoryClient) ListStoreProducts(ctx context.Context, req *ListStoreProductsRequest, opts ...grpc.CallOption) (*ListStoreProductsReply, error) {
	out := new(ListStoreProductsReply)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := c.cc.Invoke(ctx, MethodListStoreProducts, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *InventoryClient) ListOrderMovements(ctx context.Context, req *ListOrderMovementsRequest, opts ...grpc.CallOption) (*ListOrderMovementsReply, error) {
	out := new(ListOrderMovementsReply)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := c.cc.Invoke(ctx, MethodListOrderMovements, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

const CodecName = "json"

type codec struct{}

func (codec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (codec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

func (codec) Name() string { return CodecName }

func init() {
	encoding.RegisterCodec(codec{})
}
