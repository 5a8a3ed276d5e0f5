package handler

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/fekuna/omnipos-category-service/internal/auth"
	"github.com/fekuna/omnipos-category-service/internal/category"
	"github.com/fekuna/omnipos-category-service/internal/category/dto"
	"github.com/fekuna/omnipos-category-service/internal/pkg/logger"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

var _ CategoryTreeServiceServer = (*CategoryHandler)(nil)

type CategoryHandler struct {
	uc     category.UseCase
	logger logger.ZapLogger
}

func NewCategoryHandler(uc category.UseCase, log logger.ZapLogger) *CategoryHandler {
	return &CategoryHandler{
		uc:     uc,
		logger: log,
	}
}

type createRequest struct {
	ParentID    *string `json:"parent_id"`
	Name        string  `json:"name"`
	Slug        string  `json:"slug"`
	Description string  `json:"description"`
	ImageURL    string  `json:"image_url"`
}

type idRequest struct {
	ID string `json:"id"`
}

type updateRequest struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description"`
	ImageURL    string `json:"image_url"`
	IsActive    *bool  `json:"is_active"`
}

type moveRequest struct {
	ID       string  `json:"id"`
	ParentID *string `json:"parent_id"`
}

type rebuildRequest struct {
	Forest []dto.ForestNode `json:"forest"`
}

func (h *CategoryHandler) CreateCategory(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	merchantID, err := requireMerchant(ctx)
	if err != nil {
		return nil, err
	}
	var in createRequest
	if err := decode(req, &in); err != nil {
		return nil, err
	}

	cat, err := h.uc.CreateCategory(ctx, &dto.CreateCategoryInput{
		MerchantID:  merchantID,
		ParentID:    nonEmpty(in.ParentID),
		Name:        in.Name,
		Slug:        in.Slug,
		Description: in.Description,
		ImageURL:    in.ImageURL,
	})
	if err != nil {
		return nil, h.toStatus("create category", err)
	}
	return encode("category", cat)
}

func (h *CategoryHandler) GetCategory(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	merchantID, id, err := h.target(ctx, req)
	if err != nil {
		return nil, err
	}

	cat, err := h.uc.GetCategory(ctx, merchantID, id)
	if err != nil {
		return nil, h.toStatus("get category", err)
	}
	return encode("category", cat)
}

func (h *CategoryHandler) UpdateCategory(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	merchantID, err := requireMerchant(ctx)
	if err != nil {
		return nil, err
	}
	var in updateRequest
	if err := decode(req, &in); err != nil {
		return nil, err
	}

	cat, err := h.uc.UpdateCategory(ctx, &dto.UpdateCategoryInput{
		ID:          in.ID,
		MerchantID:  merchantID,
		Name:        in.Name,
		Slug:        in.Slug,
		Description: in.Description,
		ImageURL:    in.ImageURL,
		IsActive:    in.IsActive,
	})
	if err != nil {
		return nil, h.toStatus("update category", err)
	}
	return encode("category", cat)
}

func (h *CategoryHandler) DeleteCategory(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
	merchantID, id, err := h.target(ctx, req)
	if err != nil {
		return nil, err
	}

	if err := h.uc.DeleteCategory(ctx, merchantID, id); err != nil {
		return nil, h.toStatus("delete category", err)
	}
	return &emptypb.Empty{}, nil
}

func (h *CategoryHandler) PromoteToRoot(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	merchantID, id, err := h.target(ctx, req)
	if err != nil {
		return nil, err
	}

	cat, err := h.uc.PromoteToRoot(ctx, merchantID, id)
	if err != nil {
		return nil, h.toStatus("promote category", err)
	}
	return encode("category", cat)
}

func (h *CategoryHandler) MoveCategory(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	merchantID, err := requireMerchant(ctx)
	if err != nil {
		return nil, err
	}
	var in moveRequest
	if err := decode(req, &in); err != nil {
		return nil, err
	}

	cat, err := h.uc.MoveCategory(ctx, &dto.MoveCategoryInput{
		ID:         in.ID,
		MerchantID: merchantID,
		ParentID:   nonEmpty(in.ParentID),
	})
	if err != nil {
		return nil, h.toStatus("move category", err)
	}
	return encode("category", cat)
}

func (h *CategoryHandler) RebuildFromAdjacency(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
	merchantID, err := requireMerchant(ctx)
	if err != nil {
		return nil, err
	}
	var in rebuildRequest
	if err := decode(req, &in); err != nil {
		return nil, err
	}

	if err := h.uc.RebuildFromAdjacency(ctx, &dto.RebuildInput{MerchantID: merchantID, Forest: in.Forest}); err != nil {
		return nil, h.toStatus("rebuild category tree", err)
	}
	return &emptypb.Empty{}, nil
}

func (h *CategoryHandler) RepairTree(ctx context.Context, _ *structpb.Struct) (*emptypb.Empty, error) {
	merchantID, err := requireMerchant(ctx)
	if err != nil {
		return nil, err
	}

	if err := h.uc.RepairTree(ctx, merchantID); err != nil {
		return nil, h.toStatus("repair category tree", err)
	}
	return &emptypb.Empty{}, nil
}

func (h *CategoryHandler) GetFullTree(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	merchantID, err := requireMerchant(ctx)
	if err != nil {
		return nil, err
	}

	tree, err := h.uc.GetFullTree(ctx, merchantID)
	if err != nil {
		return nil, h.toStatus("get category tree", err)
	}
	return encode("categories", tree)
}

func (h *CategoryHandler) GetSubtree(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	merchantID, id, err := h.target(ctx, req)
	if err != nil {
		return nil, err
	}

	root, err := h.uc.GetSubtree(ctx, merchantID, id)
	if err != nil {
		return nil, h.toStatus("get subtree", err)
	}
	return encode("category", root)
}

func (h *CategoryHandler) GetDescendants(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	merchantID, id, err := h.target(ctx, req)
	if err != nil {
		return nil, err
	}

	list, err := h.uc.GetDescendants(ctx, merchantID, id)
	if err != nil {
		return nil, h.toStatus("get descendants", err)
	}
	return encode("categories", list)
}

func (h *CategoryHandler) GetAncestors(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	merchantID, id, err := h.target(ctx, req)
	if err != nil {
		return nil, err
	}

	list, err := h.uc.GetAncestors(ctx, merchantID, id)
	if err != nil {
		return nil, h.toStatus("get ancestors", err)
	}
	return encode("categories", list)
}

func (h *CategoryHandler) CheckIntegrity(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	merchantID, err := requireMerchant(ctx)
	if err != nil {
		return nil, err
	}

	report, err := h.uc.CheckIntegrity(ctx, merchantID)
	if err != nil {
		return nil, h.toStatus("check category tree", err)
	}
	return encode("report", report)
}

func requireMerchant(ctx context.Context) (string, error) {
	merchantID := auth.GetMerchantID(ctx)
	if merchantID == "" {
		return "", status.Error(codes.Unauthenticated, "missing merchant context")
	}
	return merchantID, nil
}

// target reads the merchant and the "id" field every single-node call carries.
func (h *CategoryHandler) target(ctx context.Context, req *structpb.Struct) (string, string, error) {
	merchantID, err := requireMerchant(ctx)
	if err != nil {
		return "", "", err
	}
	var in idRequest
	if err := decode(req, &in); err != nil {
		return "", "", err
	}
	if in.ID == "" {
		return "", "", status.Error(codes.InvalidArgument, "id is required")
	}
	return merchantID, in.ID, nil
}

// toStatus maps the category error kinds onto gRPC codes. Anything untyped
// is logged and reported as Internal without leaking its text.
func (h *CategoryHandler) toStatus(action string, err error) error {
	switch category.KindOf(err) {
	case category.KindNotFound:
		return status.Error(codes.NotFound, err.Error())
	case category.KindConflict:
		return status.Error(codes.AlreadyExists, err.Error())
	case category.KindValidation:
		return status.Error(codes.InvalidArgument, err.Error())
	case category.KindTransactionFailure:
		h.logger.Warn("failed to "+action, zap.Error(err))
		return status.Error(codes.Aborted, err.Error())
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return status.FromContextError(err).Err()
	}
	h.logger.Error("failed to "+action, zap.Error(err))
	return status.Error(codes.Internal, "internal error")
}

func nonEmpty(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}

// decode maps a Struct body onto a request type through its JSON form.
func decode(req *structpb.Struct, v any) error {
	if req == nil {
		return nil
	}
	data, err := req.MarshalJSON()
	if err != nil {
		return status.Error(codes.InvalidArgument, err.Error())
	}
	if err := json.Unmarshal(data, v); err != nil {
		return status.Errorf(codes.InvalidArgument, "malformed request: %v", err)
	}
	return nil
}

// encode wraps v under field in a Struct response, using v's JSON form.
func encode(field string, v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	var body any
	if err := json.Unmarshal(data, &body); err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	out, err := structpb.NewStruct(map[string]any{field: body})
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}
