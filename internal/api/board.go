package api

import (
	"context"
	"encoding/json"

	"github.com/gin-gonic/gin"

	"github.com/rollingpaper/board/internal/content"
	"github.com/rollingpaper/board/internal/ranking"
	"github.com/rollingpaper/board/internal/search"
)

// HotLists serves materialised hot lists.
type HotLists interface {
	GetHotList(ctx context.Context, list content.ListName, viewerID *int64) ([]content.Summary, error)
}

// Searcher resolves search queries.
type Searcher interface {
	Search(ctx context.Context, q search.Query) (content.Page, error)
}

// Engagement records user actions against the score sets.
type Engagement interface {
	Record(ctx context.Context, itemID int64, action ranking.Action) error
	Forget(ctx context.Context, itemID int64) error
}

// BlockChecker answers block relation lookups.
type BlockChecker interface {
	IsBlockedPair(ctx context.Context, viewerID, authorID int64) (bool, error)
}

// BoardAPI provides the board.* JSON-RPC methods
type BoardAPI struct {
	hotLists   HotLists
	searcher   Searcher
	engagement Engagement
	blocks     BlockChecker
}

// NewBoardAPI creates a new board API
func NewBoardAPI(hotLists HotLists, searcher Searcher, engagement Engagement, blocks BlockChecker) *BoardAPI {
	return &BoardAPI{
		hotLists:   hotLists,
		searcher:   searcher,
		engagement: engagement,
		blocks:     blocks,
	}
}

// Register adds the board.* methods to h.
func (a *BoardAPI) Register(h *JSONRPCHandler) {
	h.RegisterMethod("board.get_hot_list", a.GetHotList)
	h.RegisterMethod("board.search", a.Search)
	h.RegisterMethod("board.record_engagement", a.RecordEngagement)
	h.RegisterMethod("board.forget_post", a.ForgetPost)
	h.RegisterMethod("board.is_blocked_pair", a.IsBlockedPair)
}

func decodeParams(params json.RawMessage, dest interface{}) error {
	if len(params) == 0 {
		return InvalidParams("missing parameters")
	}
	if err := json.Unmarshal(params, dest); err != nil {
		return InvalidParams("invalid parameters format: %v", err)
	}
	return nil
}

type hotListParams struct {
	List     string `json:"list"`
	ViewerID *int64 `json:"viewer_id"`
}

// GetHotList handles board.get_hot_list
func (a *BoardAPI) GetHotList(ctx *gin.Context, params json.RawMessage) (interface{}, error) {
	var p hotListParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	list, err := content.ParseListName(p.List)
	if err != nil {
		return nil, err
	}
	return a.hotLists.GetHotList(ctx.Request.Context(), list, p.ViewerID)
}

type searchParams struct {
	Field    string `json:"field"`
	Term     string `json:"term"`
	Page     int    `json:"page"`
	Size     int    `json:"size"`
	ViewerID *int64 `json:"viewer_id"`
}

// Search handles board.search
func (a *BoardAPI) Search(ctx *gin.Context, params json.RawMessage) (interface{}, error) {
	var p searchParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	field, err := content.ParseField(p.Field)
	if err != nil {
		return nil, err
	}
	return a.searcher.Search(ctx.Request.Context(), search.Query{
		Field:    field,
		Term:     p.Term,
		Page:     p.Page,
		Size:     p.Size,
		ViewerID: p.ViewerID,
	})
}

type engagementParams struct {
	PostID int64  `json:"post_id"`
	Action string `json:"action"`
}

// RecordEngagement handles board.record_engagement
func (a *BoardAPI) RecordEngagement(ctx *gin.Context, params json.RawMessage) (interface{}, error) {
	var p engagementParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if p.PostID <= 0 {
		return nil, InvalidParams("post_id must be positive")
	}
	action, err := ranking.ParseAction(p.Action)
	if err != nil {
		return nil, err
	}
	if err := a.engagement.Record(ctx.Request.Context(), p.PostID, action); err != nil {
		return nil, err
	}
	return gin.H{"ok": true}, nil
}

type forgetParams struct {
	PostID int64 `json:"post_id"`
}

// ForgetPost handles board.forget_post
func (a *BoardAPI) ForgetPost(ctx *gin.Context, params json.RawMessage) (interface{}, error) {
	var p forgetParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if p.PostID <= 0 {
		return nil, InvalidParams("post_id must be positive")
	}
	if err := a.engagement.Forget(ctx.Request.Context(), p.PostID); err != nil {
		return nil, err
	}
	return gin.H{"ok": true}, nil
}

type blockedPairParams struct {
	ViewerID int64 `json:"viewer_id"`
	AuthorID int64 `json:"author_id"`
}

// IsBlockedPair handles board.is_blocked_pair
func (a *BoardAPI) IsBlockedPair(ctx *gin.Context, params json.RawMessage) (interface{}, error) {
	var p blockedPairParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if p.ViewerID <= 0 || p.AuthorID <= 0 {
		return nil, InvalidParams("viewer_id and author_id are required")
	}
	blocked, err := a.blocks.IsBlockedPair(ctx.Request.Context(), p.ViewerID, p.AuthorID)
	if err != nil {
		return nil, err
	}
	return gin.H{"blocked": blocked}, nil
}
