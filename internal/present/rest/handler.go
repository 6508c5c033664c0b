package rest

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/totegamma/reputation-engine"
	"github.com/totegamma/reputation-engine/internal/domain"
	"github.com/totegamma/reputation-engine/internal/present/rest/middleware"
	"github.com/totegamma/reputation-engine/internal/present/rest/presenter"
	"github.com/totegamma/reputation-engine/internal/service"
	"github.com/totegamma/reputation-engine/internal/usecase"
	"github.com/totegamma/reputation-engine/schemas"
)

type Handler struct {
	reputation *usecase.ReputationUsecase
	documents  *usecase.DocumentUsecase
	signal     *service.SignalService
	metrics    http.Handler
}

func NewHandler(
	reputation *usecase.ReputationUsecase,
	documents *usecase.DocumentUsecase,
	signal *service.SignalService,
	metrics http.Handler,
) *Handler {
	return &Handler{
		reputation: reputation,
		documents:  documents,
		signal:     signal,
		metrics:    metrics,
	}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/build-version", h.handleBuildVersion)

	e.GET("/reputation/:user/:tag", h.handleGetReputation)
	e.GET("/reputation/:user/:tag/full", h.handleGetReputationFull)
	e.POST("/reputation/:user/:tag/recalculate", h.handleRecalculate)

	e.GET("/documents/:collection", h.handleListDocuments)
	e.GET("/documents/:collection/:key", h.handleGetDocument)
	e.PUT("/documents/:collection/:key", h.handlePutDocument)
	e.DELETE("/documents/:collection/:key", h.handleDeleteDocument)

	if h.signal != nil {
		e.GET("/realtime", h.handleRealtime)
	}
	if h.metrics != nil {
		e.GET("/metrics", echo.WrapHandler(h.metrics))
	}
}

func (h *Handler) handleBuildVersion(c echo.Context) error {
	return presenter.OK(c, reputation.BuildVersionResponse{Version: h.reputation.BuildVersion()})
}

func (h *Handler) handleGetReputation(c echo.Context) error {
	ctx := c.Request().Context()

	score, err := h.reputation.GetUserReputation(ctx, c.Param("user"), c.Param("tag"))
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, reputation.ReputationResponse{Reputation: score})
}

func (h *Handler) handleGetReputationFull(c echo.Context) error {
	ctx := c.Request().Context()

	data, err := h.reputation.GetUserReputationFull(ctx, c.Param("user"), c.Param("tag"))
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, toReputationData(data))
}

func (h *Handler) handleRecalculate(c echo.Context) error {
	ctx := c.Request().Context()

	score, err := h.reputation.RecalculateReputation(ctx, c.Param("user"), c.Param("tag"))
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, reputation.ReputationResponse{Reputation: score})
}

func (h *Handler) handleGetDocument(c echo.Context) error {
	ctx := c.Request().Context()

	key, err := url.PathUnescape(c.Param("key"))
	if err != nil {
		return presenter.BadRequestMessage(c, "invalid key")
	}

	doc, err := h.documents.Get(ctx, c.Param("collection"), key)
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, toDocument(doc))
}

func (h *Handler) handleListDocuments(c echo.Context) error {
	ctx := c.Request().Context()

	filter := domain.ListFilter{
		KeyPrefix: c.QueryParam("prefix"),
		Owner:     c.QueryParam("owner"),
		After:     c.QueryParam("cursor"),
	}
	if limit := c.QueryParam("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n <= 0 {
			return presenter.BadRequestMessage(c, "invalid limit")
		}
		filter.Limit = n
	}
	for _, term := range []string{schemas.TermAuthor, schemas.TermTarget, schemas.TermTag, schemas.TermUser, schemas.TermName, schemas.TermHandle} {
		if value := c.QueryParam(term); value != "" {
			filter.Description = append(filter.Description, reputation.DescriptionTerm(term, value))
		}
	}

	page, err := h.documents.List(ctx, c.Param("collection"), filter)
	if err != nil {
		return presenter.Error(c, err)
	}

	result := reputation.DocumentPage{Items: make([]reputation.Document, 0, len(page.Items)), Next: page.Next}
	for _, doc := range page.Items {
		result.Items = append(result.Items, toDocument(doc))
	}
	return presenter.OK(c, result)
}

func (h *Handler) handlePutDocument(c echo.Context) error {
	ctx := c.Request().Context()

	key, err := url.PathUnescape(c.Param("key"))
	if err != nil {
		return presenter.BadRequestMessage(c, "invalid key")
	}

	var req reputation.WriteRequest
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequestMessage(c, "invalid request body")
	}

	doc, err := h.documents.Commit(ctx, domain.DocumentWrite{
		Collection: c.Param("collection"),
		Key:        key,
		Caller:     middleware.Caller(ctx),
		Data:       req.Data,
		Version:    req.Version,
	})
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, toDocument(doc))
}

func (h *Handler) handleDeleteDocument(c echo.Context) error {
	ctx := c.Request().Context()

	key, err := url.PathUnescape(c.Param("key"))
	if err != nil {
		return presenter.BadRequestMessage(c, "invalid key")
	}
	version, err := strconv.ParseUint(c.QueryParam("version"), 10, 64)
	if err != nil {
		return presenter.BadRequestMessage(c, "version is required")
	}

	err = h.documents.Delete(ctx, middleware.Caller(ctx), c.Param("collection"), key, version)
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.NoContent(c)
}

func toDocument(doc domain.Document) reputation.Document {
	return reputation.Document{
		Collection:  doc.Collection,
		Key:         doc.Key,
		Owner:       doc.Owner,
		Description: doc.Description,
		Data:        doc.Data,
		Version:     doc.Version,
		CreatedAt:   doc.CreatedAt,
		UpdatedAt:   doc.UpdatedAt,
	}
}

func toReputationData(data domain.ReputationData) reputation.ReputationData {
	return reputation.ReputationData{
		UserKey:                      data.UserKey,
		TagKey:                       data.TagKey,
		TotalVotingRewardsReputation: data.TotalVotingRewardsReputation,
		TotalBasisReputation:         data.TotalBasisReputation,
		VoteWeight:                   data.VoteWeight,
		HasVotingPower:               data.HasVotingPower,
		LastKnownEffectiveReputation: data.LastKnownEffectiveReputation,
		LastCalculation:              data.LastCalculation,
	}
}
