package api

import (
	"strings"

	"github.com/pipeaalzamora/el-blog-del-ceo/cache"
	"github.com/pipeaalzamora/el-blog-del-ceo/httpx"
)

type cacheStatsResponse struct {
	Caches    []cache.Stats `json:"caches"`
	TotalSize int           `json:"totalSize"`
}

type invalidateRequest struct {
	Key     string `json:"key"`
	Pattern string `json:"pattern"`
}

type invalidateResponse struct {
	Message     string `json:"message"`
	Invalidated int    `json:"invalidated"`
}

type statsResponse struct {
	TotalComments     int `json:"totalComments"`
	TotalSubscribers  int `json:"totalSubscribers"`
	ActiveSubscribers int `json:"activeSubscribers"`
}

func (h *handlers) cacheStats(c httpx.Context) error {
	resp := cacheStatsResponse{Caches: make([]cache.Stats, 0, len(h.Caches))}
	for _, ca := range h.Caches {
		st := ca.Stats()
		resp.Caches = append(resp.Caches, st)
		resp.TotalSize += st.Size
	}
	return c.JSON(httpx.StatusOK, resp)
}

func (h *handlers) clearCache(c httpx.Context) error {
	for _, ca := range h.Caches {
		ca.Clear()
	}
	h.Logger.Info().Int("caches", len(h.Caches)).Msg("caches cleared")
	return c.JSON(httpx.StatusOK, message{Message: "Cache limpiado"})
}

// invalidateCache takes exactly one of key or pattern. A key counts as
// invalidated in every cache that held it.
func (h *handlers) invalidateCache(c httpx.Context) error {
	var req invalidateRequest
	if err := decode(c, &req, false); err != nil {
		return err
	}
	req.Key, req.Pattern = strings.TrimSpace(req.Key), strings.TrimSpace(req.Pattern)
	if (req.Key == "") == (req.Pattern == "") {
		return httpx.ValidationFailed(invalidData, []httpx.FieldError{{Message: "Indique key o pattern"}})
	}

	n := 0
	for _, ca := range h.Caches {
		if req.Pattern != "" {
			n += ca.InvalidatePattern(req.Pattern)
			continue
		}
		if ca.Invalidate(req.Key) {
			n++
		}
	}
	h.Logger.Info().Str("key", req.Key).Str("pattern", req.Pattern).Int("invalidated", n).Msg("cache invalidated")
	return c.JSON(httpx.StatusOK, invalidateResponse{Message: "Cache invalidado", Invalidated: n})
}

func (h *handlers) warmup(c httpx.Context) error {
	h.Content.Warmup(c.Request().Context())
	return c.JSON(httpx.StatusOK, message{Message: "Cache precalentado"})
}

func (h *handlers) stats(c httpx.Context) error {
	ctx := c.Request().Context()
	total, err := h.Comments.Count(ctx)
	if err != nil {
		return failure(err, "Error al obtener estadísticas")
	}
	subs, err := h.Newsletter.Stats(ctx)
	if err != nil {
		return failure(err, "Error al obtener estadísticas")
	}
	return c.JSON(httpx.StatusOK, statsResponse{
		TotalComments:     total,
		TotalSubscribers:  subs.Total,
		ActiveSubscribers: subs.Active,
	})
}
