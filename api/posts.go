package api

import (
	"errors"
	"strconv"

	"github.com/pipeaalzamora/el-blog-del-ceo/content"
	"github.com/pipeaalzamora/el-blog-del-ceo/httpx"
)

type postsResponse struct {
	Posts []content.Post `json:"posts"`
	Total int            `json:"total"`
}

type searchResponse struct {
	Posts    []content.Post   `json:"posts"`
	Total    int              `json:"total"`
	Query    string           `json:"query"`
	Category content.Category `json:"category"`
}

func (h *handlers) listPosts(c httpx.Context) error {
	category, err := content.ParseCategory(c.QueryParam("category"))
	if err != nil {
		return httpx.HTTPError(httpx.StatusBadRequest, "Categoría inválida")
	}
	posts, err := h.Content.Posts(c.Request().Context(), category)
	if err != nil {
		return failure(err, "Error al obtener los posts")
	}
	return c.JSON(httpx.StatusOK, postsResponse{Posts: posts, Total: len(posts)})
}

func (h *handlers) featuredPosts(c httpx.Context) error {
	posts, err := h.Content.FeaturedPosts(c.Request().Context())
	if err != nil {
		return failure(err, "Error al obtener los posts destacados")
	}
	return c.JSON(httpx.StatusOK, postsResponse{Posts: posts, Total: len(posts)})
}

// recentPosts reads ?limit=. Anything that is not a number uses the default.
func (h *handlers) recentPosts(c httpx.Context) error {
	limit, err := strconv.Atoi(c.QueryParam("limit"))
	if err != nil {
		limit = content.DefaultRecentLimit
	}
	posts, err := h.Content.RecentPosts(c.Request().Context(), limit)
	if err != nil {
		return failure(err, "Error al obtener los posts recientes")
	}
	return c.JSON(httpx.StatusOK, postsResponse{Posts: posts, Total: len(posts)})
}

func (h *handlers) post(c httpx.Context) error {
	p, err := h.Content.PostBySlug(c.Request().Context(), c.Param("slug"))
	switch {
	case errors.Is(err, content.ErrPostNotFound):
		return httpx.HTTPError(httpx.StatusNotFound, "Post no encontrado")
	case err != nil:
		return failure(err, "Error al obtener el post")
	}
	return c.JSON(httpx.StatusOK, p)
}

func (h *handlers) search(c httpx.Context) error {
	query := c.QueryParam("q")
	posts, err := h.Content.Search(c.Request().Context(), query, content.Category(c.QueryParam("category")))
	if err != nil {
		if verr := invalid(err); verr != nil {
			return verr
		}
		return failure(err, "Error en la búsqueda")
	}
	category, _ := content.ParseCategory(c.QueryParam("category"))
	return c.JSON(httpx.StatusOK, searchResponse{
		Posts:    posts,
		Total:    len(posts),
		Query:    query,
		Category: category,
	})
}
