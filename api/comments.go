package api

import (
	"errors"

	"github.com/pipeaalzamora/el-blog-del-ceo/comments"
	"github.com/pipeaalzamora/el-blog-del-ceo/httpx"
)

type commentsResponse struct {
	Comments []comments.Comment `json:"comments"`
	Total    int                `json:"total"`
}

type commentCreated struct {
	Message string           `json:"message"`
	Comment comments.Comment `json:"comment"`
}

func (h *handlers) listComments(c httpx.Context) error {
	list, err := h.Comments.List(c.Request().Context(), c.QueryParam("postId"))
	if err != nil {
		if verr := invalid(err); verr != nil {
			return verr
		}
		return failure(err, "Error al obtener comentarios")
	}
	return c.JSON(httpx.StatusOK, commentsResponse{Comments: list, Total: len(list)})
}

func (h *handlers) addComment(c httpx.Context) error {
	var in comments.Input
	if err := decode(c, &in, false); err != nil {
		return err
	}
	created, err := h.Comments.Add(c.Request().Context(), in)
	if err != nil {
		if verr := invalid(err); verr != nil {
			return verr
		}
		switch {
		case errors.Is(err, comments.ErrSpam):
			return httpx.HTTPError(httpx.StatusBadRequest, "El comentario contiene contenido no permitido")
		case errors.Is(err, comments.ErrConflict):
			return httpx.HTTPError(httpx.StatusConflict, "Comentario duplicado")
		}
		return failure(err, "Error al agregar comentario")
	}
	return c.JSON(httpx.StatusCreated, commentCreated{Message: "Comentario agregado exitosamente", Comment: created})
}
