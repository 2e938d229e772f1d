package api

import (
	"errors"

	"github.com/pipeaalzamora/el-blog-del-ceo/content"
	"github.com/pipeaalzamora/el-blog-del-ceo/httpx"
	"github.com/pipeaalzamora/el-blog-del-ceo/newsletter"
)

type message struct {
	Message string `json:"message"`
}

type subscribed struct {
	Message    string                `json:"message"`
	Subscriber newsletter.Subscriber `json:"subscriber"`
}

type sendRequest struct {
	Slug string `json:"slug"`
}

type sendResponse struct {
	Message string `json:"message"`
	newsletter.Report
}

func (h *handlers) subscribe(c httpx.Context) error {
	var in newsletter.Input
	if err := decode(c, &in, false); err != nil {
		return err
	}
	sub, err := h.Newsletter.Subscribe(c.Request().Context(), in)
	if err != nil {
		if verr := invalid(err); verr != nil {
			return verr
		}
		return failure(err, "Error al procesar la suscripción")
	}
	return c.JSON(httpx.StatusCreated, subscribed{Message: "Suscripción exitosa", Subscriber: sub})
}

func (h *handlers) unsubscribe(c httpx.Context) error {
	err := h.Newsletter.Unsubscribe(c.Request().Context(), c.QueryParam("email"))
	switch {
	case err == nil:
		return c.JSON(httpx.StatusOK, message{Message: "Desuscripción exitosa"})
	case errors.Is(err, newsletter.ErrSubscriberNotFound):
		return httpx.HTTPError(httpx.StatusNotFound, "Suscriptor no encontrado")
	}
	if verr := invalid(err); verr != nil {
		return verr
	}
	return failure(err, "Error al procesar la desuscripción")
}

// sendNewsletter mails the post named by slug and waits for the run to end.
func (h *handlers) sendNewsletter(c httpx.Context) error {
	var req sendRequest
	if err := decode(c, &req, false); err != nil {
		return err
	}
	if req.Slug == "" {
		return httpx.ValidationFailed(invalidData, []httpx.FieldError{{Field: "slug", Message: "Slug es requerido"}})
	}
	ctx := c.Request().Context()
	post, err := h.Content.PostBySlug(ctx, req.Slug)
	switch {
	case errors.Is(err, content.ErrPostNotFound):
		return httpx.HTTPError(httpx.StatusNotFound, "Post no encontrado")
	case err != nil:
		return failure(err, "Error al obtener el post")
	}

	report, err := h.Newsletter.Dispatch(ctx, post)
	if err != nil {
		if verr := invalid(err); verr != nil {
			return verr
		}
		return failure(err, "Error al enviar el newsletter")
	}
	return c.JSON(httpx.StatusOK, sendResponse{Message: "Newsletter enviado", Report: report})
}
