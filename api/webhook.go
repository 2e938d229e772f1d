package api

import (
	"github.com/pipeaalzamora/el-blog-del-ceo/httpx"
	"github.com/pipeaalzamora/el-blog-del-ceo/webhook"
)

func (h *handlers) webhook(c httpx.Context) error {
	var ev webhook.Event
	if err := decode(c, &ev, true); err != nil {
		return err
	}
	return c.JSON(httpx.StatusOK, h.Webhook.Handle(c.Request().Context(), ev))
}

func (h *handlers) revalidate(c httpx.Context) error {
	return c.JSON(httpx.StatusOK, h.Webhook.Revalidate(c.Request().Context()))
}
