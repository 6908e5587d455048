package handler

import (
	"log/slog"

	"github.com/labstack/echo/v4"

	"whatsapp-bridge/internal/usecase"
)

const correlationKey = "correlation_id"

// Register mounts the bridge routes on an echo server.
func (h *Handler) Register(e *echo.Echo) {
	e.GET("/", h.echoRoot, h.correlate)
	e.GET("/health", h.echoHealth, h.correlate)
	e.POST("/webhook/whatsapp", h.echoWebhook, h.correlate)
	e.POST("/conversation/clear/:phone", h.echoClear, h.correlate)
	e.GET("/conversation/:phone", h.echoConversation, h.correlate)
	e.GET("/conversation/:phone/archive", h.echoArchive, h.correlate)
}

// correlate echoes or assigns the correlation id and stores a scoped logger.
func (h *Handler) correlate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		cid := correlationID(map[string]string{correlationHeader: c.Request().Header.Get(correlationHeader)})
		c.Response().Header().Set(correlationHeader, cid)
		c.Set(correlationKey, h.logger.With(slog.String("correlation_id", cid)))
		return next(c)
	}
}

func (h *Handler) requestLogger(c echo.Context) *slog.Logger {
	if l, ok := c.Get(correlationKey).(*slog.Logger); ok {
		return l
	}
	return h.logger
}

func write(c echo.Context, res result) error {
	return c.Blob(res.status, res.contentType, res.body)
}

func (h *Handler) echoRoot(c echo.Context) error {
	return write(c, h.root())
}

func (h *Handler) echoHealth(c echo.Context) error {
	return write(c, h.health())
}

func (h *Handler) echoWebhook(c echo.Context) error {
	log := h.requestLogger(c)
	form, err := c.FormParams()
	if err != nil {
		log.Warn("webhook form could not be parsed", slog.Any("error", err))
		return write(c, twimlResult(usecase.MsgGenericApology))
	}
	return write(c, h.webhook(c.Request().Context(), log, form))
}

func (h *Handler) echoClear(c echo.Context) error {
	return write(c, h.clear(h.requestLogger(c), pathParam(c, "phone")))
}

func (h *Handler) echoConversation(c echo.Context) error {
	return write(c, h.conversation(pathParam(c, "phone")))
}

func (h *Handler) echoArchive(c echo.Context) error {
	return write(c, h.archive(c.Request().Context(), h.requestLogger(c), pathParam(c, "phone"), c.QueryParam("limit")))
}

func pathParam(c echo.Context, name string) string {
	return unescape(c.Param(name))
}
