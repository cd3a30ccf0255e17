package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/comigor/landing-chat/internal/chat"
	"github.com/comigor/landing-chat/internal/history"
	"github.com/comigor/landing-chat/internal/llm"
	"github.com/comigor/landing-chat/internal/logger"
	"github.com/comigor/landing-chat/internal/models"
	"github.com/comigor/landing-chat/internal/widget"
)

const widgetKey = "widget"

// Handler wires HTTP routes to the completion backend and the per-client widgets.
type Handler struct {
	completer chat.Completer
	widgets   *widget.Registry
}

// NewHandler constructs a Handler instance.
func NewHandler(completer chat.Completer, widgets *widget.Registry) *Handler {
	return &Handler{completer: completer, widgets: widgets}
}

// RegisterRoutes attaches all HTTP routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })

	api := router.Group("/api")
	api.POST("/chat", h.proxyChat)

	w := api.Group("/widget/:client")
	w.Use(h.resolveWidget())
	w.GET("/session", h.getSession)
	w.POST("/session/messages", h.submitMessage)
	w.POST("/session/close", h.closeSession)
	w.POST("/session/load/:entry", h.loadSession)
	w.GET("/history", h.listHistory)
	w.DELETE("/history/:entry", h.deleteHistory)
}

type chatRequest struct {
	Messages []models.Turn `json:"messages"`
}

// proxyChat forwards a whole conversation and returns the reply verbatim.
func (h *Handler) proxyChat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.Messages) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	for _, m := range req.Messages {
		if m.Role != models.RoleUser && m.Role != models.RoleAssistant {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported role " + string(m.Role)})
			return
		}
	}

	content, err := h.completer.Complete(c.Request.Context(), req.Messages)
	if errors.Is(err, llm.ErrNoChoices) {
		// an answer without choices is an empty reply, not an upstream failure
		c.JSON(http.StatusOK, gin.H{"content": ""})
		return
	}
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "completion failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"content": content})
}

func (h *Handler) resolveWidget() gin.HandlerFunc {
	return func(c *gin.Context) {
		w, err := h.widgets.Get(c.Request.Context(), c.Param("client"))
		if err != nil {
			if errors.Is(err, widget.ErrInvalidClient) {
				c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid client id"})
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "widget unavailable"})
			return
		}
		c.Set(widgetKey, w)
		c.Next()
	}
}

func currentWidget(c *gin.Context) *widget.Widget {
	return c.MustGet(widgetKey).(*widget.Widget)
}

type sessionResponse struct {
	Messages []models.Message `json:"messages"`
	Pending  bool             `json:"pending"`
}

func sessionOf(w *widget.Widget) sessionResponse {
	return sessionResponse{Messages: w.Session.Messages(), Pending: w.Session.Pending()}
}

func (h *Handler) getSession(c *gin.Context) {
	c.JSON(http.StatusOK, sessionOf(currentWidget(c)))
}

type submitRequest struct {
	Text string `json:"text"`
}

// submitMessage blocks until the turn has settled.
func (h *Handler) submitMessage(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Text) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "text required"})
		return
	}

	w := currentWidget(c)
	if !w.Session.Submit(c.Request.Context(), req.Text) {
		c.JSON(http.StatusConflict, gin.H{"error": "reply pending", "session": sessionOf(w)})
		return
	}
	c.JSON(http.StatusOK, sessionOf(w))
}

type closeResponse struct {
	Archived  bool           `json:"archived"`
	Persisted bool           `json:"persisted"`
	Entry     *history.Entry `json:"entry,omitempty"`
}

func (h *Handler) closeSession(c *gin.Context) {
	entry, archived, err := currentWidget(c).Session.Close(c.Request.Context())
	resp := closeResponse{Archived: archived, Persisted: err == nil}
	if archived {
		resp.Entry = &entry
	}
	if err != nil {
		_ = c.Error(err)
	}
	c.JSON(http.StatusOK, resp)
}

type loadResponse struct {
	Loaded   bool             `json:"loaded"`
	Messages []models.Message `json:"messages"`
}

func (h *Handler) loadSession(c *gin.Context) {
	w := currentWidget(c)
	loaded := w.Session.LoadFromHistory(c.Param("entry"))
	c.JSON(http.StatusOK, loadResponse{Loaded: loaded, Messages: w.Session.Messages()})
}

func (h *Handler) listHistory(c *gin.Context) {
	c.JSON(http.StatusOK, currentWidget(c).History.List())
}

func (h *Handler) deleteHistory(c *gin.Context) {
	if err := currentWidget(c).History.Delete(c.Request.Context(), c.Param("entry")); err != nil {
		logger.L.Error("delete history entry failed", "entry", c.Param("entry"), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save history"})
		return
	}
	c.Status(http.StatusNoContent)
}
