package handlers

import (
	"context"
	"net/http"
	"strconv"

	"content-service/internal/engine"
	"content-service/internal/models"
	"content-service/internal/service"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo"
)

type ContentHandler struct {
	Service *service.ContentService
}

func NewContentHandler(s *service.ContentService) *ContentHandler {
	return &ContentHandler{Service: s}
}

// DisplayObject displays the stored content bound to a scene object.
func (h *ContentHandler) DisplayObject(c *gin.Context) {
	objectID := c.Param("objectId")
	err := h.Service.DisplayObject(context.Background(), objectID)
	if err == mongo.ErrNoDocuments {
		c.JSON(http.StatusNotFound, gin.H{"error": "No content bound to this object"})
		return
	}
	if engine.IsContentError(err) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, h.Service.Status())
}

// DisplayPayload displays a raw payload without storing it.
func (h *ContentHandler) DisplayPayload(c *gin.Context) {
	var req struct {
		ObjectID    string                `json:"object_id" binding:"required"`
		ContentType models.ContentType    `json:"content_type" binding:"required"`
		Payload     models.ContentPayload `json:"payload" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.Service.DisplayPayload(req.ObjectID, req.ContentType, req.Payload); err != nil {
		if engine.IsContentError(err) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, h.Service.Status())
}

func (h *ContentHandler) CloseCurrent(c *gin.Context) {
	h.Service.CloseCurrent()
	c.JSON(http.StatusOK, gin.H{"closed": true})
}

func (h *ContentHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, h.Service.Status())
}

// Quiz interaction endpoints.

func (h *ContentHandler) SelectOption(c *gin.Context) {
	var req struct {
		Index *int `json:"index" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.Service.SelectOption(*req.Index)
	c.JSON(http.StatusOK, h.Service.Status())
}

func (h *ContentHandler) ValidateAnswer(c *gin.Context) {
	h.Service.ValidateAnswer()
	c.JSON(http.StatusOK, h.Service.Status())
}

// Dialogue interaction endpoints.

func (h *ContentHandler) ContinueDialogue(c *gin.Context) {
	h.Service.ContinueDialogue()
	c.JSON(http.StatusOK, h.Service.Status())
}

func (h *ContentHandler) ChooseDialogue(c *gin.Context) {
	var req struct {
		ChoiceID string `json:"choice_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.Service.ChooseDialogue(req.ChoiceID)
	c.JSON(http.StatusOK, h.Service.Status())
}

// Procedure interaction endpoints.

func (h *ContentHandler) ClickObject(c *gin.Context) {
	var req struct {
		ObjectName string `json:"object_name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.Service.ClickObject(req.ObjectName)
	c.JSON(http.StatusOK, h.Service.Status())
}

func (h *ContentHandler) EnterZone(c *gin.Context) {
	var req struct {
		ZoneName string `json:"zone_name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.Service.EnterZone(req.ZoneName)
	c.JSON(http.StatusOK, h.Service.Status())
}

func (h *ContentHandler) ValidateStep(c *gin.Context) {
	h.Service.ValidateStep()
	c.JSON(http.StatusOK, h.Service.Status())
}

// Text interaction endpoints.

func (h *ContentHandler) AcknowledgeText(c *gin.Context) {
	h.Service.AcknowledgeText()
	c.JSON(http.StatusOK, h.Service.Status())
}

// Language endpoints.

func (h *ContentHandler) GetLanguage(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"language": h.Service.Language()})
}

func (h *ContentHandler) SetLanguage(c *gin.Context) {
	var req struct {
		Language string `json:"language" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.Service.SetLanguage(req.Language)
	c.JSON(http.StatusOK, gin.H{"language": h.Service.Language()})
}

// Scene endpoints.

func (h *ContentHandler) RegisterSceneObject(c *gin.Context) {
	var req struct {
		Name string   `json:"name" binding:"required"`
		Tags []string `json:"tags"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.Service.RegisterSceneObject(req.Name, req.Tags...)
	c.JSON(http.StatusCreated, gin.H{"name": req.Name})
}

// Content library endpoints.

func (h *ContentHandler) ListContents(c *gin.Context) {
	contents, err := h.Service.ListContents(context.Background())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, contents)
}

func (h *ContentHandler) GetContent(c *gin.Context) {
	content, err := h.Service.GetContent(context.Background(), c.Param("objectId"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Content not found"})
		return
	}
	c.JSON(http.StatusOK, content)
}

func (h *ContentHandler) SaveContent(c *gin.Context) {
	var content models.Content
	if err := c.ShouldBindJSON(&content); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	content.ObjectID = c.Param("objectId")
	if err := h.Service.SaveContent(context.Background(), &content); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, content)
}

func (h *ContentHandler) DeleteContent(c *gin.Context) {
	if err := h.Service.DeleteContent(context.Background(), c.Param("objectId")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// Records and stats endpoints.

func (h *ContentHandler) GetObjectRecords(c *gin.Context) {
	records, err := h.Service.ObjectRecords(context.Background(), c.Param("objectId"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, records)
}

func (h *ContentHandler) GetRecentRecords(c *gin.Context) {
	limit, err := strconv.ParseInt(c.DefaultQuery("limit", "50"), 10, 64)
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
		return
	}
	records, err := h.Service.RecentRecords(context.Background(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, records)
}

func (h *ContentHandler) GetObjectStats(c *gin.Context) {
	stats, err := h.Service.ObjectStats(context.Background(), c.Param("objectId"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}
