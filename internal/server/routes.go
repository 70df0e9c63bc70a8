package server

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/vantor/schemacraft/internal/batch"
	"github.com/vantor/schemacraft/internal/conversation"
	"gorm.io/gorm"
)

// registerRoutes sets up all API routes on the gin router.
func registerRoutes(router *gin.Engine, deps Deps) {
	router.GET("/healthz", handleHealth(deps))

	api := router.Group("/api")
	api.GET("/admission/stats", handleAdmissionStats(deps))
	api.POST("/conversations/:id/messages", handlePostMessage(deps))
	api.GET("/conversations/:id", handleGetConversation(deps))
	api.POST("/batches", handleCreateBatch(deps))
	api.GET("/batches/:id", handleGetBatch(deps))
	api.GET("/batches/:id/tasks", handleGetBatchTasks(deps))
}

// callerID extracts the authenticated user from the request. Token
// verification happens upstream; the gateway injects X-User-ID.
func callerID(c *gin.Context) (string, bool) {
	id := c.GetHeader("X-User-ID")
	if id == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing X-User-ID"})
		return "", false
	}
	return id, true
}

func handleHealth(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		sqlDB, err := deps.DB.DB()
		if err != nil || sqlDB.Ping() != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

func handleAdmissionStats(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := deps.Controller.Stats()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, stats)
	}
}

// postMessageRequest is one inbound chat message. Classification may be
// supplied by callers that already ran the classifier; otherwise the
// service calls it.
type postMessageRequest struct {
	Content        string                         `json:"content" binding:"required"`
	Classification *conversation.ClassifiedIntent `json:"classification"`
}

func handlePostMessage(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		owner, ok := callerID(c)
		if !ok {
			return
		}
		var req postMessageRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		res, err := deps.Conversations.HandleMessage(c.Request.Context(), conversation.HandleOpts{
			ConversationID: c.Param("id"),
			OwnerID:        owner,
			Content:        req.Content,
			Event:          req.Classification,
		})
		if err != nil {
			writeConversationError(c, err)
			return
		}
		// Refusals are successful responses carrying a refusal message.
		c.JSON(http.StatusOK, res)
	}
}

func handleGetConversation(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		owner, ok := callerID(c)
		if !ok {
			return
		}
		conv, err := deps.Conversations.Get(c.Param("id"), owner)
		if err != nil {
			writeConversationError(c, err)
			return
		}
		c.JSON(http.StatusOK, conv)
	}
}

func writeConversationError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, conversation.ErrNotOwner):
		c.JSON(http.StatusForbidden, gin.H{"error": "not your conversation"})
	case errors.Is(err, gorm.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
	default:
		log.Printf("server: conversation: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "assistant is unavailable, try again"})
	}
}

// createBatchRequest submits one grading batch.
type createBatchRequest struct {
	Description string   `json:"description"`
	FileKeys    []string `json:"fileKeys" binding:"required"`
	ClassCode   string   `json:"classCode"`
}

func handleCreateBatch(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		owner, ok := callerID(c)
		if !ok {
			return
		}
		var req createBatchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		b, err := deps.Batches.Create(batch.CreateOpts{
			OwnerID:     owner,
			Description: req.Description,
			FileKeys:    req.FileKeys,
			ClassCode:   req.ClassCode,
		})
		if err != nil {
			var invalid *batch.InvalidBatchError
			if errors.As(err, &invalid) {
				c.JSON(http.StatusUnprocessableEntity, gin.H{
					"error":   invalid.Error(),
					"invalid": invalid.Invalid,
				})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		// Execution proceeds asynchronously; the response carries the
		// pending batch. Run awaits its tasks and finalizes the batch.
		go func(batchID string) {
			if err := deps.Batches.Run(context.Background(), batchID); err != nil {
				log.Printf("server: batch %s: %v", batchID, err)
			}
		}(b.ID)

		c.JSON(http.StatusCreated, b)
	}
}

func handleGetBatch(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		owner, ok := callerID(c)
		if !ok {
			return
		}
		b, err := deps.Batches.Get(c.Param("id"), owner)
		if err != nil {
			writeBatchError(c, err)
			return
		}
		c.JSON(http.StatusOK, b)
	}
}

func handleGetBatchTasks(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		owner, ok := callerID(c)
		if !ok {
			return
		}
		b, err := deps.Batches.Get(c.Param("id"), owner)
		if err != nil {
			writeBatchError(c, err)
			return
		}
		c.JSON(http.StatusOK, b.Tasks)
	}
}

func writeBatchError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, batch.ErrNotOwner):
		c.JSON(http.StatusForbidden, gin.H{"error": "not your batch"})
	case errors.Is(err, gorm.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "batch not found"})
	default:
		log.Printf("server: batch: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
