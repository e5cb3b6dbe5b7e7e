package controllers

import (
	"net/http"

	"github.com/Maxapelquist/preparty-social-hub/services/chat"
	"github.com/Maxapelquist/preparty-social-hub/services/notifications"

	"github.com/gin-gonic/gin"
)

type messageRequest struct {
	Content string `form:"content" json:"content"`
}

// @Summary List my conversations
// @Description Direct threads with the other user, last message and unread count
// @Tags chat
// @Produce json
// @Param Authorization header string true "Bearer JWT token"
// @Success 200 {array} chat.ConversationSummary
// @Router /auth/conversations [get]
// @Security ApiKeyAuth
func ListConversations(svc *chat.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := svc.Conversations(c.Request.Context(), currentUser(c))
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, list)
	}
}

// @Summary Open a conversation
// @Description Returns the thread with another user, creating it if needed
// @Tags chat
// @Accept json
// @Produce json
// @Param Authorization header string true "Bearer JWT token"
// @Param body body object{user_id=string} true "Other user"
// @Success 200 {object} postgres.DirectConversation
// @Failure 400 {object} object{error=string}
// @Failure 404 {object} object{error=string}
// @Router /auth/conversations [post]
// @Security ApiKeyAuth
func OpenConversation(svc *chat.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			UserID string `form:"user_id" json:"user_id"`
		}
		if !bind(c, &req) {
			return
		}
		conv, err := svc.GetOrCreateConversation(c.Request.Context(), currentUser(c), req.UserID)
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, conv)
	}
}

// @Summary Read a conversation
// @Description Messages in ascending order grouped by day. Marks incoming messages as read.
// @Tags chat
// @Produce json
// @Param Authorization header string true "Bearer JWT token"
// @Param id path string true "Conversation id"
// @Param tz query string false "IANA time zone for day grouping"
// @Success 200 {object} chat.History
// @Failure 403 {object} object{error=string}
// @Failure 404 {object} object{error=string}
// @Router /auth/conversations/{id}/messages [get]
// @Security ApiKeyAuth
func ConversationHistory(svc *chat.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		h, err := svc.History(c.Request.Context(), currentUser(c), c.Param("id"), timezone(c))
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, h)
	}
}

// @Summary Send a message
// @Tags chat
// @Accept json
// @Produce json
// @Param Authorization header string true "Bearer JWT token"
// @Param id path string true "Conversation id"
// @Param body body messageRequest true "Message"
// @Success 201 {object} postgres.DirectMessage
// @Failure 400 {object} object{error=string}
// @Failure 403 {object} object{error=string}
// @Router /auth/conversations/{id}/messages [post]
// @Security ApiKeyAuth
func SendMessage(svc *chat.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req messageRequest
		if !bind(c, &req) {
			return
		}
		msg, err := svc.Send(c.Request.Context(), currentUser(c), c.Param("id"), req.Content)
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusCreated, msg)
	}
}

// @Summary Message a user
// @Description Sends a direct message, opening the conversation on first contact
// @Tags chat
// @Accept json
// @Produce json
// @Param Authorization header string true "Bearer JWT token"
// @Param user_id path string true "Recipient"
// @Param body body messageRequest true "Message"
// @Success 201 {object} postgres.DirectMessage
// @Failure 400 {object} object{error=string}
// @Router /auth/users/{user_id}/messages [post]
// @Security ApiKeyAuth
func MessageUser(svc *chat.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req messageRequest
		if !bind(c, &req) {
			return
		}
		msg, err := svc.SendTo(c.Request.Context(), currentUser(c), c.Param("user_id"), req.Content)
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusCreated, msg)
	}
}

// @Summary Mark a conversation as read
// @Tags chat
// @Produce json
// @Param Authorization header string true "Bearer JWT token"
// @Param id path string true "Conversation id"
// @Success 200 {object} object{marked=integer}
// @Router /auth/conversations/{id}/read [post]
// @Security ApiKeyAuth
func MarkConversationRead(svc *chat.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		n, err := svc.MarkRead(c.Request.Context(), currentUser(c), c.Param("id"))
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"marked": n})
	}
}

// @Summary Mark one message as read
// @Tags chat
// @Param Authorization header string true "Bearer JWT token"
// @Param id path string true "Message id"
// @Success 204
// @Router /auth/messages/{id}/read [post]
// @Security ApiKeyAuth
func MarkMessageRead(svc *chat.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := svc.MarkMessageRead(c.Request.Context(), currentUser(c), c.Param("id")); err != nil {
			c.Error(err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// @Summary Open the group chat
// @Tags chat
// @Produce json
// @Param Authorization header string true "Bearer JWT token"
// @Param id path string true "Group id"
// @Param tz query string false "IANA time zone for day grouping"
// @Success 200 {object} chat.GroupHistory
// @Failure 403 {object} object{error=string}
// @Router /auth/groups/{id}/messages [get]
// @Security ApiKeyAuth
func GroupChatHistory(svc *chat.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		h, err := svc.GroupHistory(c.Request.Context(), currentUser(c), c.Param("id"), timezone(c))
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, h)
	}
}

// @Summary Write in the group chat
// @Tags chat
// @Accept json
// @Produce json
// @Param Authorization header string true "Bearer JWT token"
// @Param id path string true "Group id"
// @Param body body messageRequest true "Message"
// @Success 201 {object} chat.GroupMessage
// @Failure 400 {object} object{error=string}
// @Failure 403 {object} object{error=string}
// @Router /auth/groups/{id}/messages [post]
// @Security ApiKeyAuth
func SendGroupMessage(svc *chat.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req messageRequest
		if !bind(c, &req) {
			return
		}
		msg, err := svc.SendGroupMessage(c.Request.Context(), currentUser(c), c.Param("id"), req.Content)
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusCreated, msg)
	}
}

// @Summary Notification badges
// @Description Pending friend requests, unread messages and party invitations
// @Tags notifications
// @Produce json
// @Param Authorization header string true "Bearer JWT token"
// @Success 200 {object} notifications.Counts
// @Router /auth/notifications [get]
// @Security ApiKeyAuth
func NotificationCounts(svc *notifications.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		counts, err := svc.Counts(c.Request.Context(), currentUser(c))
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, counts)
	}
}
