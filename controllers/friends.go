package controllers

import (
	"net/http"

	"github.com/Maxapelquist/preparty-social-hub/services/friends"

	"github.com/gin-gonic/gin"
)

// @Summary Get a list of a user friends
// @Description Returns the caller's accepted friendships with the friend's profile
// @Tags friends
// @Produce json
// @Param Authorization header string true "Bearer JWT token"
// @Success 200 {array} friends.Request
// @Failure 500 {object} object{error=string}
// @Router /auth/friends [get]
// @Security ApiKeyAuth
func ListFriends(svc *friends.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := svc.Friends(c.Request.Context(), currentUser(c))
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, list)
	}
}

// @Summary List received friend requests
// @Tags friends
// @Produce json
// @Param Authorization header string true "Bearer JWT token"
// @Success 200 {array} friends.Request
// @Router /auth/friends/requests [get]
// @Security ApiKeyAuth
func ListIncomingRequests(svc *friends.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := svc.Incoming(c.Request.Context(), currentUser(c))
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, list)
	}
}

// @Summary List sent friend requests
// @Tags friends
// @Produce json
// @Param Authorization header string true "Bearer JWT token"
// @Success 200 {array} friends.Request
// @Router /auth/friends/requests/sent [get]
// @Security ApiKeyAuth
func ListSentRequests(svc *friends.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := svc.Sent(c.Request.Context(), currentUser(c))
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, list)
	}
}

// @Summary Send a friend request
// @Tags friends
// @Accept json
// @Produce json
// @Param Authorization header string true "Bearer JWT token"
// @Param body body object{friend_id=string} true "Target user"
// @Success 201 {object} postgres.Friendship
// @Failure 400 {object} object{error=string}
// @Failure 404 {object} object{error=string}
// @Failure 409 {object} object{error=string}
// @Router /auth/friends/requests [post]
// @Security ApiKeyAuth
func SendFriendRequest(svc *friends.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			FriendID string `form:"friend_id" json:"friend_id"`
		}
		if !bind(c, &req) {
			return
		}
		f, err := svc.SendRequest(c.Request.Context(), currentUser(c), req.FriendID)
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusCreated, f)
	}
}

// @Summary Accept a friend request
// @Description Only the receiver can accept, and only while the request is pending
// @Tags friends
// @Produce json
// @Param Authorization header string true "Bearer JWT token"
// @Param id path string true "Request id"
// @Success 200 {object} postgres.Friendship
// @Failure 404 {object} object{error=string}
// @Router /auth/friends/requests/{id}/accept [post]
// @Security ApiKeyAuth
func AcceptFriendRequest(svc *friends.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		f, err := svc.Accept(c.Request.Context(), currentUser(c), c.Param("id"))
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, f)
	}
}

// @Summary Decline a friend request
// @Tags friends
// @Produce json
// @Param Authorization header string true "Bearer JWT token"
// @Param id path string true "Request id"
// @Success 204
// @Failure 404 {object} object{error=string}
// @Router /auth/friends/requests/{id}/decline [post]
// @Security ApiKeyAuth
func DeclineFriendRequest(svc *friends.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := svc.Decline(c.Request.Context(), currentUser(c), c.Param("id")); err != nil {
			c.Error(err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// @Summary Cancel a sent friend request
// @Tags friends
// @Produce json
// @Param Authorization header string true "Bearer JWT token"
// @Param id path string true "Request id"
// @Success 204
// @Failure 404 {object} object{error=string}
// @Router /auth/friends/requests/{id} [delete]
// @Security ApiKeyAuth
func CancelFriendRequest(svc *friends.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := svc.CancelRequest(c.Request.Context(), currentUser(c), c.Param("id")); err != nil {
			c.Error(err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// @Summary Remove a friend
// @Tags friends
// @Produce json
// @Param Authorization header string true "Bearer JWT token"
// @Param friend_id path string true "Friend's user id"
// @Success 204
// @Failure 404 {object} object{error=string}
// @Router /auth/friends/{friend_id} [delete]
// @Security ApiKeyAuth
func RemoveFriend(svc *friends.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := svc.Remove(c.Request.Context(), currentUser(c), c.Param("friend_id")); err != nil {
			c.Error(err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}
