package controllers

import (
	"net/http"

	"github.com/Maxapelquist/preparty-social-hub/services/groups"

	"github.com/gin-gonic/gin"
)

type createGroupRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	AvatarURL   string   `json:"avatar_url"`
	IsPrivate   bool     `json:"is_private"`
	MemberIDs   []string `json:"member_ids"`
}

// @Summary Create a group
// @Description The caller becomes admin. Initial members must be accepted friends.
// @Tags groups
// @Accept json
// @Produce json
// @Param Authorization header string true "Bearer JWT token"
// @Param body body createGroupRequest true "Group"
// @Success 201 {object} postgres.Group
// @Failure 400 {object} object{error=string}
// @Router /auth/groups [post]
// @Security ApiKeyAuth
func CreateGroup(svc *groups.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createGroupRequest
		if !bind(c, &req) {
			return
		}
		group, err := svc.Create(c.Request.Context(), currentUser(c), groups.CreateParams(req))
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusCreated, group)
	}
}

// @Summary List my groups
// @Tags groups
// @Produce json
// @Param Authorization header string true "Bearer JWT token"
// @Success 200 {array} groups.GroupSummary
// @Router /auth/groups [get]
// @Security ApiKeyAuth
func ListGroups(svc *groups.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := svc.Mine(c.Request.Context(), currentUser(c))
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, list)
	}
}

// @Summary Get a group
// @Tags groups
// @Produce json
// @Param Authorization header string true "Bearer JWT token"
// @Param id path string true "Group id"
// @Success 200 {object} object{group=postgres.Group,members=[]groups.Member}
// @Failure 403 {object} object{error=string}
// @Failure 404 {object} object{error=string}
// @Router /auth/groups/{id} [get]
// @Security ApiKeyAuth
func GetGroup(svc *groups.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		group, members, err := svc.Get(c.Request.Context(), currentUser(c), c.Param("id"))
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"group": group, "members": members})
	}
}

// @Summary Update a group
// @Tags groups
// @Accept json
// @Produce json
// @Param Authorization header string true "Bearer JWT token"
// @Param id path string true "Group id"
// @Param body body groups.UpdateParams true "Fields to change"
// @Success 200 {object} postgres.Group
// @Failure 403 {object} object{error=string}
// @Router /auth/groups/{id} [patch]
// @Security ApiKeyAuth
func UpdateGroup(svc *groups.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req groups.UpdateParams
		if !bind(c, &req) {
			return
		}
		group, err := svc.Update(c.Request.Context(), currentUser(c), c.Param("id"), req)
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, group)
	}
}

// @Summary Delete a group
// @Description Admin only. Removes members and the group chat too.
// @Tags groups
// @Param Authorization header string true "Bearer JWT token"
// @Param id path string true "Group id"
// @Success 204
// @Failure 403 {object} object{error=string}
// @Router /auth/groups/{id} [delete]
// @Security ApiKeyAuth
func DeleteGroup(svc *groups.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := svc.Delete(c.Request.Context(), currentUser(c), c.Param("id")); err != nil {
			c.Error(err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// @Summary Add members
// @Description Admin only. Friends already in the group are skipped.
// @Tags groups
// @Accept json
// @Produce json
// @Param Authorization header string true "Bearer JWT token"
// @Param id path string true "Group id"
// @Param body body object{member_ids=[]string} true "User ids"
// @Success 200 {array} postgres.GroupMember
// @Failure 400 {object} object{error=string}
// @Failure 403 {object} object{error=string}
// @Router /auth/groups/{id}/members [post]
// @Security ApiKeyAuth
func AddGroupMembers(svc *groups.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			MemberIDs []string `json:"member_ids"`
		}
		if !bind(c, &req) {
			return
		}
		added, err := svc.AddMembers(c.Request.Context(), currentUser(c), c.Param("id"), req.MemberIDs)
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, added)
	}
}

// @Summary Leave a group
// @Tags groups
// @Param Authorization header string true "Bearer JWT token"
// @Param id path string true "Group id"
// @Success 204
// @Failure 400 {object} object{error=string}
// @Router /auth/groups/{id}/leave [post]
// @Security ApiKeyAuth
func LeaveGroup(svc *groups.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := svc.Leave(c.Request.Context(), currentUser(c), c.Param("id")); err != nil {
			c.Error(err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// @Summary Friends that can be added
// @Tags groups
// @Produce json
// @Param Authorization header string true "Bearer JWT token"
// @Param id path string true "Group id"
// @Success 200 {array} postgres.ProfileSummary
// @Router /auth/groups/{id}/addable [get]
// @Security ApiKeyAuth
func AddableFriends(svc *groups.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := svc.AddableFriends(c.Request.Context(), currentUser(c), c.Param("id"))
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, list)
	}
}
