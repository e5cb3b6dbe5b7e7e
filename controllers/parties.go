package controllers

import (
	"net/http"

	"github.com/Maxapelquist/preparty-social-hub/services/errs"
	"github.com/Maxapelquist/preparty-social-hub/services/parties"

	"github.com/gin-gonic/gin"
)

// @Summary Host a party
// @Tags parties
// @Accept json
// @Produce json
// @Param Authorization header string true "Bearer JWT token"
// @Param body body parties.CreateParams true "Party"
// @Success 201 {object} postgres.Party
// @Failure 400 {object} object{error=string}
// @Router /auth/parties [post]
// @Security ApiKeyAuth
func CreateParty(svc *parties.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req parties.CreateParams
		if !bind(c, &req) {
			return
		}
		party, err := svc.Create(c.Request.Context(), currentUser(c), req)
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusCreated, party)
	}
}

// @Summary List upcoming parties
// @Description Active parties the caller can see, soonest first
// @Tags parties
// @Produce json
// @Param Authorization header string true "Bearer JWT token"
// @Success 200 {array} parties.Listing
// @Router /auth/parties [get]
// @Security ApiKeyAuth
func ListParties(svc *parties.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := svc.Active(c.Request.Context(), currentUser(c))
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, list)
	}
}

// @Summary Parties on the map
// @Tags parties
// @Produce json
// @Param Authorization header string true "Bearer JWT token"
// @Param min_lat query number true "South edge"
// @Param max_lat query number true "North edge"
// @Param min_lng query number true "West edge"
// @Param max_lng query number true "East edge"
// @Success 200 {array} parties.Listing
// @Failure 400 {object} object{error=string}
// @Router /auth/parties/map [get]
// @Security ApiKeyAuth
func PartyMap(svc *parties.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var b parties.Bounds
		if err := c.ShouldBindQuery(&b); err != nil {
			c.Error(errs.Invalid("invalid map bounds"))
			return
		}
		list, err := svc.MapOverlay(c.Request.Context(), currentUser(c), b)
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, list)
	}
}

// @Summary My party invitations
// @Tags parties
// @Produce json
// @Param Authorization header string true "Bearer JWT token"
// @Success 200 {array} parties.Listing
// @Router /auth/parties/invitations [get]
// @Security ApiKeyAuth
func PartyInvitations(svc *parties.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := svc.Invitations(c.Request.Context(), currentUser(c))
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, list)
	}
}

// @Summary Get a party
// @Tags parties
// @Produce json
// @Param Authorization header string true "Bearer JWT token"
// @Param id path string true "Party id"
// @Success 200 {object} parties.Listing
// @Failure 404 {object} object{error=string}
// @Router /auth/parties/{id} [get]
// @Security ApiKeyAuth
func GetParty(svc *parties.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		party, err := svc.Get(c.Request.Context(), currentUser(c), c.Param("id"))
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, party)
	}
}

// @Summary Edit a party
// @Tags parties
// @Accept json
// @Produce json
// @Param Authorization header string true "Bearer JWT token"
// @Param id path string true "Party id"
// @Param body body parties.UpdateParams true "Fields to change"
// @Success 200 {object} postgres.Party
// @Failure 403 {object} object{error=string}
// @Router /auth/parties/{id} [patch]
// @Security ApiKeyAuth
func UpdateParty(svc *parties.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req parties.UpdateParams
		if !bind(c, &req) {
			return
		}
		party, err := svc.Update(c.Request.Context(), currentUser(c), c.Param("id"), req)
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, party)
	}
}

// @Summary Cancel a party
// @Description Host only. The party is hidden, not removed.
// @Tags parties
// @Param Authorization header string true "Bearer JWT token"
// @Param id path string true "Party id"
// @Success 204
// @Failure 403 {object} object{error=string}
// @Router /auth/parties/{id} [delete]
// @Security ApiKeyAuth
func DeleteParty(svc *parties.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := svc.Delete(c.Request.Context(), currentUser(c), c.Param("id")); err != nil {
			c.Error(err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// @Summary Answer a party
// @Tags parties
// @Accept json
// @Produce json
// @Param Authorization header string true "Bearer JWT token"
// @Param id path string true "Party id"
// @Param body body object{status=string} true "attending or declined"
// @Success 200 {object} postgres.PartyAttendee
// @Failure 400 {object} object{error=string}
// @Failure 422 {object} object{error=string}
// @Router /auth/parties/{id}/rsvp [post]
// @Security ApiKeyAuth
func RSVP(svc *parties.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Status string `form:"status" json:"status"`
		}
		if !bind(c, &req) {
			return
		}
		row, err := svc.RSVP(c.Request.Context(), currentUser(c), c.Param("id"), req.Status)
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, row)
	}
}

// @Summary Invite users
// @Tags parties
// @Accept json
// @Produce json
// @Param Authorization header string true "Bearer JWT token"
// @Param id path string true "Party id"
// @Param body body object{user_ids=[]string} true "Users to invite"
// @Success 200 {array} postgres.PartyAttendee
// @Failure 403 {object} object{error=string}
// @Router /auth/parties/{id}/invite [post]
// @Security ApiKeyAuth
func InviteToParty(svc *parties.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			UserIDs []string `json:"user_ids"`
		}
		if !bind(c, &req) {
			return
		}
		invited, err := svc.Invite(c.Request.Context(), currentUser(c), c.Param("id"), req.UserIDs)
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, invited)
	}
}

// @Summary Who is going
// @Tags parties
// @Produce json
// @Param Authorization header string true "Bearer JWT token"
// @Param id path string true "Party id"
// @Success 200 {array} parties.Attendee
// @Router /auth/parties/{id}/attendees [get]
// @Security ApiKeyAuth
func PartyAttendees(svc *parties.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := svc.Attendees(c.Request.Context(), currentUser(c), c.Param("id"))
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, list)
	}
}
