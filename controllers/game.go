package controllers

import (
	"net/http"

	"github.com/Maxapelquist/preparty-social-hub/services/game"

	"github.com/gin-gonic/gin"
)

type startGameRequest struct {
	GroupIDs []string `json:"group_ids"`
	Title    string   `json:"title"`
	PartyID  *string  `json:"party_id"`
}

// @Summary Start a Never Have I Ever game
// @Description Seats every member of the selected groups once. The caller hosts.
// @Tags game
// @Accept json
// @Produce json
// @Param Authorization header string true "Bearer JWT token"
// @Param body body startGameRequest true "Groups to play with"
// @Success 201 {object} object{game=postgres.Game,participants=[]postgres.GameParticipant}
// @Failure 400 {object} object{error=string}
// @Failure 403 {object} object{error=string}
// @Router /auth/games [post]
// @Security ApiKeyAuth
func StartGame(svc *game.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req startGameRequest
		if !bind(c, &req) {
			return
		}
		g, participants, err := svc.StartGame(c.Request.Context(), game.StartParams{
			HostID:   currentUser(c),
			GroupIDs: req.GroupIDs,
			Title:    req.Title,
			PartyID:  req.PartyID,
		})
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"game": g, "participants": participants})
	}
}

// @Summary List my games
// @Tags game
// @Produce json
// @Param Authorization header string true "Bearer JWT token"
// @Success 200 {array} postgres.Game
// @Router /auth/games [get]
// @Security ApiKeyAuth
func ListGames(svc *game.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		games, err := svc.ListGames(c.Request.Context(), currentUser(c))
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, games)
	}
}

// @Summary Game state
// @Description Players, current question, round history and the caller's answer
// @Tags game
// @Produce json
// @Param Authorization header string true "Bearer JWT token"
// @Param id path string true "Game id"
// @Success 200 {object} game.State
// @Failure 403 {object} object{error=string}
// @Failure 404 {object} object{error=string}
// @Router /auth/games/{id} [get]
// @Security ApiKeyAuth
func GameState(svc *game.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		st, err := svc.State(c.Request.Context(), currentUser(c), c.Param("id"))
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, st)
	}
}

// @Summary Next question
// @Description Host only. Picks an unused question and the next player.
// @Tags game
// @Produce json
// @Param Authorization header string true "Bearer JWT token"
// @Param id path string true "Game id"
// @Success 200 {object} game.RoundResult
// @Failure 403 {object} object{error=string}
// @Failure 409 {object} object{error=string}
// @Failure 422 {object} object{error=string}
// @Router /auth/games/{id}/advance [post]
// @Security ApiKeyAuth
func AdvanceRound(svc *game.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := svc.AdvanceRound(c.Request.Context(), currentUser(c), c.Param("id"))
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

// @Summary Answer the current question
// @Description "I have" costs a finger. One answer per player and round.
// @Tags game
// @Accept json
// @Produce json
// @Param Authorization header string true "Bearer JWT token"
// @Param id path string true "Game id"
// @Param body body object{did_it=boolean,round=integer} true "Answer"
// @Success 200 {object} game.Outcome
// @Failure 403 {object} object{error=string}
// @Failure 409 {object} object{error=string}
// @Failure 422 {object} object{error=string}
// @Router /auth/games/{id}/answer [post]
// @Security ApiKeyAuth
func AnswerQuestion(svc *game.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			DidIt bool `json:"did_it"`
			Round int  `json:"round"`
		}
		if !bind(c, &req) {
			return
		}
		out, err := svc.Answer(c.Request.Context(), game.AnswerParams{
			GameID: c.Param("id"),
			UserID: currentUser(c),
			Round:  req.Round,
			DidIt:  req.DidIt,
		})
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, out)
	}
}

// @Summary Take a finger
// @Description The host, or the player themselves, removes one finger
// @Tags game
// @Produce json
// @Param Authorization header string true "Bearer JWT token"
// @Param id path string true "Game id"
// @Param user_id path string true "Player"
// @Success 200 {object} game.Outcome
// @Failure 403 {object} object{error=string}
// @Failure 422 {object} object{error=string}
// @Router /auth/games/{id}/players/{user_id}/finger [post]
// @Security ApiKeyAuth
func RemoveFinger(svc *game.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		out, err := svc.RemoveFinger(c.Request.Context(), currentUser(c), c.Param("id"), c.Param("user_id"))
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, out)
	}
}

// @Summary End a game
// @Tags game
// @Produce json
// @Param Authorization header string true "Bearer JWT token"
// @Param id path string true "Game id"
// @Success 200 {object} postgres.Game
// @Failure 403 {object} object{error=string}
// @Router /auth/games/{id}/end [post]
// @Security ApiKeyAuth
func EndGame(svc *game.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		g, err := svc.EndGame(c.Request.Context(), currentUser(c), c.Param("id"))
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, g)
	}
}

// @Summary List questions
// @Tags game
// @Produce json
// @Param Authorization header string true "Bearer JWT token"
// @Param category query string false "Only this category"
// @Success 200 {array} postgres.Question
// @Router /auth/questions [get]
// @Security ApiKeyAuth
func ListQuestions(svc *game.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		qs, err := svc.ListQuestions(c.Request.Context(), c.Query("category"))
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, qs)
	}
}

// @Summary Submit a question
// @Tags game
// @Accept json
// @Produce json
// @Param Authorization header string true "Bearer JWT token"
// @Param body body object{category=string,question=string} true "Question"
// @Success 201 {object} postgres.Question
// @Failure 400 {object} object{error=string}
// @Router /auth/questions [post]
// @Security ApiKeyAuth
func SubmitQuestion(svc *game.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Category string `form:"category" json:"category"`
			Question string `form:"question" json:"question"`
		}
		if !bind(c, &req) {
			return
		}
		q, err := svc.SubmitQuestion(c.Request.Context(), currentUser(c), req.Category, req.Question)
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusCreated, q)
	}
}
