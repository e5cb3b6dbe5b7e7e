package routes

import (
	"log/slog"

	"github.com/Maxapelquist/preparty-social-hub/config"
	"github.com/Maxapelquist/preparty-social-hub/controllers"
	"github.com/Maxapelquist/preparty-social-hub/middleware"
	"github.com/Maxapelquist/preparty-social-hub/services/chat"
	"github.com/Maxapelquist/preparty-social-hub/services/friends"
	"github.com/Maxapelquist/preparty-social-hub/services/game"
	"github.com/Maxapelquist/preparty-social-hub/services/groups"
	"github.com/Maxapelquist/preparty-social-hub/services/notifications"
	"github.com/Maxapelquist/preparty-social-hub/services/parties"
	"github.com/Maxapelquist/preparty-social-hub/services/profiles"
	"github.com/Maxapelquist/preparty-social-hub/utils"

	"github.com/gin-gonic/gin"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Services bundles everything the HTTP layer talks to.
type Services struct {
	Profiles      *profiles.Service
	Friends       *friends.Service
	Groups        *groups.Service
	Parties       *parties.Service
	Chat          *chat.Service
	Notifications *notifications.Service
	Game          *game.Service
}

// SetupRoutes configures all API routes
func SetupRoutes(router *gin.Engine, svc Services, cfg *config.Config, log *slog.Logger) {
	// utils global
	router.Use(utils.ErrorHandler(log))

	// Swagger route
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	api := router.Group("/")

	api.GET("/ping", controllers.Ping)

	api.POST("/signup", controllers.SignUp(svc.Profiles))

	api.POST("/login", controllers.Login(svc.Profiles, cfg.Auth))

	api.POST("/logout", controllers.Logout)

	authentication := api.Group("/auth")
	authentication.Use(middleware.AuthRequired([]byte(cfg.Auth.JWTSecret)))
	{
		authentication.GET("/me", controllers.Me(svc.Profiles))
		authentication.PATCH("/me", controllers.UpdateProfile(svc.Profiles))
		authentication.POST("/onboarding", controllers.Onboard(svc.Profiles))
		authentication.GET("/username-available", controllers.UsernameAvailable(svc.Profiles))
		authentication.GET("/profiles", controllers.SearchProfiles(svc.Profiles))
		authentication.GET("/profiles/:username", controllers.GetProfile(svc.Profiles))

		authentication.GET("/friends", controllers.ListFriends(svc.Friends))
		authentication.DELETE("/friends/:friend_id", controllers.RemoveFriend(svc.Friends))
		authentication.GET("/friends/requests", controllers.ListIncomingRequests(svc.Friends))
		authentication.GET("/friends/requests/sent", controllers.ListSentRequests(svc.Friends))
		authentication.POST("/friends/requests", controllers.SendFriendRequest(svc.Friends))
		authentication.POST("/friends/requests/:id/accept", controllers.AcceptFriendRequest(svc.Friends))
		authentication.POST("/friends/requests/:id/decline", controllers.DeclineFriendRequest(svc.Friends))
		authentication.DELETE("/friends/requests/:id", controllers.CancelFriendRequest(svc.Friends))

		groupRoutes := authentication.Group("/groups")
		{
			groupRoutes.POST("", controllers.CreateGroup(svc.Groups))
			groupRoutes.GET("", controllers.ListGroups(svc.Groups))
			groupRoutes.GET("/:id", controllers.GetGroup(svc.Groups))
			groupRoutes.PATCH("/:id", controllers.UpdateGroup(svc.Groups))
			groupRoutes.DELETE("/:id", controllers.DeleteGroup(svc.Groups))
			groupRoutes.POST("/:id/members", controllers.AddGroupMembers(svc.Groups))
			groupRoutes.POST("/:id/leave", controllers.LeaveGroup(svc.Groups))
			groupRoutes.GET("/:id/addable", controllers.AddableFriends(svc.Groups))
			groupRoutes.GET("/:id/messages", controllers.GroupChatHistory(svc.Chat))
			groupRoutes.POST("/:id/messages", controllers.SendGroupMessage(svc.Chat))
		}

		partyRoutes := authentication.Group("/parties")
		{
			partyRoutes.POST("", controllers.CreateParty(svc.Parties))
			partyRoutes.GET("", controllers.ListParties(svc.Parties))
			partyRoutes.GET("/map", controllers.PartyMap(svc.Parties))
			partyRoutes.GET("/invitations", controllers.PartyInvitations(svc.Parties))
			partyRoutes.GET("/:id", controllers.GetParty(svc.Parties))
			partyRoutes.PATCH("/:id", controllers.UpdateParty(svc.Parties))
			partyRoutes.DELETE("/:id", controllers.DeleteParty(svc.Parties))
			partyRoutes.POST("/:id/rsvp", controllers.RSVP(svc.Parties))
			partyRoutes.POST("/:id/invite", controllers.InviteToParty(svc.Parties))
			partyRoutes.GET("/:id/attendees", controllers.PartyAttendees(svc.Parties))
		}

		authentication.GET("/conversations", controllers.ListConversations(svc.Chat))
		authentication.POST("/conversations", controllers.OpenConversation(svc.Chat))
		authentication.GET("/conversations/:id/messages", controllers.ConversationHistory(svc.Chat))
		authentication.POST("/conversations/:id/messages", controllers.SendMessage(svc.Chat))
		authentication.POST("/conversations/:id/read", controllers.MarkConversationRead(svc.Chat))
		authentication.POST("/messages/:id/read", controllers.MarkMessageRead(svc.Chat))
		authentication.POST("/users/:user_id/messages", controllers.MessageUser(svc.Chat))

		authentication.GET("/notifications", controllers.NotificationCounts(svc.Notifications))

		gameRoutes := authentication.Group("/games")
		{
			gameRoutes.POST("", controllers.StartGame(svc.Game))
			gameRoutes.GET("", controllers.ListGames(svc.Game))
			gameRoutes.GET("/:id", controllers.GameState(svc.Game))
			gameRoutes.POST("/:id/advance", controllers.AdvanceRound(svc.Game))
			gameRoutes.POST("/:id/answer", controllers.AnswerQuestion(svc.Game))
			gameRoutes.POST("/:id/players/:user_id/finger", controllers.RemoveFinger(svc.Game))
			gameRoutes.POST("/:id/end", controllers.EndGame(svc.Game))
		}

		authentication.GET("/questions", controllers.ListQuestions(svc.Game))
		authentication.POST("/questions", controllers.SubmitQuestion(svc.Game))
	}
}
