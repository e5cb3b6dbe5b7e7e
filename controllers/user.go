package controllers

import (
	"net/http"

	"github.com/Maxapelquist/preparty-social-hub/config"
	"github.com/Maxapelquist/preparty-social-hub/middleware"
	"github.com/Maxapelquist/preparty-social-hub/services/errs"
	"github.com/Maxapelquist/preparty-social-hub/services/profiles"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

type signUpRequest struct {
	Email       string `form:"email" json:"email"`
	Password    string `form:"password" json:"password"`
	DisplayName string `form:"display_name" json:"display_name"`
	Username    string `form:"username" json:"username"`
	PhoneNumber string `form:"phone_number" json:"phone_number"`
}

type loginRequest struct {
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
}

// @Summary Create an account
// @Description Registers a user with its profile. Accepts JSON or form data.
// @Tags auth
// @Accept json
// @Produce json
// @Param body body signUpRequest true "Account data"
// @Success 201 {object} object{user=postgres.User,profile=postgres.Profile}
// @Failure 400 {object} object{error=string}
// @Failure 409 {object} object{error=string}
// @Router /signup [post]
func SignUp(svc *profiles.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req signUpRequest
		if !bind(c, &req) {
			return
		}

		user, profile, err := svc.Register(c.Request.Context(), profiles.RegisterParams(req))
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"user": user, "profile": profile})
	}
}

// @Summary Log in
// @Description Checks the credentials, opens a cookie session and returns a bearer token
// @Tags auth
// @Accept json
// @Produce json
// @Param body body loginRequest true "Credentials"
// @Success 200 {object} object{token=string,user_id=string}
// @Failure 400 {object} object{error=string}
// @Failure 401 {object} object{error=string}
// @Router /login [post]
func Login(svc *profiles.Service, auth config.AuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req loginRequest
		if !bind(c, &req) {
			return
		}
		user, err := svc.Authenticate(c.Request.Context(), req.Email, req.Password)
		if err != nil {
			c.Error(err)
			return
		}

		token, err := middleware.GenerateToken([]byte(auth.JWTSecret), user.ID, user.Email, auth.TokenTTL)
		if err != nil {
			c.Error(err)
			return
		}

		session := sessions.Default(c)
		session.Set(middleware.SessionUserKey, user.ID)
		if err := session.Save(); err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"token": token, "user_id": user.ID})
	}
}

// @Summary Log out
// @Description Clears the cookie session. Bearer tokens stay valid until they expire.
// @Tags auth
// @Produce json
// @Success 200 {object} object{message=string}
// @Failure 400 {object} object{error=string}
// @Router /logout [post]
func Logout(c *gin.Context) {
	session := sessions.Default(c)
	if session.Get(middleware.SessionUserKey) == nil {
		c.Error(errs.Invalid("invalid session token"))
		return
	}

	session.Delete(middleware.SessionUserKey)
	if err := session.Save(); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Successfully logged out"})
}

// @Summary Get my profile
// @Description Returns the caller's full profile, phone number included
// @Tags profiles
// @Produce json
// @Param Authorization header string true "Bearer JWT token"
// @Success 200 {object} postgres.Profile
// @Failure 404 {object} object{error=string}
// @Router /auth/me [get]
// @Security ApiKeyAuth
func Me(svc *profiles.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		profile, err := svc.Get(c.Request.Context(), currentUser(c))
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, profile)
	}
}

// @Summary Complete onboarding
// @Description Creates or completes the caller's profile. Display name and username are required.
// @Tags profiles
// @Accept json
// @Produce json
// @Param Authorization header string true "Bearer JWT token"
// @Param body body profiles.UpdateParams true "Profile fields"
// @Success 200 {object} postgres.Profile
// @Failure 400 {object} object{error=string}
// @Failure 409 {object} object{error=string}
// @Router /auth/onboarding [post]
// @Security ApiKeyAuth
func Onboard(svc *profiles.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req profiles.UpdateParams
		if !bind(c, &req) {
			return
		}
		profile, err := svc.Onboard(c.Request.Context(), currentUser(c), req)
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, profile)
	}
}

// @Summary Update my profile
// @Description Changes only the fields present in the body
// @Tags profiles
// @Accept json
// @Produce json
// @Param Authorization header string true "Bearer JWT token"
// @Param body body profiles.UpdateParams true "Profile fields"
// @Success 200 {object} postgres.Profile
// @Failure 400 {object} object{error=string}
// @Failure 409 {object} object{error=string}
// @Router /auth/me [patch]
// @Security ApiKeyAuth
func UpdateProfile(svc *profiles.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req profiles.UpdateParams
		if !bind(c, &req) {
			return
		}
		profile, err := svc.Update(c.Request.Context(), currentUser(c), req)
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, profile)
	}
}

// @Summary Check a username
// @Description Reports whether a username is valid and free. The caller's own username counts as available.
// @Tags profiles
// @Produce json
// @Param Authorization header string true "Bearer JWT token"
// @Param username query string true "Username"
// @Success 200 {object} object{username=string,available=boolean}
// @Failure 400 {object} object{error=string}
// @Router /auth/username-available [get]
// @Security ApiKeyAuth
func UsernameAvailable(svc *profiles.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		username := c.Query("username")
		ok, err := svc.UsernameAvailable(c.Request.Context(), username, currentUser(c))
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"username": username, "available": ok})
	}
}

// @Summary Search profiles
// @Description Matches display name or university. An empty term lists recent profiles.
// @Tags profiles
// @Produce json
// @Param Authorization header string true "Bearer JWT token"
// @Param q query string false "Search term"
// @Success 200 {array} postgres.Profile
// @Router /auth/profiles [get]
// @Security ApiKeyAuth
func SearchProfiles(svc *profiles.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		found, err := svc.Search(c.Request.Context(), currentUser(c), c.Query("q"))
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, found)
	}
}

// @Summary Get a profile by username
// @Tags profiles
// @Produce json
// @Param Authorization header string true "Bearer JWT token"
// @Param username path string true "Username"
// @Success 200 {object} postgres.Profile
// @Failure 404 {object} object{error=string}
// @Router /auth/profiles/{username} [get]
// @Security ApiKeyAuth
func GetProfile(svc *profiles.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		profile, err := svc.GetByUsername(c.Request.Context(), c.Param("username"))
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, profile)
	}
}
