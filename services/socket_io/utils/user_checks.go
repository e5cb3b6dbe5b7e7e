package socketio_utils

import (
	"errors"

	"github.com/Maxapelquist/preparty-social-hub/middleware"

	"github.com/gin-gonic/gin"
	"github.com/zishang520/socket.io/v2/socket"
)

var ErrMissingAuth = errors.New("missing authorization in handshake")

// VerifyUserConnection reads the bearer token from the handshake auth
// payload ({authorization: "Bearer <jwt>"}) and returns the user id.
// On failure the client gets an "error" event.
func VerifyUserConnection(client *socket.Socket, secret []byte) (string, error) {
	return verify(client.Handshake().Auth, secret, func(msg string) {
		client.Emit("error", gin.H{"error": msg})
	})
}

func verify(auth any, secret []byte, reject func(msg string)) (string, error) {
	authData, ok := auth.(map[string]any)
	if !ok {
		reject("Authentication failed: missing auth data")
		return "", ErrMissingAuth
	}

	token, ok := authData["authorization"].(string)
	if !ok || token == "" {
		reject("Authentication failed: missing authorization token")
		return "", ErrMissingAuth
	}

	claims, err := middleware.ParseToken(secret, token)
	if err != nil {
		reject("Authentication failed: invalid JWT. Send it in the 'authorization' field with the 'Bearer ' prefix.")
		return "", err
	}
	return claims.Subject, nil
}
