package handlers

import (
	"log/slog"

	socketio_types "github.com/Maxapelquist/preparty-social-hub/services/socket_io/types"

	"github.com/zishang520/socket.io/v2/socket"
)

// HandleDisconnecting drops the socket from the connection map. socket.io
// removes it from its rooms by itself.
func HandleDisconnecting(userID string, client *socket.Socket, sio *socketio_types.SocketServer,
	log *slog.Logger) func(args ...any) {
	return func(args ...any) {
		sio.RemoveConnection(userID, client.Id())
		log.Debug("socket disconnected",
			slog.String("user_id", userID),
			slog.String("socket_id", string(client.Id())),
			slog.Any("reason", first(args)))
	}
}

func first(args []any) any {
	if len(args) == 0 {
		return nil
	}
	return args[0]
}
