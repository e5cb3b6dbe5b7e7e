package socket_io

import (
	"context"
	"log/slog"
	"time"

	"github.com/Maxapelquist/preparty-social-hub/services/socket_io/handlers"
	socketio_types "github.com/Maxapelquist/preparty-social-hub/services/socket_io/types"
	socketio_utils "github.com/Maxapelquist/preparty-social-hub/services/socket_io/utils"

	"github.com/gin-gonic/gin"
	"github.com/zishang520/engine.io/v2/log"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io/v2/socket"
)

type MySocketServer socketio_types.SocketServer

type Options struct {
	Secret  []byte
	Access  handlers.Authorizer
	Counts  countsSource
	Origins []string
	Debug   bool
}

func (sio *MySocketServer) server() *socketio_types.SocketServer {
	return (*socketio_types.SocketServer)(sio)
}

// Start mounts socket.io on /socket.io/ and returns the hub that relays
// changes to it.
func (sio *MySocketServer) Start(router *gin.Engine, opts Options, logger *slog.Logger) *Hub {
	log.DEBUG = opts.Debug
	logger = logger.With(slog.String("component", "socket_io"))

	c := socket.DefaultServerOptions()
	c.SetServeClient(false)
	c.SetPingInterval(25 * time.Second)
	c.SetPingTimeout(20 * time.Second)
	c.SetMaxHttpBufferSize(1000000)
	c.SetConnectTimeout(10 * time.Second)
	c.SetTransports(types.NewSet("polling", "websocket"))
	origin := any("*")
	if len(opts.Origins) > 0 && opts.Origins[0] != "*" {
		origin = opts.Origins
	}
	c.SetCors(&types.Cors{
		Origin:      origin,
		Credentials: true,
	})

	sio.Sio_server = socket.NewServer(nil, nil)
	sio.Sio_server.On("connection", func(clients ...any) {
		client := clients[0].(*socket.Socket)

		userID, err := socketio_utils.VerifyUserConnection(client, opts.Secret)
		if err != nil {
			logger.Debug("rejected socket", slog.Any("error", err))
			client.Disconnect(true)
			return
		}

		sio.server().AddConnection(userID, client)
		client.Join(socketio_types.UserRoom(userID))
		logger.Debug("socket connected", slog.String("user_id", userID), slog.String("socket_id", string(client.Id())))

		// Follow a table filtered by one column: {table, event, filter}
		client.On("subscribe", handlers.HandleSubscribe(client, userID, opts.Access, logger))

		client.On("unsubscribe", handlers.HandleUnsubscribe(client))

		// NOTE: will remove the socket from the connection map
		client.On("disconnecting", handlers.HandleDisconnecting(userID, client, sio.server(), logger))

		if opts.Counts != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if counts, err := opts.Counts.Counts(ctx, userID); err == nil {
				client.Emit("notification_counts", counts)
			}
		}
	})

	// one engine for both verbs, polling sessions span GET and POST
	handler := gin.WrapH(sio.Sio_server.ServeHandler(c))
	router.POST("/socket.io/*f", handler)
	router.GET("/socket.io/*f", handler)

	logger.Info("socket server started")
	return NewHub(sio.server(), opts.Counts, opts.Access, logger)
}

func (sio *MySocketServer) Close() {
	if sio.Sio_server != nil {
		sio.Sio_server.Close(nil)
	}
}
