package socketio_types

import (
	"sync"

	"github.com/zishang520/socket.io/v2/socket"
)

// SocketServer wraps the socket.io server and tracks every open socket per
// user id. A user may be connected from several devices at once.
type SocketServer struct {
	Sio_server *socket.Server

	mutex           sync.RWMutex
	userConnections map[string]map[socket.SocketId]*socket.Socket
}

func NewSocketServer() *SocketServer {
	return &SocketServer{
		userConnections: make(map[string]map[socket.SocketId]*socket.Socket),
	}
}

func (s *SocketServer) AddConnection(userID string, client *socket.Socket) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.userConnections == nil {
		s.userConnections = make(map[string]map[socket.SocketId]*socket.Socket)
	}
	conns, ok := s.userConnections[userID]
	if !ok {
		conns = make(map[socket.SocketId]*socket.Socket)
		s.userConnections[userID] = conns
	}
	conns[client.Id()] = client
}

func (s *SocketServer) RemoveConnection(userID string, id socket.SocketId) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	conns := s.userConnections[userID]
	delete(conns, id)
	if len(conns) == 0 {
		delete(s.userConnections, userID)
	}
}

// IsOnline reports whether userID has at least one open socket.
func (s *SocketServer) IsOnline(userID string) bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.userConnections[userID]) > 0
}

// OnlineUsers returns the ids of connected users.
func (s *SocketServer) OnlineUsers() []string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	out := make([]string, 0, len(s.userConnections))
	for id := range s.userConnections {
		out = append(out, id)
	}
	return out
}

// UserSockets returns the open sockets of userID.
func (s *SocketServer) UserSockets(userID string) []*socket.Socket {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	out := make([]*socket.Socket, 0, len(s.userConnections[userID]))
	for _, client := range s.userConnections[userID] {
		out = append(out, client)
	}
	return out
}

// UserRoom is the room every socket of a user joins on connect.
func UserRoom(userID string) socket.Room {
	return socket.Room("user:" + userID)
}
