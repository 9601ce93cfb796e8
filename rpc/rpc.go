package rpc

import (
	"context"
	"net"
	"net/rpc"

	"github.com/shahank42/hyper-typer/game"
	"github.com/shahank42/hyper-typer/logger"
	"github.com/shahank42/hyper-typer/models"
	"github.com/shahank42/hyper-typer/persistence"
)

// Server manages the RPC listener.
type Server struct {
	listener net.Listener
	address  string
}

// NewServer creates a new RPC server. Services are registered by the caller
// before Start.
func NewServer(addr string) (*Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{
		listener: listener,
		address:  addr,
	}, nil
}

// Start begins listening for RPC requests.
func (s *Server) Start() {
	logger.Log.Infof("RPC server listening on %s", s.address)
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if _, ok := err.(*net.OpError); ok {
				logger.Log.Info("RPC server listener closed.")
				return
			}
			logger.Log.Errorf("RPC server accept error: %v", err)
			continue
		}
		go rpc.ServeConn(conn)
	}
}

// Stop closes the RPC listener.
func (s *Server) Stop() {
	if s.listener != nil {
		logger.Log.Info("Stopping RPC server.")
		s.listener.Close()
	}
}

// AdminService exposes read-only operational queries over net/rpc: exported
// methods, exported argument structs, pointer reply, error return.
type AdminService struct {
	service *game.Service
}

// NewAdminService creates the admin RPC facade over the game service.
func NewAdminService(svc *game.Service) *AdminService {
	return &AdminService{service: svc}
}

type RoomSnapshotArgs struct {
	RoomID string
}

type RoomSnapshotReply struct {
	// Snapshot is nil when the room no longer exists.
	Snapshot *models.Snapshot
}

// RoomSnapshot returns the consistent room/game/players view for a room.
func (a *AdminService) RoomSnapshot(args *RoomSnapshotArgs, reply *RoomSnapshotReply) error {
	snapshot, err := a.service.Get(context.Background(), args.RoomID)
	if err != nil {
		return err
	}
	reply.Snapshot = snapshot
	return nil
}

type CountsArgs struct{}

type CountsReply struct {
	Rooms   int64
	Games   int64
	Players int64
}

// Counts reports live entity totals across the store.
func (a *AdminService) Counts(args *CountsArgs, reply *CountsReply) error {
	return a.service.Store().Transaction(context.Background(), func(tx persistence.Tx) error {
		var err error
		if reply.Rooms, err = tx.CountRooms(); err != nil {
			return err
		}
		if reply.Games, err = tx.CountGames(); err != nil {
			return err
		}
		reply.Players, err = tx.CountPlayers()
		return err
	})
}
