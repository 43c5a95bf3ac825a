package store

import (
	"fmt"
	"net"

	"github.com/apache/arrow-go/v18/arrow/flight"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
)

// Server serves a VectorStore as a Flight service over gRPC.
type Server struct {
	store *VectorStore
	grpc  *grpc.Server
	lis   net.Listener
}

// Listen binds addr and registers the store. Use "127.0.0.1:0" for an
// ephemeral port; Addr reports the bound address.
func Listen(addr string, store *VectorStore, opts ...grpc.ServerOption) (*Server, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}

	grpcServer := grpc.NewServer(opts...)
	// Register the VectorStore directly as the Flight Service
	flight.RegisterFlightServiceServer(grpcServer, store)

	return &Server{store: store, grpc: grpcServer, lis: lis}, nil
}

// Addr returns the address the server listens on.
func (s *Server) Addr() string {
	return s.lis.Addr().String()
}

// Serve accepts connections until Stop is called.
func (s *Server) Serve() error {
	s.store.logger.Info().Str("address", s.Addr()).Msg("Flight server listening")
	if err := s.grpc.Serve(s.lis); err != nil && err != grpc.ErrServerStopped {
		return err
	}
	return nil
}

// Stop stops the gRPC server and drops every collection.
func (s *Server) Stop() {
	s.grpc.Stop()
	_ = s.store.Close()
}

// StartEmbedded creates a store, binds addr and serves it in the background.
// The caller stops it with Stop.
func StartEmbedded(addr string, mem memory.Allocator, logger zerolog.Logger, opts ...grpc.ServerOption) (*Server, error) {
	srv, err := Listen(addr, NewVectorStore(mem, logger), opts...)
	if err != nil {
		return nil, err
	}
	go func() {
		if err := srv.Serve(); err != nil {
			logger.Error().Err(err).Msg("Embedded Flight server stopped")
		}
	}()
	return srv, nil
}
