package main

import (
	"errors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
)

// BuildGRPCDialOptions returns the dial options used to reach the service.
func (c *Config) BuildGRPCDialOptions() []grpc.DialOption {
	return []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:    c.KeepAliveTime,
			Timeout: c.KeepAliveTimeout,
		}),

		// HTTP/2 flow control windows
		grpc.WithInitialWindowSize(c.GRPCInitialWindowSize),
		grpc.WithInitialConnWindowSize(c.GRPCInitialConnWindowSize),

		// Message size limits
		grpc.WithDefaultCallOptions(
			grpc.MaxCallRecvMsgSize(c.GRPCMaxRecvMsgSize),
			grpc.MaxCallSendMsgSize(c.GRPCMaxSendMsgSize),
		),
	}
}

// BuildGRPCServerOptions returns the options of the embedded service.
func (c *Config) BuildGRPCServerOptions() []grpc.ServerOption {
	return []grpc.ServerOption{
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
			MinTime:             c.KeepAliveTime / 2,
			PermitWithoutStream: true,
		}),
		grpc.InitialWindowSize(c.GRPCInitialWindowSize),
		grpc.InitialConnWindowSize(c.GRPCInitialConnWindowSize),
		grpc.MaxRecvMsgSize(c.GRPCMaxRecvMsgSize),
		grpc.MaxSendMsgSize(c.GRPCMaxSendMsgSize),
	}
}

// ValidateGRPCConfig checks if the gRPC configuration is valid.
func (c *Config) ValidateGRPCConfig() error {
	if c.GRPCInitialWindowSize < 0 {
		return errors.New("grpc_initial_window_size must be >= 0")
	}
	if c.GRPCInitialConnWindowSize < 0 {
		return errors.New("grpc_initial_conn_window_size must be >= 0")
	}
	if c.GRPCMaxRecvMsgSize < 0 {
		return errors.New("grpc_max_recv_msg_size must be >= 0")
	}
	if c.GRPCMaxSendMsgSize < 0 {
		return errors.New("grpc_max_send_msg_size must be >= 0")
	}
	return nil
}
