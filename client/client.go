package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/apache/arrow-go/v18/arrow/flight"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const maxRedirects = 3

// DefaultDialOptions are used when no dial options are supplied.
func DefaultDialOptions() []grpc.DialOption {
	return []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(
			grpc.MaxCallRecvMsgSize(1024*1024*100), // 100MB
			grpc.MaxCallSendMsgSize(1024*1024*100),
		),
	}
}

// SmartClient is a wrapper around flight.Client that follows FORWARD_REQUIRED
// redirects to the node owning a collection.
type SmartClient struct {
	mu          sync.RWMutex
	primaryAddr string
	clients     map[string]flight.Client // addr -> client
	dialOpts    []grpc.DialOption
}

// NewSmartClient creates a new smart client connected to the initial address
func NewSmartClient(addr string, dialOpts ...grpc.DialOption) (*SmartClient, error) {
	if len(dialOpts) == 0 {
		dialOpts = DefaultDialOptions()
	}
	sc := &SmartClient{
		primaryAddr: addr,
		clients:     make(map[string]flight.Client),
		dialOpts:    dialOpts,
	}

	if _, err := sc.getClient(addr); err != nil {
		return nil, err
	}

	return sc, nil
}

// Addr returns the address the client was created for.
func (c *SmartClient) Addr() string {
	return c.primaryAddr
}

// Close closes all active connections
func (c *SmartClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var firstErr error
	for addr, client := range c.clients {
		if err := client.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(c.clients, addr)
	}
	return firstErr
}

// getClient returns an existing client or creates a new one for the given address
func (c *SmartClient) getClient(addr string) (flight.Client, error) {
	c.mu.RLock()
	client, ok := c.clients[addr]
	c.mu.RUnlock()
	if ok {
		return client, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Double check
	if client, ok := c.clients[addr]; ok {
		return client, nil
	}

	newClient, err := flight.NewClientWithMiddleware(addr, nil, nil, c.dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", addr, err)
	}

	c.clients[addr] = newClient
	return newClient, nil
}

// withRedirects runs call against the primary node and follows up to
// maxRedirects forward errors.
func (c *SmartClient) withRedirects(call func(flight.Client) error) error {
	currentAddr := c.primaryAddr
	for attempts := 0; attempts < maxRedirects; attempts++ {
		client, err := c.getClient(currentAddr)
		if err != nil {
			return err
		}

		err = call(client)
		if err == nil {
			return nil
		}

		forwardErr := IsForwardRequired(err)
		if forwardErr == nil {
			return err
		}
		// Check for empty addr to prevent loops if server is buggy
		if forwardErr.TargetAddr == "" {
			return fmt.Errorf("redirect with empty address")
		}
		currentAddr = forwardErr.TargetAddr
	}

	return fmt.Errorf("max redirects exceeded")
}

// DoPut opens a Flight DoPut stream. Redirects are only honoured while the
// stream is being opened.
func (c *SmartClient) DoPut(ctx context.Context, desc *flight.FlightDescriptor) (flight.FlightService_DoPutClient, error) {
	var stream flight.FlightService_DoPutClient
	err := c.withRedirects(func(client flight.Client) error {
		var err error
		stream, err = client.DoPut(ctx)
		return err
	})
	return stream, err
}

// GetFlightInfo gets flight info with redirect handling
func (c *SmartClient) GetFlightInfo(ctx context.Context, desc *flight.FlightDescriptor) (*flight.FlightInfo, error) {
	var info *flight.FlightInfo
	err := c.withRedirects(func(client flight.Client) error {
		var err error
		info, err = client.GetFlightInfo(ctx, desc)
		return err
	})
	return info, err
}

// DoAction runs a Flight action and collects every result body. The server
// reports failures on the result stream, so the stream is drained inside the
// redirect loop.
func (c *SmartClient) DoAction(ctx context.Context, action *flight.Action) ([][]byte, error) {
	var bodies [][]byte
	err := c.withRedirects(func(client flight.Client) error {
		bodies = bodies[:0]
		stream, err := client.DoAction(ctx, action)
		if err != nil {
			return err
		}
		for {
			res, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return err
			}
			bodies = append(bodies, res.Body)
		}
	})
	if err != nil {
		return nil, err
	}
	return bodies, nil
}

// ListFlights returns the descriptors advertised by the primary node.
func (c *SmartClient) ListFlights(ctx context.Context, criteria []byte) ([]*flight.FlightInfo, error) {
	var infos []*flight.FlightInfo
	err := c.withRedirects(func(client flight.Client) error {
		infos = infos[:0]
		stream, err := client.ListFlights(ctx, &flight.Criteria{Expression: criteria})
		if err != nil {
			return err
		}
		for {
			info, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return err
			}
			infos = append(infos, info)
		}
	})
	if err != nil {
		return nil, err
	}
	return infos, nil
}
