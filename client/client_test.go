package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow/flight"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// MockFlightServer answers with a forward error while a redirect target is set
type MockFlightServer struct {
	flight.BaseFlightServer
	addr       string
	redirectTo atomic.Pointer[string]
	callCount  atomic.Int32
}

func (s *MockFlightServer) redirect(addr string) {
	s.redirectTo.Store(&addr)
}

func (s *MockFlightServer) forward() error {
	target := s.redirectTo.Load()
	if target == nil {
		return nil
	}
	return fmt.Errorf("FORWARD_REQUIRED: target=node2 addr=%s", *target)
}

func (s *MockFlightServer) GetFlightInfo(ctx context.Context, desc *flight.FlightDescriptor) (*flight.FlightInfo, error) {
	s.callCount.Add(1)
	if err := s.forward(); err != nil {
		return nil, err
	}
	return &flight.FlightInfo{FlightDescriptor: desc, TotalRecords: 42}, nil
}

func (s *MockFlightServer) DoAction(action *flight.Action, stream flight.FlightService_DoActionServer) error {
	s.callCount.Add(1)
	if err := s.forward(); err != nil {
		return err
	}
	return stream.Send(&flight.Result{Body: []byte(s.addr)})
}

func (s *MockFlightServer) ListFlights(c *flight.Criteria, stream flight.FlightService_ListFlightsServer) error {
	s.callCount.Add(1)
	for _, name := range []string{"b", "a"} {
		info := &flight.FlightInfo{FlightDescriptor: &flight.FlightDescriptor{Type: flight.DescriptorPATH, Path: []string{name}}}
		if err := stream.Send(info); err != nil {
			return err
		}
	}
	return nil
}

func startMockServer(t *testing.T) (*MockFlightServer, *grpc.Server) {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := grpc.NewServer(grpc.Creds(insecure.NewCredentials()))
	mock := &MockFlightServer{addr: lis.Addr().String()}
	flight.RegisterFlightServiceServer(s, mock)

	go func() {
		_ = s.Serve(lis)
	}()
	t.Cleanup(s.Stop)
	return mock, s
}

func TestSmartClient_Redirection(t *testing.T) {
	// Node 1 redirects to node 2
	mock1, _ := startMockServer(t)
	mock2, _ := startMockServer(t)
	mock1.redirect(mock2.addr)

	client, err := NewSmartClient(mock1.addr)
	require.NoError(t, err)
	defer func() { _ = client.Close() }()
	assert.Equal(t, mock1.addr, client.Addr())

	t.Run("GetFlightInfo Redirection", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		info, err := client.GetFlightInfo(ctx, &flight.FlightDescriptor{Type: flight.DescriptorPATH, Path: []string{"c"}})
		require.NoError(t, err)
		assert.Equal(t, int64(42), info.GetTotalRecords())

		assert.Equal(t, int32(1), mock1.callCount.Load(), "Node 1 should be called once (redirect)")
		assert.Equal(t, int32(1), mock2.callCount.Load(), "Node 2 should be called once (success)")
	})

	mock1.callCount.Store(0)
	mock2.callCount.Store(0)

	t.Run("DoAction Redirection", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		bodies, err := client.DoAction(ctx, &flight.Action{Type: ActionDescribeCollection})
		require.NoError(t, err)
		require.Len(t, bodies, 1)
		assert.Equal(t, mock2.addr, string(bodies[0]))

		assert.Equal(t, int32(1), mock1.callCount.Load())
		assert.Equal(t, int32(1), mock2.callCount.Load())
	})
}

func TestSmartClient_MaxRedirects(t *testing.T) {
	// Node 1 points at itself
	mock1, _ := startMockServer(t)
	mock1.redirect(mock1.addr)

	client, err := NewSmartClient(mock1.addr)
	require.NoError(t, err)
	defer func() { _ = client.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err = client.GetFlightInfo(ctx, &flight.FlightDescriptor{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max redirects exceeded")
	assert.Equal(t, int32(maxRedirects), mock1.callCount.Load())
}

func TestSmartClient_EmptyRedirectAddress(t *testing.T) {
	mock1, _ := startMockServer(t)
	mock1.redirect("")

	client, err := NewSmartClient(mock1.addr)
	require.NoError(t, err)
	defer func() { _ = client.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err = client.DoAction(ctx, &flight.Action{Type: ActionLoadCollection})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redirect with empty address")
}

func TestSmartClient_ListFlights(t *testing.T) {
	mock, _ := startMockServer(t)

	client, err := NewSmartClient(mock.addr)
	require.NoError(t, err)
	defer func() { _ = client.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	infos, err := client.ListFlights(ctx, nil)
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, "b", infos[0].GetFlightDescriptor().GetPath()[0])
}

func TestIsForwardRequired(t *testing.T) {
	assert.Nil(t, IsForwardRequired(nil))
	assert.Nil(t, IsForwardRequired(errors.New("boom")))

	fwd := IsForwardRequired(errors.New("rpc error: code = Unknown desc = FORWARD_REQUIRED: target=node2 addr=10.0.0.2:3000"))
	require.NotNil(t, fwd)
	assert.Equal(t, "node2", fwd.TargetNodeID)
	assert.Equal(t, "10.0.0.2:3000", fwd.TargetAddr)

	typed := &ErrForwardRequired{TargetNodeID: "n", TargetAddr: "a:1"}
	assert.Equal(t, typed, IsForwardRequired(fmt.Errorf("wrapped: %w", typed)))
}
