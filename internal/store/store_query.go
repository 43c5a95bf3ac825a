package store

import (
	"context"

	"github.com/apache/arrow-go/v18/arrow/flight"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ListFlights advertises one flight per collection.
func (s *VectorStore) ListFlights(c *flight.Criteria, stream flight.FlightService_ListFlightsServer) error {
	var infos []*flight.FlightInfo
	s.IterateCollections(func(coll *Collection) {
		infos = append(infos, s.flightInfo(coll))
	})
	for _, info := range infos {
		if err := stream.Send(info); err != nil {
			return err
		}
	}
	return nil
}

// GetFlightInfo reports the row count of the collection named by the path.
func (s *VectorStore) GetFlightInfo(ctx context.Context, desc *flight.FlightDescriptor) (*flight.FlightInfo, error) {
	if len(desc.GetPath()) == 0 {
		return nil, status.Error(codes.InvalidArgument, "empty path")
	}
	coll, err := s.getCollection(desc.Path[0])
	if err != nil {
		return nil, ToGRPCStatus(err)
	}
	return s.flightInfo(coll), nil
}

// GetSchema returns the Arrow schema of the collection named by the path.
func (s *VectorStore) GetSchema(ctx context.Context, desc *flight.FlightDescriptor) (*flight.SchemaResult, error) {
	if len(desc.GetPath()) == 0 {
		return nil, status.Error(codes.InvalidArgument, "empty path")
	}
	coll, err := s.getCollection(desc.Path[0])
	if err != nil {
		return nil, ToGRPCStatus(err)
	}
	return &flight.SchemaResult{Schema: flight.SerializeSchema(coll.arrowSchema, s.mem)}, nil
}

func (s *VectorStore) flightInfo(coll *Collection) *flight.FlightInfo {
	return &flight.FlightInfo{
		Schema: flight.SerializeSchema(coll.arrowSchema, s.mem),
		FlightDescriptor: &flight.FlightDescriptor{
			Type: flight.DescriptorPATH,
			Path: []string{coll.name},
		},
		TotalRecords: coll.NumEntities(),
		TotalBytes:   -1,
	}
}
