package store

import (
	"encoding/json"
	"errors"
	"io"

	"github.com/apache/arrow-go/v18/arrow/flight"

	"github.com/23skdu/longbow-smoke/client"
	"github.com/23skdu/longbow-smoke/internal/metrics"
)

// DoPut appends the streamed records to the collection named by the flight
// descriptor path and answers with the number of rows inserted.
func (s *VectorStore) DoPut(stream flight.FlightService_DoPutServer) error {
	r, err := flight.NewRecordReader(stream)
	if err != nil {
		s.logger.Error().Err(err).Msg("DoPut failed to create reader")
		return ToGRPCStatus(NewInvalidArgumentError("stream", err.Error()))
	}
	defer r.Release()

	// The descriptor arrives with the schema message.
	fd := r.LatestFlightDescriptor()
	if fd == nil || len(fd.Path) == 0 {
		return ToGRPCStatus(NewInvalidArgumentError("descriptor", "missing flight descriptor path"))
	}
	name := fd.Path[0]

	coll, err := s.getCollection(name)
	if err != nil {
		return ToGRPCStatus(err)
	}

	var inserted int64
	for r.Next() {
		n, err := coll.insert(r.Record())
		if err != nil {
			s.logger.Warn().Err(err).Str("collection", name).Msg("DoPut rejected batch")
			return ToGRPCStatus(err)
		}
		inserted += n
	}
	if err := r.Err(); err != nil && !errors.Is(err, io.EOF) {
		return ToGRPCStatus(NewInternalError("read put stream", err))
	}

	metrics.StoreRowsInsertedTotal.Add(float64(inserted))
	s.logger.Info().Str("collection", name).Int64("rows", inserted).Msg("DoPut completed")

	meta, err := json.Marshal(client.InsertResult{Inserted: inserted})
	if err != nil {
		return ToGRPCStatus(NewInternalError("encode put result", err))
	}
	return stream.Send(&flight.PutResult{AppMetadata: meta})
}
