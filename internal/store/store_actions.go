package store

import (
	"encoding/json"
	"time"

	"github.com/apache/arrow-go/v18/arrow/flight"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/23skdu/longbow-smoke/client"
	"github.com/23skdu/longbow-smoke/internal/metrics"
)

// DoAction handles the collection management and search actions.
func (s *VectorStore) DoAction(action *flight.Action, stream flight.FlightService_DoActionServer) error {
	start := time.Now()
	body, err := s.handleAction(action)
	metrics.StoreActionsTotal.WithLabelValues(action.Type, metrics.Status(err)).Inc()
	if err != nil {
		s.logger.Warn().
			Err(err).
			Str("action", action.Type).
			Dur("elapsed", time.Since(start)).
			Msg("Action failed")
		return ToGRPCStatus(err)
	}

	s.logger.Debug().
		Str("action", action.Type).
		Dur("elapsed", time.Since(start)).
		Msg("Action handled")
	if body == nil {
		return nil
	}
	return stream.Send(&flight.Result{Body: body})
}

func (s *VectorStore) handleAction(action *flight.Action) ([]byte, error) {
	switch action.Type {
	case client.ActionCreateCollection:
		var req client.CreateCollectionRequest
		if err := decodeBody(action.Body, &req); err != nil {
			return nil, err
		}
		coll, created, err := s.createCollection(req.Name, &req.Schema)
		if err != nil {
			return nil, err
		}
		if created {
			s.logger.Info().Str("collection", req.Name).Int("fields", len(req.Schema.Fields)).Msg("Collection created")
		}
		return json.Marshal(coll.info())

	case client.ActionDescribeCollection:
		var req client.CollectionRequest
		if err := decodeBody(action.Body, &req); err != nil {
			return nil, err
		}
		coll, err := s.getCollection(req.Name)
		if err != nil {
			return nil, err
		}
		return json.Marshal(coll.info())

	case client.ActionLoadCollection:
		var req client.CollectionRequest
		if err := decodeBody(action.Body, &req); err != nil {
			return nil, err
		}
		coll, err := s.getCollection(req.Name)
		if err != nil {
			return nil, err
		}
		coll.load()
		s.logger.Info().Str("collection", req.Name).Int64("rows", coll.NumEntities()).Msg("Collection loaded")
		return nil, nil

	case client.ActionCreateIndex:
		var req client.CreateIndexRequest
		if err := decodeBody(action.Body, &req); err != nil {
			return nil, err
		}
		coll, err := s.getCollection(req.Collection)
		if err != nil {
			return nil, err
		}
		start := time.Now()
		idx, err := coll.createIndex(req.Field, req.Index)
		if err != nil {
			return nil, err
		}
		metrics.StoreIndexBuildsTotal.WithLabelValues(string(req.Index.IndexType)).Inc()
		s.logger.Info().
			Str("collection", req.Collection).
			Str("field", req.Field).
			Str("index_type", string(req.Index.IndexType)).
			Str("metric_type", string(req.Index.MetricType)).
			Int64("rows", idx.builtRows).
			Dur("elapsed", time.Since(start)).
			Msg("Index built")
		return json.Marshal(idx.describe())

	case client.ActionDropCollection:
		var req client.CollectionRequest
		if err := decodeBody(action.Body, &req); err != nil {
			return nil, err
		}
		if err := s.dropCollection(req.Name); err != nil {
			return nil, err
		}
		s.logger.Info().Str("collection", req.Name).Msg("Collection dropped")
		return nil, nil

	case client.ActionSearch:
		var req client.SearchRequest
		if err := decodeBody(action.Body, &req); err != nil {
			return nil, err
		}
		coll, err := s.getCollection(req.Collection)
		if err != nil {
			return nil, err
		}
		results, err := coll.search(req.Field, req.Vectors, req.TopK)
		if err != nil {
			return nil, err
		}
		return json.Marshal(client.SearchResponse{Results: results})

	default:
		return nil, status.Errorf(codes.Unimplemented, "unknown action type %q", action.Type)
	}
}

func decodeBody(body []byte, v any) error {
	if err := json.Unmarshal(body, v); err != nil {
		return NewInvalidArgumentError("body", "invalid json body: "+err.Error())
	}
	return nil
}
