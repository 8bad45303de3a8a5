package api

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/zcapi-go/zcapi/internal/orm/crud"
)

// Request is one call against the generic endpoint. ID is empty when the
// call targets the whole collection.
type Request struct {
	Method  string
	App     string
	Model   string
	ID      string
	Payload map[string]string
}

// Response is the outcome of a dispatched request. Body is a Node, a []Node
// or nil; Empty responses carry no body at all.
type Response struct {
	Status int
	Body   interface{}
	Empty  bool
}

// NotFound is the response for unknown models, unknown identifiers and
// unsupported methods
func NotFound() *Response {
	return &Response{Status: http.StatusNotFound, Empty: true}
}

func ok(body interface{}) *Response {
	return &Response{Status: http.StatusOK, Body: body}
}

func okEmpty() *Response {
	return &Response{Status: http.StatusOK, Empty: true}
}

// Dispatcher routes requests to read, write and delete operations on the
// registered models
type Dispatcher struct {
	models     *Models
	serializer *Serializer
	logger     *zap.Logger
}

// NewDispatcher creates a dispatcher
func NewDispatcher(models *Models, serializer *Serializer, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		models:     models,
		serializer: serializer,
		logger:     logger,
	}
}

// Dispatch handles a request. Not-found conditions become a 404 Response;
// every other failure is returned as an error.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (*Response, error) {
	resp, err := d.dispatch(ctx, req)
	if errors.Is(err, ErrNotFound) {
		d.logger.Debug("not found",
			zap.String("method", req.Method),
			zap.String("app", req.App),
			zap.String("model", req.Model),
			zap.String("id", req.ID),
			zap.Error(err),
		)
		return NotFound(), nil
	}
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (d *Dispatcher) dispatch(ctx context.Context, req Request) (*Response, error) {
	model, err := d.models.Resolve(req.App, req.Model)
	if err != nil {
		return nil, err
	}

	var record *crud.Record
	if req.ID != "" {
		record, err = d.models.FetchOne(ctx, model, req.ID)
		if err != nil {
			return nil, err
		}
	}

	switch req.Method {
	case http.MethodGet:
		if record == nil {
			nodes, err := d.serializer.SerializeAll(ctx, model)
			if err != nil {
				return nil, err
			}
			return ok(nodes), nil
		}
		node, err := d.serializer.Serialize(ctx, record, nil)
		if err != nil {
			return nil, err
		}
		return ok(node), nil

	case http.MethodPost:
		if record == nil {
			record = d.models.Create(model)
		}
		bound := Bind(record, req.Payload)
		if err := d.models.Save(ctx, record); err != nil {
			return nil, err
		}
		d.logger.Debug("saved",
			zap.String("model", model.Key()),
			zap.Any("id", record.PrimaryKey()),
			zap.Strings("fields", bound),
		)
		node, err := d.serializer.Serialize(ctx, record, nil)
		if err != nil {
			return nil, err
		}
		return ok(node), nil

	case http.MethodDelete:
		if record != nil {
			if err := d.models.DeleteOne(ctx, record); err != nil {
				return nil, err
			}
			return okEmpty(), nil
		}
		n, err := d.models.DeleteAll(ctx, model)
		if err != nil {
			return nil, err
		}
		d.logger.Debug("deleted", zap.String("model", model.Key()), zap.Int("count", n))
		return okEmpty(), nil

	default:
		return nil, ErrNotFound
	}
}
