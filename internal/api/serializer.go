package api

import (
	"context"
	"fmt"

	"github.com/zcapi-go/zcapi/internal/orm/crud"
	"github.com/zcapi-go/zcapi/internal/orm/schema"
)

// DefaultMaxDepth is the nesting ceiling used when none is configured
const DefaultMaxDepth = 64

// Node is one serialized record. Values are strings, nested Nodes, or
// []Node for to-many relations.
type Node map[string]interface{}

// Serializer converts records into Nodes, following relations recursively.
//
// To-one relations are always expanded; an unset one renders as an empty
// Node. A to-many relation is omitted when its origin model is the model of
// the record the traversal came from, which stops A -> B -> A from walking
// back across the edge just taken. Nothing else is tracked, so longer
// cycles in the data recurse until the depth ceiling is hit.
type Serializer struct {
	source   GraphSource
	maxDepth int
}

// NewSerializer creates a serializer reading through source. A maxDepth of
// zero or less selects DefaultMaxDepth.
func NewSerializer(source GraphSource, maxDepth int) *Serializer {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return &Serializer{source: source, maxDepth: maxDepth}
}

// MaxDepth returns the nesting ceiling
func (s *Serializer) MaxDepth() int {
	return s.maxDepth
}

// Serialize converts a record. origin is the record the traversal descended
// from, nil at the top.
func (s *Serializer) Serialize(ctx context.Context, record, origin *crud.Record) (Node, error) {
	return s.serialize(ctx, record, origin, 0)
}

// SerializeAll converts every record of the model in natural order
func (s *Serializer) SerializeAll(ctx context.Context, m *schema.Model) ([]Node, error) {
	records, err := s.source.FetchAll(ctx, m)
	if err != nil {
		return nil, err
	}

	nodes := make([]Node, 0, len(records))
	for _, record := range records {
		node, err := s.serialize(ctx, record, nil, 0)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}

func (s *Serializer) serialize(ctx context.Context, record, origin *crud.Record, depth int) (Node, error) {
	m := record.Model()
	if depth >= s.maxDepth {
		return nil, fmt.Errorf("%w: %s at depth %d", ErrMaxDepthExceeded, m.Name, depth)
	}

	node := make(Node, len(m.Fields)+len(m.Relations))
	for _, field := range m.Fields {
		node[field.Name] = Stringify(field, record.Get(field.Name))
	}

	for _, rel := range m.Relations {
		switch rel.Cardinality() {
		case schema.ToOne:
			related, err := s.source.Related(ctx, record, rel)
			if err != nil {
				return nil, err
			}
			if related == nil {
				node[rel.Name] = Node{}
				continue
			}
			child, err := s.serialize(ctx, related, record, depth+1)
			if err != nil {
				return nil, err
			}
			node[rel.Name] = child

		case schema.ToMany:
			if origin != nil && rel.OriginModel() == origin.Model() {
				continue
			}
			members, err := s.source.RelatedSet(ctx, record, rel)
			if err != nil {
				return nil, err
			}
			children := make([]Node, 0, len(members))
			for _, member := range members {
				child, err := s.serialize(ctx, member, record, depth+1)
				if err != nil {
					return nil, err
				}
				children = append(children, child)
			}
			node[rel.Name] = children
		}
	}

	return node, nil
}
