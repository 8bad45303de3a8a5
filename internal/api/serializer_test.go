package api

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zcapi-go/zcapi/internal/orm/crud"
	"github.com/zcapi-go/zcapi/internal/orm/schema"
	"github.com/zcapi-go/zcapi/internal/testing/fixtures"
)

func keys(n Node) []string {
	out := make([]string, 0, len(n))
	for k := range n {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func TestSerializer_ManyToManyThroughJoinModel(t *testing.T) {
	s := newStack(t, fixtures.Registry(t))
	movies := fixtures.SeedMovies(t, s.reg, s.store)

	node, err := s.serializer.Serialize(context.Background(), movies.Tom, nil)
	require.NoError(t, err)

	assert.Equal(t, Node{
		"id":   "1",
		"name": "Tom Hanks",
		"movies": []Node{
			{"id": "1", "title": "Big"},
			{"id": "2", "title": "The Da Vinci Code"},
		},
	}, node)
}

func TestSerializer_SerializeAll(t *testing.T) {
	s := newStack(t, fixtures.Registry(t))
	fixtures.SeedMovies(t, s.reg, s.store)
	movie := fixtures.Model(t, s.reg, "testapp", "movie")

	nodes, err := s.serializer.SerializeAll(context.Background(), movie)
	require.NoError(t, err)

	assert.Equal(t, []Node{
		{"id": "1", "title": "Big", "actors": []Node{
			{"id": "1", "name": "Tom Hanks"},
		}},
		{"id": "2", "title": "The Da Vinci Code", "actors": []Node{
			{"id": "1", "name": "Tom Hanks"},
			{"id": "2", "name": "Ian McKellen"},
		}},
		{"id": "3", "title": "Richard III", "actors": []Node{
			{"id": "2", "name": "Ian McKellen"},
		}},
	}, nodes)
}

func TestSerializer_SerializeAllEmpty(t *testing.T) {
	s := newStack(t, fixtures.Registry(t))
	actor := fixtures.Model(t, s.reg, "testapp", "actor")

	nodes, err := s.serializer.SerializeAll(context.Background(), actor)
	require.NoError(t, err)
	assert.NotNil(t, nodes)
	assert.Empty(t, nodes)
}

func TestSerializer_ToOneRelations(t *testing.T) {
	s := newStack(t, fixtures.Registry(t))
	movies := fixtures.SeedMovies(t, s.reg, s.store)

	node, err := s.serializer.Serialize(context.Background(), movies.Roles[0], nil)
	require.NoError(t, err)

	assert.Equal(t, Node{
		"id": "1",
		"actor": Node{
			"id":   "1",
			"name": "Tom Hanks",
			"movies": []Node{
				{"id": "1", "title": "Big"},
				{"id": "2", "title": "The Da Vinci Code"},
			},
		},
		"movie": Node{
			"id":    "1",
			"title": "Big",
			"actors": []Node{
				{"id": "1", "name": "Tom Hanks"},
			},
		},
	}, node)
}

func TestSerializer_ImmediateBackEdgeSuppressed(t *testing.T) {
	s := newStack(t, fixtures.Registry(t))
	author := fixtures.Model(t, s.reg, "library", "author")
	book := fixtures.Model(t, s.reg, "library", "book")
	ctx := context.Background()

	le := fixtures.Create(t, s.store, author, map[string]interface{}{"name": "Ursula K. Le Guin"})
	b := crud.NewRecord(book)
	require.NoError(t, b.Set("title", "The Left Hand of Darkness"))
	require.NoError(t, b.Link("author", le))
	require.NoError(t, s.store.For(book).Save(ctx, b))

	// author -> books -> author stops before listing the books again
	node, err := s.serializer.Serialize(ctx, le, nil)
	require.NoError(t, err)
	books := node["books"].([]Node)
	require.Len(t, books, 1)
	assert.Equal(t, []string{"author", "created", "id", "title", "updated"}, keys(books[0]))
	assert.Equal(t, Node{"id": le.PrimaryKey(), "name": "Ursula K. Le Guin"}, books[0]["author"])

	// book -> author omits the author's books
	node, err = s.serializer.Serialize(ctx, b, nil)
	require.NoError(t, err)
	assert.Equal(t, Node{"id": le.PrimaryKey(), "name": "Ursula K. Le Guin"}, node["author"])
	assert.Equal(t, "The Left Hand of Darkness", node["title"])
}

func TestSerializer_FieldCompleteness(t *testing.T) {
	s := newStack(t, fixtures.Registry(t))
	author := fixtures.Model(t, s.reg, "library", "author")
	book := fixtures.Model(t, s.reg, "library", "book")
	ctx := context.Background()

	orphan := fixtures.Create(t, s.store, book, map[string]interface{}{"title": "Anonymous"})
	node, err := s.serializer.Serialize(ctx, orphan, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"author", "created", "id", "title", "updated"}, keys(node))
	assert.Equal(t, Node{}, node["author"])
	for _, f := range book.Fields {
		assert.IsType(t, "", node[f.Name], f.Name)
	}

	lonely := fixtures.Create(t, s.store, author, map[string]interface{}{"name": "Nobody"})
	node, err = s.serializer.Serialize(ctx, lonely, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"books", "id", "name"}, keys(node))
	assert.Equal(t, []Node{}, node["books"])
}

func TestSerializer_SelfReferenceTerminates(t *testing.T) {
	s := newStack(t, fixtures.CycleRegistry(t))
	node := fixtures.Model(t, s.reg, "cycles", "node")
	ctx := context.Background()

	root := fixtures.Create(t, s.store, node, map[string]interface{}{"label": "root"})
	leaf := crud.NewRecord(node)
	require.NoError(t, leaf.Set("label", "leaf"))
	require.NoError(t, leaf.Link("parent", root))
	require.NoError(t, s.store.For(node).Save(ctx, leaf))

	out, err := s.serializer.Serialize(ctx, root, nil)
	require.NoError(t, err)
	assert.Equal(t, Node{
		"id":     "1",
		"label":  "root",
		"parent": Node{},
		"children": []Node{
			{
				"id":    "2",
				"label": "leaf",
				"parent": Node{
					"id":     "1",
					"label":  "root",
					"parent": Node{},
				},
			},
		},
	}, out)
}

func TestSerializer_LongCycleHitsCeiling(t *testing.T) {
	s := newStack(t, fixtures.CycleRegistry(t))
	a := fixtures.Model(t, s.reg, "cycles", "a")
	b := fixtures.Model(t, s.reg, "cycles", "b")
	c := fixtures.Model(t, s.reg, "cycles", "c")
	ctx := context.Background()

	// a1 -> b1 -> c1 -> a1
	a1 := fixtures.Create(t, s.store, a, map[string]interface{}{"label": "a1"})
	b1 := fixtures.Create(t, s.store, b, map[string]interface{}{"label": "b1"})
	c1 := crud.NewRecord(c)
	require.NoError(t, c1.Set("label", "c1"))
	require.NoError(t, c1.Link("a", a1))
	require.NoError(t, s.store.For(c).Save(ctx, c1))
	require.NoError(t, b1.Link("c", c1))
	require.NoError(t, s.store.For(b).Save(ctx, b1))
	require.NoError(t, a1.Link("b", b1))
	require.NoError(t, s.store.For(a).Save(ctx, a1))

	_, err := s.serializer.Serialize(ctx, a1, nil)
	assert.ErrorIs(t, err, ErrMaxDepthExceeded)

	// the same shape without the closing edge terminates
	a2 := fixtures.Create(t, s.store, a, map[string]interface{}{"label": "a2"})
	c2 := crud.NewRecord(c)
	require.NoError(t, c2.Set("label", "c2"))
	require.NoError(t, s.store.For(c).Save(ctx, c2))
	b2 := crud.NewRecord(b)
	require.NoError(t, b2.Set("label", "b2"))
	require.NoError(t, b2.Link("c", c2))
	require.NoError(t, s.store.For(b).Save(ctx, b2))
	require.NoError(t, a2.Link("b", b2))
	require.NoError(t, s.store.For(a).Save(ctx, a2))

	out, err := s.serializer.Serialize(ctx, a2, nil)
	require.NoError(t, err)
	assert.Equal(t, Node{
		"id":    "2",
		"label": "a2",
		"b": Node{
			"id":    "2",
			"label": "b2",
			"c": Node{
				"id":    "2",
				"label": "c2",
				"a":     Node{},
			},
		},
	}, out)
}

// loopSource serves a graph held in memory: every record's to-one relations
// point at next[record], to-many relations at many[record]
type loopSource struct {
	next  map[*crud.Record]*crud.Record
	many  map[*crud.Record][]*crud.Record
	all   []*crud.Record
	err   error
	calls int
}

func (l *loopSource) FetchAll(context.Context, *schema.Model) ([]*crud.Record, error) {
	return l.all, l.err
}

func (l *loopSource) Related(_ context.Context, record *crud.Record, _ *schema.Relation) (*crud.Record, error) {
	l.calls++
	return l.next[record], l.err
}

func (l *loopSource) RelatedSet(_ context.Context, record *crud.Record, _ *schema.Relation) ([]*crud.Record, error) {
	l.calls++
	return l.many[record], l.err
}

func cycleModels(t *testing.T) (a, b, c *schema.Model) {
	t.Helper()
	reg := fixtures.CycleRegistry(t)
	return fixtures.Model(t, reg, "cycles", "a"),
		fixtures.Model(t, reg, "cycles", "b"),
		fixtures.Model(t, reg, "cycles", "c")
}

func TestSerializer_CeilingWithInMemoryCycle(t *testing.T) {
	a, b, c := cycleModels(t)
	ra, rb, rc := crud.NewRecord(a), crud.NewRecord(b), crud.NewRecord(c)
	src := &loopSource{next: map[*crud.Record]*crud.Record{ra: rb, rb: rc, rc: ra}}

	_, err := NewSerializer(src, 10).Serialize(context.Background(), ra, nil)
	assert.ErrorIs(t, err, ErrMaxDepthExceeded)
	assert.Equal(t, 10, src.calls)
}

func TestSerializer_CeilingDoesNotChangeFiniteOutput(t *testing.T) {
	a, b, c := cycleModels(t)
	ra, rb, rc := crud.NewRecord(a), crud.NewRecord(b), crud.NewRecord(c)
	require.NoError(t, ra.Set("label", "x"))
	src := &loopSource{next: map[*crud.Record]*crud.Record{ra: rb, rb: rc}}

	want := Node{"id": "", "label": "x", "b": Node{"id": "", "label": "", "c": Node{"id": "", "label": "", "a": Node{}}}}

	// three levels fit exactly under a ceiling of three
	got, err := NewSerializer(src, 3).Serialize(context.Background(), ra, nil)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	got, err = NewSerializer(src, 0).Serialize(context.Background(), ra, nil)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = NewSerializer(src, 2).Serialize(context.Background(), ra, nil)
	assert.ErrorIs(t, err, ErrMaxDepthExceeded)
}

func TestSerializer_SourceErrorsPropagate(t *testing.T) {
	a, _, _ := cycleModels(t)
	boom := errors.New("boom")
	src := &loopSource{err: boom}
	ser := NewSerializer(src, 0)

	_, err := ser.Serialize(context.Background(), crud.NewRecord(a), nil)
	assert.ErrorIs(t, err, boom)

	_, err = ser.SerializeAll(context.Background(), a)
	assert.ErrorIs(t, err, boom)
}

func TestNewSerializer_DefaultDepth(t *testing.T) {
	assert.Equal(t, DefaultMaxDepth, NewSerializer(nil, 0).MaxDepth())
	assert.Equal(t, DefaultMaxDepth, NewSerializer(nil, -1).MaxDepth())
	assert.Equal(t, 5, NewSerializer(nil, 5).MaxDepth())
}
