package valkey

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/redis/rueidis"
	"github.com/redis/rueidis/mock"
	"go.uber.org/mock/gomock"

	"github.com/kailas-cloud/shopsight/internal/db"
	"github.com/kailas-cloud/shopsight/internal/db/rkv"
	"github.com/kailas-cloud/shopsight/internal/domain/filter"
)

func TestHGetAllMulti_Error(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		DoMulti(gomock.Any(), gomock.Any()).
		Return([]rueidis.RedisResult{mock.ErrorResult(context.DeadlineExceeded)})

	s := newTestStore(c)
	_, err := s.HGetAllMulti(context.Background(), []string{"k1"})
	var dbErr *db.Error
	if !errors.As(err, &dbErr) || dbErr.Op != db.OpHGetAll {
		t.Fatalf("expected HGETALL db.Error, got %v", err)
	}
}

// --- index.go tests ---

func TestCreateIndex_DropsTextFields(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	var got []string
	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			got = cmd
			return cmd[0] == "FT.CREATE"
		})).
		Return(mock.Result(mock.RedisString("OK")))

	s := newTestStore(c)
	idx := db.NewIndex("shopsight:catalog:idx").
		Prefix("shopsight:product:").
		Text("title").
		Tag("category").
		Numeric("price").
		MustBuild()
	if err := s.CreateIndex(context.Background(), idx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	joined := strings.Join(got, " ")
	if strings.Contains(joined, "TEXT") {
		t.Errorf("TEXT field must be dropped: %q", joined)
	}
	if !strings.Contains(joined, "SCHEMA category TAG price NUMERIC") {
		t.Errorf("unexpected schema: %q", joined)
	}
}

func TestCreateIndex_TextOnlyIsNoop(t *testing.T) {
	s := newTestStore(nil) // client not called
	idx := db.NewIndex("idx").Text("title").MustBuild()
	if err := s.CreateIndex(context.Background(), idx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCreateIndex_AlreadyExists(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "FT.CREATE"
		})).
		Return(mock.Result(mock.RedisError("Index idx already exists.")))

	s := newTestStore(c)
	err := s.CreateIndex(context.Background(), db.NewIndex("idx").Tag("type").MustBuild())
	if !errors.Is(err, db.ErrIndexExists) {
		t.Errorf("expected ErrIndexExists, got %v", err)
	}
}

func TestIndexExists_False(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("FT.INFO", "idx")).
		Return(mock.Result(mock.RedisError("Index with name 'idx' not found")))

	s := newTestStore(c)
	exists, err := s.IndexExists(context.Background(), "idx")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if exists {
		t.Error("expected false")
	}
}

func TestSupportsTextSearch_False(t *testing.T) {
	s := &Store{}
	if s.SupportsTextSearch(context.Background()) {
		t.Error("Valkey store must not report text search support")
	}
}

// --- search.go tests ---

func TestSearchBM25_Unsupported(t *testing.T) {
	s := &Store{}
	_, err := s.SearchBM25(context.Background(), &db.TextQuery{IndexName: "idx", Query: "sofa", TopK: 5})
	if !errors.Is(err, db.ErrTextSearchUnsupported) {
		t.Errorf("expected ErrTextSearchUnsupported, got %v", err)
	}
}

func expectScan(c *mock.Client, keys ...string) {
	elems := make([]rueidis.RedisMessage, len(keys))
	for i, k := range keys {
		elems[i] = mock.RedisString(k)
	}
	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "SCAN"
		})).
		Return(mock.Result(mock.RedisArray(mock.RedisInt64(0), mock.RedisArray(elems...))))
}

func hash(kv ...string) rueidis.RedisResult {
	m := make(map[string]rueidis.RedisMessage, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		m[kv[i]] = mock.RedisString(kv[i+1])
	}
	return mock.Result(mock.RedisMap(m))
}

func TestSearchFilter_ScanFallback(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	expectScan(c, "p:3", "p:1", "p:2")
	c.EXPECT().
		DoMulti(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return([]rueidis.RedisResult{
			hash("title", "Sofá Velvet", "type", "Sofá"),
			hash("title", "Poltrona Costela", "type", "Poltrona"),
			hash("title", "Sofá Retrátil", "type", "sofá"),
		})

	kind, _ := filter.NewMatch("type", "Sofá")
	expr, _ := filter.NewExpression([]filter.Condition{kind}, nil, nil)

	s := newTestStore(c)
	result, err := s.SearchFilter(context.Background(), &db.FilterQuery{
		KeyPrefix:    "p:",
		Filters:      expr,
		Limit:        10,
		ReturnFields: []string{"title"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Total != 2 {
		t.Fatalf("expected total 2, got %d", result.Total)
	}
	// sorted key order: p:1, p:2, p:3
	if result.Entries[0].Key != "p:1" || result.Entries[1].Key != "p:3" {
		t.Errorf("unexpected keys: %s, %s", result.Entries[0].Key, result.Entries[1].Key)
	}
	if _, ok := result.Entries[0].Fields["type"]; ok {
		t.Error("projection should drop non-returned fields")
	}
}

func TestSearchFilter_OffsetPastEnd(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	expectScan(c, "p:1")
	c.EXPECT().
		DoMulti(gomock.Any(), gomock.Any()).
		Return([]rueidis.RedisResult{hash("type", "Mesa")})

	s := newTestStore(c)
	result, err := s.SearchFilter(context.Background(), &db.FilterQuery{KeyPrefix: "p:", Offset: 5, Limit: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Total != 1 || len(result.Entries) != 0 {
		t.Errorf("unexpected result: %+v", result)
	}
}

func TestSearchFilter_Validation(t *testing.T) {
	s := &Store{}
	if _, err := s.SearchFilter(context.Background(), &db.FilterQuery{Limit: 10}); err == nil {
		t.Error("expected error for missing key prefix")
	}
	if _, err := s.SearchFilter(context.Background(), &db.FilterQuery{KeyPrefix: "p:"}); err == nil {
		t.Error("expected error for zero limit")
	}
}

func TestSearchCount_EmptyFilterCountsKeys(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	expectScan(c, "p:1", "p:2", "p:3")

	s := newTestStore(c)
	count, err := s.SearchCount(context.Background(), &db.FilterQuery{KeyPrefix: "p:"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 3 {
		t.Errorf("expected 3, got %d", count)
	}
}

func newTestStore(c rueidis.Client) *Store {
	return &Store{Conn: rkv.Conn{Client: c}}
}
