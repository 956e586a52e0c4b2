package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"postquery/config"
	"postquery/domain/event"
	"postquery/infrastructure/persistence/rdb"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	eventbus "github.com/jilio/ebu"
	"gorm.io/gorm"
)

func testConfig() *config.Config {
	return &config.Config{
		App:    config.AppConfig{Name: "post-query", Version: "test", Env: "test"},
		Server: config.ServerConfig{Port: "0", ShutdownTimeout: 5 * time.Second},
		Database: config.DatabaseConfig{
			Type:  "mock",
			Retry: config.RetryConfig{MaxAttempts: 1},
		},
		Consumer: config.ConsumerConfig{
			Source:        "eventlog",
			CommitTimeout: time.Second,
			EventLog: config.EventLogConfig{
				SubscriptionID: "read-model",
				PollInterval:   5 * time.Millisecond,
				BatchSize:      10,
			},
			Retry: config.RetryConfig{
				Enabled:       true,
				MaxAttempts:   3,
				InitialDelay:  time.Millisecond,
				MaxDelay:      5 * time.Millisecond,
				BackoffFactor: 2,
			},
		},
	}
}

func get(t *testing.T, app *App, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	app.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestBuildWithInMemoryStore(t *testing.T) {
	gin.SetMode(gin.TestMode)
	app, err := NewBuilder(testConfig()).Build(context.Background())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	t.Cleanup(func() { _ = app.Shutdown(context.Background()) })

	if got := len(app.Dispatcher().Kinds()); got != 5 {
		t.Errorf("registered queries = %d, want 5", got)
	}

	testCases := []struct {
		path string
		want int
	}{
		{"/", http.StatusOK},
		{"/api/v1/health", http.StatusOK},
		{"/api/v1/postLookup", http.StatusNoContent},
		{"/api/v1/postLookup/byId/not-a-uuid", http.StatusBadRequest},
		{"/api/v1/postLookup/withLikes/3", http.StatusNoContent},
	}
	for _, tc := range testCases {
		t.Run(tc.path, func(t *testing.T) {
			if w := get(t, app, tc.path); w.Code != tc.want {
				t.Errorf("GET %s = %d, want %d", tc.path, w.Code, tc.want)
			}
		})
	}
}

func TestBuildRejectsEventLogOnInMemoryStore(t *testing.T) {
	cfg := testConfig()
	cfg.Consumer.Enabled = true
	if _, err := NewBuilder(cfg).Build(context.Background()); err == nil {
		t.Fatal("Build() error = nil, want eventlog without database to fail")
	}
}

// Events appended to the sqlite event log become visible through the lookup API.
func TestBuildProjectsEventLogIntoSQLite(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := testConfig()
	cfg.Database.Type = rdb.DriverSQLite
	cfg.Database.Path = ":memory:"
	cfg.Consumer.Enabled = true

	ctx := context.Background()
	app, err := NewBuilder(cfg).Build(ctx)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	t.Cleanup(func() { _ = app.Shutdown(context.Background()) })

	postID := uuid.NewString()
	log := rdb.NewEventLogStore(app.store.db)
	for version, e := range []event.Event{
		&event.PostCreated{Author: "alice", Title: "hello", DatePosted: time.Now().UTC()},
		&event.PostLiked{},
		&event.CommentAdded{CommentID: uuid.NewString(), Comment: "first", Username: "bob"},
	} {
		data, err := event.Encode(postID, int64(version+1), e)
		if err != nil {
			t.Fatalf("Encode() error = %v", err)
		}
		if err := log.Save(ctx, &eventbus.StoredEvent{Type: string(e.EventType()), Data: json.RawMessage(data)}); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
	}

	if err := app.consumer.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for app.consumer.Stats().Applied < 3 {
		if time.Now().After(deadline) {
			t.Fatalf("consumer applied %d events, want 3", app.consumer.Stats().Applied)
		}
		time.Sleep(5 * time.Millisecond)
	}

	w := get(t, app, "/api/v1/postLookup/byId/"+postID)
	if w.Code != http.StatusOK {
		t.Fatalf("GET byId = %d, body %s", w.Code, w.Body.String())
	}
	var body struct {
		Data struct {
			Posts []struct {
				Likes    int `json:"likes"`
				Comments []struct {
					Username string `json:"username"`
				} `json:"comments"`
			} `json:"posts"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	posts := body.Data.Posts
	if len(posts) != 1 || posts[0].Likes != 1 || len(posts[0].Comments) != 1 {
		t.Fatalf("projected post = %+v", posts)
	}
}

func TestOpenStoreClosesDatabaseWhenMigrationFails(t *testing.T) {
	var opened *gorm.DB
	restore := migrate
	migrate = func(db *gorm.DB) error {
		opened = db
		return errors.New("migration refused")
	}
	t.Cleanup(func() { migrate = restore })

	cfg := testConfig()
	cfg.Database.Type = rdb.DriverSQLite
	cfg.Database.Path = ":memory:"

	if _, err := openStore(context.Background(), cfg); err == nil {
		t.Fatal("openStore() error = nil, want migration failure")
	}
	if opened == nil {
		t.Fatal("migration never ran")
	}
	sqlDB, err := opened.DB()
	if err != nil {
		t.Fatalf("DB() error = %v", err)
	}
	if err := sqlDB.Ping(); err == nil {
		t.Error("database still open after failed migration")
	}
}
