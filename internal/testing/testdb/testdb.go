package testdb

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/hitoshi/blossom/internal/database"
)

const (
	postgresImage    = "postgres:16-alpine"
	postgresUser     = "blossom"
	postgresPassword = "blossom"
	postgresDB       = "blossom_test"
)

// TestDB はマイグレーション適用済みのテスト用データベース。
type TestDB struct {
	DB  *sql.DB
	URL string
}

var (
	// パッケージ内のテストで1つのコンテナを共有する
	containerOnce sync.Once
	containerURL  string
	containerErr  error
)

// New はテスト用データベースを返す。全テーブルは空の状態になっている。
// -short指定時やDockerが利用できない場合はテストをスキップする。
func New(t *testing.T) *TestDB {
	t.Helper()

	if testing.Short() {
		t.Skip("testdb: -short 指定のためスキップ")
	}

	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		testcontainers.SkipIfProviderIsNotHealthy(t)
		dbURL = startContainer(t)
	}

	if _, err := database.RunMigrations(dbURL); err != nil {
		t.Fatalf("testdb: マイグレーションに失敗: %v", err)
	}

	db, err := database.Open(dbURL)
	if err != nil {
		t.Fatalf("testdb: 接続に失敗: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	tdb := &TestDB{DB: db, URL: dbURL}
	tdb.Reset(t)
	return tdb
}

func startContainer(t *testing.T) string {
	t.Helper()

	containerOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		req := testcontainers.ContainerRequest{
			Image:        postgresImage,
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     postgresUser,
				"POSTGRES_PASSWORD": postgresPassword,
				"POSTGRES_DB":       postgresDB,
			},
			// 初期化中に一度再起動するため2回目の出力を待つ
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(90 * time.Second),
		}

		container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
			ContainerRequest: req,
			Started:          true,
		})
		if err != nil {
			containerErr = fmt.Errorf("failed to start postgres container: %w", err)
			return
		}

		host, err := container.Host(ctx)
		if err != nil {
			containerErr = fmt.Errorf("failed to get container host: %w", err)
			return
		}
		port, err := container.MappedPort(ctx, "5432")
		if err != nil {
			containerErr = fmt.Errorf("failed to get container port: %w", err)
			return
		}

		containerURL = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
			postgresUser, postgresPassword, host, port.Port(), postgresDB)
	})

	if containerErr != nil {
		t.Fatalf("testdb: %v", containerErr)
	}
	return containerURL
}

// Reset は全テーブルのデータを削除する。スキーマは維持する。
func (tdb *TestDB) Reset(t *testing.T) {
	t.Helper()

	if _, err := tdb.DB.Exec(`TRUNCATE decks, cards, public_teams`); err != nil {
		t.Fatalf("testdb: テーブルの初期化に失敗: %v", err)
	}
}
