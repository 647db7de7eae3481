package integration

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"

	"quiz-sync-service/internal/app"
	"quiz-sync-service/internal/infra/postgres"
	pgmigrations "quiz-sync-service/internal/infra/postgres/migrations"
	infraredis "quiz-sync-service/internal/infra/redis"
)

func TestSubmitAnswerEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	migrateDB(t, ctx, pgURL)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()
	archive := postgres.NewAnswerArchive(pool)

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	store := infraredis.NewRoomStore(redisClient, 5*time.Minute)
	service := app.NewRoomService(store, archive, store)

	if _, err := service.Join(ctx, "room-1", "u1", "Alice", "/quizzes/capitals"); err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, err := service.Join(ctx, "room-1", "u2", "Bob", "/quizzes/capitals"); err != nil {
		t.Fatalf("join: %v", err)
	}

	if err := service.SubmitAnswer(ctx, "room-1", "u2", "f3", "rome"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := service.SubmitAnswer(ctx, "room-1", "u1", "f1", "oslo"); err != nil {
		t.Fatalf("submit: %v", err)
	}

	archived, err := archive.RoomAnswers(ctx, "room-1")
	if err != nil {
		t.Fatalf("list archived: %v", err)
	}
	if len(archived) != 2 {
		t.Fatalf("expected 2 archived answers, got %d", len(archived))
	}
	if archived[0].PlayerID != "u2" || archived[0].Value != "rome" || archived[1].FieldID != "f1" {
		t.Fatalf("archive order not preserved: %+v", archived)
	}

	// The roster hash mirrors the connected members.
	roster, err := redisClient.HGetAll(ctx, "room:room-1:players").Result()
	if err != nil {
		t.Fatalf("roster: %v", err)
	}
	if roster["u1"] != "Alice" || roster["u2"] != "Bob" {
		t.Fatalf("unexpected roster %v", roster)
	}

	service.Disconnect("room-1", "u1")
	service.Disconnect("room-1", "u2")
	exists, err := redisClient.Exists(ctx, "room:room-1").Result()
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if exists != 0 {
		t.Fatalf("liveness key survived room deletion")
	}

	// The archive outlives the room.
	archived, err = archive.RoomAnswers(ctx, "room-1")
	if err != nil {
		t.Fatalf("list archived after delete: %v", err)
	}
	if len(archived) != 2 {
		t.Fatalf("expected archive to survive room deletion, got %d rows", len(archived))
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "quiz", "POSTGRES_PASSWORD": "quizpass", "POSTGRES_DB": "quizdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://quiz:quizpass@%s:%s/quizdb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func migrateDB(t *testing.T, ctx context.Context, dsn string) {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
