package integration

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	"summit-trivia-service/internal/app"
	"summit-trivia-service/internal/domain"
	pgstore "summit-trivia-service/internal/infra/postgres"
	"summit-trivia-service/internal/infra/postgres/migrations"
	infraredis "summit-trivia-service/internal/infra/redis"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
)

func TestGameFlowEndToEnd(t *testing.T) {
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

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}

	questions := infraredis.NewQuestionCache(redisClient, pgstore.NewQuestionStore(pool), 5*time.Minute)
	sessions := infraredis.NewSessionStore(redisClient, 5*time.Minute)
	clock := clockwork.NewFakeClock()
	service := app.NewGameService(sessions, questions, clock)

	creds, err := service.CreateSession(ctx)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	sessionID := creds.Session.ID
	hostKey := creds.Session.HostID

	idx := 1
	question, err := service.AddQuestion(ctx, sessionID, hostKey, domain.Question{
		Text:               "What is 2 + 2?",
		Options:            []domain.Option{{Text: "3"}, {Text: "4"}, {Text: "5"}},
		CorrectOptionIndex: &idx,
		TimeLimit:          30,
	})
	if err != nil {
		t.Fatalf("add question: %v", err)
	}

	alice, err := service.JoinByCode(creds.Session.JoinCode, "Alice")
	if err != nil {
		t.Fatalf("join alice: %v", err)
	}
	bob, err := service.Join(sessionID, "Bob")
	if err != nil {
		t.Fatalf("join bob: %v", err)
	}

	if err := service.StartGame(ctx, sessionID, hostKey); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := service.NextQuestion(ctx, sessionID, hostKey); err != nil {
		t.Fatalf("next: %v", err)
	}
	if err := service.ShowAnswers(sessionID, hostKey); err != nil {
		t.Fatalf("show answers: %v", err)
	}

	if _, err := service.SubmitAnswer(ctx, question.ID, alice.ID, 1); err != nil {
		t.Fatalf("submit alice: %v", err)
	}
	clock.Advance(time.Second)
	if _, err := service.SubmitAnswer(ctx, question.ID, bob.ID, 1); err != nil {
		t.Fatalf("submit bob: %v", err)
	}

	if err := service.RevealAnswer(ctx, sessionID, hostKey); err != nil {
		t.Fatalf("reveal: %v", err)
	}

	lb, err := service.GetLeaderboard(sessionID)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	// One question at the 0.75 default threshold: base 1333, first correct
	// answer takes the full speed bonus and summits.
	if lb[0].Name != "Alice" || lb[0].Elevation != 1600 {
		t.Fatalf("expected Alice at 1600, got %+v", lb[0])
	}
	if lb[1].Name != "Bob" || lb[1].Elevation != 1333 {
		t.Fatalf("expected Bob at 1333, got %+v", lb[1])
	}
	if *lb[0].SummitPlace != 1 || *lb[1].SummitPlace != 2 {
		t.Fatalf("expected summit places 1 and 2, got %+v", lb)
	}

	// Question content survives a fresh store stack over the same Postgres.
	fresh := pgstore.NewQuestionStore(pool)
	persisted, err := fresh.Get(ctx, question.ID)
	if err != nil || persisted.Text != question.Text {
		t.Fatalf("expected question persisted, got %+v %v", persisted, err)
	}
}

func TestQuestionStorePersistence(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, cleanup := startPostgres(t, ctx)
	defer cleanup()
	migrateDB(t, ctx, pgURL)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	store := pgstore.NewQuestionStore(pool)
	idx := 0
	for i, id := range []string{"q1", "q2", "q3"} {
		q := domain.Question{
			ID: id, SessionID: "s1", Text: "Q" + id,
			Options:            []domain.Option{{Text: "a"}, {Text: "b"}},
			CorrectOptionIndex: &idx,
			Order:              i, TimeLimit: 30, Enabled: id != "q2",
		}
		if err := store.Save(ctx, q); err != nil {
			t.Fatalf("save %s: %v", id, err)
		}
	}

	enabled, err := store.ListEnabled(ctx, "s1")
	if err != nil || len(enabled) != 2 {
		t.Fatalf("expected 2 enabled, got %v %v", enabled, err)
	}
	if enabled[0].ID != "q1" || enabled[1].ID != "q3" {
		t.Fatalf("expected ord order, got %v", enabled)
	}

	q2, err := store.Get(ctx, "q2")
	if err != nil {
		t.Fatalf("get q2: %v", err)
	}
	q2.Enabled = true
	if err := store.Save(ctx, q2); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	all, err := store.ListAll(ctx, "s1")
	if err != nil || len(all) != 3 {
		t.Fatalf("expected 3 questions, got %v %v", all, err)
	}

	if err := store.DeleteQuestion(ctx, "q1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Get(ctx, "q1"); err != domain.ErrQuestionNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := store.DeleteBySession(ctx, "s1"); err != nil {
		t.Fatalf("delete session: %v", err)
	}
	if rest, _ := store.ListAll(ctx, "s1"); len(rest) != 0 {
		t.Fatalf("expected empty, got %v", rest)
	}
}

func migrateDB(t *testing.T, ctx context.Context, dsn string) {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, migrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "trivia", "POSTGRES_PASSWORD": "triviapass", "POSTGRES_DB": "triviadb"},
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
	dsn := fmt.Sprintf("postgres://trivia:triviapass@%s:%s/triviadb?sslmode=disable", host, port.Port())
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
