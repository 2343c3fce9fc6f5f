package testserver

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/require"
	"github.com/tracewell/tracewell/internal/consumer"
	"github.com/tracewell/tracewell/internal/domain/event"
	"github.com/tracewell/tracewell/internal/domain/trace"
	"github.com/tracewell/tracewell/internal/ingest"
	"github.com/tracewell/tracewell/internal/mcp"
	"github.com/tracewell/tracewell/internal/queue"
	"github.com/tracewell/tracewell/internal/sqlite"
)

// TestServer wires the whole pipeline over one in-memory database: ingest
// handler, per-platform consumer workers, and an MCP client session connected
// to the query server over in-memory transports.
type TestServer struct {
	DB      *sqlite.DB
	Queue   *queue.Client
	Traces  *sqlite.TraceRepository
	Letters *sqlite.DeadLetterRepository
	Ingest  *ingest.Server
	Session *sdkmcp.ClientSession
}

func New(t *testing.T) *TestServer {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := sqlite.New(dsn)
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations())

	streamRepo := sqlite.NewStreamRepository(db)
	traceRepo := sqlite.NewTraceRepository(db)
	letterRepo := sqlite.NewDeadLetterRepository(db)

	client := queue.NewClient(streamRepo, nil)
	writer := trace.NewWriter(traceRepo, nil)
	traceSvc := trace.NewService(traceRepo, nil)

	workerCtx, stopWorkers := context.WithCancel(context.Background())
	cfg := consumer.DefaultConfig()
	cfg.BlockTimeout = 50 * time.Millisecond
	for _, platform := range event.KnownPlatforms {
		w := consumer.NewWorker(platform, "", client, writer, letterRepo, cfg, nil)
		go func() { _ = w.Run(workerCtx) }()
	}

	server := mcp.NewServer(mcp.Config{
		Traces:      traceSvc,
		DeadLetters: letterRepo,
	})

	serverTransport, clientTransport := sdkmcp.NewInMemoryTransports()
	serverSession, err := server.Connect(context.Background(), serverTransport, nil)
	require.NoError(t, err)

	mcpClient := sdkmcp.NewClient(&sdkmcp.Implementation{
		Name:    "test-client",
		Version: "1.0.0",
	}, nil)
	clientSession, err := mcpClient.Connect(context.Background(), clientTransport, nil)
	require.NoError(t, err)

	ts := &TestServer{
		DB:      db,
		Queue:   client,
		Traces:  traceRepo,
		Letters: letterRepo,
		Ingest:  ingest.NewServer(client, nil),
		Session: clientSession,
	}

	t.Cleanup(func() {
		clientSession.Close()
		serverSession.Close()
		stopWorkers()
		_ = db.Close()
	})

	return ts
}

// WaitForRecords polls until the session holds at least want records.
func (ts *TestServer) WaitForRecords(t *testing.T, sessionID string, want int) []trace.Record {
	t.Helper()

	var records []trace.Record
	require.Eventually(t, func() bool {
		var err error
		records, err = ts.Traces.ListBySession(context.Background(), sessionID)
		return err == nil && len(records) >= want
	}, 5*time.Second, 25*time.Millisecond, "expected %d records in session %s", want, sessionID)
	return records
}
