package queue

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/matryer/is"

	"discburn-agent/internal/caps"
	"discburn-agent/internal/drive"
	"discburn-agent/internal/plugin"
	"discburn-agent/internal/plugins"
	"discburn-agent/internal/track"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(t.TempDir(), testLogger())
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func testRegistry(t *testing.T) *caps.Registry {
	t.Helper()
	registry := caps.NewRegistry(testLogger())
	for _, d := range plugins.Builtin() {
		d.Active = plugin.ActiveEnabled
		if err := registry.Register(d); err != nil {
			t.Fatal(err)
		}
	}
	registry.Freeze()
	return registry
}

func testDrives() map[string]*drive.Drive {
	return map[string]*drive.Drive{
		"dr0": {
			Name:   "dr0",
			Device: "/dev/sr0",
			WritableMedia: track.MediaCD | track.MediaDVD | track.MediaSequential |
				track.MediaWritable | track.MediaRewritable | track.MediaBlank |
				track.MediaAppendable | track.MediaHasData | track.MediaHasAudio,
			Medium:         track.MediaCD | track.MediaWritable | track.MediaBlank,
			CanTAO:         true,
			CanSAO:         true,
			CanBurnFree:    true,
			CanDummyForSAO: true,
			CanDummyForTAO: true,
		},
	}
}

func dataBurnCommand(cmdType CommandType) Command {
	return Command{
		Type:      cmdType,
		InputKind: "data",
		InputFS:   track.FSISO9660,
		DestDrive: "dr0",
	}
}

func TestEnqueueAndGet(t *testing.T) {
	is := is.New(t)
	m := testManager(t)

	id, err := m.Enqueue(dataBurnCommand(CmdBurn), nil)
	is.NoErr(err)

	job, err := m.Get(id)
	is.NoErr(err)
	is.Equal(job.Status, StatusQueued)
	is.Equal(job.Command.Type, CmdBurn)
	is.True(len(job.Events) > 0)
}

func TestDependencyValidation(t *testing.T) {
	is := is.New(t)
	m := testManager(t)

	_, err := m.Enqueue(dataBurnCommand(CmdBurn), []string{"missing"})
	is.True(err != nil)

	blankID, err := m.Enqueue(Command{Type: CmdBlank, DestDrive: "dr0"}, nil)
	is.NoErr(err)

	burnID, err := m.Enqueue(dataBurnCommand(CmdBurn), []string{blankID})
	is.NoErr(err)

	queued, err := m.GetQueued()
	is.NoErr(err)
	is.Equal(len(queued), 2)
	// topological order puts the blank before its dependent burn
	is.Equal(queued[0].ID, blankID)
	is.Equal(queued[1].ID, burnID)
}

func TestCancelCascades(t *testing.T) {
	is := is.New(t)
	m := testManager(t)

	blankID, err := m.Enqueue(Command{Type: CmdBlank, DestDrive: "dr0"}, nil)
	is.NoErr(err)
	burnID, err := m.Enqueue(dataBurnCommand(CmdBurn), []string{blankID})
	is.NoErr(err)

	is.NoErr(m.Cancel(blankID))

	blank, err := m.Get(blankID)
	is.NoErr(err)
	is.Equal(blank.Status, StatusCancelled)

	dependent, err := m.Get(burnID)
	is.NoErr(err)
	is.Equal(dependent.Status, StatusCancelled)
}

func TestExecutorRunsCheckJob(t *testing.T) {
	is := is.New(t)

	executor := NewExecutor(testRegistry(t), testDrives(), t.TempDir(), testLogger())
	executor.TickInterval = time.Millisecond

	var events []Event
	result, err := executor.Execute(context.Background(), "job-1", dataBurnCommand(CmdCheck), func(e Event) {
		events = append(events, e)
	})
	is.NoErr(err)
	is.True(result != nil)
	is.True(len(events) > 0)
}

func TestExecutorRunsBurnJob(t *testing.T) {
	is := is.New(t)

	executor := NewExecutor(testRegistry(t), testDrives(), t.TempDir(), testLogger())
	executor.TickInterval = time.Millisecond

	result, err := executor.Execute(context.Background(), "job-2", dataBurnCommand(CmdBurn), func(Event) {})
	is.NoErr(err)

	payload, ok := result.(map[string]any)
	is.True(ok)
	stages, ok := payload["stages"].([]string)
	is.True(ok)
	is.True(len(stages) >= 2)
}

func TestExecutorRejectsUnsupportedSession(t *testing.T) {
	is := is.New(t)

	executor := NewExecutor(testRegistry(t), testDrives(), t.TempDir(), testLogger())

	// nothing turns a data tree into a cdrdao toc image
	cmd := Command{
		Type:       CmdImage,
		InputKind:  "data",
		InputFS:    track.FSISO9660,
		DestFile:   "/tmp/out.toc",
		DestFormat: track.ImageFormatCdrdao,
	}
	_, err := executor.Execute(context.Background(), "job-3", cmd, func(Event) {})
	is.True(err != nil)
}

func TestWorkerProcessesJob(t *testing.T) {
	is := is.New(t)

	m := testManager(t)
	executor := NewExecutor(testRegistry(t), testDrives(), t.TempDir(), testLogger())
	executor.TickInterval = time.Millisecond

	id, err := m.Enqueue(dataBurnCommand(CmdCheck), nil)
	is.NoErr(err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	worker := NewWorker(m, executor, testLogger())
	worker.Start(ctx)
	defer worker.Stop()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := m.Get(id)
		is.NoErr(err)
		if job.Status == StatusCompleted {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("job did not complete in time")
}
