package cmd

import (
	"bytes"
	"context"
	"errors"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tanpawarit/Chative-Slot-Booking/agent/booking"
	"github.com/tanpawarit/Chative-Slot-Booking/agent/booking/bookingtest"
	contractx "github.com/tanpawarit/Chative-Slot-Booking/agent/contract"
	"github.com/tanpawarit/Chative-Slot-Booking/server"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type echoHandler struct {
	mu    sync.Mutex
	err   error
	calls []string
}

func (e *echoHandler) HandleMessage(ctx context.Context, callerID string, text string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, callerID+":"+text)
	if e.err != nil {
		return "", e.err
	}
	return "echo " + text, nil
}

func (e *echoHandler) setErr(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.err = err
}

func (e *echoHandler) recorded() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.calls...)
}

func TestRunChat(t *testing.T) {
	t.Parallel()

	h := &echoHandler{}
	var out bytes.Buffer
	in := strings.NewReader("hi\n  tomorrow \nexit\nnever sent\n")

	if err := runChat(context.Background(), in, &out, "+1", h); err != nil {
		t.Fatalf("runChat() error = %v", err)
	}
	if len(h.calls) != 2 || h.calls[1] != "+1:tomorrow" {
		t.Fatalf("calls = %v", h.calls)
	}
	for _, want := range []string{"Assistant: echo hi", "Assistant: echo tomorrow", "Goodbye!"} {
		if !strings.Contains(out.String(), want) {
			t.Fatalf("output missing %q:\n%s", want, out.String())
		}
	}
}

func TestRunChatReportsErrorsAndContinues(t *testing.T) {
	t.Parallel()

	h := &echoHandler{err: errors.New("boom")}
	var out bytes.Buffer
	if err := runChat(context.Background(), strings.NewReader("hi\n"), &out, "+1", h); err != nil {
		t.Fatalf("runChat() error = %v", err)
	}
	if !strings.Contains(out.String(), "Error: boom") {
		t.Fatalf("output = %q", out.String())
	}
}

func TestRemoteHandlerTalksToSMSTest(t *testing.T) {
	t.Parallel()

	h := &echoHandler{}
	srv, err := server.New(server.Config{}, h)
	if err != nil {
		t.Fatalf("server.New() error = %v", err)
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	remote := &remoteHandler{url: ts.URL + "/sms-test", client: ts.Client()}
	reply, err := remote.HandleMessage(context.Background(), "+1", "hello")
	if err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}
	if calls := h.recorded(); reply != "echo hello" || calls[0] != "+1:hello" {
		t.Fatalf("reply = %q calls = %v", reply, calls)
	}

	h.setErr(errors.New("down"))
	if _, err := remote.HandleMessage(context.Background(), "+1", "again"); err == nil || !strings.Contains(err.Error(), "500") {
		t.Fatalf("expected 500 error, got %v", err)
	}
}

func TestPrintBookings(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	if err := printBookings(&out, "2025-06-28", nil); err != nil {
		t.Fatalf("printBookings() error = %v", err)
	}
	if out.String() != "No bookings on 2025-06-28.\n" {
		t.Fatalf("output = %q", out.String())
	}

	out.Reset()
	rows := []booking.Booking{{ID: "b1", Name: "Sam", Phone: "+1", Date: "2025-06-28", Slot: "10:30"}}
	if err := printBookings(&out, "2025-06-28", rows); err != nil {
		t.Fatalf("printBookings() error = %v", err)
	}
	if !strings.Contains(out.String(), "SLOT") || !strings.Contains(out.String(), "10:30") || !strings.Contains(out.String(), "Sam") {
		t.Fatalf("output = %q", out.String())
	}
}

func TestAppConfigWindow(t *testing.T) {
	t.Parallel()

	w, err := AppConfig{Timezone: "UTC", BookingWindowDays: 2}.Window()
	if err != nil {
		t.Fatalf("Window() error = %v", err)
	}
	if w.Days != 2 || w.Location != time.UTC {
		t.Fatalf("window = %+v", w)
	}
	if _, err := (AppConfig{Timezone: "Mars/Olympus"}).Window(); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestBuildEngine(t *testing.T) {
	t.Parallel()

	svc, _ := bookingtest.NewService(t)
	window := booking.NewWindow(2, time.UTC)

	engine, err := buildEngine(context.Background(), contractx.EngineTypeFSM, svc, window)
	if err != nil {
		t.Fatalf("buildEngine(fsm) error = %v", err)
	}
	if engine.Name() != "fsm" {
		t.Fatalf("engine = %s", engine.Name())
	}

	if _, err := buildEngine(context.Background(), "rules", svc, window); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestRootCommandWiring(t *testing.T) {
	t.Parallel()

	root := NewRootCommand()
	for _, name := range []string{"serve", "chat", "migrate", "bookings"} {
		if c, _, err := root.Find([]string{name}); err != nil || c.Name() != name {
			t.Fatalf("subcommand %s not registered: %v", name, err)
		}
	}
	if root.PersistentFlags().Lookup("env") == nil {
		t.Fatal("missing --env flag")
	}
}
