package gateway

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/inkrlabs/inkr/internal/bus"
	"github.com/inkrlabs/inkr/internal/config"
	"github.com/inkrlabs/inkr/internal/llm"
)

type fakeCompleter struct {
	mu    sync.Mutex
	reply string
	err   error
	calls int
}

func (c *fakeCompleter) Complete(messages []llm.Message) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.err != nil {
		return "", c.err
	}
	return c.reply, nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Storage.DBPath = filepath.Join(t.TempDir(), "test.db")
	cfg.Gateway.Port = 0
	cfg.Gateway.APIPort = 0
	return cfg
}

func TestNewWithOptions(t *testing.T) {
	g, err := NewWithOptions(testConfig(t), Options{Completer: &fakeCompleter{reply: "x"}})
	if err != nil {
		t.Fatalf("NewWithOptions: %v", err)
	}
	defer g.store.Close()

	if g.conv == nil {
		t.Error("conversation manager not wired")
	}
	if g.enhance != nil {
		t.Error("enhance should be off by default")
	}
}

func TestNewWithOptions_EnhanceEnabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Enhance.Enabled = true

	g, err := NewWithOptions(cfg, Options{Completer: &fakeCompleter{}})
	if err != nil {
		t.Fatalf("NewWithOptions: %v", err)
	}
	defer g.store.Close()

	if g.enhance == nil {
		t.Error("enhance service not wired")
	}
}

func TestProcessLoop_AnswersInbound(t *testing.T) {
	g, err := NewWithOptions(testConfig(t), Options{Completer: &fakeCompleter{reply: "the answer"}})
	if err != nil {
		t.Fatal(err)
	}
	defer g.store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	replies := make(chan bus.OutboundMessage, 1)
	g.bus.SubscribeOutbound("test", func(msg bus.OutboundMessage) { replies <- msg })

	go g.bus.DispatchOutbound(ctx)
	go g.processLoop(ctx)

	g.bus.Inbound <- bus.InboundMessage{
		Channel:  "test",
		SenderID: "u1",
		ChatID:   "c1",
		Content:  "what did I write?",
	}

	select {
	case msg := <-replies:
		if msg.Content != "the answer" {
			t.Errorf("reply = %q, want 'the answer'", msg.Content)
		}
		if msg.ChatID != "c1" {
			t.Errorf("chatID = %q, want c1", msg.ChatID)
		}
		if len(msg.FollowUps) == 0 {
			t.Error("expected follow-up suggestions on the reply")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no reply dispatched")
	}
}

func TestProcessLoop_FailureSendsSyntheticReply(t *testing.T) {
	g, err := NewWithOptions(testConfig(t), Options{Completer: &fakeCompleter{err: errors.New("down")}})
	if err != nil {
		t.Fatal(err)
	}
	defer g.store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	replies := make(chan bus.OutboundMessage, 1)
	g.bus.SubscribeOutbound("test", func(msg bus.OutboundMessage) { replies <- msg })

	go g.bus.DispatchOutbound(ctx)
	go g.processLoop(ctx)

	g.bus.Inbound <- bus.InboundMessage{Channel: "test", ChatID: "c1", Content: "hello"}

	select {
	case msg := <-replies:
		if !strings.HasPrefix(msg.Content, "Sorry") {
			t.Errorf("expected apologetic reply, got %q", msg.Content)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no reply dispatched")
	}
}

func TestRun_ShutsDownOnSignal(t *testing.T) {
	sigCh := make(chan os.Signal, 1)
	g, err := NewWithOptions(testConfig(t), Options{
		Completer:  &fakeCompleter{reply: "x"},
		SignalChan: sigCh,
	})
	if err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() { done <- g.Run(context.Background()) }()

	time.Sleep(200 * time.Millisecond)
	sigCh <- os.Interrupt

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("gateway did not shut down")
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate(short) = %q", got)
	}
	if got := truncate("a long message here", 6); got != "a long..." {
		t.Errorf("truncate = %q", got)
	}
}
