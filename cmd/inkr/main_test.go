package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/inkrlabs/inkr/internal/llm"
)

type fakeCompleter struct {
	reply string
	err   error
}

func (c *fakeCompleter) Complete(messages []llm.Message) (string, error) {
	if c.err != nil {
		return "", c.err
	}
	return c.reply, nil
}

func setTempHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	return home
}

func TestRunOnboard(t *testing.T) {
	home := setTempHome(t)

	if err := runOnboard(nil, nil); err != nil {
		t.Fatalf("runOnboard: %v", err)
	}

	cfgPath := filepath.Join(home, ".inkr", "config.json")
	if _, err := os.Stat(cfgPath); err != nil {
		t.Errorf("config not created: %v", err)
	}
	dbPath := filepath.Join(home, ".inkr", "data", "inkr.db")
	if _, err := os.Stat(dbPath); err != nil {
		t.Errorf("database not created: %v", err)
	}
}

func TestRunOnboard_AlreadyExists(t *testing.T) {
	setTempHome(t)

	if err := runOnboard(nil, nil); err != nil {
		t.Fatalf("first onboard: %v", err)
	}
	if err := runOnboard(nil, nil); err != nil {
		t.Fatalf("second onboard: %v", err)
	}
}

func TestRunStatus_NoConfig(t *testing.T) {
	setTempHome(t)

	if err := runStatus(nil, nil); err != nil {
		t.Errorf("runStatus should not fail without config: %v", err)
	}
}

func TestRunAsk_SingleMessage(t *testing.T) {
	setTempHome(t)

	messageFlag = "what did I write?"
	defer func() { messageFlag = "" }()

	var out, errOut bytes.Buffer
	err := runAskWithOptions(AskOptions{
		Completer: &fakeCompleter{reply: "you wrote about tests"},
		Stdout:    &out,
		Stderr:    &errOut,
	})
	if err != nil {
		t.Fatalf("runAskWithOptions: %v", err)
	}
	if !strings.Contains(out.String(), "you wrote about tests") {
		t.Errorf("reply not printed, got %q", out.String())
	}
	if !strings.Contains(out.String(), "You could ask:") {
		t.Errorf("follow-ups not printed, got %q", out.String())
	}
}

func TestRunAsk_CompletionFailure(t *testing.T) {
	setTempHome(t)

	messageFlag = "question"
	defer func() { messageFlag = "" }()

	var out, errOut bytes.Buffer
	err := runAskWithOptions(AskOptions{
		Completer: &fakeCompleter{err: errors.New("down")},
		Stdout:    &out,
		Stderr:    &errOut,
	})
	if err == nil {
		t.Fatal("expected error from failed completion")
	}
	if !strings.Contains(errOut.String(), "Error:") {
		t.Errorf("error not surfaced on stderr, got %q", errOut.String())
	}
}

func TestRunAsk_REPLExit(t *testing.T) {
	setTempHome(t)

	messageFlag = ""
	var out bytes.Buffer
	err := runAskWithOptions(AskOptions{
		Completer: &fakeCompleter{reply: "answer"},
		Stdin:     strings.NewReader("hello\nexit\n"),
		Stdout:    &out,
	})
	if err != nil {
		t.Fatalf("runAskWithOptions: %v", err)
	}
	if !strings.Contains(out.String(), "answer") {
		t.Errorf("REPL answer not printed, got %q", out.String())
	}
}

func TestProviderDisplay(t *testing.T) {
	if got := providerDisplay(""); got != "azure (default)" {
		t.Errorf("providerDisplay(\"\") = %q", got)
	}
	if got := providerDisplay("openai"); got != "openai" {
		t.Errorf("providerDisplay(openai) = %q", got)
	}
}
