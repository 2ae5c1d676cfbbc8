package runner_test

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/callgate"
	"github.com/aretw0/callgate/pkg/adapters/memory"
	"github.com/aretw0/callgate/pkg/runner"
	"github.com/aretw0/callgate/pkg/story"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		line    string
		want    runner.Command
		wantErr bool
	}{
		{"", runner.Command{Name: "continue"}, false},
		{"C", runner.Command{Name: "continue", Args: []string{}}, false},
		{"m ring", runner.Command{Name: "media", Args: []string{"ring"}}, false},
		{"h", runner.Command{Name: "hangup", Args: []string{}}, false},
		{"open gallery", runner.Command{Name: "open", Args: []string{"gallery"}}, false},
		{"close", runner.Command{Name: "close", Args: []string{}}, false},
		{"set save.chapter 2", runner.Command{Name: "set", Args: []string{"save.chapter", "2"}}, false},
		{"set save.chapter", runner.Command{}, true},
		{"trigger", runner.Command{}, true},
		{"dance", runner.Command{}, true},
		{"exit", runner.Command{Name: "quit", Args: []string{}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, err := runner.ParseCommand(tt.line)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConsole_Serve(t *testing.T) {
	store := memory.NewStore()
	windows := memory.NewWindows()
	eng, _ := fastEngine(t, store, callgate.WithWindowOwners(windows))
	r := runner.New(eng, runner.WithTick(time.Millisecond))
	start(t, r)

	script := strings.Join([]string{
		"open gallery",
		"set save.chapter 2",
		"browse https://companyname.example",
		"dance",
		"continue",
		"status",
		"quit",
		"open never-reached",
	}, "\n") + "\n"

	var out bytes.Buffer
	console := runner.NewConsole(strings.NewReader(script), &out, windows)
	require.NoError(t, console.Serve(context.Background(), r))

	text := out.String()
	assert.Contains(t, text, "open windows: [gallery]")
	assert.Contains(t, text, `! unknown command "dance"`)
	assert.Contains(t, text, "! no active call", "continue without a call reports the engine error")
	assert.Contains(t, text, `stage 1 "first contact": idle`)
	assert.Equal(t, []string{"gallery"}, windows.List())

	v, err := store.Get(context.Background(), "save.chapter")
	require.NoError(t, err)
	assert.Equal(t, "2", v.String())
	v, err = store.Get(context.Background(), story.KeyBrowserLastURL)
	require.NoError(t, err)
	assert.Equal(t, "https://companyname.example", v.String())
}

func TestConsole_TriggerAndEOF(t *testing.T) {
	eng, nodes := fastEngine(t, memory.NewStore())
	r := runner.New(eng, runner.WithTick(time.Millisecond))
	start(t, r)

	var out bytes.Buffer
	console := runner.NewConsole(strings.NewReader("trigger 1\ntrigger x"), &out, nil)
	require.NoError(t, console.Serve(context.Background(), r), "end of input is a clean exit")
	assert.Contains(t, out.String(), `invalid stage "x"`)

	waitNode(t, nodes, "ring")
}
