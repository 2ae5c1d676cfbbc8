package runner

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/aretw0/callgate"
	"github.com/aretw0/callgate/pkg/adapters/memory"
	"github.com/aretw0/callgate/pkg/domain"
	"github.com/aretw0/callgate/pkg/story"
)

// ConsoleHelp lists the console commands.
const ConsoleHelp = `commands:
  <enter> | c            continue past the current beat
  m [node]               report the current clip as finished
  h                      hang up
  open <window>          open a simulated app window
  close [window]         close one window, or all of them
  browse <url>           navigate the simulated browser
  set <key> <value>      write a flag
  trigger <stage>        force a stage to ring
  status                 show stage and call status
  reset                  drop the active call and rearm the stages
  quit`

// Command is one parsed console line.
type Command struct {
	Name string
	Args []string
}

// ParseCommand splits a sanitized console line. An empty line is "continue".
func ParseCommand(line string) (Command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Command{Name: "continue"}, nil
	}

	name := strings.ToLower(fields[0])
	args := fields[1:]
	switch name {
	case "c", "continue":
		name = "continue"
	case "m", "media":
		name = "media"
	case "h", "hangup":
		name = "hangup"
	case "q", "quit", "exit":
		name = "quit"
	case "?", "help":
		name = "help"
	}

	need := map[string]int{"open": 1, "browse": 1, "set": 2, "trigger": 1}
	if n, ok := need[name]; ok && len(args) < n {
		return Command{}, fmt.Errorf("%s needs %d argument(s)", name, n)
	}

	switch name {
	case "continue", "media", "hangup", "quit", "help", "open", "close", "browse", "set",
		"trigger", "status", "reset":
		return Command{Name: name, Args: args}, nil
	}
	return Command{}, fmt.Errorf("unknown command %q (try help)", fields[0])
}

// Console reads commands from a line-oriented input and applies them through a Runner.
type Console struct {
	in      io.Reader
	out     io.Writer
	windows *memory.Windows
}

// NewConsole creates a console. windows receives open/close commands; it may be nil.
func NewConsole(in io.Reader, out io.Writer, windows *memory.Windows) *Console {
	return &Console{in: in, out: out, windows: windows}
}

type lineResult struct {
	text string
	err  error
}

// Serve reads commands until the input ends, quit is typed or ctx is done.
func (c *Console) Serve(ctx context.Context, r *Runner) error {
	lines := make(chan lineResult)
	go c.pump(ctx, lines)

	fmt.Fprintln(c.out, "type help for commands")
	for {
		var res lineResult
		var ok bool
		select {
		case <-ctx.Done():
			return nil
		case <-r.Stopped():
			return nil
		case res, ok = <-lines:
		}
		if !ok {
			return nil
		}
		if res.err != nil {
			return fmt.Errorf("console input: %w", res.err)
		}

		line, err := SanitizeLine(res.text)
		if err != nil {
			fmt.Fprintf(c.out, "! %v\n", err)
			continue
		}
		cmd, err := ParseCommand(line)
		if err != nil {
			fmt.Fprintf(c.out, "! %v\n", err)
			continue
		}
		if cmd.Name == "quit" {
			return nil
		}
		if cmd.Name == "help" {
			fmt.Fprintln(c.out, ConsoleHelp)
			continue
		}

		err = r.Do(ctx, func(ctx context.Context, e *callgate.Engine) error {
			return c.apply(ctx, e, cmd)
		})
		if errors.Is(err, ErrStopped) {
			return nil
		}
		if err != nil {
			fmt.Fprintf(c.out, "! %v\n", err)
		}
	}
}

func (c *Console) pump(ctx context.Context, lines chan<- lineResult) {
	defer close(lines)
	reader := bufio.NewReader(c.in)
	for {
		text, err := reader.ReadString('\n')
		if text != "" || (err != nil && err != io.EOF) {
			res := lineResult{text: text}
			if err != io.EOF {
				res.err = err
			}
			select {
			case lines <- res:
			case <-ctx.Done():
				return
			}
		}
		if err != nil {
			return
		}
	}
}

// apply runs on the engine goroutine.
func (c *Console) apply(ctx context.Context, e *callgate.Engine, cmd Command) error {
	switch cmd.Name {
	case "continue":
		return e.Continue(ctx)

	case "media":
		node := ""
		if len(cmd.Args) > 0 {
			node = cmd.Args[0]
		} else if run := e.Status(ctx).Run; run != nil {
			node = run.NodeID
		}
		return e.MediaFinished(ctx, node)

	case "hangup":
		return e.HangUp(ctx)

	case "open", "close":
		if c.windows == nil {
			return fmt.Errorf("no simulated windows")
		}
		switch {
		case cmd.Name == "open":
			c.windows.Open(cmd.Args[0])
		case len(cmd.Args) == 0:
			c.windows.CloseAll()
		default:
			c.windows.Close(cmd.Args[0])
		}
		fmt.Fprintf(c.out, "open windows: %v\n", c.windows.List())
		return nil

	case "browse":
		url := cmd.Args[0]
		if err := e.Store().Set(ctx, story.KeyBrowserLastURL, domain.String(url)); err != nil {
			return err
		}
		e.NotifyPageChanged(ctx, url)
		return nil

	case "set":
		v := domain.ParseValue(strings.Join(cmd.Args[1:], " "))
		if err := e.Store().Set(ctx, cmd.Args[0], v); err != nil {
			return err
		}
		e.Recheck(ctx)
		return nil

	case "trigger":
		n, err := strconv.Atoi(cmd.Args[0])
		if err != nil {
			return fmt.Errorf("invalid stage %q", cmd.Args[0])
		}
		return e.ManualTrigger(ctx, n)

	case "status":
		WriteStatus(c.out, e.Status(ctx))
		return nil

	case "reset":
		e.Reset(ctx)
		return nil
	}
	return fmt.Errorf("unhandled command %q", cmd.Name)
}

// WriteStatus prints a human summary of an engine status.
func WriteStatus(w io.Writer, st callgate.Status) {
	fmt.Fprintf(w, "t=%s flags_loaded=%t\n", st.Now, st.FlagsLoaded)
	for _, s := range st.Stages {
		fmt.Fprintf(w, "stage %d %q: %s", s.Stage.Ordinal, s.Stage.Name, s.State)
		if s.Forced {
			fmt.Fprint(w, " (forced)")
		}
		if s.PendingMark {
			fmt.Fprint(w, " (completion not saved yet)")
		}
		fmt.Fprintln(w)
		for _, g := range s.Groups {
			mark := " "
			if g.Satisfied {
				mark = "x"
			}
			fmt.Fprintf(w, "  [%s] %s\n", mark, g.Name)
		}
	}
	if run := st.Run; run != nil {
		fmt.Fprintf(w, "call: stage %d graph %s node %s (%s)", run.Stage, run.GraphID, run.NodeID, run.Kind)
		switch {
		case run.AwaitingContinue:
			fmt.Fprint(w, " waiting for continue")
		case run.AwaitingMedia:
			fmt.Fprint(w, " playing")
		}
		fmt.Fprintln(w)
	}
}
