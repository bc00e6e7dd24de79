package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"

	"github.com/bft-labs/seedstream/pkg/seedstream"
)

type commandKind int

const (
	cmdNone commandKind = iota
	cmdPrompt
	cmdSeed
	cmdStatus
	cmdUnknown
)

type command struct {
	kind commandKind
	arg  string
}

// parseCommand interprets one stdin line. Lines starting with "/" are
// commands; anything else is a new prompt.
func parseCommand(line string) command {
	line = strings.TrimSpace(line)
	if line == "" {
		return command{kind: cmdNone}
	}
	if !strings.HasPrefix(line, "/") {
		return command{kind: cmdPrompt, arg: line}
	}
	name, arg, _ := strings.Cut(line[1:], " ")
	arg = strings.TrimSpace(arg)
	switch name {
	case "seed":
		return command{kind: cmdSeed, arg: arg}
	case "prompt":
		return command{kind: cmdPrompt, arg: arg}
	case "status":
		return command{kind: cmdStatus}
	default:
		return command{kind: cmdUnknown, arg: name}
	}
}

// editor is the part of the client the command reader drives.
type editor interface {
	SetPrompt(prompt string) error
	SetSeed(seed string) error
	Report() seedstream.StatusReport
}

// readCommands applies stdin lines to the client until r is exhausted or
// ctx ends.
func readCommands(ctx context.Context, r io.Reader, w io.Writer, c editor, log zerolog.Logger) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		cmd := parseCommand(scanner.Text())
		var err error
		switch cmd.kind {
		case cmdNone:
		case cmdPrompt:
			err = c.SetPrompt(cmd.arg)
		case cmdSeed:
			err = c.SetSeed(cmd.arg)
		case cmdStatus:
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			err = enc.Encode(c.Report())
		case cmdUnknown:
			fmt.Fprintf(w, "unknown command /%s (try /seed N, /prompt TEXT, /status)\n", cmd.arg)
		}
		if err != nil {
			log.Warn().Err(err).Msg("command rejected")
		}
	}
	if err := scanner.Err(); err != nil {
		log.Warn().Err(err).Msg("stdin closed")
	}
}

// logHandler logs client events.
type logHandler struct {
	seedstream.BaseEventHandler
	log zerolog.Logger
}

func (h *logHandler) OnStateChange(e seedstream.StateChangeEvent) {
	h.log.Debug().Str("from", e.Previous.String()).Str("to", e.Current.String()).Str("reason", e.Reason).Msg("state")
}

func (h *logHandler) OnConnection(e seedstream.ConnectionEvent) {
	h.log.Info().Str("key", e.Key).Str("state", e.State).Msg("connection")
}

func (h *logHandler) OnFrameSent(e seedstream.FrameSentEvent) {
	h.log.Debug().Int64("seed", e.Seed).Str("steps", e.Steps).Msg("frame sent")
}

func (h *logHandler) OnDisplay(e seedstream.DisplayEvent) {
	d := e.Display
	h.log.Info().
		Uint64("seq", d.Sequence).
		Int64("seed", d.Seed).
		Str("image", string(d.Image)).
		Dur("inference", d.Inference).
		Msg("display")
}

func (h *logHandler) OnError(e seedstream.ErrorEvent) {
	h.log.Warn().Err(e.Error).Msg("client error")
}
