package command

import (
	"errors"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"
	"time"

	"replenisher/internal/replenish"
	"replenisher/internal/settings"
)

const (
	CmdReplen = "replen"
	CmdReload = "replenreload"
	CmdStatus = "replenstatus"
)

const usage = "Incorrect usage. Correct usage: /replen <ore|chests|pots|lifecrystals|altars|trees|floatingisland|pyramids> <amount> (oretype)\n" +
	"Note: when generating trees, the amount is in batches not specific trees."

const treesCaution = "CAUTION: The number entered is not the number of trees total. It refers to the number of batches of trees to generate."

type Level string

const (
	LevelSuccess Level = "success"
	LevelInfo    Level = "info"
	LevelError   Level = "error"
)

type Message struct {
	Level Level  `json:"level"`
	Text  string `json:"text"`
}

// Run carries the replenish run a command executed, if any.
type Run struct {
	Request replenish.Request
	Result  replenish.Result
	Err     error
	Started time.Time
	Took    time.Duration
}

type Reply struct {
	OK       bool      `json:"ok"`
	Messages []Message `json:"messages"`
	Run      *Run      `json:"-"`
}

func (r *Reply) add(level Level, format string, args ...any) {
	r.Messages = append(r.Messages, Message{Level: level, Text: fmt.Sprintf(format, args...)})
}

// Text joins the reply messages one per line.
func (r Reply) Text() string {
	lines := make([]string, 0, len(r.Messages))
	for _, m := range r.Messages {
		lines = append(lines, m.Text)
	}
	return strings.Join(lines, "\n")
}

type Runner interface {
	Replenish(req replenish.Request) (replenish.Result, error)
}

type SettingsSource interface {
	Current() settings.Settings
	Reload() error
}

// Schedule is optional; without it /replenstatus omits timing.
type Schedule interface {
	LastRun() time.Time
	NextDue() time.Time
}

// Handler executes operator commands. It must be called from the goroutine
// that owns the world.
type Handler struct {
	runner   Runner
	settings SettingsSource
	schedule Schedule
	log      *log.Logger
	now      func() time.Time
}

func NewHandler(r Runner, s SettingsSource, sched Schedule, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Handler{runner: r, settings: s, schedule: sched, log: logger, now: time.Now}
}

// Execute parses and runs one command line such as "/replen ore 5 copper".
func (h *Handler) Execute(line string) Reply {
	fields := strings.Fields(strings.TrimSpace(line))
	if len(fields) == 0 {
		return Reply{Messages: []Message{{Level: LevelError, Text: usage}}}
	}
	name := strings.ToLower(strings.TrimPrefix(fields[0], "/"))
	args := fields[1:]
	switch name {
	case CmdReplen:
		return h.replen(args)
	case CmdReload:
		return h.reload()
	case CmdStatus:
		return h.status()
	}
	var r Reply
	r.add(LevelError, "Unknown command %q. Available: /%s, /%s, /%s.", fields[0], CmdReplen, CmdReload, CmdStatus)
	return r
}

func (h *Handler) replen(args []string) Reply {
	var r Reply
	if len(args) < 2 {
		r.add(LevelError, usage)
		return r
	}
	kind, err := replenish.ParseKind(args[0])
	if err != nil {
		r.add(LevelError, usage)
		r.add(LevelInfo, "%v", err)
		return r
	}
	amount, err := strconv.Atoi(args[1])
	if err != nil || amount < 0 {
		r.add(LevelError, usage)
		return r
	}

	req := replenish.Request{
		Kind:           kind,
		Target:         amount,
		AllowProtected: h.settings.Current().GenerateInProtectedAreas,
	}
	switch kind {
	case replenish.KindOre:
		if len(args) < 3 {
			r.add(LevelError, "Please enter a valid ore type.")
			return r
		}
		req.OreSubtype = args[2]
	case replenish.KindTrees:
		r.add(LevelInfo, treesCaution)
	}

	started := h.now()
	res, err := h.runner.Replenish(req)
	r.Run = &Run{Request: req, Result: res, Err: err, Started: started, Took: h.now().Sub(started)}
	if err != nil {
		if errors.Is(err, replenish.ErrOreNotFound) {
			r.add(LevelError, "Please enter a valid ore type.")
			r.add(LevelInfo, "%v", err)
			return r
		}
		r.add(LevelError, "Replenish failed: %v", err)
		return r
	}

	if res.Sweep != nil {
		r.OK = true
		r.add(LevelSuccess, "Uprooted %d empty out of %d chests.", res.Sweep.Removed, res.Sweep.Seen)
		return r
	}
	if res.Succeeded == amount {
		r.OK = true
		r.add(LevelSuccess, "%s generated successfully.", kind.Title())
		return r
	}
	r.add(LevelError, "Failed to generate all the %s. Generated %d %s.", kind, res.Succeeded, kind)
	return r
}

func (h *Handler) reload() Reply {
	var r Reply
	if err := h.settings.Reload(); err != nil {
		h.log.Printf("reload settings: %v", err)
		r.add(LevelError, "Error reading config. Check log for details.")
		return r
	}
	r.OK = true
	r.add(LevelSuccess, "Replenisher config reloaded.")
	return r
}

func (h *Handler) status() Reply {
	s := h.settings.Current()
	r := Reply{OK: true}
	if !s.AutoRefill {
		r.add(LevelInfo, "Automatic refill is off.")
	} else {
		r.add(LevelInfo, "Automatic refill every %d minutes.", s.AutoRefillIntervalMinutes)
		if h.schedule != nil {
			next := h.schedule.NextDue()
			wait := next.Sub(h.now()).Truncate(time.Second)
			if wait < 0 {
				wait = 0
			}
			r.add(LevelInfo, "Next refill in %s.", wait)
		}
	}
	var enabled []string
	add := func(name string, ks settings.KindSettings) {
		if ks.Enabled {
			enabled = append(enabled, fmt.Sprintf("%s=%d", name, ks.Amount))
		}
	}
	if s.Ores.Enabled {
		enabled = append(enabled, fmt.Sprintf("ore=%d(%s)", s.Ores.Amount, strings.Join(s.Ores.Types, ",")))
	}
	add(string(replenish.KindChests), s.Chests)
	add(string(replenish.KindPots), s.Pots)
	add(string(replenish.KindLifeCrystals), s.LifeCrystals)
	add(string(replenish.KindTrees), s.Trees)
	add(string(replenish.KindAltars), s.Altars)
	add(string(replenish.KindPyramids), s.Pyramids)
	add(string(replenish.KindFloatingIsland), s.FloatingIslands)
	if len(enabled) == 0 {
		r.add(LevelInfo, "No resources scheduled.")
	} else {
		r.add(LevelInfo, "Scheduled: %s.", strings.Join(enabled, " "))
	}
	return r
}
