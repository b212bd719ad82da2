package settings

import (
	"errors"
	"io"
	"log"
	"os"
	"sync/atomic"
)

// Provider holds the active settings. Readers always see a complete
// document; Reload swaps the whole value.
type Provider struct {
	path string
	log  *log.Logger
	cur  atomic.Pointer[Settings]
}

// Open loads path. A missing document is created from Defaults; a malformed
// one is copied to <path>.bad and replaced with Defaults. Open only fails
// when nothing could be loaded and the defaults could not be persisted
// either, and even then the provider is usable with in-memory defaults.
func Open(path string, logger *log.Logger) (*Provider, error) {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	p := &Provider{path: path, log: logger}
	d := Defaults()
	p.cur.Store(&d)
	err := p.Reload()
	var perr *ParseError
	if err != nil && errors.As(err, &perr) {
		// Already recovered to defaults.
		return p, nil
	}
	return p, err
}

func (p *Provider) Path() string { return p.path }

// Current returns a copy of the active settings.
func (p *Provider) Current() Settings {
	s := *p.cur.Load()
	s.Ores.Types = append([]string(nil), s.Ores.Types...)
	return s
}

// Reload re-reads the document. On a ParseError the provider falls back to
// Defaults, persists them and returns the ParseError so callers can report
// it.
func (p *Provider) Reload() error {
	s, err := Load(p.path)
	if err == nil {
		p.cur.Store(&s)
		return nil
	}

	var perr *ParseError
	switch {
	case errors.Is(err, os.ErrNotExist):
		p.log.Printf("settings %s not found; creating defaults", p.path)
		d := Defaults()
		p.cur.Store(&d)
		return p.persist(d)
	case errors.As(err, &perr):
		p.log.Printf("settings %s malformed: %v; falling back to defaults", p.path, perr.Err)
		p.backup()
		d := Defaults()
		p.cur.Store(&d)
		if serr := p.persist(d); serr != nil {
			p.log.Printf("persist default settings: %v", serr)
		}
		return err
	default:
		p.log.Printf("read settings %s: %v", p.path, err)
		return err
	}
}

// Replace validates s, persists it and makes it current.
func (p *Provider) Replace(s Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	if err := Save(p.path, s); err != nil {
		return err
	}
	p.cur.Store(&s)
	return nil
}

func (p *Provider) persist(s Settings) error {
	if err := Save(p.path, s); err != nil {
		p.log.Printf("write settings %s: %v", p.path, err)
		return err
	}
	return nil
}

func (p *Provider) backup() {
	b, err := os.ReadFile(p.path)
	if err != nil {
		return
	}
	if err := os.WriteFile(p.path+".bad", b, 0o644); err != nil {
		p.log.Printf("backup malformed settings: %v", err)
	}
}
