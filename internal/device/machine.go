package device

import (
	"fmt"
	"path/filepath"

	"github.com/danmuck/crankctl/internal/platform"
	"github.com/danmuck/crankctl/internal/tools"
	"github.com/rs/zerolog/log"
)

// noticeEvery is the poll count between "still waiting" log lines.
const noticeEvery = 50

// Progress receives byte counts while the bundle is copied.
type Progress interface {
	Add64(n int64) error
	Finish() error
}

// ProgressFactory builds a Progress for a copy of total bytes.
type ProgressFactory func(total int64, title string) Progress

// Observer is called after every state transition.
type Observer func(from State, to State)

// Machine drives one device through a deploy. It holds no per-deploy state;
// each Deploy call gets a fresh Session.
type Machine struct {
	cfg      Config
	platform platform.Platform
	runner   tools.CommandRunner
	host     Host
	clock    Clock
	observer Observer
	progress ProgressFactory
}

type Option func(*Machine)

func WithHost(h Host) Option                { return func(m *Machine) { m.host = h } }
func WithClock(c Clock) Option              { return func(m *Machine) { m.clock = c } }
func WithObserver(o Observer) Option        { return func(m *Machine) { m.observer = o } }
func WithProgress(f ProgressFactory) Option { return func(m *Machine) { m.progress = f } }

// NewMachine builds a Machine. A nil runner executes on the host.
func NewMachine(cfg Config, p platform.Platform, runner tools.CommandRunner, opts ...Option) *Machine {
	if runner == nil {
		runner = tools.ExecRunner{}
	}
	m := &Machine{
		cfg:      cfg,
		platform: p,
		runner:   runner,
		host:     OSHost{},
		clock:    RealClock(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Deploy copies the package at bundlePath onto the device as <title>.pdx and
// launches it. The returned Session is the final snapshot of the attempt.
func (m *Machine) Deploy(bundlePath string, title string) (Session, error) {
	s := &Session{
		SerialPath: m.cfg.SerialPath,
		MountPath:  m.cfg.MountPath,
		BundlePath: bundlePath,
		Title:      title,
		State:      StateIdle,
	}
	if s.MountPath == "" {
		err := tools.ConfigErrorf("", "device mount path is not configured; set %s", EnvMountPath)
		m.fail(s, err)
		return *s, err
	}

	log.Info().Msgf("device.Machine.Deploy start title=%q serial=%q mount=%q", title, s.SerialPath, s.MountPath)
	for !s.State.Terminal() {
		next, err := m.step(s)
		if err != nil {
			at := s.State
			m.fail(s, err)
			return *s, fmt.Errorf("device deploy state=%s: %w", at, err)
		}
		m.transition(s, next)
	}
	log.Info().Msgf("device.Machine.Deploy complete title=%q", title)
	return *s, nil
}

func (m *Machine) step(s *Session) (State, error) {
	switch s.State {
	case StateIdle:
		if s.SerialPath != "" && m.host.Exists(s.SerialPath) {
			log.Info().Msgf("device.Machine serial found path=%q, switching to disk mode", s.SerialPath)
			if err := m.host.Send(s.SerialPath, DiskModeCommand); err != nil {
				return s.State, err
			}
			return StateAwaitingDiskMode, nil
		}
		return StateAwaitingMount, nil

	case StateAwaitingDiskMode:
		err := m.wait("serial device to detach", 0, func() bool {
			return !m.host.Exists(s.SerialPath)
		})
		return StateAwaitingMount, err

	case StateAwaitingMount:
		games := filepath.Join(s.MountPath, m.cfg.gamesDir())
		err := m.wait("data disk mount", m.cfg.MountSettleTicks, func() bool {
			return m.host.Exists(s.MountPath) && m.host.Exists(games)
		})
		return StateCopying, err

	case StateCopying:
		return StateEjecting, m.copyBundle(s)

	case StateEjecting:
		cmd := m.platform.EjectCommand(s.MountPath)
		if _, err := tools.Invoke(m.runner, cmd); err != nil {
			log.Warn().Msgf("device.Machine eject failed mount=%q err=%v", s.MountPath, err)
		}
		return StateAwaitingSerialReturn, nil

	case StateAwaitingSerialReturn:
		if s.SerialPath == "" {
			log.Warn().Msg("device.Machine no serial path configured; launch the game on the device manually")
			return StateRunning, nil
		}
		err := m.wait("serial device to return", m.cfg.SerialSettleTicks, func() bool {
			return m.host.Exists(s.SerialPath)
		})
		if err != nil {
			return s.State, err
		}
		if err := m.host.Send(s.SerialPath, m.cfg.RunCommand(s.Title)); err != nil {
			return s.State, err
		}
		return StateRunning, nil
	}
	return s.State, fmt.Errorf("device: no transition from state %s", s.State)
}

func (m *Machine) copyBundle(s *Session) error {
	dst := filepath.Join(s.MountPath, m.cfg.gamesDir(), s.Title+".pdx")
	log.Info().Msgf("device.Machine copying src=%q dst=%q", s.BundlePath, dst)

	var bar Progress
	if m.progress != nil {
		if total, err := tools.TreeSize(s.BundlePath); err == nil {
			bar = m.progress(total, s.Title)
		}
	}
	err := tools.CopyTree(s.BundlePath, dst, func(path string, n int64) {
		log.Debug().Msgf("device.Machine copied path=%q bytes=%d", path, n)
		if bar != nil {
			_ = bar.Add64(n)
		}
	})
	if bar != nil {
		_ = bar.Finish()
	}
	return err
}

func (m *Machine) wait(what string, settleTicks int, cond func() bool) error {
	return Wait(m.clock, WaitOptions{
		What:        what,
		Tick:        m.cfg.tick(),
		Timeout:     m.cfg.Timeout,
		SettleTicks: settleTicks,
		NoticeEvery: noticeEvery,
	}, cond)
}

func (m *Machine) transition(s *Session, next State) {
	prev := s.State
	s.State = next
	log.Debug().Msgf("device.Machine transition from=%s to=%s", prev, next)
	if m.observer != nil {
		m.observer(prev, next)
	}
}

func (m *Machine) fail(s *Session, err error) {
	s.Err = err
	m.transition(s, StateFailed)
}
