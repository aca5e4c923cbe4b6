// Package session guards the rule that a page records or plays back, never
// both, and never two of either at once.
package session

import (
	"errors"
	"sync"
)

var (
	ErrRecordingActive  = errors.New("cannot start playback while recording is active")
	ErrPlaybackActive   = errors.New("cannot start recording while playback is active")
	ErrAlreadyRecording = errors.New("recording already in progress")
	ErrAlreadyPlaying   = errors.New("playback already in progress")
)

type Mode int

const (
	Idle Mode = iota
	Recording
	Playing
)

func (m Mode) String() string {
	switch m {
	case Recording:
		return "recording"
	case Playing:
		return "playing"
	}
	return "idle"
}

// Coordinator is owned by the host and shared by the recorder and player of
// one page.
type Coordinator struct {
	mu   sync.Mutex
	mode Mode
}

func NewCoordinator() *Coordinator {
	return &Coordinator{}
}

func (c *Coordinator) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

func (c *Coordinator) IsRecording() bool { return c.Mode() == Recording }

func (c *Coordinator) IsPlaying() bool { return c.Mode() == Playing }

func (c *Coordinator) BeginRecording() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.mode {
	case Playing:
		return ErrPlaybackActive
	case Recording:
		return ErrAlreadyRecording
	}
	c.mode = Recording
	return nil
}

func (c *Coordinator) BeginPlayback() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.mode {
	case Recording:
		return ErrRecordingActive
	case Playing:
		return ErrAlreadyPlaying
	}
	c.mode = Playing
	return nil
}

// EndRecording returns to idle if the page is recording.
func (c *Coordinator) EndRecording() {
	c.end(Recording)
}

// EndPlayback returns to idle if the page is playing.
func (c *Coordinator) EndPlayback() {
	c.end(Playing)
}

func (c *Coordinator) end(m Mode) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mode == m {
		c.mode = Idle
	}
}
