package playback

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/speaker"
)

// ErrPlaybackBlocked marks an audio-device or permission failure that must
// not stall the queue. The runtime analogue of an autoplay rejection.
var ErrPlaybackBlocked = errors.New("playback: audio device unavailable")

// Playback is the handle for one playing item.
type Playback interface {
	// Done closes on the item's terminal event, whatever the reason.
	Done() <-chan struct{}
	// Stop halts playback and releases the underlying resource.
	Stop()
}

// Player starts playback of one complete audio payload.
type Player interface {
	Play(audio []byte) (Playback, error)
}

// SpeakerPlayer plays mp3 payloads through the system speaker. The speaker
// is initialized lazily on first use at that payload's sample rate; later
// payloads are resampled to match.
type SpeakerPlayer struct {
	initOnce   sync.Once
	initErr    error
	sampleRate beep.SampleRate
}

// NewSpeakerPlayer returns an uninitialized speaker player.
func NewSpeakerPlayer() *SpeakerPlayer {
	return &SpeakerPlayer{}
}

func (p *SpeakerPlayer) Play(audio []byte) (Playback, error) {
	streamer, format, err := mp3.Decode(io.NopCloser(bytes.NewReader(audio)))
	if err != nil {
		return nil, fmt.Errorf("decode mp3: %w", err)
	}

	p.initOnce.Do(func() {
		p.sampleRate = format.SampleRate
		p.initErr = speaker.Init(format.SampleRate, format.SampleRate.N(time.Second/10))
	})
	if p.initErr != nil {
		_ = streamer.Close()
		return nil, fmt.Errorf("%w: %v", ErrPlaybackBlocked, p.initErr)
	}

	var s beep.Streamer = streamer
	if format.SampleRate != p.sampleRate {
		s = beep.Resample(4, format.SampleRate, p.sampleRate, streamer)
	}

	pb := &speakerPlayback{done: make(chan struct{}), release: func() { _ = streamer.Close() }}
	pb.ctrl = &beep.Ctrl{Streamer: beep.Seq(s, beep.Callback(pb.finish))}
	speaker.Play(pb.ctrl)
	return pb, nil
}

type speakerPlayback struct {
	ctrl    *beep.Ctrl
	done    chan struct{}
	release func()
	endOnce sync.Once
}

func (pb *speakerPlayback) finish() {
	pb.endOnce.Do(func() {
		pb.release()
		close(pb.done)
	})
}

func (pb *speakerPlayback) Done() <-chan struct{} { return pb.done }

func (pb *speakerPlayback) Stop() {
	speaker.Lock()
	pb.ctrl.Streamer = nil
	speaker.Unlock()
	pb.finish()
}
