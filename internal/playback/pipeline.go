package playback

import (
	"context"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"
)

// Item is one utterance queued for narration. Callbacks are optional;
// OnStart fires when audio actually starts, OnEnd on any terminal event
// (finished, failed, skipped) so the caller is never left waiting.
type Item struct {
	ID      string
	Text    string
	Voice   string
	OnStart func()
	OnEnd   func()
}

type queuedText struct {
	item *Item
	gen  int
}

type preparedAudio struct {
	item  *Item
	audio []byte
	gen   int
}

// Pipeline turns completed utterances into queued, gapless speech. Two FIFO
// stages: a synthesis worker drains the text queue strictly sequentially
// (one synthesis call in flight, arrival order preserved), a playback worker
// plays at most one prepared item at a time. Workers are started through
// idempotent ensure guards, never recursively.
type Pipeline struct {
	synth  Synthesizer
	player Player
	logger logrus.FieldLogger

	// Notice surfaces one-time, user-facing playback notices. Defaults to a
	// log line.
	Notice func(msg string)

	mu          sync.Mutex
	cond        *sync.Cond
	textQueue   []queuedText
	audioQueue  []preparedAudio
	synthBusy   bool
	playBusy    bool
	current     Playback
	gen         int
	outstanding int
	blockedOnce bool

	ctx context.Context
}

// NewPipeline builds a pipeline. ctx bounds synthesis calls; logger may be
// nil.
func NewPipeline(ctx context.Context, synth Synthesizer, player Player, logger logrus.FieldLogger) *Pipeline {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	p := &Pipeline{
		synth:  synth,
		player: player,
		logger: logger,
		ctx:    ctx,
	}
	p.cond = sync.NewCond(&p.mu)
	p.Notice = func(msg string) { p.logger.Warn(msg) }
	return p
}

// Enqueue adds an utterance to the text queue and kicks the synthesis worker
// if idle.
func (p *Pipeline) Enqueue(item *Item) {
	p.mu.Lock()
	p.textQueue = append(p.textQueue, queuedText{item: item, gen: p.gen})
	p.outstanding++
	p.mu.Unlock()
	p.ensureSynth()
}

// Stop halts current playback and discards both queues entirely. Discarded
// items get no further callbacks; the pipeline is immediately ready for a
// fresh conversation.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	p.gen++
	p.textQueue = nil
	p.audioQueue = nil
	p.outstanding = 0
	current := p.current
	p.current = nil
	p.cond.Broadcast()
	p.mu.Unlock()

	if current != nil {
		current.Stop()
	}
}

// Skip halts only the currently playing item; the queue proceeds.
func (p *Pipeline) Skip() {
	p.mu.Lock()
	current := p.current
	p.mu.Unlock()
	if current != nil {
		current.Stop()
	}
}

// Wait blocks until every enqueued item has reached a terminal state.
func (p *Pipeline) Wait() {
	p.mu.Lock()
	for p.outstanding > 0 {
		p.cond.Wait()
	}
	p.mu.Unlock()
}

// QueueDepths reports the current text and audio queue lengths.
func (p *Pipeline) QueueDepths() (text, audio int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.textQueue), len(p.audioQueue)
}

// settle marks one item of generation gen terminal.
func (p *Pipeline) settle(gen int) {
	p.mu.Lock()
	if gen == p.gen && p.outstanding > 0 {
		p.outstanding--
		if p.outstanding == 0 {
			p.cond.Broadcast()
		}
	}
	p.mu.Unlock()
}

func (p *Pipeline) ensureSynth() {
	p.mu.Lock()
	if p.synthBusy || len(p.textQueue) == 0 {
		p.mu.Unlock()
		return
	}
	p.synthBusy = true
	p.mu.Unlock()
	go p.synthLoop()
}

func (p *Pipeline) ensurePlay() {
	p.mu.Lock()
	if p.playBusy || len(p.audioQueue) == 0 {
		p.mu.Unlock()
		return
	}
	p.playBusy = true
	p.mu.Unlock()
	go p.playLoop()
}

// synthLoop drains the text queue one item at a time. Synthesis could be
// parallelized but is deliberately sequential: it bounds concurrent cost and
// makes arrival order deterministic.
func (p *Pipeline) synthLoop() {
	for {
		p.mu.Lock()
		if len(p.textQueue) == 0 {
			p.synthBusy = false
			p.mu.Unlock()
			return
		}
		q := p.textQueue[0]
		p.textQueue = p.textQueue[1:]
		p.mu.Unlock()

		// the parse fallback never fails; a misbehaving model degrades to
		// literal narration
		input, instructions := ParseSpeechPayload(q.item.Text)

		audio, err := p.synth.Synthesize(p.ctx, SpeechRequest{
			Voice:        q.item.Voice,
			Input:        input,
			Instructions: instructions,
		})

		p.mu.Lock()
		stale := q.gen != p.gen
		p.mu.Unlock()
		if stale {
			continue
		}

		if err != nil {
			p.logger.WithError(err).WithField("item", q.item.ID).Warn("speech synthesis failed")
			if q.item.OnEnd != nil {
				q.item.OnEnd()
			}
			p.settle(q.gen)
			continue
		}

		p.mu.Lock()
		p.audioQueue = append(p.audioQueue, preparedAudio{item: q.item, audio: audio, gen: q.gen})
		p.mu.Unlock()
		p.ensurePlay()
	}
}

// playLoop plays prepared items strictly one at a time, waiting for each
// item's terminal event before starting the next.
func (p *Pipeline) playLoop() {
	for {
		p.mu.Lock()
		if len(p.audioQueue) == 0 {
			p.playBusy = false
			p.mu.Unlock()
			return
		}
		pa := p.audioQueue[0]
		p.audioQueue = p.audioQueue[1:]
		p.mu.Unlock()

		pb, err := p.player.Play(pa.audio)
		if err != nil {
			if errors.Is(err, ErrPlaybackBlocked) {
				p.mu.Lock()
				first := !p.blockedOnce
				p.blockedOnce = true
				p.mu.Unlock()
				if first {
					p.Notice("audio playback is blocked; narration will be skipped")
				}
				p.logger.WithError(err).Debug("playback blocked")
			} else {
				p.logger.WithError(err).WithField("item", pa.item.ID).Warn("audio playback failed")
			}
			// a Stop landing between the queue pop and the failed Play makes
			// this item stale; stale items get no callbacks
			p.mu.Lock()
			stale := pa.gen != p.gen
			p.mu.Unlock()
			if !stale {
				if pa.item.OnEnd != nil {
					pa.item.OnEnd()
				}
				p.settle(pa.gen)
			}
			continue
		}

		p.mu.Lock()
		if pa.gen != p.gen {
			p.mu.Unlock()
			pb.Stop()
			continue
		}
		p.current = pb
		p.mu.Unlock()

		if pa.item.OnStart != nil {
			pa.item.OnStart()
		}

		<-pb.Done()

		p.mu.Lock()
		stale := pa.gen != p.gen
		if p.current == pb {
			p.current = nil
		}
		p.mu.Unlock()

		if !stale {
			if pa.item.OnEnd != nil {
				pa.item.OnEnd()
			}
			p.settle(pa.gen)
		}
	}
}
