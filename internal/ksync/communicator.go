package ksync

import (
	"strconv"

	"nachos/internal/kthread"
)

// offer is a word committed by a speaker that no listener has claimed yet.
type offer struct {
	word    int
	speaker *kthread.Thread
	claimed bool
}

// Communicator lets threads exchange words synchronously. Each Speak is paired
// with exactly one Listen; neither returns before the pair is formed, and
// words are delivered in the order speakers committed them.
//
// Whether speakers or listeners are waiting is always read off the live
// queues below; the Communicator keeps no separate counters.
type Communicator struct {
	lock      *kthread.Lock
	speakCond *Condition
	listCond  *Condition
	offers    []*offer
	listeners kthread.ThreadQueue
}

// NewCommunicator returns a Communicator scheduled by s.
func NewCommunicator(s *kthread.Scheduler) *Communicator {
	lock := kthread.NewLock(s)
	return &Communicator{
		lock:      lock,
		speakCond: NewCondition(lock),
		listCond:  NewCondition(lock),
	}
}

// Speak offers word and blocks until a listener has taken it.
func (c *Communicator) Speak(word int) {
	c.lock.Acquire()

	s := c.lock.Scheduler()
	o := &offer{word: word, speaker: s.Current()}
	c.offers = append(c.offers, o)
	emit(s, "speak", strconv.Itoa(word))

	// The front listener may be asleep waiting for exactly this offer.
	if c.listeners.Len() > 0 {
		c.listCond.WakeAll()
	}
	for !o.claimed {
		c.speakCond.Sleep()
	}

	c.lock.Release()
}

// Listen blocks until a speaker is available and returns its word.
func (c *Communicator) Listen() int {
	c.lock.Acquire()

	s := c.lock.Scheduler()
	self := s.Current()
	c.listeners.Push(self)
	emit(s, "listen.queue", strconv.Itoa(c.listeners.Len()))
	for c.listeners.Front() != self || len(c.offers) == 0 {
		c.listCond.Sleep()
	}

	c.listeners.Pop()
	o := c.offers[0]
	c.offers[0] = nil
	c.offers = c.offers[1:]
	if len(c.offers) == 0 {
		c.offers = nil
	}
	o.claimed = true
	emit(s, "listen", strconv.Itoa(o.word)+" from "+o.speaker.String())

	// Speakers sleep in commit order and offers are claimed in commit order,
	// so the oldest sleeping speaker is the one that owns o.
	c.speakCond.Wake()
	if c.listeners.Len() > 0 && len(c.offers) > 0 {
		c.listCond.WakeAll()
	}

	c.lock.Release()
	return o.word
}

// Speakers returns the number of speakers whose word has not been claimed.
func (c *Communicator) Speakers() int { return len(c.offers) }

// Listeners returns the number of listeners waiting for a word.
func (c *Communicator) Listeners() int { return c.listeners.Len() }

// Pending returns the number of committed words not yet consumed. It always
// equals Speakers: each waiting speaker owns exactly one pending word.
func (c *Communicator) Pending() int { return len(c.offers) }
