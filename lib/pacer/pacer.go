// Package pacer makes pacing and retrying API calls easy
package pacer

import (
	"sync"
	"time"
)

// Pacer state
type Pacer struct {
	mu       sync.Mutex
	minSleep time.Duration
	maxSleep time.Duration
	retries  int
	sleep    time.Duration
}

// Option can be used in New to configure the Pacer
type Option func(*Pacer)

// MinSleep sets the minimum sleep time between retries
func MinSleep(t time.Duration) Option {
	return func(p *Pacer) { p.minSleep = t }
}

// MaxSleep sets the maximum sleep time between retries
func MaxSleep(t time.Duration) Option {
	return func(p *Pacer) { p.maxSleep = t }
}

// Retries sets the max number of attempts
func Retries(n int) Option {
	return func(p *Pacer) { p.retries = n }
}

// New returns a Pacer with sensible defaults
func New(opts ...Option) *Pacer {
	p := &Pacer{
		minSleep: 10 * time.Millisecond,
		maxSleep: 2 * time.Second,
		retries:  3,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.sleep = p.minSleep
	return p
}

// SetRetries changes the max number of attempts
func (p *Pacer) SetRetries(n int) {
	p.mu.Lock()
	p.retries = n
	p.mu.Unlock()
}

// Call paces and relaunches fn until it returns retry false, the error
// is nil, or the attempts are used up. fn returns whether its error is
// worth retrying. The sleep between attempts doubles up to the maximum
// and resets after a success.
func (p *Pacer) Call(fn func() (bool, error)) error {
	p.mu.Lock()
	retries := p.retries
	p.mu.Unlock()
	var err error
	var retry bool
	for i := 0; i < retries; i++ {
		retry, err = fn()
		if err == nil || !retry {
			p.reset()
			return err
		}
		p.backoff()
	}
	return err
}

// CallNoRetry runs fn exactly once through the pacer
func (p *Pacer) CallNoRetry(fn func() (bool, error)) error {
	_, err := fn()
	if err == nil {
		p.reset()
	}
	return err
}

func (p *Pacer) reset() {
	p.mu.Lock()
	p.sleep = p.minSleep
	p.mu.Unlock()
}

func (p *Pacer) backoff() {
	p.mu.Lock()
	sleep := p.sleep
	p.sleep *= 2
	if p.sleep > p.maxSleep {
		p.sleep = p.maxSleep
	}
	p.mu.Unlock()
	time.Sleep(sleep)
}
