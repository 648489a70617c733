// Package effects holds the output stage applied to rendered tone buffers.
package effects

// Effector processes interleaved stereo audio in place.
type Effector interface {
	Process(buf []float32)
	Reset()
}

// Chain applies a sequence of effects in order.
type Chain struct {
	effects []Effector
}

func NewChain(effects ...Effector) *Chain {
	return &Chain{effects: effects}
}

func (c *Chain) Process(buf []float32) {
	for _, e := range c.effects {
		e.Process(buf)
	}
}

func (c *Chain) Reset() {
	for _, e := range c.effects {
		e.Reset()
	}
}

func (c *Chain) Add(e Effector) {
	c.effects = append(c.effects, e)
}

func (c *Chain) Len() int { return len(c.effects) }
