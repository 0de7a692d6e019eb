package model

import (
	"fmt"
	"sync/atomic"
)

// IDGenerator hands out synthetic ids for records whose source carries none.
// Ids are monotonic and unique for the lifetime of the generator.
type IDGenerator struct {
	n atomic.Uint64
}

func NewIDGenerator() *IDGenerator {
	return &IDGenerator{}
}

// Next returns a new id. Zero padding keeps lexical and numeric order equal.
func (g *IDGenerator) Next() string {
	return fmt.Sprintf("unique:%08d", g.n.Add(1))
}
