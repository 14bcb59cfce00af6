// Package market implements the bounty marketplace state transitions: profiles,
// bounty lifecycle, submissions and the escrow that backs every reward.
//
// Each Engine method is one operation. It re-validates every precondition
// against the State it is handed and only then writes, so running it inside an
// all-or-nothing State gives atomic semantics. Methods never retry.
package market

import (
	"fmt"
	"os"
	"time"

	"github.com/gologme/log"

	"github.com/gregorybednov/bountychain/address"
)

// Context carries the per-operation inputs supplied by the host.
type Context struct {
	State  State
	Signer address.Address
	Now    time.Time

	events []Event
}

func NewContext(s State, signer address.Address, now time.Time) *Context {
	return &Context{State: s, Signer: signer, Now: now}
}

func (c *Context) unix() uint64 {
	if c.Now.Unix() < 0 {
		return 0
	}
	return uint64(c.Now.Unix())
}

func (c *Context) store() store { return store{c.State} }

// Event is an indexable record of a ledger movement or lifecycle change.
type Event struct {
	Type       string
	Attributes []Attribute
}

type Attribute struct {
	Key   string
	Value string
}

func (c *Context) emit(typ string, kv ...string) {
	ev := Event{Type: typ}
	for i := 0; i+1 < len(kv); i += 2 {
		ev.Attributes = append(ev.Attributes, Attribute{Key: kv[i], Value: kv[i+1]})
	}
	c.events = append(c.events, ev)
}

// Events returns what the operation emitted, in order.
func (c *Context) Events() []Event { return c.events }

type Engine struct {
	params Params
	logger *log.Logger
}

func NewEngine(params Params, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.New(os.Stdout, "", log.Flags())
	}
	return &Engine{params: params, logger: logger}
}

func (e *Engine) Params() Params { return e.params }

func u64(v uint64) string { return fmt.Sprintf("%d", v) }
