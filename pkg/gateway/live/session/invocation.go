package session

import (
	"encoding/json"
	"strings"
)

// Invocation is one fully assembled tool call, ready to execute.
type Invocation struct {
	CallID    string
	Name      string
	Arguments json.RawMessage
}

// invocationAssembler reconstructs tool calls from streamed argument
// fragments. Calls are keyed by output index so fragments of concurrently
// streamed calls never mix. Within a call, fragments land in an indexed
// arena that grows on demand, so they concatenate in index order no matter
// what order they arrive in.
type invocationAssembler struct {
	calls map[int]*pendingCall
}

type pendingCall struct {
	id        string
	name      string
	fragments []string
	next      int
}

func newInvocationAssembler() *invocationAssembler {
	return &invocationAssembler{calls: make(map[int]*pendingCall)}
}

func (a *invocationAssembler) call(index int) *pendingCall {
	c, ok := a.calls[index]
	if !ok {
		c = &pendingCall{}
		a.calls[index] = c
	}
	return c
}

// append adds the next in-order fragment for the call at callIndex.
func (a *invocationAssembler) append(callIndex int, callID, delta string) {
	c := a.call(callIndex)
	a.place(callIndex, c.next, callID, delta)
}

// place stores a fragment at an explicit position in the call's argument
// stream. Redelivery of the same position overwrites rather than appends.
func (a *invocationAssembler) place(callIndex, fragIndex int, callID, delta string) {
	if fragIndex < 0 {
		return
	}
	c := a.call(callIndex)
	if callID != "" {
		c.id = callID
	}
	for len(c.fragments) <= fragIndex {
		c.fragments = append(c.fragments, "")
	}
	c.fragments[fragIndex] = delta
	if fragIndex >= c.next {
		c.next = fragIndex + 1
	}
}

// complete finalizes the call at callIndex and forgets it. When no fragments
// accumulated, the restated argument string from the completion event fills
// in; an entirely absent argument payload becomes an empty JSON object so the
// result is always parseable.
func (a *invocationAssembler) complete(callIndex int, callID, name, restated string) Invocation {
	c := a.call(callIndex)
	delete(a.calls, callIndex)
	if callID != "" {
		c.id = callID
	}
	if name != "" {
		c.name = name
	}
	args := strings.Join(c.fragments, "")
	if args == "" {
		args = restated
	}
	if strings.TrimSpace(args) == "" {
		args = "{}"
	}
	return Invocation{CallID: c.id, Name: c.name, Arguments: json.RawMessage(args)}
}

// clear drops every partially assembled call.
func (a *invocationAssembler) clear() {
	a.calls = make(map[int]*pendingCall)
}

func (a *invocationAssembler) pending() int {
	return len(a.calls)
}
