package status

import (
	"testing"

	"github.com/matheus3301/parley/internal/bus"
)

func TestInitialState(t *testing.T) {
	m := NewMachine(nil)
	if m.Current() != Booting {
		t.Errorf("initial state = %s, want BOOTING", m.Current())
	}
}

func TestValidTransitions(t *testing.T) {
	tests := []struct {
		path []State
	}{
		{[]State{AuthRequired}},
		{[]State{AuthRequired, Ready}},
		{[]State{Ready}},
		{[]State{Ready, Degraded}},
		{[]State{Ready, Degraded, Ready}},
		{[]State{Ready, AuthRequired}},
		{[]State{Error, Booting}},
	}
	for _, tt := range tests {
		m := NewMachine(nil)
		for _, to := range tt.path {
			if err := m.Transition(to); err != nil {
				t.Errorf("Transition(%s -> %s) error = %v", m.Current(), to, err)
				break
			}
		}
	}
}

func TestInvalidTransition(t *testing.T) {
	m := NewMachine(nil)
	if err := m.Transition(Degraded); err == nil {
		t.Error("Transition(BOOTING -> DEGRADED) should fail")
	}
	if m.Current() != Booting {
		t.Errorf("state changed after rejected transition: %s", m.Current())
	}
}

func TestTransitionEmitsEvent(t *testing.T) {
	b := bus.New()
	ch, unsub := b.Subscribe("session.", 10)
	defer unsub()

	m := NewMachine(b)
	if err := m.Transition(AuthRequired); err != nil {
		t.Fatal(err)
	}

	evt := <-ch
	change, ok := evt.Payload.(StatusChange)
	if !ok {
		t.Fatalf("payload type %T", evt.Payload)
	}
	if change.From != Booting || change.To != AuthRequired {
		t.Errorf("change = %+v", change)
	}
}
