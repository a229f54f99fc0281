package realtime

import (
	"errors"
	"testing"
	"time"
)

func recvValue(t *testing.T, sub *Subscription) *Value {
	t.Helper()
	select {
	case v := <-sub.Values:
		return v
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for value")
		return nil
	}
}

func TestWatchDeliversCurrentThenUpdates(t *testing.T) {
	m := NewMemory()
	conn := m.Connect()
	defer func() { _ = conn.Close() }()

	sub := m.Watch(StatusPath("u1"))
	defer sub.Cancel()

	// Absent path delivers nil first.
	if v := recvValue(t, sub); v != nil {
		t.Errorf("initial value = %+v, want nil", v)
	}

	if err := conn.Set(StatusPath("u1"), Value{State: "online"}); err != nil {
		t.Fatal(err)
	}
	v := recvValue(t, sub)
	if v == nil || v.State != "online" {
		t.Errorf("value = %+v, want online", v)
	}
	if v.LastChanged.IsZero() {
		t.Error("LastChanged not stamped on write")
	}
}

func TestOnDisconnectAppliedOnClose(t *testing.T) {
	m := NewMemory()
	conn := m.Connect()

	if err := conn.Set(StatusPath("u1"), Value{State: "online"}); err != nil {
		t.Fatal(err)
	}
	if err := conn.OnDisconnect(StatusPath("u1"), Value{State: "offline"}); err != nil {
		t.Fatal(err)
	}

	sub := m.Watch(StatusPath("u1"))
	defer sub.Cancel()
	if v := recvValue(t, sub); v == nil || v.State != "online" {
		t.Fatalf("value = %+v, want online before close", v)
	}

	if err := conn.Close(); err != nil {
		t.Fatal(err)
	}

	v := recvValue(t, sub)
	if v == nil || v.State != "offline" {
		t.Errorf("value after close = %+v, want offline", v)
	}
}

func TestCloseIdempotent(t *testing.T) {
	m := NewMemory()
	conn := m.Connect()

	if err := conn.OnDisconnect(StatusPath("u1"), Value{State: "offline"}); err != nil {
		t.Fatal(err)
	}

	if err := conn.Close(); err != nil {
		t.Fatal(err)
	}
	if err := conn.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}

	// Writes on a closed connection fail.
	if err := conn.Set(StatusPath("u1"), Value{State: "online"}); !errors.Is(err, ErrDisconnected) {
		t.Errorf("Set() after close = %v, want ErrDisconnected", err)
	}
}

func TestConnectivitySentinel(t *testing.T) {
	m := NewMemory()
	conn := m.Connect()

	sub := conn.Connectivity()
	defer sub.Cancel()

	select {
	case connected := <-sub.Values:
		if !connected {
			t.Error("initial connectivity = false, want true")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for initial connectivity")
	}

	_ = conn.Close()

	select {
	case connected := <-sub.Values:
		if connected {
			t.Error("connectivity after close = true, want false")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for disconnect signal")
	}
}

func TestWatchCancelIdempotent(t *testing.T) {
	m := NewMemory()
	conn := m.Connect()
	defer func() { _ = conn.Close() }()

	sub := m.Watch(StatusPath("u1"))
	<-sub.Values
	sub.Cancel()
	sub.Cancel()

	if err := conn.Set(StatusPath("u1"), Value{State: "online"}); err != nil {
		t.Fatal(err)
	}
	select {
	case v := <-sub.Values:
		if v != nil {
			t.Errorf("received value after cancel: %+v", v)
		}
	case <-time.After(100 * time.Millisecond):
	}
}
