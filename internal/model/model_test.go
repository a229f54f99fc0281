package model

import "testing"

func TestCounterpart(t *testing.T) {
	c := Conversation{Participants: []string{"u1", "u2"}}

	if got := c.Counterpart("u1"); got != "u2" {
		t.Errorf("Counterpart(u1) = %q, want u2", got)
	}
	if got := c.Counterpart("u2"); got != "u1" {
		t.Errorf("Counterpart(u2) = %q, want u1", got)
	}
	if got := c.Counterpart("stranger"); got != "" {
		t.Errorf("Counterpart(stranger) = %q, want empty", got)
	}
}

func TestCloneIsDeep(t *testing.T) {
	c := Conversation{
		ID:           "c1",
		Participants: []string{"u1", "u2"},
		UnreadCount:  map[string]int{"u1": 0, "u2": 3},
	}
	clone := c.Clone()
	clone.UnreadCount["u2"] = 99

	if c.UnreadCount["u2"] != 3 {
		t.Errorf("original mutated through clone: unread = %d, want 3", c.UnreadCount["u2"])
	}
}

func TestMessageEmpty(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
		want bool
	}{
		{"text only", Message{Text: "hi"}, false},
		{"attachment only", Message{Attachment: &Attachment{URL: "file:///a.png", Name: "a.png"}}, false},
		{"both", Message{Text: "hi", Attachment: &Attachment{URL: "u"}}, false},
		{"neither", Message{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.msg.Empty(); got != tt.want {
				t.Errorf("Empty() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMessagePreview(t *testing.T) {
	m := Message{Text: "hello"}
	if m.Preview() != "hello" {
		t.Errorf("Preview() = %q, want hello", m.Preview())
	}
	m = Message{Attachment: &Attachment{Name: "photo.png"}}
	if m.Preview() != "photo.png" {
		t.Errorf("Preview() = %q, want photo.png", m.Preview())
	}
}
