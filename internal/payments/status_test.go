package payments

import "testing"

func TestCanTransition(t *testing.T) {
	allowed := []struct{ from, to Status }{
		{StatusPending, StatusApproved},
		{StatusPending, StatusDeclined},
		{StatusPending, StatusVoided},
		{StatusPending, StatusError},
		{StatusApproved, StatusFinished},
		{StatusApproved, StatusError},
	}
	for _, c := range allowed {
		if !CanTransition(c.from, c.to) {
			t.Errorf("expected %s -> %s to be allowed", c.from, c.to)
		}
	}

	denied := []struct{ from, to Status }{
		{StatusPending, StatusFinished}, // FINISHED hanya lewat APPROVED
		{StatusDeclined, StatusApproved},
		{StatusDeclined, StatusPending},
		{StatusFinished, StatusPending},
		{StatusFinished, StatusApproved},
		{StatusError, StatusFinished},
		{StatusVoided, StatusApproved},
		{StatusApproved, StatusPending},
	}
	for _, c := range denied {
		if CanTransition(c.from, c.to) {
			t.Errorf("expected %s -> %s to be denied", c.from, c.to)
		}
	}
}

func TestTerminal(t *testing.T) {
	for s, want := range map[Status]bool{
		StatusPending:  false,
		StatusApproved: false,
		StatusDeclined: true,
		StatusVoided:   true,
		StatusError:    true,
		StatusFinished: true,
	} {
		if s.Terminal() != want {
			t.Errorf("Terminal(%s): expected %v", s, want)
		}
	}
}
