package risk

import "testing"

func TestDetectIgnoresCaseAndPunctuation(t *testing.T) {
	m := NewMatcher(nil, "")
	for _, text := range []string{
		"I want to die",
		"i WANT to DIE!!!",
		"honestly... I-want-to-die 😞",
		"I'm going to kill myself tonight",
		"I   can't\tgo on",
	} {
		signal := m.Detect(text)
		if !signal.IsHighRisk {
			t.Fatalf("expected high risk for %q", text)
		}
		if signal.EscalationMessage != DefaultEscalationMessage {
			t.Fatalf("unexpected escalation message %q", signal.EscalationMessage)
		}
		if signal.MatchedPhrase == "" {
			t.Fatalf("expected matched phrase for %q", text)
		}
	}
}

func TestDetectNoMatch(t *testing.T) {
	m := NewMatcher(nil, "")
	signal := m.Detect("I had a long day at work")
	if signal.IsHighRisk || signal.MatchedPhrase != "" || signal.EscalationMessage != "" {
		t.Fatalf("expected empty signal, got %+v", signal)
	}
	if m.Detect("").IsHighRisk {
		t.Fatal("empty text must not be high risk")
	}
}

func TestDetectFirstPhraseWins(t *testing.T) {
	m := NewMatcher([]string{"no reason to live", "want to die"}, "call someone")
	signal := m.Detect("I want to die, there is no reason to live")
	if signal.MatchedPhrase != "no reason to live" {
		t.Fatalf("expected list order tie-break, got %q", signal.MatchedPhrase)
	}
	if signal.EscalationMessage != "call someone" {
		t.Fatalf("expected custom message, got %q", signal.EscalationMessage)
	}
}

func TestDetectIsDeterministic(t *testing.T) {
	m := NewMatcher(nil, "")
	a := m.Detect("There's no reason to live.")
	b := m.Detect("There's no reason to live.")
	if a != b {
		t.Fatalf("expected identical signals, got %+v and %+v", a, b)
	}
}

func TestNormalize(t *testing.T) {
	got := Normalize("  Hey!! I'M   fine :) ")
	if got != "hey i m fine" {
		t.Fatalf("unexpected normalization %q", got)
	}
}
