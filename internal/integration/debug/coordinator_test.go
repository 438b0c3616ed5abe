package debug

import "testing"

func TestChangeKind_String(t *testing.T) {
	tests := []struct {
		kind     ChangeKind
		expected string
	}{
		{ChangeBreakpoints, "breakpoints"},
		{ChangeState, "state"},
		{ChangeCallStack, "callstack"},
		{ChangeVariables, "variables"},
		{ChangeWatches, "watches"},
		{ChangeOutput, "output"},
		{ChangeReset, "reset"},
		{ChangeRestore, "restore"},
		{ChangeKind(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.expected {
			t.Errorf("ChangeKind(%d).String() = %q, want %q", tt.kind, got, tt.expected)
		}
	}
}

func TestCoordinator_SubscribeUnsubscribe(t *testing.T) {
	c := newTestCoordinator()
	var a, b int
	subA := c.Subscribe(func(Change) { a++ })
	c.Subscribe(func(Change) { b++ })

	c.AddWatchExpression("x")
	subA.Unsubscribe()
	subA.Unsubscribe()
	c.AddWatchExpression("y")

	if a != 1 {
		t.Errorf("expected first observer called once, got %d", a)
	}
	if b != 2 {
		t.Errorf("expected second observer called twice, got %d", b)
	}
}

func TestCoordinator_Persisted(t *testing.T) {
	c := newTestCoordinator()
	c.AddBreakpoint("/a.go", 10, BreakpointOptions{Condition: "x > 1"})
	c.AddBreakpoint("/b.go", 3, BreakpointOptions{LogMessage: "hit"})
	c.SetBreakpointVerified("/a.go", 10, true, 0)
	c.AddWatchExpression("x")
	c.AddWatchExpression("len(s)")

	st := c.Persisted()

	if len(st.Breakpoints) != 2 {
		t.Fatalf("expected 2 files, got %d", len(st.Breakpoints))
	}
	a := st.Breakpoints["/a.go"]
	if len(a) != 1 || a[0].Condition != "x > 1" {
		t.Fatalf("unexpected /a.go entries %+v", a)
	}
	if a[0].Verified {
		t.Error("expected verification not persisted")
	}
	if got, _ := c.BreakpointAt("/a.go", 10); !got.Verified {
		t.Error("expected Persisted to leave the live registry untouched")
	}
	if len(st.WatchExpressions) != 2 || st.WatchExpressions[1] != "len(s)" {
		t.Errorf("unexpected watches %q", st.WatchExpressions)
	}
}

func TestCoordinator_Restore(t *testing.T) {
	src := newTestCoordinator()
	orig := src.AddBreakpoint("/a.go", 10, BreakpointOptions{HitCondition: "== 2"})
	src.AddBreakpoint("/a.go", 20, BreakpointOptions{})
	src.AddWatchExpression("x")

	dst := NewCoordinator(WithIDGenerator(func() string { return "fresh" }))
	dst.AddBreakpoint("/old.go", 1, BreakpointOptions{})
	dst.AddWatchExpression("old")
	dst.SetWatchResult("old", "1", "")

	var kinds []ChangeKind
	dst.Subscribe(func(ch Change) { kinds = append(kinds, ch.Kind) })

	dst.Restore(src.Persisted())

	files := dst.BreakpointFiles()
	if len(files) != 1 || files[0] != "/a.go" {
		t.Fatalf("expected only /a.go, got %v", files)
	}
	got, ok := dst.BreakpointByID(orig.ID)
	if !ok {
		t.Fatal("expected persisted ID kept")
	}
	if got.HitCondition != "== 2" || got.Verified {
		t.Errorf("unexpected restored breakpoint %+v", got)
	}
	if w := dst.WatchExpressions(); len(w) != 1 || w[0] != "x" {
		t.Errorf("unexpected watches %q", w)
	}
	if _, ok := dst.WatchResult("old"); ok {
		t.Error("expected result of a dropped watch removed")
	}
	if len(kinds) != 1 || kinds[0] != ChangeRestore {
		t.Errorf("expected one restore notification, got %v", kinds)
	}
}

func TestCoordinator_RestoreSkipsInvalid(t *testing.T) {
	c := newTestCoordinator()
	c.Restore(PersistedState{
		Breakpoints: map[string][]Breakpoint{
			"": {{Line: 1}},
			"/a.go": {
				{ID: "one", Line: 5, Enabled: true},
				{ID: "two", Line: 5, Enabled: true},
				{ID: "three", Line: 0},
				{ID: "four", FilePath: "/other.go", Line: 9},
				{Line: 7, Verified: true},
			},
			"/b.go": {{ID: "one", Line: 2}},
		},
		WatchExpressions: []string{"x", "", "x", "y"},
	})

	a := c.BreakpointsForFile("/a.go")
	if len(a) != 2 {
		t.Fatalf("expected 2 valid breakpoints in /a.go, got %+v", a)
	}
	if a[0].ID != "one" || a[0].Line != 5 {
		t.Errorf("expected first duplicate kept, got %+v", a[0])
	}
	if a[1].ID == "" || a[1].Line != 7 || a[1].Verified {
		t.Errorf("expected generated ID and unverified, got %+v", a[1])
	}

	b := c.BreakpointsForFile("/b.go")
	if len(b) != 1 || b[0].ID == "one" {
		t.Errorf("expected duplicate ID replaced, got %+v", b)
	}

	if w := c.WatchExpressions(); len(w) != 2 || w[0] != "x" || w[1] != "y" {
		t.Errorf("unexpected watches %q", w)
	}
}
