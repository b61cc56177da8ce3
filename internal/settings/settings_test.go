package settings

import "testing"

func TestGetReturnsIsolatedCopy(t *testing.T) {
	st := NewStore(Defaults())

	snap := st.Get()
	snap.AliasFields[0] = "mutated"
	snap.GraphMaxHops = 99

	cur := st.Get()
	if cur.AliasFields[0] != "aliases" {
		t.Errorf("alias fields leaked mutation: %v", cur.AliasFields)
	}
	if cur.GraphMaxHops != 2 {
		t.Errorf("max hops = %d, want 2", cur.GraphMaxHops)
	}
}

func TestUpdateNotifiesSubscribers(t *testing.T) {
	st := NewStore(Defaults())

	var gotOld, gotCur Settings
	calls := 0
	unsub := st.Subscribe(func(old, cur Settings) {
		gotOld, gotCur = old, cur
		calls++
	})
	defer unsub()

	st.Update(func(s *Settings) { s.GraphMaxHops = 3 })

	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
	if gotOld.GraphMaxHops != 2 || gotCur.GraphMaxHops != 3 {
		t.Errorf("old = %d, cur = %d", gotOld.GraphMaxHops, gotCur.GraphMaxHops)
	}
	if st.Get().GraphMaxHops != 3 {
		t.Errorf("store not updated")
	}
}

func TestUnsubscribeStopsNotifications(t *testing.T) {
	st := NewStore(Defaults())

	calls := 0
	unsub := st.Subscribe(func(_, _ Settings) { calls++ })

	st.Update(func(s *Settings) { s.SemanticBatchSize = 50 })
	unsub()
	st.Update(func(s *Settings) { s.SemanticBatchSize = 75 })

	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestGraphConfigChanged(t *testing.T) {
	base := Defaults()

	if GraphConfigChanged(base, base.clone()) {
		t.Error("identical settings reported as changed")
	}

	cases := map[string]func(*Settings){
		"alias fields":    func(s *Settings) { s.AliasFields = []string{"names"} },
		"semantic toggle": func(s *Settings) { s.SemanticEnabled = false },
		"semantic fields": func(s *Settings) { s.SemanticFields = []string{"links"} },
		"min confidence":  func(s *Settings) { s.SemanticMinConfidence = 0.9 },
		"include prefix":  func(s *Settings) { s.IncludePrefixes = []string{"Lore/"} },
		"exclude prefix":  func(s *Settings) { s.ExcludePrefixes = []string{"Drafts/"} },
	}
	for name, mutate := range cases {
		cur := base.clone()
		mutate(&cur)
		if !GraphConfigChanged(base, cur) {
			t.Errorf("%s change not detected", name)
		}
	}

	// Retrieval knobs do not affect the built graph.
	cur := base.clone()
	cur.GraphMaxHops = 4
	cur.GraphMaxDocs = 100
	cur.GraphRetrievalEnabled = false
	cur.SemanticBatchSize = 100
	if GraphConfigChanged(base, cur) {
		t.Error("retrieval-only change reported as graph change")
	}
}
