package session

import "testing"

func TestInvocationAssembler_InOrderFragments(t *testing.T) {
	a := newInvocationAssembler()
	a.append(0, "call_1", `{"chart_type":`)
	a.append(0, "", `"bar",`)
	a.append(0, "", `"title":"Spend"}`)

	inv := a.complete(0, "", "show_chart", "")
	if inv.CallID != "call_1" {
		t.Fatalf("CallID=%q, want call_1", inv.CallID)
	}
	if inv.Name != "show_chart" {
		t.Fatalf("Name=%q, want show_chart", inv.Name)
	}
	want := `{"chart_type":"bar","title":"Spend"}`
	if string(inv.Arguments) != want {
		t.Fatalf("Arguments=%q, want %q", inv.Arguments, want)
	}
	if a.pending() != 0 {
		t.Fatalf("pending=%d after complete, want 0", a.pending())
	}
}

func TestInvocationAssembler_OutOfOrderFragmentsAssembleInIndexOrder(t *testing.T) {
	a := newInvocationAssembler()
	a.place(0, 2, "call_1", `"pie"}`)
	a.place(0, 0, "", `{"chart`)
	a.place(0, 1, "", `_type":`)

	inv := a.complete(0, "", "show_chart", "")
	want := `{"chart_type":"pie"}`
	if string(inv.Arguments) != want {
		t.Fatalf("Arguments=%q, want %q", inv.Arguments, want)
	}
}

func TestInvocationAssembler_InterleavedCallsStaySeparate(t *testing.T) {
	a := newInvocationAssembler()
	a.append(0, "call_a", `{"title":`)
	a.append(1, "call_b", `{"metrics":`)
	a.append(0, "", `"One"}`)
	a.append(1, "", `[]}`)

	first := a.complete(0, "", "show_chart", "")
	second := a.complete(1, "", "show_metrics", "")
	if string(first.Arguments) != `{"title":"One"}` {
		t.Fatalf("first.Arguments=%q", first.Arguments)
	}
	if first.CallID != "call_a" {
		t.Fatalf("first.CallID=%q, want call_a", first.CallID)
	}
	if string(second.Arguments) != `{"metrics":[]}` {
		t.Fatalf("second.Arguments=%q", second.Arguments)
	}
	if second.CallID != "call_b" {
		t.Fatalf("second.CallID=%q, want call_b", second.CallID)
	}
}

func TestInvocationAssembler_RestatedArgumentsFillMissingFragments(t *testing.T) {
	a := newInvocationAssembler()
	inv := a.complete(3, "call_9", "show_metrics", `{"metrics":[{"label":"NPS","value":71,"unit":"pts"}]}`)
	if inv.CallID != "call_9" || inv.Name != "show_metrics" {
		t.Fatalf("inv=%+v", inv)
	}
	if string(inv.Arguments) != `{"metrics":[{"label":"NPS","value":71,"unit":"pts"}]}` {
		t.Fatalf("Arguments=%q", inv.Arguments)
	}
}

func TestInvocationAssembler_FragmentsWinOverRestatement(t *testing.T) {
	a := newInvocationAssembler()
	a.append(0, "call_1", `{"title":"Streamed"}`)
	inv := a.complete(0, "", "show_chart", `{"title":"Restated"}`)
	if string(inv.Arguments) != `{"title":"Streamed"}` {
		t.Fatalf("Arguments=%q, want streamed fragments", inv.Arguments)
	}
}

func TestInvocationAssembler_EmptyArgumentsBecomeEmptyObject(t *testing.T) {
	a := newInvocationAssembler()
	inv := a.complete(0, "call_1", "show_metrics", "   ")
	if string(inv.Arguments) != "{}" {
		t.Fatalf("Arguments=%q, want {}", inv.Arguments)
	}
}

func TestInvocationAssembler_ClearDropsPendingCalls(t *testing.T) {
	a := newInvocationAssembler()
	a.append(0, "call_1", `{"title":"Old"}`)
	a.append(1, "call_2", `{"metrics":`)
	if a.pending() != 2 {
		t.Fatalf("pending=%d, want 2", a.pending())
	}
	a.clear()
	if a.pending() != 0 {
		t.Fatalf("pending=%d after clear, want 0", a.pending())
	}

	// A completion after clear sees none of the old fragments.
	inv := a.complete(0, "call_1", "show_chart", `{"title":"New"}`)
	if string(inv.Arguments) != `{"title":"New"}` {
		t.Fatalf("Arguments=%q, want restated arguments only", inv.Arguments)
	}
}
