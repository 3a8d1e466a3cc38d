package harness

import (
	"fmt"
	"sort"
	"strings"
)

// checkExpect compares a step's trace event with its expect clause and
// returns one message per mismatch.
func checkExpect(expect *ExpectClause, event TraceEvent) []string {
	if expect == nil {
		return nil
	}

	var errs []string
	if expect.Success != nil && *expect.Success != event.Success {
		errs = append(errs, fmt.Sprintf("expected success=%t, got %t (error=%q)", *expect.Success, event.Success, event.Error))
	}
	if expect.Quantity != nil && *expect.Quantity != event.Quantity {
		errs = append(errs, fmt.Sprintf("expected quantity %d, got %d", *expect.Quantity, event.Quantity))
	}
	if expect.WarningContains != "" && !strings.Contains(event.Warning, expect.WarningContains) {
		errs = append(errs, fmt.Sprintf("expected warning containing %q, got %q", expect.WarningContains, event.Warning))
	}
	if expect.ErrorContains != "" && !strings.Contains(event.Error, expect.ErrorContains) {
		errs = append(errs, fmt.Sprintf("expected error containing %q, got %q", expect.ErrorContains, event.Error))
	}
	return errs
}

// checkFinal compares the final cart with the final clause.
func checkFinal(want *FinalClause, got FinalState) []string {
	if want == nil {
		return nil
	}

	var errs []string
	if want.Absent && !got.Absent {
		errs = append(errs, fmt.Sprintf("expected no cart, got session %s", got.SessionID))
	}
	if want.TotalItems != nil && *want.TotalItems != got.TotalItems {
		errs = append(errs, fmt.Sprintf("expected total_items %d, got %d", *want.TotalItems, got.TotalItems))
	}
	if want.HistoryLen != nil && *want.HistoryLen != got.HistoryLen {
		errs = append(errs, fmt.Sprintf("expected history_len %d, got %d", *want.HistoryLen, got.HistoryLen))
	}
	if want.SessionID != "" && want.SessionID != got.SessionID {
		errs = append(errs, fmt.Sprintf("expected session %q, got %q", want.SessionID, got.SessionID))
	}
	if want.Lines != nil {
		errs = append(errs, diffLines(want.Lines, got.Lines)...)
	}
	return errs
}

// diffLines reports missing, unexpected and mismatched lines in id order.
func diffLines(want, got map[string]int) []string {
	ids := make(map[string]struct{}, len(want)+len(got))
	for id := range want {
		ids[id] = struct{}{}
	}
	for id := range got {
		ids[id] = struct{}{}
	}
	sorted := make([]string, 0, len(ids))
	for id := range ids {
		sorted = append(sorted, id)
	}
	sort.Strings(sorted)

	var errs []string
	for _, id := range sorted {
		w, inWant := want[id]
		g, inGot := got[id]
		switch {
		case !inGot:
			errs = append(errs, fmt.Sprintf("line %s: expected quantity %d, line missing", id, w))
		case !inWant:
			errs = append(errs, fmt.Sprintf("line %s: unexpected line with quantity %d", id, g))
		case w != g:
			errs = append(errs, fmt.Sprintf("line %s: expected quantity %d, got %d", id, w, g))
		}
	}
	return errs
}
