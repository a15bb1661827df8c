package sync

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestApply_MiddleFailureDoesNotStopBatch(t *testing.T) {
	var applied []string
	report, err := Apply(context.Background(), "create user",
		[]string{"a", "b", "c"},
		func(s string) string { return s },
		func(_ context.Context, s string) error {
			if s == "b" {
				return errors.New("duplicate key")
			}
			applied = append(applied, s)
			return nil
		},
	)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	if report.Succeeded != 2 || report.Failed != 1 {
		t.Errorf("report = %+v, want 2 succeeded / 1 failed", report)
	}
	if len(applied) != 2 || applied[0] != "a" || applied[1] != "c" {
		t.Errorf("applied = %v, want [a c]", applied)
	}
	if len(report.Errors) != 1 {
		t.Fatalf("errors = %v, want exactly one", report.Errors)
	}
	if msg := report.Errors[0].Error(); !strings.Contains(msg, "b") || !strings.Contains(msg, "duplicate key") {
		t.Errorf("error %q should name the item and the cause", msg)
	}
}

func TestApply_AllSucceed(t *testing.T) {
	report, err := Apply(context.Background(), "update group",
		[]int{1, 2, 3},
		func(i int) string { return "g" },
		func(context.Context, int) error { return nil },
	)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if report.Succeeded != 3 || report.Failed != 0 || len(report.Errors) != 0 {
		t.Errorf("report = %+v, want 3 succeeded", report)
	}
}

func TestApply_ContextCancelAborts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	count := 0
	report, err := Apply(ctx, "delete user",
		[]string{"a", "b", "c"},
		func(s string) string { return s },
		func(context.Context, string) error {
			count++
			cancel()
			return nil
		},
	)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if count != 1 {
		t.Errorf("ops ran = %d, want 1 before cancellation took effect", count)
	}
	if report.Succeeded != 1 {
		t.Errorf("report = %+v, want tally so far preserved", report)
	}
}
