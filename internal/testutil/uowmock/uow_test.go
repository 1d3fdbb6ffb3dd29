package uowmock

import (
	"context"
	"errors"
	"testing"

	"collateral-lending/internal/domain/uow"
	"collateral-lending/internal/testutil/loanmock"
)

func TestUoW_WithinTx_Happy(t *testing.T) {
	ctx := context.Background()

	loans := &loanmock.Repo{}
	repos := uow.Repos{Loans: loans}

	innerCalled := false
	m := &UoW{
		WithinTxFn: func(gotCtx context.Context, fn func(context.Context, uow.Repos) error) error {
			if gotCtx != ctx {
				t.Fatalf("WithinTx: ctx mismatch")
			}
			if fn == nil {
				t.Fatalf("WithinTx: fn is nil")
			}
			return fn(gotCtx, repos)
		},
	}

	err := m.WithinTx(ctx, func(_ context.Context, r uow.Repos) error {
		innerCalled = true
		if r.Loans != loans {
			t.Fatalf("WithinTx: repos not forwarded correctly")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithinTx: unexpected err: %v", err)
	}
	if !innerCalled {
		t.Fatalf("WithinTx: inner fn not called")
	}
}

func TestUoW_WithinTx_PropagatesError(t *testing.T) {
	ctx := context.Background()
	sentinel := errors.New("boom")

	m := &UoW{
		WithinTxFn: func(context.Context, func(context.Context, uow.Repos) error) error {
			return sentinel
		},
	}
	if err := m.WithinTx(ctx, func(context.Context, uow.Repos) error { return nil }); !errors.Is(err, sentinel) {
		t.Fatalf("WithinTx: want %v, got %v", sentinel, err)
	}
}

func TestUoW_WithinTx_Default_Unimplemented(t *testing.T) {
	m := &UoW{}
	if err := m.WithinTx(context.Background(), func(context.Context, uow.Repos) error { return nil }); !errors.Is(err, errUnimplemented) {
		t.Fatalf("WithinTx default: want errUnimplemented, got %v", err)
	}
}

func TestPassthrough_ForwardsFnError(t *testing.T) {
	loans := &loanmock.Repo{}
	m := Passthrough(uow.Repos{Loans: loans})
	sentinel := errors.New("stop")

	err := m.WithinTx(context.Background(), func(_ context.Context, r uow.Repos) error {
		if r.Loans != loans {
			t.Fatalf("Passthrough: repos not forwarded")
		}
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("Passthrough: want %v, got %v", sentinel, err)
	}
}

func TestUoW_FluentSetter_And_Reset(t *testing.T) {
	m := New()
	if m.WithinTxFn != nil {
		t.Fatalf("New should start with nil funcs")
	}
	m.WithWithinTx(func(context.Context, func(context.Context, uow.Repos) error) error { return nil })
	if m.WithinTxFn == nil {
		t.Fatalf("fluent setter didn't assign func")
	}
	m.Reset()
	if m.WithinTxFn != nil {
		t.Fatalf("Reset should clear function fields")
	}
}
