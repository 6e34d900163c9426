package core

import (
	"testing"

	"github.com/Cyber-Mitch/nilshard/api"
)

func TestStageAppliesImmediately(t *testing.T) {
	balance := 500
	m := Stage(&Tentative{
		Apply: func() { balance -= 100 },
		Undo:  func() { balance += 100 },
	})
	if balance != 400 {
		t.Fatalf("tentative debit not applied, balance %d", balance)
	}
	if m.Resolved() {
		t.Fatalf("fresh mutation must be unresolved")
	}
}

func TestConfirmKeepsMutation(t *testing.T) {
	balance := 500
	m := Stage(&Tentative{
		Apply: func() { balance -= 100 },
		Undo:  func() { balance += 100 },
	})
	if err := m.Confirm(); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if balance != 400 {
		t.Fatalf("confirm must keep the debit, balance %d", balance)
	}
}

func TestRevertRestoresState(t *testing.T) {
	balance := 500
	m := Stage(&Tentative{
		Apply: func() { balance -= 100 },
		Undo:  func() { balance += 100 },
	})
	if err := m.Revert(); err != nil {
		t.Fatalf("revert: %v", err)
	}
	if balance != 500 {
		t.Fatalf("revert must restore the balance, got %d", balance)
	}
}

func TestConfirmThenRevertFails(t *testing.T) {
	m := Stage(&Tentative{})
	if err := m.Confirm(); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if err := m.Revert(); !api.IsCode(err, api.CodeAlreadyResolved) {
		t.Fatalf("expected already_resolved, got %v", err)
	}
}

func TestRevertThenConfirmFails(t *testing.T) {
	balance := 500
	m := Stage(&Tentative{
		Apply: func() { balance -= 100 },
		Undo:  func() { balance += 100 },
	})
	if err := m.Revert(); err != nil {
		t.Fatalf("revert: %v", err)
	}
	if err := m.Confirm(); !api.IsCode(err, api.CodeAlreadyResolved) {
		t.Fatalf("expected already_resolved, got %v", err)
	}
	if err := m.Revert(); !api.IsCode(err, api.CodeAlreadyResolved) {
		t.Fatalf("double revert must fail, got %v", err)
	}
	if balance != 500 {
		t.Fatalf("undo must run exactly once, balance %d", balance)
	}
}

func TestNilMutationIsResolved(t *testing.T) {
	var m *TentativeMutation
	if !m.Resolved() {
		t.Fatalf("nil mutation counts as resolved")
	}
	if err := m.Confirm(); err != nil {
		t.Fatalf("nil confirm: %v", err)
	}
	if err := m.Revert(); err != nil {
		t.Fatalf("nil revert: %v", err)
	}
}
