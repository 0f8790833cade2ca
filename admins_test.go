package main

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const (
	mainAdmin = int64(1000)
	otherUser = int64(2000)
	thirdUser = int64(3000)
)

func TestAdminAddRemove(t *testing.T) {
	r := NewAdminRegistry(mainAdmin)

	if err := r.Add(mainAdmin, otherUser); err != nil {
		t.Fatalf("main admin add failed: %v", err)
	}
	if !r.IsAuthorized(otherUser) {
		t.Error("delegated admin not authorized after add")
	}
	if err := r.Remove(mainAdmin, otherUser); err != nil {
		t.Fatalf("main admin remove failed: %v", err)
	}
	if r.IsAuthorized(otherUser) {
		t.Error("removed admin still authorized")
	}
}

func TestAdminPermissionDenied(t *testing.T) {
	r := NewAdminRegistry(mainAdmin)
	r.Add(mainAdmin, otherUser)

	// Non-main requesters always get PermissionDenied, delegated
	// admins included.
	for _, requester := range []int64{otherUser, thirdUser} {
		if err := r.Add(requester, thirdUser); !errors.Is(err, ErrPermissionDenied) {
			t.Errorf("Add by %d = %v, expected ErrPermissionDenied", requester, err)
		}
		if err := r.Remove(requester, otherUser); !errors.Is(err, ErrPermissionDenied) {
			t.Errorf("Remove by %d = %v, expected ErrPermissionDenied", requester, err)
		}
	}
}

func TestMainAdminIsImmutable(t *testing.T) {
	r := NewAdminRegistry(mainAdmin)

	if err := r.Remove(mainAdmin, mainAdmin); !errors.Is(err, ErrInvalidOperation) {
		t.Errorf("Remove(main, main) = %v, expected ErrInvalidOperation", err)
	}
	if err := r.Add(mainAdmin, mainAdmin); !errors.Is(err, ErrInvalidOperation) {
		t.Errorf("Add(main, main) = %v, expected ErrInvalidOperation", err)
	}
	if !r.IsAuthorized(mainAdmin) {
		t.Error("main admin must always be authorized")
	}
}

func TestAdminDuplicates(t *testing.T) {
	r := NewAdminRegistry(mainAdmin)
	r.Add(mainAdmin, otherUser)

	if err := r.Add(mainAdmin, otherUser); !errors.Is(err, ErrInvalidOperation) {
		t.Errorf("duplicate Add = %v, expected ErrInvalidOperation", err)
	}
	if err := r.Remove(mainAdmin, thirdUser); !errors.Is(err, ErrInvalidOperation) {
		t.Errorf("Remove of non-admin = %v, expected ErrInvalidOperation", err)
	}
}

func TestAdminList(t *testing.T) {
	r := NewAdminRegistry(mainAdmin)
	r.Add(mainAdmin, thirdUser)
	r.Add(mainAdmin, otherUser)

	want := []int64{mainAdmin, otherUser, thirdUser}
	if diff := cmp.Diff(want, r.List()); diff != "" {
		t.Errorf("List() mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int64{otherUser, thirdUser}, r.Delegated()); diff != "" {
		t.Errorf("Delegated() mismatch (-want +got):\n%s", diff)
	}
}
