package sync

import (
	"reflect"
	"testing"
	"time"

	"github.com/openmined/syftbox-client/internal/syftmsg"
)

func TestACLStagingPendingExpires(t *testing.T) {
	now := time.Date(2026, 1, 19, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	manager := NewACLStagingManager(
		nil,
		WithACLStagingTTL(2*time.Second),
		WithACLStagingGrace(0),
		WithACLStagingNow(clock),
	)

	manifest := &syftmsg.ACLManifest{
		Datasite: "bob@example.com",
		ACLOrder: []syftmsg.ACLEntry{
			{Path: "bob@example.com/app_data/aclprop/rpc", Hash: "h"},
		},
	}

	manager.SetManifest(manifest)
	if !manager.HasPendingManifest("bob@example.com") {
		t.Fatal("expected pending manifest")
	}

	now = now.Add(3 * time.Second)
	if manager.HasPendingManifest("bob@example.com") {
		t.Fatal("expected pending manifest to expire")
	}

	if manager.IsPendingACLPath("bob@example.com/app_data/aclprop/rpc/syft.pub.yaml") {
		t.Fatal("expected ACL path to no longer be pending after expiry")
	}
}

func TestACLStagingGraceWindow(t *testing.T) {
	now := time.Date(2026, 1, 19, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	manager := NewACLStagingManager(
		nil,
		WithACLStagingTTL(1*time.Second),
		WithACLStagingGrace(5*time.Second),
		WithACLStagingNow(clock),
	)

	manifest := &syftmsg.ACLManifest{
		Datasite: "bob@example.com",
		ACLOrder: []syftmsg.ACLEntry{
			{Path: "bob@example.com/app_data/aclprop/rpc", Hash: "h"},
		},
	}

	manager.SetManifest(manifest)

	now = now.Add(2 * time.Second)
	if !manager.IsPendingACLPath("bob@example.com/app_data/aclprop/rpc/syft.pub.yaml") {
		t.Fatal("expected ACL path to be protected by grace window after expiry")
	}

	now = now.Add(6 * time.Second)
	if manager.IsPendingACLPath("bob@example.com/app_data/aclprop/rpc/syft.pub.yaml") {
		t.Fatal("expected ACL path to be unprotected after grace window")
	}
}

func TestACLStagingCompleteSetFiresOnceInManifestOrder(t *testing.T) {
	now := time.Date(2026, 1, 19, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	ready := make(chan []string, 4)
	manager := NewACLStagingManager(
		func(datasite string, acls []*StagedACL) {
			if datasite != "bob@example.com" {
				t.Errorf("unexpected datasite %q", datasite)
			}
			paths := make([]string, 0, len(acls))
			for _, acl := range acls {
				paths = append(paths, acl.Path)
			}
			ready <- paths
		},
		WithACLStagingTTL(time.Minute),
		WithACLStagingGrace(0),
		WithACLStagingNow(clock),
	)

	manifest := &syftmsg.ACLManifest{
		Datasite: "bob@example.com",
		ACLOrder: []syftmsg.ACLEntry{
			{Path: "bob@example.com", Hash: "h0"},
			{Path: "bob@example.com/app_data", Hash: "h1"},
			{Path: "bob@example.com/app_data/aclprop/rpc", Hash: "h2"},
		},
	}
	manager.SetManifest(manifest)

	// deletes for staged ACL paths stay suppressed while the set is incomplete
	if !manager.IsPendingACLPath("bob@example.com/app_data/syft.pub.yaml") {
		t.Fatal("expected staged ACL path to be pending mid-staging")
	}

	// stage out of manifest order; the callback only fires on the last one
	if !manager.StageACL("bob@example.com", "bob@example.com/app_data/aclprop/rpc", []byte("c2"), "e2") {
		t.Fatal("expected staging to be accepted")
	}
	if !manager.StageACL("bob@example.com", "bob@example.com", []byte("c0"), "e0") {
		t.Fatal("expected staging to be accepted")
	}
	select {
	case <-ready:
		t.Fatal("callback fired before the set was complete")
	default:
	}

	if !manager.StageACL("bob@example.com", "bob@example.com/app_data", []byte("c1"), "e1") {
		t.Fatal("expected staging to be accepted")
	}

	select {
	case paths := <-ready:
		want := []string{
			"bob@example.com",
			"bob@example.com/app_data",
			"bob@example.com/app_data/aclprop/rpc",
		}
		if !reflect.DeepEqual(paths, want) {
			t.Fatalf("callback order = %v, want %v", paths, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("callback never fired for complete set")
	}

	// the set is applied: late arrivals are rejected and nothing re-fires
	if manager.StageACL("bob@example.com", "bob@example.com", []byte("c0"), "e0") {
		t.Fatal("expected staging after completion to be rejected")
	}
	select {
	case <-ready:
		t.Fatal("callback fired more than once")
	case <-time.After(100 * time.Millisecond):
	}
}
