package gateway

import "testing"

func TestSubscribeIsIdempotent(t *testing.T) {
	idx := NewIndex()
	idx.Subscribe("c1", ChannelKnowledgeUpdates)
	idx.Subscribe("c1", ChannelKnowledgeUpdates)

	members := idx.MembersOf(ChannelKnowledgeUpdates)
	if len(members) != 1 || members[0] != "c1" {
		t.Fatalf("expected exactly one membership entry, got %v", members)
	}
	if subs := idx.Subscriptions("c1"); len(subs) != 1 {
		t.Fatalf("connection's own set disagrees: %v", subs)
	}
}

func TestUnsubscribeNeverSubscribedIsNoop(t *testing.T) {
	idx := NewIndex()
	idx.Unsubscribe("c1", "never_joined")

	if n := idx.ChannelCount(); n != 0 {
		t.Fatalf("expected no channels, got %d", n)
	}
	if subs := idx.Subscriptions("c1"); len(subs) != 0 {
		t.Fatalf("expected no subscriptions, got %v", subs)
	}
}

func TestChannelEntryExistsOnlyWithMembers(t *testing.T) {
	idx := NewIndex()
	idx.Subscribe("c1", ChannelSystemStatus)
	if idx.ChannelCount() != 1 {
		t.Fatal("expected channel entry after first subscriber")
	}

	idx.Unsubscribe("c1", ChannelSystemStatus)
	if idx.ChannelCount() != 0 {
		t.Fatal("empty channel entry must be garbage-collected")
	}
}

func TestRemoveAllDropsEveryMembership(t *testing.T) {
	idx := NewIndex()
	idx.Subscribe("c1", ChannelKnowledgeUpdates)
	idx.Subscribe("c1", ChannelSystemStatus)
	idx.Subscribe("c2", ChannelKnowledgeUpdates)

	idx.RemoveAll("c1")

	if subs := idx.Subscriptions("c1"); len(subs) != 0 {
		t.Fatalf("expected no subscriptions after RemoveAll, got %v", subs)
	}
	if members := idx.MembersOf(ChannelKnowledgeUpdates); len(members) != 1 || members[0] != "c2" {
		t.Fatalf("other connections must keep their memberships, got %v", members)
	}
	if members := idx.MembersOf(ChannelSystemStatus); len(members) != 0 {
		t.Fatalf("expected empty channel, got %v", members)
	}
}

func TestMembersOfReturnsSnapshot(t *testing.T) {
	idx := NewIndex()
	idx.Subscribe("c1", ChannelKnowledgeUpdates)

	before := idx.MembersOf(ChannelKnowledgeUpdates)
	idx.Subscribe("c2", ChannelKnowledgeUpdates)

	if len(before) != 1 {
		t.Fatalf("snapshot must not see later mutations, got %v", before)
	}
	if after := idx.MembersOf(ChannelKnowledgeUpdates); len(after) != 2 {
		t.Fatalf("expected two members now, got %v", after)
	}
}
