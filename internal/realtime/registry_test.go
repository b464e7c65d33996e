package realtime

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestRegistryJoinIsIdempotent(t *testing.T) {
	r := NewRegistry()
	id := uuid.New()

	r.Join(id, "general")
	r.Join(id, "general")

	assert.Len(t, r.Members("general"), 1)
	assert.Equal(t, []string{"general"}, r.Rooms(id))
}

func TestRegistryLeaveUnknownRoomIsNoop(t *testing.T) {
	r := NewRegistry()
	id := uuid.New()

	r.Leave(id, "never-joined")

	assert.Empty(t, r.Members("never-joined"))
	assert.Empty(t, r.Rooms(id))
}

func TestRegistryRoomDroppedWithLastMember(t *testing.T) {
	r := NewRegistry()
	a, b := uuid.New(), uuid.New()

	r.Join(a, "general")
	r.Join(b, "general")
	r.Leave(a, "general")
	assert.Len(t, r.Members("general"), 1)

	r.Leave(b, "general")
	assert.Empty(t, r.Members("general"))
	// joining again recreates the room from scratch
	r.Join(a, "general")
	assert.Equal(t, []uuid.UUID{a}, r.Members("general"))
}

func TestRegistryLeaveAll(t *testing.T) {
	r := NewRegistry()
	a, b := uuid.New(), uuid.New()

	r.Join(a, "r1")
	r.Join(a, "r2")
	r.Join(b, "r2")

	r.LeaveAll(a)

	assert.Empty(t, r.Rooms(a))
	assert.Empty(t, r.Members("r1"))
	assert.Equal(t, []uuid.UUID{b}, r.Members("r2"))
}

func TestRegistryMembersUnknownRoomEmpty(t *testing.T) {
	r := NewRegistry()
	members := r.Members("ghost")
	assert.NotNil(t, members)
	assert.Empty(t, members)
}
