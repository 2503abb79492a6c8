package queue

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"atlasforum/internal/model"
)

func TestForumEvent_StreamValues(t *testing.T) {
	post := &model.Post{
		ID:        uuid.New(),
		UserID:    uuid.New(),
		Channel:   model.ChannelAncientWisdom,
		CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 6000, time.UTC),
	}
	event := NewPostCreatedEvent(post)

	values, err := event.ToMap()
	require.NoError(t, err)
	assert.Equal(t, EventPostCreated, values["type"])

	parsed, err := ParseForumEvent(values)
	require.NoError(t, err)
	if diff := cmp.Diff(event, parsed); diff != "" {
		t.Errorf("parsed event mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, post.CreatedAt.UnixMicro(), parsed.Timestamp)
}

func TestParseForumEvent_Malformed(t *testing.T) {
	_, err := ParseForumEvent(map[string]interface{}{"type": EventVoteCast})
	assert.Error(t, err)

	_, err = ParseForumEvent(map[string]interface{}{"data": "{not json"})
	assert.Error(t, err)
}

func TestNewVoteCastEvent(t *testing.T) {
	postID, authorID, voterID := uuid.New(), uuid.New(), uuid.New()
	event := NewVoteCastEvent(postID, authorID, voterID, model.VoteFlipped, model.Up)

	assert.Equal(t, EventVoteCast, event.Type)
	assert.NotEqual(t, uuid.Nil, event.EventID)
	assert.NotEqual(t, event.EventID, NewVoteCastEvent(postID, authorID, voterID, model.VoteFlipped, model.Up).EventID, "each occurrence gets its own id")
	assert.Equal(t, authorID, event.AuthorID)
	assert.Equal(t, voterID, event.VoterID)
	assert.Equal(t, model.VoteFlipped, event.Action)
	assert.Equal(t, model.Up, event.Direction)
	assert.NotZero(t, event.Timestamp)
}
