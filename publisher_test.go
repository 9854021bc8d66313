package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComposeMessageWithLocalizedContent(t *testing.T) {
	item := FeedItem{
		ID: "1",
		Multilingual: map[string]LocalizedContent{
			"zh": {Title: "标题", Summary: Paragraphs{"第一段", "第二段"}},
		},
	}

	message, ok := composeMessage(item, "zh", []string{"#美股#", "#财经#"})
	require.True(t, ok)
	assert.Equal(t, "【标题】\n\n第一段\n\n第二段\n\n#美股# #财经#", message)
}

func TestComposeMessageFallsBackToSmartTitle(t *testing.T) {
	item := FeedItem{
		ID:         "1",
		SmartTitle: "Fed holds rates",
		Summary:    Paragraphs{"The central bank kept rates steady."},
	}

	message, ok := composeMessage(item, "zh", nil)
	require.True(t, ok)
	assert.Equal(t, "【Fed holds rates】\n\nThe central bank kept rates steady.", message)
}

func TestComposeMessageWithoutTags(t *testing.T) {
	item := FeedItem{
		Multilingual: map[string]LocalizedContent{
			"zh": {Title: "t", Summary: Paragraphs{"b"}},
		},
	}

	message, ok := composeMessage(item, "zh", []string{})
	require.True(t, ok)
	assert.Equal(t, "【t】\n\nb", message)
}

func TestComposeMessageUnpublishableItem(t *testing.T) {
	_, ok := composeMessage(FeedItem{ID: "x"}, "zh", nil)
	assert.False(t, ok)
}

func TestAttemptResultConstructors(t *testing.T) {
	ok := success()
	assert.True(t, ok.OK)
	assert.NoError(t, ok.Err)

	failed := failure(StageConfirm, errNotPublishable)
	assert.False(t, failed.OK)
	assert.Equal(t, StageConfirm, failed.Stage)
	assert.ErrorIs(t, failed.Err, errNotPublishable)
}
