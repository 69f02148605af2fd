package bayeux

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidChannelName(t *testing.T) {
	assert.True(t, validChannelName("/foo"))
	assert.True(t, validChannelName("/foo/bar"))
	assert.False(t, validChannelName(""))
	assert.False(t, validChannelName("/"))
	assert.False(t, validChannelName("foo"))
	assert.False(t, validChannelName("/foo//bar"))
}

func TestClassify(t *testing.T) {
	assert.Equal(t, kindMeta, classify("/meta/handshake"))
	assert.Equal(t, kindService, classify("/service/status"))
	assert.Equal(t, kindBroadcast, classify("/chat/room1"))
}

func TestWildcardAncestors(t *testing.T) {
	assert.Equal(t, []string{"/**", "/a/**", "/a/b/**", "/a/b/*"}, wildcardAncestors("/a/b/c"))
	assert.Equal(t, []string{"/**", "/a/**", "/a/*"}, wildcardAncestors("/a/b"))
	assert.Equal(t, []string{"/**", "/*"}, wildcardAncestors("/a"))
	assert.Nil(t, wildcardAncestors("/a/**"))
	assert.Nil(t, wildcardAncestors("/a/*"))
}

func TestNotificationChain(t *testing.T) {
	got := notificationChain("/a/b/c")
	assert.Equal(t, []string{"/**", "/a/**", "/a/b/**", "/a/b/*", "/a/b/c"}, got)
}
