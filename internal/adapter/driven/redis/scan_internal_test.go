package redis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppendUnseen_DropsRepeatedKeys(t *testing.T) {
	seen := make(map[string]struct{})
	var batch []string

	for _, key := range []string{"kubernetes:1", "kubernetes:2", "kubernetes:1", "kubernetes:3", "kubernetes:2"} {
		batch = appendUnseen(batch, seen, key)
	}

	assert.Equal(t, []string{"kubernetes:1", "kubernetes:2", "kubernetes:3"}, batch)
}

func TestAppendUnseen_RemembersKeysAcrossBatches(t *testing.T) {
	seen := make(map[string]struct{})

	first := appendUnseen(nil, seen, "kubernetes:1")
	second := appendUnseen(nil, seen, "kubernetes:1")

	assert.Equal(t, []string{"kubernetes:1"}, first)
	assert.Empty(t, second)
}
