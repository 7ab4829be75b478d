package fizztest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModelSaveUnpackLoad(t *testing.T) {
	model := &Model{}
	model.Init()
	defer model.InternalCleanup()

	author := model.State["author"].(*StoreRoleAdapter)
	player := model.State["player"].(*StoreRoleAdapter)

	ret, err := player.Unpack(nil)
	require.NoError(t, err)
	assert.Equal(t, "nothing", ret)

	_, err = author.Save([]Choice{{"name", "a"}, {"value", 27}, {"persistent", true}})
	require.NoError(t, err)
	_, err = author.Save([]Choice{{"name", "b"}, {"value", 11}, {"persistent", false}})
	require.NoError(t, err)

	ret, err = author.Load([]Choice{{"name", "b"}, {"persistent", true}})
	require.NoError(t, err)
	assert.Equal(t, "notfound", ret)

	ret, err = player.Unpack(nil)
	require.NoError(t, err)
	AssertModelEquals(t, `{
		"returns": ["a"],
		"roles": [
			{"ref_string": "ObjectStore#0", "fields": {"objects": {
				"project/Resources/DS_a.bytes": 27,
				"project/Resources/DeploymentSaveTracker.bytes": ["a"],
				"project/DeveloperSaves/DS_b.bytes": 11,
				"data/DS_a.bytes": 27
			}}},
			{"ref_string": "Author#0", "fields": {"persistent_names": ["a"]}},
			{"ref_string": "Player#0", "fields": {"persistent_names": ["a"]}}
		]
	}`, model, ret)

	ret, err = player.Load([]Choice{{"name", "a"}, {"persistent", true}})
	require.NoError(t, err)
	assert.Equal(t, 27, ret)

	objects := model.State["objects"].(*ObjectStoreRoleAdapter)
	assert.Len(t, objects.SortedKeys(), 4)
}
