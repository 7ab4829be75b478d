package fizztest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sort"
	"strings"
	"testing"

	"github.com/agiledragon/gomonkey/v2"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thanos-io/objstore"

	"github.com/deploystore/deploystore-go/deploystore"
	"github.com/deploystore/deploystore-go/deploystore/codec"
	"github.com/deploystore/deploystore-go/deploystore/env"
	"github.com/deploystore/deploystore-go/deploystore/manifest"
)

const (
	projectRoot = "project"
	dataRoot    = "data"
)

type Choice struct {
	Name  string
	Value interface{}
}

type Role interface {
	GetState() (map[string]interface{}, error)
}

// Counter is the only object type the model saves.
type Counter struct {
	Value int
}

func (Counter) EncodableType() string { return "Counter" }

// ------------------------------------------------
// ObjectStoreRoleAdapter
// ------------------------------------------------

type ObjectStoreRole interface {
	Role
}

// ObjectStoreRoleAdapter exposes the bucket contents: decoded counters and
// tracker names, keyed by their path inside the bucket.
type ObjectStoreRoleAdapter struct {
	bucket *objstore.InMemBucket
	opts   deploystore.Options
}

var _ ObjectStoreRole = (*ObjectStoreRoleAdapter)(nil)

func (r *ObjectStoreRoleAdapter) GetState() (map[string]interface{}, error) {
	objects := make(map[string]interface{})
	trackerFile := r.opts.TrackerName + r.opts.FileExt
	for k, data := range r.bucket.Objects() {
		switch {
		case strings.HasSuffix(k, "/"+trackerFile):
			m, err := manifest.FlatBufferCodec{}.Decode(data)
			if err != nil {
				return nil, err
			}
			objects[k] = toInterfaces(m.Names())
		case strings.HasSuffix(k, r.opts.FileExt):
			var c Counter
			if err := (codec.Gob{}).Decode(data, &c); err != nil {
				return nil, err
			}
			objects[k] = float64(c.Value)
		}
	}
	return map[string]interface{}{"objects": objects}, nil
}

// ------------------------------------------------
// StoreRoleAdapter
// ------------------------------------------------

type StoreRole interface {
	Role
	Save(choices []Choice) (interface{}, error)
	Load(choices []Choice) (interface{}, error)
	Unpack(choices []Choice) (interface{}, error)
}

// StoreRoleAdapter drives one Store. Choices are (name, value, persistent) for
// Save and (name, persistent) for Load.
type StoreRoleAdapter struct {
	store *deploystore.Store
}

var _ StoreRole = (*StoreRoleAdapter)(nil)

func (r *StoreRoleAdapter) GetState() (map[string]interface{}, error) {
	names, err := r.store.PersistentNames(context.Background())
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"persistent_names": toInterfaces(names)}, nil
}

func (r *StoreRoleAdapter) Save(choices []Choice) (interface{}, error) {
	name := choices[0].Value.(string)
	value := choices[1].Value.(int)
	persistent := choices[2].Value.(bool)
	return nil, r.store.Save(context.Background(), Counter{Value: value}, name, persistent)
}

func (r *StoreRoleAdapter) Load(choices []Choice) (interface{}, error) {
	name := choices[0].Value.(string)
	persistent := choices[1].Value.(bool)
	v, err := deploystore.TryLoad[Counter](context.Background(), r.store, name, persistent)
	if err != nil {
		return nil, err
	}
	c, ok := v.Get()
	if !ok {
		return "notfound", nil
	}
	return c.Value, nil
}

func (r *StoreRoleAdapter) Unpack(_ []Choice) (interface{}, error) {
	report, err := r.store.Unpack(context.Background())
	if errors.Is(err, deploystore.ErrNothingToUnpack) {
		return "nothing", nil
	}
	if err != nil {
		return nil, err
	}
	return report.Copied, nil
}

// ------------------------------------------------
// Model
// ------------------------------------------------

type Model struct {
	Roles map[string]Role        `json:"roles"`
	State map[string]interface{} `json:"state"`

	patches *gomonkey.Patches
}

func (m *Model) ToJson() string {
	bytes, err := json.Marshal(m)
	if err != nil {
		panic(err)
	}
	return string(bytes)
}

// Init builds an authoring Store and a packaged Store over one in-memory
// bucket, so the packaged side sees the author's Resources as its bundle.
func (m *Model) Init() {
	timeMs := uint64(0)
	m.patches = gomonkey.ApplyFunc(ulid.Make, func() ulid.ULID {
		timeMs++
		return ulid.MustNew(timeMs, nil)
	})

	bucket := objstore.NewInMemBucket()
	opts := deploystore.DefaultOptions()
	opts.Bucket = bucket
	opts.AutoUnpack = false
	opts.Log = slog.New(slog.NewTextHandler(io.Discard, nil))

	author, err := deploystore.OpenWithOptions(env.Static{Authoring: true, Project: projectRoot, Data: dataRoot}, opts)
	if err != nil {
		panic(err)
	}
	player, err := deploystore.OpenWithOptions(env.Static{Authoring: false, Project: projectRoot, Data: dataRoot}, opts)
	if err != nil {
		panic(err)
	}

	objects := &ObjectStoreRoleAdapter{bucket: bucket, opts: opts}
	authorRole := &StoreRoleAdapter{store: author}
	playerRole := &StoreRoleAdapter{store: player}

	m.State = make(map[string]interface{})
	m.State["objects"] = objects
	m.State["author"] = authorRole
	m.State["player"] = playerRole
	m.State["next_ulid"] = func() int { return int(timeMs) + 1 }

	m.Roles = make(map[string]Role)
	m.Roles["ObjectStore#0"] = objects
	m.Roles["Author#0"] = authorRole
	m.Roles["Player#0"] = playerRole
}

func (m *Model) InternalCleanup() {
	m.patches.Reset()
	_ = m.State["author"].(*StoreRoleAdapter).store.Close()
	_ = m.State["player"].(*StoreRoleAdapter).store.Close()
}

func AssertModelEquals(t *testing.T, exp string, model *Model, retVal interface{}) {
	var node map[string]interface{}
	if err := json.Unmarshal([]byte(exp), &node); err != nil {
		panic(err)
	}

	expectedRolesMap := make(map[string]map[string]interface{})
	if node["roles"] != nil {
		expectedRoles := node["roles"].([]interface{})
		for _, r := range expectedRoles {
			role := r.(map[string]interface{})
			expectedRolesMap[role["ref_string"].(string)] = role["fields"].(map[string]interface{})
		}
	}

	if want, ok := node["returns"]; ok {
		got, err := json.Marshal(retVal)
		require.NoError(t, err)
		var normalized interface{}
		require.NoError(t, json.Unmarshal(got, &normalized))
		assert.Equal(t, want, normalized)
	}

	for roleRef, role := range model.Roles {
		state, err := role.GetState()
		require.NoError(t, err)
		e, ok := expectedRolesMap[roleRef]
		require.True(t, ok, "missing expected state for %s", roleRef)
		assert.Equal(t, e, state, roleRef)
	}
}

// SortedKeys lists the object paths held by the bucket.
func (r *ObjectStoreRoleAdapter) SortedKeys() []string {
	var keys []string
	for k := range r.bucket.Objects() {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func toInterfaces(names []string) []interface{} {
	out := make([]interface{}, len(names))
	for i, n := range names {
		out[i] = n
	}
	return out
}
