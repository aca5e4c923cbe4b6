package browser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"indiflow/internal/dom"
	"indiflow/internal/models"
)

func TestDecodeEvents(t *testing.T) {
	raw := []byte(`[
		{"type":"click","path":[1,0,2],"x":10.5,"y":20,"mods":{"ctrl":true},"ts":1700000000000},
		{"type":"input","path":[1,3],"value":"hel"},
		{"type":"scroll","sx":0,"sy":640},
		{"type":"navigate","url":"https://app.test/next"},
		{"type":"mutation","count":4},
		{"type":"touchstart","path":[1]}
	]`)

	evs := decodeEvents(raw)
	require.Len(t, evs, 5, "unknown types are dropped")

	click := evs[0]
	assert.Equal(t, dom.UserClick, click.Type)
	assert.Equal(t, []int{1, 0, 2}, click.Path)
	assert.Equal(t, 10.5, click.X)
	assert.Equal(t, models.Modifiers{Ctrl: true}, click.Modifiers)
	assert.Equal(t, int64(1700000000000), click.Time.UnixMilli())

	assert.Equal(t, "hel", evs[1].Value)
	assert.False(t, evs[2].targeted())
	assert.Equal(t, 640.0, evs[2].ScrollY)
	assert.Equal(t, "https://app.test/next", evs[3].URL)
	assert.Equal(t, 4, evs[4].Mutations)
}

func TestDecodeEventsRejectsGarbage(t *testing.T) {
	assert.Nil(t, decodeEvents(nil))
	assert.Nil(t, decodeEvents([]byte(`{not json`)))
	assert.Empty(t, decodeEvents([]byte(`[]`)))
}

func TestSamePath(t *testing.T) {
	assert.True(t, samePath([]int{1, 2}, []int{1, 2}))
	assert.True(t, samePath([]int{}, []int{}))
	assert.False(t, samePath([]int{1, 2}, []int{1, 3}))
	assert.False(t, samePath(nil, nil), "untargeted events never share a path")
}

func TestElementScriptEmbedsPathAndArgs(t *testing.T) {
	script, err := elementScript([]int{1, 4}, setValueBody, map[string]string{"value": `it's "quoted"`})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(script, `})([1,4], {"value":"it's \"quoted\""})`), script)
	assert.Contains(t, script, "desc.set.call(el, args.value)")

	script, err = elementScript(nil, clickBody, nil)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(script, `})([], null)`), script)
}

func TestRecorderIgnoresInnerScrollContainers(t *testing.T) {
	start := strings.Index(recorderScript, "addEventListener('scroll'")
	require.NotEqual(t, -1, start)
	listener := recorderScript[start:]
	listener = listener[:strings.Index(listener, "}, {capture")]

	guard := strings.Index(listener, "e.target !== document && e.target !== window")
	require.NotEqual(t, -1, guard, listener)
	assert.Less(t, guard, strings.Index(listener, "rec.add("), "the target check runs before the step is queued")
}
