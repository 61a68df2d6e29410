package timecode

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinkify(t *testing.T) {
	text := "The demo starts at [2:15] and ends at [1:00:30]."
	a := Linkify(text)

	require.Len(t, a.Fragments, 5)
	assert.Equal(t, "The demo starts at ", a.Fragments[0].Text)
	require.NotNil(t, a.Fragments[1].Ref)
	assert.Equal(t, "[2:15]", a.Fragments[1].Text)
	assert.Equal(t, 135, a.Fragments[1].Ref.Seconds)
	assert.Nil(t, a.Fragments[2].Ref)
	assert.Equal(t, 3630, a.Fragments[3].Ref.Seconds)
	assert.Equal(t, ".", a.Fragments[4].Text)

	assert.Equal(t, text, a.Plain())

	refs := a.Refs()
	require.Len(t, refs, 2)
	assert.Equal(t, "[2:15]", refs[0].Display)
	assert.Equal(t, "[1:00:30]", refs[1].Display)
}

func TestLinkify_AdjacentAndEdgeRefs(t *testing.T) {
	a := Linkify("[0:01][0:02]")
	require.Len(t, a.Fragments, 2)
	assert.Equal(t, 1, a.Fragments[0].Ref.Seconds)
	assert.Equal(t, 2, a.Fragments[1].Ref.Seconds)
	assert.Equal(t, "[0:01][0:02]", a.Plain())
}

func TestLinkify_NoRefsUnchanged(t *testing.T) {
	for _, text := range []string{"", "plain answer", "a < b && c > d"} {
		t.Run(text, func(t *testing.T) {
			a := Linkify(text)
			assert.Equal(t, text, a.Plain())
			assert.Empty(t, a.Refs())
		})
	}
}

func TestAnnotated_HTML(t *testing.T) {
	t.Run("escapes plain text", func(t *testing.T) {
		assert.Equal(t, "a &lt; b &amp;&amp; &#34;c&#34;", Linkify(`a < b && "c"`).HTML())
	})

	t.Run("references become anchors", func(t *testing.T) {
		got := Linkify("<b>see</b> [1:05]").HTML()
		assert.Equal(t, `&lt;b&gt;see&lt;/b&gt; <a href="#" class="timestamp-link" data-seconds="65">[1:05]</a>`, got)
	})
}

func TestAnnotated_Render(t *testing.T) {
	a := Linkify("first [0:10] then [0:20]")
	got := a.Render(
		func(s string) string { return s },
		func(i int, r Ref) string { return fmt.Sprintf("%s#%d", r.Display, i+1) },
	)
	assert.Equal(t, "first [0:10]#1 then [0:20]#2", got)
}
