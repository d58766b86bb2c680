package rewrite

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pdiddy/paper-digest/pkg/types"
)

const remote = "https://s2.loli.net/2024/01/01/abcd.png"

// aliasesFor registers the three spellings the rehoster produces for a
// relative image path.
func aliasesFor(p, url string) types.PathAliasMap {
	return types.NewPathAliasMap(
		types.AliasEntry{Path: p, URL: url},
		types.AliasEntry{Path: "./" + p, URL: url},
	)
}

func TestRewrite_AliasSpellings(t *testing.T) {
	aliases := aliasesFor("images_7_2024-01-01/img-1", remote)

	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "dot slash spelling",
			in:   "![fig](./images_7_2024-01-01/img-1)",
			want: "![fig](" + remote + ")",
		},
		{
			name: "plain spelling",
			in:   "see images_7_2024-01-01/img-1 for details",
			want: "see " + remote + " for details",
		},
		{
			name: "end of sentence",
			in:   "Figure at images_7_2024-01-01/img-1.",
			want: "Figure at " + remote + ".",
		},
		{
			name: "longer filename is not a match",
			in:   "![fig](images_7_2024-01-01/img-10)",
			want: "![fig](images_7_2024-01-01/img-10)",
		},
		{
			name: "nested under another directory",
			in:   "![fig](papers/images_7_2024-01-01/img-1)",
			want: "![fig](" + remote + ")",
		},
		{
			name: "no references",
			in:   "plain text",
			want: "plain text",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Rewrite(tt.in, aliases))
		})
	}
}

func TestRewrite_ImageDirectoryFallback(t *testing.T) {
	aliases := aliasesFor("images_7_2024-01-01/img-1", remote)

	in := `<img src="/tmp/run/Images/img-1"> and ![x](figure_images/img-1) but not ![y](figures/img-1)`
	want := `<img src="` + remote + `"> and ![x](` + remote + `) but not ![y](figures/img-1)`
	assert.Equal(t, want, Rewrite(in, aliases))
}

func TestRewrite_FallbackKeepsSurroundingProse(t *testing.T) {
	const url = "https://host/a.png"
	aliases := aliasesFor("papers/images_7_2024-01-01/img-0.jpeg", url)

	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "full-width parentheses",
			in:   "模型结构如图所示（images_7_2024-01-01/img-0.jpeg）。",
			want: "模型结构如图所示（" + url + "）。",
		},
		{
			name: "glued to CJK text",
			in:   "模型结构见图images_7_2024-01-01/img-0.jpeg",
			want: "模型结构见图" + url,
		},
		{
			name: "after colon and space",
			in:   "Figure: images_7_2024-01-01/img-0.jpeg.",
			want: "Figure: " + url + ".",
		},
		{
			name: "glued to a colon is not a path start",
			in:   "Figure:images_7_2024-01-01/img-0.jpeg",
			want: "Figure:images_7_2024-01-01/img-0.jpeg",
		},
		{
			name: "markdown image inside Chinese sentence",
			in:   "如下：![架构](./out/images_7_2024-01-01/img-0.jpeg)所示",
			want: "如下：![架构](" + url + ")所示",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Rewrite(tt.in, aliases)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, Rewrite(got, aliases))
		})
	}
}

func TestRewrite_LeavesRemoteURLsAlone(t *testing.T) {
	aliases := aliasesFor("images_7_2024-01-01/img-1", remote)

	in := "![old](https://cdn.example.com/images_7_2024-01-01/img-1)"
	assert.Equal(t, in, Rewrite(in, aliases))
}

func TestRewrite_LongestAliasWins(t *testing.T) {
	aliases := types.NewPathAliasMap(
		types.AliasEntry{Path: "images/a", URL: "https://h/short.png"},
		types.AliasEntry{Path: "images/a/b", URL: "https://h/long.png"},
	)
	assert.Equal(t, "![](https://h/long.png) ![](https://h/short.png)",
		Rewrite("![](images/a/b) ![](images/a)", aliases))
}

func TestRewrite_DollarInURL(t *testing.T) {
	aliases := aliasesFor("images_1/img-1", "https://h/x$1.png")
	assert.Equal(t, "![](https://h/x$1.png)", Rewrite("![](images_1/img-1)", aliases))
}

func TestRewrite_Idempotent(t *testing.T) {
	aliases := types.NewPathAliasMap(
		types.AliasEntry{Path: "images_7_2024-01-01/img-1", URL: remote},
		types.AliasEntry{Path: "./images_7_2024-01-01/img-1", URL: remote},
		types.AliasEntry{Path: "images_7_2024-01-01/img-2", URL: "https://h/images/img-2"},
		types.AliasEntry{Path: "./images_7_2024-01-01/img-2", URL: "https://h/images/img-2"},
	)
	inputs := []string{
		"![a](./images_7_2024-01-01/img-1)\n![b](images_7_2024-01-01/img-2)",
		"raw /abs/images_7_2024-01-01/img-2, and 'images/img-1'",
		"nothing here",
		"",
	}
	for _, in := range inputs {
		once := Rewrite(in, aliases)
		assert.Equal(t, once, Rewrite(once, aliases), "input %q", in)
	}
}

func TestRewrite_EmptyAliases(t *testing.T) {
	in := "![a](./images_7_2024-01-01/img-1)"
	assert.Equal(t, in, Rewrite(in, types.NewPathAliasMap()))
}
