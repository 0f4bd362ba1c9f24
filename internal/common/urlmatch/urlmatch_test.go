package urlmatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmptyMatcherAllowsAll(t *testing.T) {
	m, err := Compile(nil)
	require.NoError(t, err)

	assert.True(t, m.Empty())
	assert.True(t, m.AllowsURL("https://anything.example.com/post"))

	var nilMatcher *Matcher
	assert.True(t, nilMatcher.AllowsURL("https://anything.example.com/post"))
}

func TestExactRule(t *testing.T) {
	m, err := Compile([]string{"medium.com"})
	require.NoError(t, err)

	assert.True(t, m.AllowsHost("medium.com"))
	assert.True(t, m.AllowsHost("MEDIUM.COM"))
	assert.False(t, m.AllowsHost("blog.medium.com"))
	assert.False(t, m.AllowsHost("notmedium.com"))
}

func TestWildcardRule(t *testing.T) {
	m, err := Compile([]string{"*.medium.com"})
	require.NoError(t, err)

	assert.True(t, m.AllowsHost("blog.medium.com"))
	assert.True(t, m.AllowsHost("a.b.medium.com"))
	assert.True(t, m.AllowsHost("Blog.Medium.Com"))
	assert.False(t, m.AllowsHost("medium.com"))
	assert.False(t, m.AllowsHost("medium.com.evil.org"))
}

func TestRegexpRules(t *testing.T) {
	m, err := Compile([]string{`~^towardsdatascience\.com$`})
	require.NoError(t, err)

	assert.True(t, m.AllowsHost("towardsdatascience.com"))
	assert.False(t, m.AllowsHost("Towardsdatascience.com"))

	ci, err := Compile([]string{`~*^towardsdatascience\.com$`})
	require.NoError(t, err)
	assert.True(t, ci.AllowsHost("TowardsDataScience.com"))
}

func TestMultipleRulesAnyMatch(t *testing.T) {
	m, err := Compile([]string{"medium.com", "*.medium.com"})
	require.NoError(t, err)

	assert.True(t, m.AllowsHost("medium.com"))
	assert.True(t, m.AllowsHost("blog.medium.com"))
	assert.False(t, m.AllowsHost("example.com"))
}

func TestAllowsURLParsesHost(t *testing.T) {
	m, err := Compile([]string{"medium.com"})
	require.NoError(t, err)

	assert.True(t, m.AllowsURL("https://medium.com/@author/story-1234"))
	assert.True(t, m.AllowsURL("https://medium.com:443/story"))
	assert.False(t, m.AllowsURL("https://example.com/story"))
	assert.False(t, m.AllowsURL("not-a-url"))
}

func TestCompileErrors(t *testing.T) {
	_, err := Compile([]string{""})
	assert.Error(t, err)

	_, err = Compile([]string{"~[invalid"})
	assert.Error(t, err)

	_, err = Compile([]string{"~*[invalid"})
	assert.Error(t, err)
}
