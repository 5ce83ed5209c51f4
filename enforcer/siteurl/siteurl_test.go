package siteurl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilder(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	_, err := NewBuilder("example.com")
	assert.Error(err)

	b, err := NewBuilder("https://addons.example.com/")
	require.NoError(err)
	assert.Equal("https://addons.example.com", b.SiteURL())

	assert.Equal("https://addons.example.com/addon/tabby/", b.Absolutify("/addon/tabby/"))
	assert.Equal("https://addons.example.com/addon/tabby/", b.Absolutify("addon//tabby/"))
	assert.Equal("https://other.example.com/x", b.Absolutify("https://other.example.com/x"))

	u, err := b.AppealAuthorURL("ABC123")
	require.NoError(err)
	assert.Equal("https://addons.example.com/abuse/appeal/ABC123/", u)

	u, err = b.AppealReporterURL(7, "ABC123")
	require.NoError(err)
	assert.Equal("https://addons.example.com/abuse/appeal/7/ABC123/", u)

	_, err = b.Reverse("nope")
	assert.Error(err)
}
