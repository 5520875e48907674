package catalog

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlug(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		target string
		want   string
	}{
		{name: "bare", target: "snake-io", want: "snake-io"},
		{name: "bare with slashes", target: "/snake-io/", want: "snake-io"},
		{name: "games url", target: "https://gamedistribution.com/games/snake-io/", want: "snake-io"},
		{name: "games url with trailing path", target: "https://gamedistribution.com/games/snake-io/play", want: "snake-io"},
		{name: "other url", target: "https://example.com/catalog/puzzle-land", want: "puzzle-land"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := Slug(tc.target)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestSlugRejectsUnusableTargets(t *testing.T) {
	t.Parallel()

	for _, target := range []string{"", "///", "https://gamedistribution.com", "https://gamedistribution.com/games/"} {
		_, err := Slug(target)
		require.Error(t, err, target)
		assert.True(t, errors.Is(err, ErrInvalidTarget), target)
	}
}

func TestPageURLRoundTripsSlug(t *testing.T) {
	t.Parallel()

	for _, slug := range []string{"snake-io", "a", "moto-x3m-pool-party", "game_2048"} {
		pageURL, err := PageURL(slug, "")
		require.NoError(t, err)
		assert.True(t, strings.HasSuffix(pageURL, "/"), pageURL)

		segments := pathSegments(strings.SplitN(pageURL, "://", 2)[1])
		require.NotEmpty(t, segments)
		assert.Equal(t, slug, segments[len(segments)-1])

		back, err := Slug(pageURL)
		require.NoError(t, err)
		assert.Equal(t, slug, back)
	}
}

func TestPageURLNormalizesFullURLs(t *testing.T) {
	t.Parallel()

	got, err := PageURL("https://gamedistribution.com/games/snake-io?ref=home#top", "")
	require.NoError(t, err)
	assert.Equal(t, "https://gamedistribution.com/games/snake-io/", got)

	got, err = PageURL("snake-io", "http://127.0.0.1:8080/")
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:8080/games/snake-io/", got)
}

func TestParseTargets(t *testing.T) {
	t.Parallel()

	input := "# seeds\nsnake-io\n\n   \nhttps://gamedistribution.com/games/puzzle/\n  # indented comment\n  moto  \n"
	got, err := ParseTargets(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, []string{"snake-io", "https://gamedistribution.com/games/puzzle/", "moto"}, got)
}

func TestHTTPStatusErrorRetryable(t *testing.T) {
	t.Parallel()

	assert.False(t, (&HTTPStatusError{StatusCode: 404}).Retryable())
	assert.False(t, (&HTTPStatusError{StatusCode: 403}).Retryable())
	assert.True(t, (&HTTPStatusError{StatusCode: 429}).Retryable())
	assert.True(t, (&HTTPStatusError{StatusCode: 500}).Retryable())
	assert.True(t, (&HTTPStatusError{StatusCode: 503}).Retryable())
	assert.Equal(t, "HTTP 404 Not Found", (&HTTPStatusError{StatusCode: 404}).Error())
}

func TestFailedRecordKeepsOnlyKeyFields(t *testing.T) {
	t.Parallel()

	rec := FailedRecord("snake-io", "https://gamedistribution.com/games/snake-io/", fixedTime, errors.New("boom"))
	assert.Equal(t, "snake-io", rec.Slug)
	assert.True(t, rec.Failed())
	assert.Equal(t, "boom", Deref(rec.Error))
	assert.Nil(t, rec.Name)
	assert.Nil(t, rec.CoverImageURL)
	assert.Nil(t, rec.Tags)
}
