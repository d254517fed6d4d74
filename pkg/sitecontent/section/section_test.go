package section

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-sitecontent/pkg/sitecontent"
)

func TestExhibitions_RoundTrip(t *testing.T) {
	items := []Exhibition{
		{Year: "2014", Description: "Galleria Civica, Modena", Href: "https://example.org/2014"},
		{Year: "2019", Description: "Biennale, Venezia"},
	}

	raw, err := EncodeExhibitions(items)
	require.NoError(t, err)
	assert.Equal(t, `[{"year":2014,"description":"Galleria Civica, Modena","href":"https://example.org/2014"},{"year":2019,"description":"Biennale, Venezia"}]`, raw)

	if diff := cmp.Diff(items, DecodeExhibitions(raw)); diff != "" {
		t.Errorf("DecodeExhibitions mismatch (-want +got):\n%s", diff)
	}
}

func TestEncodeExhibitions_Nil(t *testing.T) {
	raw, err := EncodeExhibitions(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", raw)
}

func TestDecodeExhibitions_InvalidYieldsNoItems(t *testing.T) {
	for _, raw := range []string{"", "not json", `{"year":2014}`, "null"} {
		got := DecodeExhibitions(raw)
		assert.NotNil(t, got, raw)
		assert.Empty(t, got, raw)
	}
}

func TestDecodeExhibitions_StringAndNumberYears(t *testing.T) {
	raw := `[{"year":"2020","description":"Modena"},{"year":2019,"description":"Venezia"},{"year":"2018-2019","description":"Tour"}]`

	want := []Exhibition{
		{Year: "2020", Description: "Modena"},
		{Year: "2019", Description: "Venezia"},
		{Year: "2018-2019", Description: "Tour"},
	}
	if diff := cmp.Diff(want, DecodeExhibitions(raw)); diff != "" {
		t.Errorf("DecodeExhibitions mismatch (-want +got):\n%s", diff)
	}

	encoded, err := EncodeExhibitions(want)
	require.NoError(t, err)
	assert.Equal(t, `[{"year":2020,"description":"Modena"},{"year":2019,"description":"Venezia"},{"year":"2018-2019","description":"Tour"}]`, encoded)
}

func TestDecodeExhibitions_DropsOnlyBadEntries(t *testing.T) {
	raw := `[{"year":true,"description":"Broken"},{"year":2019,"description":"Venezia"},7,{"year":2017,"description":12}]`

	got := DecodeExhibitions(raw)
	assert.Equal(t, []Exhibition{{Year: "2019", Description: "Venezia"}}, got)
}

func TestValidateExhibitions(t *testing.T) {
	got, err := ValidateExhibitions("items", []byte(`[{"year":"2020","description":"Modena"}, {"year":2019,"description":"Venezia"}]`))
	require.NoError(t, err)
	assert.Len(t, DecodeExhibitions(got), 2)

	for name, raw := range map[string]string{
		"BooleanYear":        `[{"year":true,"description":"Modena"}]`,
		"NumericDescription": `[{"year":2019,"description":12}]`,
		"Nested":             `[{"year":2019,"venue":{"city":"Modena"}}]`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ValidateExhibitions("items", []byte(raw))
			require.Error(t, err)
			assert.ErrorIs(t, err, sitecontent.ErrInvalidInput)
		})
	}
}

func TestValidateFlatArray(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		got, err := ValidateFlatArray("items", []byte(`[ {"year": 2014, "description": "Modena", "href": null} ]`))
		require.NoError(t, err)
		assert.Equal(t, `[{"year":2014,"description":"Modena","href":null}]`, got)
	})

	t.Run("Empty", func(t *testing.T) {
		got, err := ValidateFlatArray("items", []byte(`[]`))
		require.NoError(t, err)
		assert.Equal(t, "[]", got)
	})

	tests := map[string]string{
		"NotArray":     `{"year": 2014}`,
		"Null":         `null`,
		"Scalars":      `[1, 2]`,
		"NestedObject": `[{"year": 2014, "venue": {"city": "Modena"}}]`,
		"NestedArray":  `[{"tags": ["a"]}]`,
		"Malformed":    `[{"year":`,
	}
	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ValidateFlatArray("items", []byte(raw))
			require.Error(t, err)
			assert.ErrorIs(t, err, sitecontent.ErrInvalidInput)
		})
	}
}

func TestProse_Paragraphs(t *testing.T) {
	p := Prose("First line.\\r\\nSecond line.\r\n\r\n  Third line.  \n\n\nFourth.")
	want := []string{"First line.", "Second line.", "Third line.", "Fourth."}
	if diff := cmp.Diff(want, p.Paragraphs()); diff != "" {
		t.Errorf("Paragraphs mismatch (-want +got):\n%s", diff)
	}

	assert.Empty(t, Prose("  \n ").Paragraphs())
}

func TestProse_HTML(t *testing.T) {
	html, err := Prose("Painter and *sculptor*.\nLives in Milan.").HTML()
	require.NoError(t, err)
	assert.Equal(t, "<p>Painter and <em>sculptor</em>.</p>\n<p>Lives in Milan.</p>", html)

	html, err = Prose(`Hello <script>alert(1)</script>`).HTML()
	require.NoError(t, err)
	assert.NotContains(t, html, "<script")

	html, err = Prose("").HTML()
	require.NoError(t, err)
	assert.Empty(t, html)
}

func TestParseFlag(t *testing.T) {
	for _, s := range []string{"true", "TRUE", "1", "on", "yes", " true "} {
		v, err := ParseFlag(s)
		require.NoError(t, err, s)
		assert.True(t, v, s)
	}
	for _, s := range []string{"false", "0", "off", "no", ""} {
		v, err := ParseFlag(s)
		require.NoError(t, err, s)
		assert.False(t, v, s)
	}

	_, err := ParseFlag("maybe")
	assert.ErrorIs(t, err, sitecontent.ErrInvalidInput)

	assert.Equal(t, "true", EncodeFlag(true))
	assert.Equal(t, "false", EncodeFlag(false))
}

func TestDecode(t *testing.T) {
	assert.Equal(t, KindFlag, KindFor("about", "hero"))
	assert.Equal(t, KindExhibitionList, KindFor("about", "exhibitions"))
	assert.Equal(t, KindProse, KindFor("about", "overview"))
	assert.Equal(t, KindProse, KindFor("home", "hero"))

	d, err := Decode(KindFlag, sitecontent.StringPtr("false"))
	require.NoError(t, err)
	require.NotNil(t, d.Flag)
	assert.False(t, *d.Flag)

	d, err = Decode(KindExhibitionList, sitecontent.StringPtr(`[{"year":2020,"description":"Roma"}]`))
	require.NoError(t, err)
	assert.Equal(t, []Exhibition{{Year: "2020", Description: "Roma"}}, d.Exhibitions)

	d, err = Decode(KindProse, sitecontent.StringPtr("One\nTwo"))
	require.NoError(t, err)
	assert.Equal(t, []string{"One", "Two"}, d.Paragraphs)
	assert.Equal(t, "<p>One</p>\n<p>Two</p>", d.HTML)

	d, err = Decode(KindProse, nil)
	require.NoError(t, err)
	assert.Equal(t, Description{Kind: KindProse}, d)
}
