package card

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseTags_NormalizesSegments(t *testing.T) {
	tags := ParseTags("tag1, , tag2 , ,tag3")
	require.Equal(t, []string{"tag1", "tag2", "tag3"}, tags)
}

func TestParseTags_Empty(t *testing.T) {
	require.Nil(t, ParseTags(""))
	require.Nil(t, ParseTags(" , ,, "))
}

func TestParseTags_PreservesOrder(t *testing.T) {
	tags := ParseTags("zulu, alpha, mike")
	require.Equal(t, []string{"zulu", "alpha", "mike"}, tags)
}

func TestParseStats_NameValuePairs(t *testing.T) {
	stats := ParseStats("power=2, toughness = 1, =orphan, nopair, ")
	require.Equal(t, map[string]string{"power": "2", "toughness": "1"}, stats)
}

func TestParseStats_Empty(t *testing.T) {
	require.Nil(t, ParseStats(""))
	require.Nil(t, ParseStats("no pairs here"))
}

func TestFormatStats_StableOrder(t *testing.T) {
	out := FormatStats(map[string]string{"toughness": "1", "power": "2", "cost": "3"})
	require.Equal(t, "cost=3, power=2, toughness=1", out)
	require.Empty(t, FormatStats(nil))
}

func TestFields_ExcludesServerAssignedKeys(t *testing.T) {
	d := Draft{
		Title:       "Goblin Raider",
		CardType:    "creature",
		Subtype:     "goblin",
		Description: "A small but vicious raider.",
		Tags:        []string{"red", "common"},
	}

	fields := d.Fields()
	for _, key := range []string{KeyID, KeyCreatedBy, KeyCreatedAt, KeyModifiedBy, KeyModifiedAt, KeyVisible} {
		require.NotContains(t, fields, key)
	}
	require.Equal(t, "Goblin Raider", fields[FieldTitle])
	require.Equal(t, "creature", fields[FieldType])
}

func TestFields_TrimsRequiredValues(t *testing.T) {
	d := Draft{Title: "  Trimmed  ", CardType: " creature ", Subtype: " goblin "}
	fields := d.Fields()
	require.Equal(t, "Trimmed", fields[FieldTitle])
	require.Equal(t, "creature", fields[FieldType])
	require.Equal(t, "goblin", fields[FieldSubtype])
}

func TestFields_StatsArePrefixed(t *testing.T) {
	d := Draft{
		Title:    "Goblin Raider",
		CardType: "creature",
		Subtype:  "goblin",
		Stats:    map[string]string{"power": "2", " toughness ": "1", "  ": "ignored"},
	}

	fields := d.Fields()
	require.Equal(t, "2", fields["stat.power"])
	require.Equal(t, "1", fields["stat.toughness"])
	require.NotContains(t, fields, "stat.")
}
