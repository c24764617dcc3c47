package item

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFlex_UnmarshalNumberAndString(t *testing.T) {
	var v struct {
		ID   ID   `json:"id"`
		Year Flex `json:"year"`
	}

	require.NoError(t, json.Unmarshal([]byte(`{"id": 42, "year": "2024"}`), &v))
	require.Equal(t, ID("42"), v.ID)
	require.Equal(t, Flex("2024"), v.Year)

	require.NoError(t, json.Unmarshal([]byte(`{"id": "j-7", "year": 2023}`), &v))
	require.Equal(t, ID("j-7"), v.ID)
	require.Equal(t, Flex("2023"), v.Year)

	require.NoError(t, json.Unmarshal([]byte(`{"id": null}`), &v))
	require.Equal(t, ID(""), v.ID)

	require.Error(t, json.Unmarshal([]byte(`{"id": true}`), &v))
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind(" Judgment ")
	require.NoError(t, err)
	require.Equal(t, KindJudgment, k)

	_, err = ParseKind("podcast")
	require.Error(t, err)
}

func TestJudgment_DisplayFallbacks(t *testing.T) {
	tests := []struct {
		name string
		j    Judgment
		want string
	}{
		{"title", Judgment{ID: "1", Title: "State v. Rao"}, "State v. Rao"},
		{"parties", Judgment{ID: "2", Petitioner: "A", Respondent: "B"}, "A v. B"},
		{"case number", Judgment{ID: "3", CaseNumber: "CRL.A 12/2020"}, "CRL.A 12/2020"},
		{"cnr", Judgment{ID: "4", CNR: "DLHC010000012020"}, "DLHC010000012020"},
		{"nothing", Judgment{ID: "5"}, "Judgment 5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := tt.j.Display()
			require.Equal(t, tt.want, row.Title)
			require.Equal(t, KindJudgment, row.Kind)
			require.Equal(t, "/judgment/"+string(tt.j.ID), row.Link)
		})
	}
}

func TestJudgment_Subtitle(t *testing.T) {
	row := Judgment{ID: "1", CourtName: "Delhi High Court", Judge: "", DecisionDate: "2024-01-01"}.Display()
	require.Equal(t, "Delhi High Court", row.Subtitle)
	require.Equal(t, "2024-01-01", row.Date)
}

func TestMapping_Display(t *testing.T) {
	row := Mapping{ID: "9", MappingType: "ipc_bns", SourceSection: "302", TargetSection: "103", SourceTitle: "Murder"}.Display()
	require.Equal(t, "302 → 103", row.Title)
	require.Equal(t, "ipc_bns · Murder", row.Subtitle)
}

func TestBookmark_DisplayLinksJudgments(t *testing.T) {
	b := Bookmark{ID: "b1", ItemType: "judgment", ItemID: "77", Folder: "bail", Tags: []string{"sc", "2024"}}
	row := b.Display()
	require.Equal(t, "judgment 77", row.Title)
	require.Equal(t, "bail · sc, 2024", row.Subtitle)
	require.Equal(t, "/judgment/77", row.Link)

	row = Bookmark{ID: "b2", ItemType: "act", ItemID: "3", Title: "Evidence Act"}.Display()
	require.Equal(t, "Evidence Act", row.Title)
	require.Empty(t, row.Link)
}

func TestNote_Display(t *testing.T) {
	kind := KindJudgment
	ref := "77"
	n := Note{ID: "01N", Title: "Bail reasoning", ItemKind: &kind, ItemID: &ref, UpdatedAt: 1704067200}
	row := n.Display()
	require.Equal(t, "judgment 77", row.Subtitle)
	require.Equal(t, "2024-01-01", row.Date)
}

func TestRows(t *testing.T) {
	rows := Rows([]Act{{ID: "1", ShortTitle: "Evidence Act", Year: "1872"}, {ID: "2", LongTitle: "An Act to consolidate"}})
	require.Len(t, rows, 2)
	require.Equal(t, "Evidence Act", rows[0].Title)
	require.Equal(t, "1872", rows[0].Date)
	require.Equal(t, "An Act to consolidate", rows[1].Title)
}

func TestItemInterface(t *testing.T) {
	items := []Item{Judgment{ID: "1"}, Act{ID: "2"}, Mapping{ID: "3"}, Bookmark{ID: "4"}, Download{ID: "5"}, Note{ID: "6"}, Event{ID: "7"}}
	kinds := []Kind{KindJudgment, KindAct, KindMapping, KindBookmark, KindDownload, KindNote, KindEvent}
	for i, it := range items {
		require.Equal(t, kinds[i], it.Kind())
		require.Equal(t, kinds[i], it.Display().Kind)
		require.NotEmpty(t, it.Key())
	}
}
