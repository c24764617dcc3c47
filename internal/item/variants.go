package item

import (
	"fmt"
	"time"
)

// Judgment is a court decision.
type Judgment struct {
	ID             ID     `json:"id"`
	Title          string `json:"title,omitempty"`
	CaseNumber     string `json:"case_number,omitempty"`
	CourtName      string `json:"court_name,omitempty"`
	Judge          string `json:"judge,omitempty"`
	DecisionDate   string `json:"decision_date,omitempty"`
	CNR            string `json:"cnr,omitempty"`
	Year           Flex   `json:"year,omitempty"`
	Petitioner     string `json:"petitioner,omitempty"`
	Respondent     string `json:"respondent,omitempty"`
	DisposalNature string `json:"disposal_nature,omitempty"`
	Citation       string `json:"citation,omitempty"`
	Summary        string `json:"summary,omitempty"`
	PDFLink        string `json:"pdf_link,omitempty"`
}

func (j Judgment) Kind() Kind  { return KindJudgment }
func (j Judgment) Key() string { return string(j.ID) }

// Display builds the list row for a judgment. Missing titles fall back to
// "petitioner v. respondent", then the case number, then the CNR.
func (j Judgment) Display() Row {
	title := firstNonEmpty(j.Title, joinNonEmpty(" v. ", j.Petitioner, j.Respondent), j.CaseNumber, j.CNR)
	if title == "" {
		title = fmt.Sprintf("Judgment %s", j.ID)
	}
	return Row{
		Kind:     KindJudgment,
		ID:       string(j.ID),
		Title:    title,
		Subtitle: joinNonEmpty(" · ", j.CourtName, j.Judge),
		Date:     j.DecisionDate,
		Link:     "/judgment/" + string(j.ID),
	}
}

// Act is a central or state statute.
type Act struct {
	ID         ID     `json:"id"`
	ShortTitle string `json:"short_title,omitempty"`
	LongTitle  string `json:"long_title,omitempty"`
	ActNumber  string `json:"act_number,omitempty"`
	Year       Flex   `json:"year,omitempty"`
	ActType    string `json:"act_type,omitempty"`
	State      string `json:"state,omitempty"`
	Ministry   string `json:"ministry,omitempty"`
	Department string `json:"department,omitempty"`
	PDFLink    string `json:"pdf_link,omitempty"`
}

func (a Act) Kind() Kind  { return KindAct }
func (a Act) Key() string { return string(a.ID) }

func (a Act) Display() Row {
	title := firstNonEmpty(a.ShortTitle, a.LongTitle, a.ActNumber)
	if title == "" {
		title = fmt.Sprintf("Act %s", a.ID)
	}
	return Row{
		Kind:     KindAct,
		ID:       string(a.ID),
		Title:    title,
		Subtitle: joinNonEmpty(" · ", a.ActType, a.State, a.Ministry),
		Date:     string(a.Year),
		Link:     a.PDFLink,
	}
}

// Mapping links a section of an old code to its replacement (e.g. IPC → BNS).
type Mapping struct {
	ID            ID     `json:"id"`
	MappingType   string `json:"mapping_type,omitempty"`
	SourceSection string `json:"source_section,omitempty"`
	SourceTitle   string `json:"source_title,omitempty"`
	TargetSection string `json:"target_section,omitempty"`
	TargetTitle   string `json:"target_title,omitempty"`
	Notes         string `json:"notes,omitempty"`
}

func (m Mapping) Kind() Kind  { return KindMapping }
func (m Mapping) Key() string { return string(m.ID) }

func (m Mapping) Display() Row {
	title := joinNonEmpty(" → ", m.SourceSection, m.TargetSection)
	if title == "" {
		title = fmt.Sprintf("Mapping %s", m.ID)
	}
	return Row{
		Kind:     KindMapping,
		ID:       string(m.ID),
		Title:    title,
		Subtitle: joinNonEmpty(" · ", m.MappingType, firstNonEmpty(m.SourceTitle, m.TargetTitle)),
	}
}

// Bookmark is a user-saved reference to another item.
type Bookmark struct {
	ID        ID       `json:"id"`
	ItemType  string   `json:"item_type,omitempty"`
	ItemID    ID       `json:"item_id,omitempty"`
	Title     string   `json:"title,omitempty"`
	Folder    string   `json:"folder,omitempty"`
	Tags      []string `json:"tags,omitempty"`
	Note      string   `json:"note,omitempty"`
	CreatedAt string   `json:"created_at,omitempty"`
}

func (b Bookmark) Kind() Kind  { return KindBookmark }
func (b Bookmark) Key() string { return string(b.ID) }

func (b Bookmark) Display() Row {
	title := firstNonEmpty(b.Title, joinNonEmpty(" ", b.ItemType, string(b.ItemID)))
	row := Row{
		Kind:     KindBookmark,
		ID:       string(b.ID),
		Title:    title,
		Subtitle: joinNonEmpty(" · ", b.Folder, joinNonEmpty(", ", b.Tags...)),
		Date:     b.CreatedAt,
	}
	if b.ItemType == string(KindJudgment) && b.ItemID != "" {
		row.Link = "/judgment/" + string(b.ItemID)
	}
	return row
}

// Download is a locally saved copy of a document.
type Download struct {
	ID        string `json:"id"`
	ItemKind  Kind   `json:"item_kind"`
	ItemID    string `json:"item_id"`
	Title     string `json:"title,omitempty"`
	Path      string `json:"path"`
	Bytes     int64  `json:"bytes"`
	CreatedAt int64  `json:"created_at"`
}

func (d Download) Kind() Kind  { return KindDownload }
func (d Download) Key() string { return d.ID }

func (d Download) Display() Row {
	return Row{
		Kind:     KindDownload,
		ID:       d.ID,
		Title:    firstNonEmpty(d.Title, d.Path),
		Subtitle: joinNonEmpty(" · ", string(d.ItemKind), d.ItemID),
		Date:     unixDate(d.CreatedAt),
	}
}

// Note is a local markdown note, optionally attached to an item.
type Note struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	TitleNorm string   `json:"-"`
	Body      string   `json:"body,omitempty"`
	BodyChars int      `json:"body_chars"`
	Tags      []string `json:"tags,omitempty"`
	ItemKind  *Kind    `json:"item_kind,omitempty"`
	ItemID    *string  `json:"item_id,omitempty"`
	CreatedAt int64    `json:"created_at"`
	UpdatedAt int64    `json:"updated_at"`
	DeletedAt *int64   `json:"deleted_at,omitempty"`
}

func (n Note) Kind() Kind  { return KindNote }
func (n Note) Key() string { return n.ID }

func (n Note) Display() Row {
	row := Row{
		Kind:  KindNote,
		ID:    n.ID,
		Title: n.Title,
		Date:  unixDate(n.UpdatedAt),
		Link:  "/notes/" + n.ID,
	}
	if n.ItemKind != nil && n.ItemID != nil {
		row.Subtitle = string(*n.ItemKind) + " " + *n.ItemID
	}
	return row
}

// Event is a dashboard calendar entry (hearing, deadline, webinar).
type Event struct {
	ID          ID     `json:"id"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	EventType   string `json:"event_type,omitempty"`
	Date        string `json:"date,omitempty"`
	Location    string `json:"location,omitempty"`
}

func (e Event) Kind() Kind  { return KindEvent }
func (e Event) Key() string { return string(e.ID) }

func (e Event) Display() Row {
	return Row{
		Kind:     KindEvent,
		ID:       string(e.ID),
		Title:    firstNonEmpty(e.Title, e.EventType, "Event"),
		Subtitle: joinNonEmpty(" · ", e.EventType, e.Location),
		Date:     e.Date,
	}
}

func unixDate(ts int64) string {
	if ts == 0 {
		return ""
	}
	return time.Unix(ts, 0).UTC().Format("2006-01-02")
}
