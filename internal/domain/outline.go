package domain

// OutlineItem is one sidebar row for a leader block. WordCount aggregates
// the leader's body run, since the sidebar pairs it with WordGoal.
type OutlineItem struct {
	ID              string        `json:"id"`
	Title           string        `json:"title"`
	Level           int           `json:"level"`
	IsPseudoSection bool          `json:"isPseudoSection"`
	IsBibliography  bool          `json:"isBibliography"`
	Status          SectionStatus `json:"status"`
	Tags            []string      `json:"tags,omitempty"`
	WordCount       int           `json:"wordCount"`
	WordGoal        int           `json:"wordGoal"`
}

// LeaderUpdate names one leader in the desired new section order, with
// optional replacement content applied in the same transaction as the
// resequencing.
type LeaderUpdate struct {
	ID           string      `json:"id"`
	Markdown     Opt[string] `json:"markdown,omitzero"`
	HeadingLevel Opt[int]    `json:"headingLevel,omitzero"`
}

// Section is a leader with its grouped body run, the derived view of the
// flat block table. The preamble group has a nil Leader.
type Section struct {
	Leader *Block
	Body   []Block
}
