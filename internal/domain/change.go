package domain

// BlockDiff is one burst of edits captured from the editing surface.
// Inserts carry caller-chosen temporary identifiers; applying the diff
// returns the map from those to the permanent ids.
type BlockDiff struct {
	Updates []BlockUpdate `json:"updates,omitempty"`
	Inserts []BlockInsert `json:"inserts,omitempty"`
	Deletes []string      `json:"deletes,omitempty"`
}

// Empty reports whether the diff carries no work.
func (d *BlockDiff) Empty() bool {
	return len(d.Updates) == 0 && len(d.Inserts) == 0 && len(d.Deletes) == 0
}

// BlockUpdate patches one existing block. Only defined fields are touched.
type BlockUpdate struct {
	ID           string      `json:"id"`
	TextContent  Opt[string] `json:"textContent,omitzero"`
	Markdown     Opt[string] `json:"markdown,omitzero"`
	HeadingLevel Opt[int]    `json:"headingLevel,omitzero"`
}

// BlockInsert creates a new block under a caller-chosen temporary id.
// AfterBlockID may name an existing block or the temp id of an earlier
// insert in the same diff; when empty the block is appended.
type BlockInsert struct {
	TempID       string    `json:"tempId"`
	Type         BlockType `json:"type"`
	TextContent  string    `json:"textContent"`
	Markdown     string    `json:"markdown"`
	HeadingLevel int       `json:"headingLevel,omitempty"`
	AfterBlockID string    `json:"afterBlockId,omitempty"`
}

// ParsedBlock is one ordered descriptor produced by the parser. It carries
// no identity; the engine assigns or reuses ids when the list is applied.
type ParsedBlock struct {
	Type            BlockType `json:"type"`
	TextContent     string    `json:"textContent"`
	Markdown        string    `json:"markdown"`
	HeadingLevel    int       `json:"headingLevel,omitempty"`
	ImageSrc        string    `json:"imageSrc,omitempty"`
	ImageAlt        string    `json:"imageAlt,omitempty"`
	ImageCaption    string    `json:"imageCaption,omitempty"`
	IsPseudoSection bool      `json:"isPseudoSection,omitempty"`
}

// BlockChange is one element of an ordered atomic batch. Exactly one of
// Insert, Patch, or Delete is set.
type BlockChange struct {
	Insert *Block
	Patch  *BlockPatch
	Delete string
}

// BlockPatch updates a block by id, touching only defined fields. Null
// clears the nullable columns (parent, goals, image metadata).
type BlockPatch struct {
	ID                string
	ParentID          Opt[string]
	SortOrder         Opt[float64]
	Type              Opt[BlockType]
	TextContent       Opt[string]
	Markdown          Opt[string]
	HeadingLevel      Opt[int]
	Status            Opt[SectionStatus]
	Tags              Opt[[]string]
	WordGoal          Opt[int]
	GoalType          Opt[GoalType]
	AggregateGoal     Opt[int]
	AggregateGoalType Opt[GoalType]
	WordCount         Opt[int]
	ImageSrc          Opt[string]
	ImageAlt          Opt[string]
	ImageCaption      Opt[string]
	ImageWidth        Opt[int]
	IsBibliography    Opt[bool]
	IsPseudoSection   Opt[bool]
	IsNotes           Opt[bool]
}
