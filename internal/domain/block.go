package domain

import "time"

type BlockType string

const (
	BlockTypeParagraph    BlockType = "paragraph"
	BlockTypeHeading      BlockType = "heading"
	BlockTypeBulletList   BlockType = "bulletList"
	BlockTypeOrderedList  BlockType = "orderedList"
	BlockTypeListItem     BlockType = "listItem"
	BlockTypeBlockquote   BlockType = "blockquote"
	BlockTypeCode         BlockType = "code"
	BlockTypeHR           BlockType = "hr"
	BlockTypeSectionBreak BlockType = "sectionBreak"
	BlockTypeBibliography BlockType = "bibliography"
	BlockTypeTable        BlockType = "table"
	BlockTypeImage        BlockType = "image"
)

// IsLeader reports whether blocks of this type own the run of body blocks
// that follows them, up to the next leader.
func (t BlockType) IsLeader() bool {
	return t == BlockTypeHeading || t == BlockTypeSectionBreak || t == BlockTypeBibliography
}

// SectionStatus tracks where a section sits in the writing cycle.
type SectionStatus string

const (
	StatusNone    SectionStatus = ""
	StatusNext    SectionStatus = "next"
	StatusWriting SectionStatus = "writing"
	StatusWaiting SectionStatus = "waiting"
	StatusReview  SectionStatus = "review"
	StatusFinal   SectionStatus = "final"
)

// Cycle returns the status following s. Final wraps around to next, and an
// unset status enters the cycle at next.
func (s SectionStatus) Cycle() SectionStatus {
	switch s {
	case StatusNext:
		return StatusWriting
	case StatusWriting:
		return StatusWaiting
	case StatusWaiting:
		return StatusReview
	case StatusReview:
		return StatusFinal
	default:
		return StatusNext
	}
}

// GoalType selects the unit a word goal is measured in.
type GoalType string

const (
	GoalWords GoalType = "words"
	GoalChars GoalType = "chars"
)

// Block is the atomic unit of document content. Blocks are flat ordered
// rows; section hierarchy is derived at read time from sortOrder and the
// leader types, never stored.
type Block struct {
	ID        string `json:"id"`
	ProjectID string `json:"projectId"`
	// ParentID nests a list item inside its list. It never encodes heading
	// hierarchy.
	ParentID     string    `json:"parentId,omitempty"`
	SortOrder    float64   `json:"sortOrder"`
	Type         BlockType `json:"type"`
	TextContent  string    `json:"textContent"`
	Markdown     string    `json:"markdown"`
	HeadingLevel int       `json:"headingLevel,omitempty"` // 1-6, headings only

	// Section metadata, meaningful on leader blocks.
	Status            SectionStatus `json:"status,omitempty"`
	Tags              []string      `json:"tags,omitempty"`
	WordGoal          int           `json:"wordGoal,omitempty"`
	GoalType          GoalType      `json:"goalType,omitempty"`
	AggregateGoal     int           `json:"aggregateGoal,omitempty"`
	AggregateGoalType GoalType      `json:"aggregateGoalType,omitempty"`

	WordCount int `json:"wordCount"` // derived from TextContent

	// Image metadata, image blocks only.
	ImageSrc     string `json:"imageSrc,omitempty"`
	ImageAlt     string `json:"imageAlt,omitempty"`
	ImageCaption string `json:"imageCaption,omitempty"`
	ImageWidth   int    `json:"imageWidth,omitempty"`

	IsBibliography  bool `json:"isBibliography,omitempty"` // at most one per project
	IsPseudoSection bool `json:"isPseudoSection,omitempty"`
	IsNotes         bool `json:"isNotes,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// IsLeader reports whether b heads a section run.
func (b *Block) IsLeader() bool { return b.Type.IsLeader() }

// Title is the text a leader is matched by during scoped replaces. Pseudo
// sections have no real heading text and never match.
func (b *Block) Title() string {
	if b.IsPseudoSection {
		return ""
	}
	return b.TextContent
}

// BlockStore is the persistence surface for blocks. Every mutating call is
// atomic; a failed call leaves the store exactly as it was.
type BlockStore interface {
	CreateBlock(b *Block) error
	GetBlock(id string) (*Block, error)
	ListBlocks(projectID string) ([]Block, error)
	ListBlocksByType(projectID string, t BlockType) ([]Block, error)
	ListChildren(parentID string) ([]Block, error)
	ListRange(projectID string, start, end float64) ([]Block, error)
	UpdateBlock(b *Block) error
	PatchBlock(p *BlockPatch) error
	DeleteBlock(id string) error
	DeleteBlocksByProject(projectID string) error
	ApplyChanges(projectID string, changes []BlockChange) error
	ReplaceProjectBlocks(projectID string, blocks []Block) error
}
