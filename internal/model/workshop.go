package model

type BlockType string

const (
	BlockParagraph BlockType = "paragraph"
	BlockHeading   BlockType = "heading"
	BlockQuote     BlockType = "quote"
	BlockList      BlockType = "list"
	BlockCode      BlockType = "code"
)

// Block is one unit of a lesson body.
type Block struct {
	Type  BlockType `json:"type"`
	Text  string    `json:"text,omitempty"`
	Items []string  `json:"items,omitempty"`
}

// Workshop is the authored state of a workshop as the content repository
// returns it.
type Workshop struct {
	Slug    string           `json:"slug"`
	Title   string           `json:"title"`
	Image   string           `json:"image,omitempty"`
	IsTest  bool             `json:"isTest"`
	Lessons []AuthoredLesson `json:"lessons"`
}

// AuthoredLesson is a lesson as written. SendOffsetDays is nil when the author
// left it unset; Content is empty when the linked body could not be resolved.
type AuthoredLesson struct {
	Key            string  `json:"key"`
	Subject        string  `json:"subject"`
	Preheader      string  `json:"preheader,omitempty"`
	SendOffsetDays *int    `json:"sendOffsetDays,omitempty"`
	Content        []Block `json:"content,omitempty"`
	Summary        string  `json:"summary,omitempty"`
	PostSlug       string  `json:"postSlug,omitempty"`
}

type ResolvedLesson struct {
	Key            string
	Subject        string
	Preheader      string
	SendOffsetDays int
	Content        []Block
	Summary        string
	PostSlug       string
}

type Sequence struct {
	WorkshopSlug  string
	WorkshopTitle string
	WorkshopImage string
	IsTest        bool
	Lessons       []ResolvedLesson
}
