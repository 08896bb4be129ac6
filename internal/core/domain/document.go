package domain

import "time"

// Document is an uploaded document together with its section tree.
// A Document exclusively owns its Sections, and each Section owns its Chunks.
// The tree is replaced as a whole on re-indexing and never edited piecemeal.
type Document struct {
	// ID is the unique identifier for the document.
	ID string

	// Name is the display name, usually the uploaded file name.
	Name string

	// MIMEType is the detected content type of the original upload.
	MIMEType string

	// Text is the full extracted text. Section offsets index into it.
	Text string

	// PageBoundaries holds the byte offset in Text where each page starts.
	// Empty when the source format has no notion of pages.
	PageBoundaries []int

	// Sections is the ordered list of detected sections.
	Sections []Section

	// SizeBytes is the size of the original upload.
	SizeBytes int64

	// EmbeddingModel names the model that produced the chunk embeddings.
	// Queries are only compared against embeddings from the same model.
	EmbeddingModel string

	// Dimensions is the embedding vector size shared by every chunk.
	Dimensions int

	// IsActive is true when this document is the session's active document.
	// It is derived from the session store on read and never persisted here.
	IsActive bool

	// CreatedAt is when the document was first uploaded.
	CreatedAt time.Time

	// UpdatedAt is when the section tree was last rebuilt.
	UpdatedAt time.Time
}

// Section is a titled span of a document's text.
type Section struct {
	// Index is the zero-based position of the section in the document.
	Index int

	// Title is the detected or generated heading. Never empty.
	Title string

	// Start is the byte offset in Document.Text where the section begins.
	Start int

	// End is the byte offset in Document.Text where the section ends (exclusive).
	End int

	// Chunks is the ordered list of embedded chunks for this section.
	Chunks []Chunk

	// IndexError records why chunking or embedding failed for this section.
	// Empty when the section indexed successfully.
	IndexError string
}

// Len returns the section length in bytes.
func (s Section) Len() int {
	return s.End - s.Start
}

// Indexed reports whether the section indexed without error.
func (s Section) Indexed() bool {
	return s.IndexError == ""
}

// Chunk is a bounded span of a section's text with its embedding.
type Chunk struct {
	// ID is the unique identifier for the chunk.
	ID string

	// Position is the ordinal position within the section.
	Position int

	// Offset is the byte offset of the chunk within its section text.
	Offset int

	// Text is the chunk's text span.
	Text string

	// Embedding is the vector representation for similarity search.
	Embedding []float32
}

// SectionText returns the text span of the section at index i.
func (d *Document) SectionText(i int) string {
	if i < 0 || i >= len(d.Sections) {
		return ""
	}
	s := d.Sections[i]
	return d.Text[s.Start:s.End]
}

// SectionTitles returns section titles in document order.
func (d *Document) SectionTitles() []string {
	titles := make([]string, len(d.Sections))
	for i, s := range d.Sections {
		titles[i] = s.Title
	}
	return titles
}

// ChunkCount returns the total number of chunks across all sections.
func (d *Document) ChunkCount() int {
	n := 0
	for _, s := range d.Sections {
		n += len(s.Chunks)
	}
	return n
}

// FullyIndexed reports whether every section indexed without error.
func (d *Document) FullyIndexed() bool {
	for _, s := range d.Sections {
		if !s.Indexed() {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of the document tree.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	c := *d
	if d.PageBoundaries != nil {
		c.PageBoundaries = append([]int(nil), d.PageBoundaries...)
	}
	if d.Sections != nil {
		c.Sections = make([]Section, len(d.Sections))
		for i, s := range d.Sections {
			c.Sections[i] = s
			if s.Chunks != nil {
				c.Sections[i].Chunks = make([]Chunk, len(s.Chunks))
				for j, ch := range s.Chunks {
					c.Sections[i].Chunks[j] = ch
					if ch.Embedding != nil {
						c.Sections[i].Chunks[j].Embedding = append([]float32(nil), ch.Embedding...)
					}
				}
			}
		}
	}
	return &c
}

// Summary returns a copy of the document without chunk data.
// Used for listings where embeddings would be wasted work.
func (d *Document) Summary() *Document {
	if d == nil {
		return nil
	}
	c := *d
	c.Text = ""
	c.PageBoundaries = nil
	c.Sections = make([]Section, len(d.Sections))
	for i, s := range d.Sections {
		s.Chunks = nil
		c.Sections[i] = s
	}
	return &c
}

// ScoredChunk pairs a chunk with its similarity to a query.
type ScoredChunk struct {
	// SectionIndex is the index of the owning section.
	SectionIndex int

	// SectionTitle is the title of the owning section.
	SectionTitle string

	// Chunk is the matched chunk.
	Chunk Chunk

	// Score is the cosine similarity to the query.
	Score float64
}
