// Package rag turns startup records into retrievable text chunks and ranks
// them against queries by embedding similarity.
package rag

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/lareunion-tech/startup-matcher/internal/directory"
)

var paragraphSplit = regexp.MustCompile(`\n\s*\n`)

// ChunkMetadata back-references the source record. It is a lookup key, not an
// owning reference: chunks are regenerated whenever the source set changes.
type ChunkMetadata struct {
	Source      string   `json:"source"`
	StartupID   string   `json:"startup_id"`
	StartupName string   `json:"startup_name"`
	Tags        []string `json:"tags"`
	Domain      string   `json:"domain"`
	Location    string   `json:"location"`
}

// DocumentChunk is a bounded slice of a record's serialized text. Content
// never exceeds the configured chunk size except when a single sentence does,
// in which case the sentence is kept whole rather than truncated.
type DocumentChunk struct {
	Content  string        `json:"content"`
	Metadata ChunkMetadata `json:"metadata"`
}

// Chunker splits serialized records into chunks by greedy paragraph packing,
// descending to sentence packing for paragraphs that exceed the chunk size.
type Chunker struct {
	chunkSize    int
	chunkOverlap int
}

// NewChunker builds a Chunker. The overlap knob is carried in configuration
// but chunk boundaries are exact; see DESIGN.md.
func NewChunker(chunkSize, chunkOverlap int) *Chunker {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	return &Chunker{chunkSize: chunkSize, chunkOverlap: chunkOverlap}
}

// ChunkRecords chunks a whole record set.
func (c *Chunker) ChunkRecords(records []directory.StartupRecord) []DocumentChunk {
	var chunks []DocumentChunk
	for _, rec := range records {
		chunks = append(chunks, c.ChunkRecord(rec)...)
	}
	return chunks
}

// ChunkRecord serializes one record into narrative text and splits it.
func (c *Chunker) ChunkRecord(rec directory.StartupRecord) []DocumentChunk {
	meta := ChunkMetadata{
		Source:      "startup_crawl",
		StartupID:   rec.ID,
		StartupName: rec.Name,
		Tags:        rec.Tags,
		Domain:      rec.Domain,
		Location:    rec.Location,
	}
	var chunks []DocumentChunk
	for _, content := range c.split(SerializeRecord(rec)) {
		chunks = append(chunks, DocumentChunk{Content: content, Metadata: meta})
	}
	return chunks
}

// SerializeRecord renders a record as the narrative text fed to the embedding
// model.
func SerializeRecord(rec directory.StartupRecord) string {
	return fmt.Sprintf(
		"Nom: %s\n\nDescription: %s\n\nTags: %s\n\nURL: %s\n\nContact: %s\n\nDomaine d'activité: %s\n\nLocalisation: %s",
		orDefault(rec.Name, "Non spécifié"),
		orDefault(rec.Description, "Non spécifiée"),
		orDefault(strings.Join(rec.Tags, ", "), "Non spécifiés"),
		orDefault(rec.URL, "Non spécifiée"),
		orDefault(rec.Contact, "Non spécifié"),
		orDefault(rec.Domain, "Non spécifié"),
		orDefault(rec.Location, "Non spécifiée"),
	)
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

func (c *Chunker) split(content string) []string {
	var chunks []string
	var current strings.Builder

	flush := func() {
		if text := strings.TrimSpace(current.String()); text != "" {
			chunks = append(chunks, text)
		}
		current.Reset()
	}

	for _, paragraph := range paragraphSplit.Split(content, -1) {
		paragraph = strings.TrimSpace(paragraph)
		if paragraph == "" {
			continue
		}
		if len(paragraph) > c.chunkSize {
			c.packSentences(paragraph, &current, &chunks, flush)
			continue
		}
		if current.Len()+len(paragraph) > c.chunkSize {
			flush()
		}
		current.WriteString(paragraph)
		current.WriteString("\n\n")
	}
	flush()
	return chunks
}

func (c *Chunker) packSentences(paragraph string, current *strings.Builder, chunks *[]string, flush func()) {
	for _, sentence := range splitSentences(paragraph) {
		if len(sentence) > c.chunkSize {
			// A single atomic sentence longer than the chunk size is emitted
			// whole; truncating it would silently lose data.
			flush()
			*chunks = append(*chunks, sentence)
			continue
		}
		if current.Len()+len(sentence) > c.chunkSize {
			flush()
		}
		current.WriteString(sentence)
		current.WriteString(" ")
	}
}

// splitSentences cuts after terminal punctuation followed by whitespace.
func splitSentences(text string) []string {
	var sentences []string
	start := 0
	runes := []rune(text)
	for i := 0; i < len(runes)-1; i++ {
		if isTerminal(runes[i]) && isSpace(runes[i+1]) {
			sentence := strings.TrimSpace(string(runes[start : i+1]))
			if sentence != "" {
				sentences = append(sentences, sentence)
			}
			start = i + 1
		}
	}
	if tail := strings.TrimSpace(string(runes[start:])); tail != "" {
		sentences = append(sentences, tail)
	}
	return sentences
}

func isTerminal(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\n' || r == '\t'
}
