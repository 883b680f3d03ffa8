package ingest

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"

	"briefdoc/internal/knowledge"
)

// DefaultChunkSize is the target chunk length in runes.
const DefaultChunkSize = 1200

// chunkNamespace scopes the name-based chunk IDs.
var chunkNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("briefdoc/chunk"))

// Chunker packs section paragraphs into records of at most Size runes.
// Records with text identical to an earlier one are skipped.
type Chunker struct {
	Size int
	seen map[uint64]bool
}

func NewChunker(size int) *Chunker {
	if size <= 0 {
		size = DefaultChunkSize
	}
	return &Chunker{Size: size, seen: map[uint64]bool{}}
}

// Chunk returns the records for doc. IDs derive from collection, source,
// section and position, so re-ingesting a source overwrites its records.
func (c *Chunker) Chunk(collection string, doc Document) []knowledge.Record {
	var out []knowledge.Record
	for si, sec := range doc.Sections {
		for pi, piece := range c.pack(sec.Text) {
			h := xxhash.Sum64String(strings.ToLower(piece))
			if c.seen[h] {
				continue
			}
			c.seen[h] = true

			title := sec.Title
			if title == introTitle && doc.Title != "" {
				title = doc.Title
			}
			out = append(out, knowledge.Record{
				ID:         chunkID(collection, doc.Source, si, pi),
				Collection: collection,
				Text:       piece,
				Source:     doc.Source,
				Title:      title,
			})
		}
	}
	return out
}

// pack groups lines into chunks, splitting a line that alone exceeds the
// size at word boundaries.
func (c *Chunker) pack(text string) []string {
	var chunks []string
	var cur strings.Builder
	curLen := 0
	emit := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			chunks = append(chunks, s)
		}
		cur.Reset()
		curLen = 0
	}

	for _, line := range strings.Split(text, "\n") {
		for _, piece := range splitWords(strings.TrimSpace(line), c.Size) {
			n := utf8.RuneCountInString(piece)
			if curLen > 0 && curLen+1+n > c.Size {
				emit()
			}
			if curLen > 0 {
				cur.WriteByte('\n')
				curLen++
			}
			cur.WriteString(piece)
			curLen += n
		}
	}
	emit()
	return chunks
}

func splitWords(line string, size int) []string {
	if line == "" {
		return nil
	}
	if utf8.RuneCountInString(line) <= size {
		return []string{line}
	}
	var out []string
	var cur strings.Builder
	curLen := 0
	for _, w := range strings.Fields(line) {
		n := utf8.RuneCountInString(w)
		if curLen > 0 && curLen+1+n > size {
			out = append(out, cur.String())
			cur.Reset()
			curLen = 0
		}
		if curLen > 0 {
			cur.WriteByte(' ')
			curLen++
		}
		cur.WriteString(w)
		curLen += n
	}
	if cur.Len() > 0 {
		out = append(out, cur.String())
	}
	return out
}

func chunkID(collection, source string, section, piece int) string {
	name := collection + "\x00" + source + "\x00" + strconv.Itoa(section) + "\x00" + strconv.Itoa(piece)
	return uuid.NewSHA1(chunkNamespace, []byte(name)).String()
}
