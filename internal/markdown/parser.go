// Package markdown implements the parse contract: raw markup in, an ordered
// list of leaf block descriptors out, and back again. It is deliberately
// line-level; block identity and hierarchy are the engine's job, not the
// parser's.
package markdown

import (
	"regexp"
	"strings"

	"manuscript/internal/domain"
)

var (
	fenceRe     = regexp.MustCompile("^(```|~~~)")
	hrRe        = regexp.MustCompile(`^ {0,3}((\* *){3,}|(- *){3,}|(_ *){3,})$`)
	bulletRe    = regexp.MustCompile(`^ {0,3}[-*+][ \t]`)
	orderedRe   = regexp.MustCompile(`^ {0,3}\d{1,9}[.)][ \t]`)
	imageRe     = regexp.MustCompile(`^!\[([^\]]*)\]\(\s*([^)\s"]+)(?:\s+"([^"]*)")?\s*\)$`)
	linkRe      = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	inlineImgRe = regexp.MustCompile(`!\[([^\]]*)\]\([^)]*\)`)
	codeTickRe  = regexp.MustCompile("`([^`]*)`")
)

// HeadingLevel returns the heading level (1-6) indicated by a leading run of
// '#' marks on the fragment's first line, or 0 when the fragment is not a
// heading. Seven or more marks do not make a heading.
func HeadingLevel(fragment string) int {
	line := fragment
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	n := 0
	for n < len(line) && line[n] == '#' {
		n++
	}
	if n < 1 || n > 6 {
		return 0
	}
	if n == len(line) || line[n] == ' ' || line[n] == '\t' {
		return n
	}
	return 0
}

// DetectType classifies a fragment by its markup alone. Ambiguous content
// is a paragraph, never an error. The returned level is non-zero only for
// headings.
func DetectType(fragment string) (domain.BlockType, int) {
	trimmed := strings.TrimRight(fragment, "\n")
	line := trimmed
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}

	if lvl := HeadingLevel(line); lvl > 0 {
		return domain.BlockTypeHeading, lvl
	}
	if fenceRe.MatchString(line) {
		return domain.BlockTypeCode, 0
	}
	if hrRe.MatchString(strings.ReplaceAll(line, "\t", " ")) {
		return domain.BlockTypeHR, 0
	}
	if imageRe.MatchString(strings.TrimSpace(trimmed)) {
		return domain.BlockTypeImage, 0
	}
	if strings.HasPrefix(strings.TrimSpace(line), "|") {
		return domain.BlockTypeTable, 0
	}
	if strings.HasPrefix(line, ">") {
		return domain.BlockTypeBlockquote, 0
	}
	if bulletRe.MatchString(line) {
		return domain.BlockTypeBulletList, 0
	}
	if orderedRe.MatchString(line) {
		return domain.BlockTypeOrderedList, 0
	}
	return domain.BlockTypeParagraph, 0
}

// Parse splits a document into ordered block descriptors. Blank lines
// separate blocks except inside code fences; headings, fences, and thematic
// breaks are always their own block.
func Parse(doc string) []domain.ParsedBlock {
	doc = strings.ReplaceAll(doc, "\r\n", "\n")
	lines := strings.Split(doc, "\n")

	var blocks []domain.ParsedBlock
	var cur []string

	flush := func() {
		if len(cur) == 0 {
			return
		}
		blocks = append(blocks, describe(strings.Join(cur, "\n")))
		cur = nil
	}

	for i := 0; i < len(lines); i++ {
		line := lines[i]

		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}

		// Fenced code runs to the closing fence, blank lines included.
		if m := fenceRe.FindString(line); m != "" {
			flush()
			fence := []string{line}
			i++
			for ; i < len(lines); i++ {
				fence = append(fence, lines[i])
				if strings.HasPrefix(strings.TrimSpace(lines[i]), m) {
					break
				}
			}
			blocks = append(blocks, describe(strings.Join(fence, "\n")))
			continue
		}

		if HeadingLevel(line) > 0 || hrRe.MatchString(strings.ReplaceAll(line, "\t", " ")) {
			flush()
			cur = []string{line}
			flush()
			continue
		}

		// A structural marker starting mid-run opens a new block.
		if len(cur) > 0 && breaksRun(cur[0], line) {
			flush()
		}
		cur = append(cur, line)
	}
	flush()

	return blocks
}

// breaksRun reports whether line starts a different block kind than the run
// opened by first. Indented continuation lines never break a run.
func breaksRun(first, line string) bool {
	if strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t") {
		return false
	}
	kind := func(l string) domain.BlockType {
		switch {
		case strings.HasPrefix(l, ">"):
			return domain.BlockTypeBlockquote
		case bulletRe.MatchString(l):
			return domain.BlockTypeBulletList
		case orderedRe.MatchString(l):
			return domain.BlockTypeOrderedList
		case strings.HasPrefix(strings.TrimSpace(l), "|"):
			return domain.BlockTypeTable
		default:
			return domain.BlockTypeParagraph
		}
	}
	return kind(first) != kind(line)
}

// describe builds the descriptor for one fragment.
func describe(fragment string) domain.ParsedBlock {
	t, lvl := DetectType(fragment)
	pb := domain.ParsedBlock{
		Type:         t,
		Markdown:     fragment,
		HeadingLevel: lvl,
	}
	if t == domain.BlockTypeImage {
		pb.ImageSrc, pb.ImageAlt, pb.ImageCaption, _ = ImageMeta(fragment)
	}
	pb.TextContent = PlainText(fragment, t)
	return pb
}

// ImageMeta extracts source, alt text, and caption from an image fragment.
func ImageMeta(fragment string) (src, alt, caption string, ok bool) {
	m := imageRe.FindStringSubmatch(strings.TrimSpace(fragment))
	if m == nil {
		return "", "", "", false
	}
	return m[2], m[1], m[3], true
}

// PlainText strips block and inline markup, leaving the projection used for
// search and word counting.
func PlainText(fragment string, t domain.BlockType) string {
	switch t {
	case domain.BlockTypeHR, domain.BlockTypeSectionBreak:
		return ""
	case domain.BlockTypeHeading, domain.BlockTypeBibliography:
		line := fragment
		if i := strings.IndexByte(line, '\n'); i >= 0 {
			line = line[:i]
		}
		return stripInline(strings.TrimSpace(strings.TrimLeft(line, "#")))
	case domain.BlockTypeImage:
		if m := imageRe.FindStringSubmatch(strings.TrimSpace(fragment)); m != nil {
			return m[1]
		}
		return ""
	case domain.BlockTypeCode:
		var body []string
		for _, l := range strings.Split(fragment, "\n") {
			if fenceRe.MatchString(strings.TrimSpace(l)) {
				continue
			}
			body = append(body, l)
		}
		return strings.Join(body, "\n")
	case domain.BlockTypeTable:
		var cells []string
		for _, l := range strings.Split(fragment, "\n") {
			l = strings.Trim(strings.TrimSpace(l), "|")
			if strings.Trim(l, " -:|") == "" {
				continue // delimiter row
			}
			for _, c := range strings.Split(l, "|") {
				if c = strings.TrimSpace(c); c != "" {
					cells = append(cells, stripInline(c))
				}
			}
		}
		return strings.Join(cells, " ")
	default:
		var out []string
		for _, l := range strings.Split(fragment, "\n") {
			l = strings.TrimSpace(l)
			l = strings.TrimSpace(strings.TrimPrefix(l, ">"))
			if m := bulletRe.FindString(l); m != "" {
				l = l[len(m):]
			} else if m := orderedRe.FindString(l); m != "" {
				l = l[len(m):]
			}
			if l != "" {
				out = append(out, stripInline(l))
			}
		}
		return strings.Join(out, "\n")
	}
}

var emphasisReplacer = strings.NewReplacer("**", "", "__", "", "*", "")

func stripInline(s string) string {
	s = inlineImgRe.ReplaceAllString(s, "$1")
	s = linkRe.ReplaceAllString(s, "$1")
	s = codeTickRe.ReplaceAllString(s, "$1")
	return emphasisReplacer.Replace(s)
}

// CountWords counts whitespace-separated words in a plain-text projection.
func CountWords(s string) int {
	return len(strings.Fields(s))
}
