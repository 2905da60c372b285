package markdown

import (
	"fmt"
	"strings"

	"manuscript/internal/domain"
)

// Serialize joins block fragments back into one document, blocks separated
// by a blank line. Blocks without a stored fragment are regenerated with
// Fragment.
func Serialize(blocks []domain.Block) string {
	parts := make([]string, 0, len(blocks))
	for i := range blocks {
		f := blocks[i].Markdown
		if f == "" {
			f = Fragment(&blocks[i])
		}
		parts = append(parts, strings.TrimRight(f, "\n"))
	}
	return strings.Join(parts, "\n\n") + "\n"
}

// Fragment derives a canonical markdown fragment from a block's fields, for
// blocks whose stored fragment is empty.
func Fragment(b *domain.Block) string {
	switch b.Type {
	case domain.BlockTypeHeading, domain.BlockTypeBibliography:
		lvl := b.HeadingLevel
		if lvl < 1 || lvl > 6 {
			lvl = 1
		}
		return strings.Repeat("#", lvl) + " " + b.TextContent
	case domain.BlockTypeHR, domain.BlockTypeSectionBreak:
		return "---"
	case domain.BlockTypeCode:
		return "```\n" + b.TextContent + "\n```"
	case domain.BlockTypeBlockquote:
		lines := strings.Split(b.TextContent, "\n")
		for i, l := range lines {
			lines[i] = "> " + l
		}
		return strings.Join(lines, "\n")
	case domain.BlockTypeBulletList:
		lines := strings.Split(b.TextContent, "\n")
		for i, l := range lines {
			lines[i] = "- " + l
		}
		return strings.Join(lines, "\n")
	case domain.BlockTypeOrderedList:
		lines := strings.Split(b.TextContent, "\n")
		for i, l := range lines {
			lines[i] = fmt.Sprintf("%d. %s", i+1, l)
		}
		return strings.Join(lines, "\n")
	case domain.BlockTypeImage:
		if b.ImageCaption != "" {
			return fmt.Sprintf("![%s](%s %q)", b.ImageAlt, b.ImageSrc, b.ImageCaption)
		}
		return fmt.Sprintf("![%s](%s)", b.ImageAlt, b.ImageSrc)
	default:
		return b.TextContent
	}
}
