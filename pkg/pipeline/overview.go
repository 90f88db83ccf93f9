package pipeline

import (
	"strings"
	"unicode/utf8"

	"github.com/xhad/paperqa/internal/models"
)

// Overview summarises an indexed document for browsing.
func (p *Pipeline) Overview(h *Handle) models.Overview {
	return Overview(h)
}

func Overview(h *Handle) models.Overview {
	ov := models.Overview{
		Pages:      h.Pages,
		Characters: h.Characters,
		Words:      h.Words,
		Sections:   make([]models.SectionStats, 0, len(h.Sections)),
	}
	if h.Index != nil {
		ov.Records = h.Index.Len()
		ov.Model = h.Index.Model()
	}
	for _, s := range h.Sections {
		ov.Sections = append(ov.Sections, SectionStats(s))
	}
	return ov
}

func SectionStats(s models.Section) models.SectionStats {
	return models.SectionStats{
		Heading:    s.Heading,
		Characters: utf8.RuneCountInString(s.Body),
		Words:      len(strings.Fields(s.Body)),
		Paragraphs: paragraphs(s.Body),
	}
}

// paragraphs counts runs of non-blank lines.
func paragraphs(body string) int {
	n := 0
	inPara := false
	for _, line := range strings.Split(body, "\n") {
		if strings.TrimSpace(line) == "" {
			inPara = false
			continue
		}
		if !inPara {
			n++
			inPara = true
		}
	}
	return n
}
